package datatransfer

import "testing"

func TestCopyTextEncodeNull(t *testing.T) {
	if got := copyTextEncode(nil, "col", ""); got != `\N` {
		t.Fatalf("got %q", got)
	}
}

func TestCopyTextEncodeEscapesSpecialCharacters(t *testing.T) {
	got := copyTextEncode("a\tb\nc\rd\\e", "col", "text")
	want := `a\tb\nc\rd\\e`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCopyTextEncodeSerializesMapAsJSON(t *testing.T) {
	got := copyTextEncode(map[string]any{"k": "v"}, "payload", "jsonb")
	want := `{"k":"v"}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCopyTextEncodeSliceAsJSONWhenDestNotArray(t *testing.T) {
	got := copyTextEncode([]any{"a", "b"}, "payload", "jsonb")
	want := `["a","b"]`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCopyTextEncodeSliceAsArrayLiteralWhenDestIsArray(t *testing.T) {
	got := copyTextEncode([]any{"a", "b"}, "tags", "_text")
	want := `{"a","b"}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCopyTextEncodeNumericArrayLiteralIsUnquoted(t *testing.T) {
	got := copyTextEncode([]any{int64(1), int64(2), int64(3)}, "ids", "_int4")
	want := `{1,2,3}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCopyTextEncodeBooleanArrayLiteralIsUnquoted(t *testing.T) {
	got := copyTextEncode([]any{true, false}, "flags", "_bool")
	want := `{true,false}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// The array-literal quoting in formatArrayElement runs before the outer
// COPY text-format escaping, so any backslash it introduces (escaping a
// quote or a literal backslash) is itself doubled by escapeCopyText — the
// same nested-escaping Postgres documents for array values in COPY text
// format.
func TestCopyTextEncodeArrayLiteralEscapesQuotesAndBackslashes(t *testing.T) {
	got := copyTextEncode([]any{`a"b`, `c\d`}, "tags", "_text")
	want := `{"a\\"b","c\\\\d"}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCopyTextEncodeArrayLiteralNullElement(t *testing.T) {
	got := copyTextEncode([]any{"a", nil}, "tags", "_text")
	want := `{"a",NULL}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCopyTextEncodeBoolean(t *testing.T) {
	if got := copyTextEncode(true, "col", "bool"); got != "t" {
		t.Fatalf("got %q", got)
	}
	if got := copyTextEncode(false, "col", "bool"); got != "f" {
		t.Fatalf("got %q", got)
	}
}

func TestCopyTextEncodeInteger(t *testing.T) {
	if got := copyTextEncode(int64(42), "col", "int8"); got != "42" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeValueRecanonicalizesJSONNamedColumn(t *testing.T) {
	got := normalizeValue(`{"b":2,  "a":1}`, "metadata_json", "text")
	want := `{"a":1,"b":2}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNormalizeValueLeavesNonJSONNamedColumnAlone(t *testing.T) {
	got := normalizeValue(`{"b":2,  "a":1}`, "description", "text")
	want := `{"b":2,  "a":1}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNormalizeValueLeavesNonJSONLookingStringAlone(t *testing.T) {
	got := normalizeValue("plain text", "notes_json", "text")
	want := "plain text"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestIsArrayType(t *testing.T) {
	cases := map[string]bool{
		"_int4": true,
		"_text": true,
		"jsonb": false,
		"text":  false,
		"":      false,
	}
	for udt, want := range cases {
		if got := isArrayType(udt); got != want {
			t.Fatalf("isArrayType(%q) = %v, want %v", udt, got, want)
		}
	}
}
