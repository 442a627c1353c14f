// Package datatransfer streams rows from a source table to a destination
// table via one of two interchangeable strategies (row-batch INSERT or
// bulk COPY), selected by row count and column complexity. Grounded on the
// original engine's DataManager/CopyDataManager pair.
package datatransfer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// normalizeValue canonicalizes a raw driver value for wire transfer, using
// the destination column's declared type (destType is its udt_name) to
// decide how to encode it — per spec 4.6.4, encoding is driven by the
// destination's type, not the source's.
//
//   - A JSON array decoded by pgx ([]any) destined for an array-typed
//     column is rendered as a Postgres array literal instead of JSON text;
//     destined for anything else it is serialized to compact JSON. A JSON
//     object (map[string]any) is always serialized to compact JSON.
//   - A string value in a column whose name suggests JSON content is
//     re-canonicalized (parsed and re-marshalled) when it already looks
//     like JSON, so inconsistent source formatting doesn't survive the copy.
func normalizeValue(v any, columnName, destType string) any {
	switch val := v.(type) {
	case []any:
		if isArrayType(destType) {
			return formatArrayLiteral(val)
		}
		b, err := json.Marshal(val)
		if err != nil {
			return v
		}
		return string(b)
	case map[string]any:
		b, err := json.Marshal(val)
		if err != nil {
			return v
		}
		return string(b)
	case string:
		if nameSuggestsJSON(columnName) && looksLikeJSON(val) {
			return recanonicalizeJSON(val)
		}
		return val
	default:
		return v
	}
}

// isArrayType reports whether udtName names a Postgres array type.
// information_schema.columns.udt_name prefixes array element types with
// an underscore ("_int4", "_text", ...).
func isArrayType(udtName string) bool {
	return strings.HasPrefix(udtName, "_")
}

// formatArrayLiteral renders elements as a Postgres array literal
// ("{1,2,3}", `{"a","b"}`), quoting every element except numeric and
// boolean ones per spec 4.6.4.
func formatArrayLiteral(elements []any) string {
	parts := make([]string, len(elements))
	for i, e := range elements {
		parts[i] = formatArrayElement(e)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func formatArrayElement(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return formatInteger(val)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return quoteArrayElement(fmt.Sprintf("%v", val))
	}
}

func quoteArrayElement(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

// nameSuggestsJSON is a deliberately simple heuristic: a column whose name
// mentions "json" is assumed to carry JSON-formatted text even when its
// declared type is plain text/varchar.
func nameSuggestsJSON(columnName string) bool {
	return strings.Contains(strings.ToLower(columnName), "json")
}

func looksLikeJSON(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return false
	}
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return false
	}
	return json.Valid([]byte(trimmed))
}

func recanonicalizeJSON(s string) string {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return s
	}
	return string(b)
}

// copyTextEncode renders a single value in the COPY text-format wire
// encoding: backslash-escapes tab/newline/CR/backslash, and \N for NULL.
func copyTextEncode(v any, columnName, destType string) string {
	if v == nil {
		return `\N`
	}
	normalized := normalizeValue(v, columnName, destType)
	var s string
	switch val := normalized.(type) {
	case string:
		s = val
	case []byte:
		s = string(val)
	default:
		s = formatScalar(val)
	}
	return escapeCopyText(s)
}

func escapeCopyText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\t':
			b.WriteString(`\t`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func formatScalar(v any) string {
	switch val := v.(type) {
	case bool:
		if val {
			return "t"
		}
		return "f"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return formatInteger(val)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case interface{ String() string }:
		return val.String()
	default:
		return toString(val)
	}
}

func formatInteger(v any) string {
	switch n := v.(type) {
	case int:
		return strconv.Itoa(n)
	case int8:
		return strconv.FormatInt(int64(n), 10)
	case int16:
		return strconv.FormatInt(int64(n), 10)
	case int32:
		return strconv.FormatInt(int64(n), 10)
	case int64:
		return strconv.FormatInt(n, 10)
	case uint:
		return strconv.FormatUint(uint64(n), 10)
	case uint8:
		return strconv.FormatUint(uint64(n), 10)
	case uint16:
		return strconv.FormatUint(uint64(n), 10)
	case uint32:
		return strconv.FormatUint(uint64(n), 10)
	case uint64:
		return strconv.FormatUint(n, 10)
	default:
		return ""
	}
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return strings.Trim(string(b), `"`)
	}
}
