package schemareplicator

import (
	"strings"
	"testing"
)

func TestExtractSequenceNameQualified(t *testing.T) {
	schema, name := extractSequenceName(`nextval('public.orders_id_seq'::regclass)`, "public")
	if schema != "public" || name != "orders_id_seq" {
		t.Fatalf("got (%q, %q)", schema, name)
	}
}

func TestExtractSequenceNameUnqualifiedFallsBackToColumnSchema(t *testing.T) {
	schema, name := extractSequenceName(`nextval('"orders_id_seq"'::regclass)`, "reporting")
	if schema != "reporting" || name != "orders_id_seq" {
		t.Fatalf("got (%q, %q)", schema, name)
	}
}

func TestAccessMethodForPicksGINOnJSONOrArray(t *testing.T) {
	if m, ok := accessMethodFor([]string{"jsonb"}); !ok || m != "GIN" {
		t.Fatalf("got %s,%v", m, ok)
	}
	if m, ok := accessMethodFor([]string{"_int4"}); !ok || m != "GIN" {
		t.Fatalf("got %s,%v", m, ok)
	}
	if m, ok := accessMethodFor([]string{"int4", "text"}); !ok || m != "BTREE" {
		t.Fatalf("got %s,%v", m, ok)
	}
}

func TestAccessMethodForRejectsGeometricAndXMLTypes(t *testing.T) {
	cases := [][]string{
		{"point"},
		{"box"},
		{"circle"},
		{"xml"},
		{"int4", "polygon"},
	}
	for _, columnTypes := range cases {
		if _, ok := accessMethodFor(columnTypes); ok {
			t.Fatalf("accessMethodFor(%v): expected unsupported, got supported", columnTypes)
		}
	}
}

func TestColumnDefinitionSQLSubstitutesIdentityOnFailedSequence(t *testing.T) {
	col := sourceColumn{name: "id", dataType: "int4", nullable: false, hasDefault: true, defaultSQL: "nextval('orders_id_seq'::regclass)"}
	failed := map[string]bool{"id": true}
	def := columnDefinitionSQL(col, "public", "orders", failed)
	if !strings.Contains(def, "GENERATED BY DEFAULT AS IDENTITY") {
		t.Fatalf("expected identity substitution, got %q", def)
	}
	if strings.Contains(def, "nextval") {
		t.Fatalf("did not expect nextval reference in failed-sequence column, got %q", def)
	}
}

func TestColumnDefinitionSQLRewritesSequenceDefault(t *testing.T) {
	col := sourceColumn{name: "id", dataType: "int4", nullable: false, hasDefault: true, defaultSQL: "nextval('orders_id_seq'::regclass)"}
	def := columnDefinitionSQL(col, "public", "orders", map[string]bool{})
	if !strings.Contains(def, "nextval('public.orders_id_seq'::regclass)") {
		t.Fatalf("expected rewritten sequence default, got %q", def)
	}
}

func TestBuildCreateTableSQLIncludesNamedPrimaryKey(t *testing.T) {
	columns := []sourceColumn{
		{name: "id", dataType: "int4", nullable: false},
		{name: "name", dataType: "text", nullable: true},
	}
	sql := buildCreateTableSQL("public", "orders", columns, []string{"id"}, map[string]bool{})
	if !strings.Contains(sql, `CONSTRAINT "orders_pkey" PRIMARY KEY ("id")`) {
		t.Fatalf("expected named pkey constraint, got %q", sql)
	}
}

func TestMapColumnTypeHandlesArrays(t *testing.T) {
	if got := mapColumnType("_int4"); got != "integer[]" {
		t.Fatalf("got %q", got)
	}
}
