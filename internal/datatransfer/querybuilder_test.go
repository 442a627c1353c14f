package datatransfer

import (
	"strings"
	"testing"

	"github.com/pgsynclabs/syncengine/internal/domain"
)

func TestBuildQueryAutoIDWithWatermark(t *testing.T) {
	table := domain.TargetTable{
		SchemaName:          "public",
		TableName:           "orders",
		IncrementalStrategy: domain.IncrementalAutoID,
		LastSyncValue:       "42",
	}
	columns := []ColumnInfo{{Name: "id", DataType: "int4"}, {Name: "name", DataType: "text"}}

	query, args, field := BuildQuery(table, columns, domain.SyncModeIncremental, "")
	if field != "id" {
		t.Fatalf("got field %q, want id", field)
	}
	if !strings.Contains(query, `"id" > $1`) {
		t.Fatalf("expected watermark predicate, got %q", query)
	}
	if len(args) != 1 || args[0] != "42" {
		t.Fatalf("got args %v", args)
	}
}

func TestBuildQueryAutoIDWithoutWatermarkUsesNotNull(t *testing.T) {
	table := domain.TargetTable{
		SchemaName:          "public",
		TableName:           "orders",
		IncrementalStrategy: domain.IncrementalAutoID,
	}
	columns := []ColumnInfo{{Name: "id", DataType: "int4"}}

	query, _, _ := BuildQuery(table, columns, domain.SyncModeIncremental, "")
	if !strings.Contains(query, `"id" IS NOT NULL`) {
		t.Fatalf("expected IS NOT NULL predicate, got %q", query)
	}
}

func TestBuildQueryAutoTimestampWithoutWatermarkUses24HourWindow(t *testing.T) {
	table := domain.TargetTable{
		SchemaName:          "public",
		TableName:           "events",
		IncrementalStrategy: domain.IncrementalAutoTimestamp,
	}
	columns := []ColumnInfo{{Name: "updated_at", DataType: "timestamptz"}}

	query, _, field := BuildQuery(table, columns, domain.SyncModeIncremental, "")
	if field != "updated_at" {
		t.Fatalf("got field %q", field)
	}
	if !strings.Contains(query, "interval '24 hours'") {
		t.Fatalf("expected 24h fallback window, got %q", query)
	}
}

func TestBuildQueryAppendsGlobalWhere(t *testing.T) {
	table := domain.TargetTable{SchemaName: "public", TableName: "orders"}
	query, _, _ := BuildQuery(table, nil, domain.SyncModeFull, "status = 'active'")
	if !strings.Contains(query, "WHERE (status = 'active')") {
		t.Fatalf("expected global where clause, got %q", query)
	}
}

func TestBuildQueryFullModeSkipsIncrementalPredicate(t *testing.T) {
	table := domain.TargetTable{
		SchemaName:          "public",
		TableName:           "orders",
		IncrementalStrategy: domain.IncrementalAutoID,
	}
	query, args, field := BuildQuery(table, []ColumnInfo{{Name: "id", DataType: "int4"}}, domain.SyncModeFull, "")
	if field != "" || len(args) != 0 {
		t.Fatalf("expected no incremental predicate in FULL mode, got field=%q args=%v", field, args)
	}
	if strings.Contains(query, "WHERE") {
		t.Fatalf("expected no WHERE clause, got %q", query)
	}
}

func TestResolveFieldPrefersExactNameOverSuffixMatch(t *testing.T) {
	columns := []ColumnInfo{
		{Name: "legacy_id", DataType: "int4"},
		{Name: "id", DataType: "int4"},
	}
	got := resolveField("", columns, idNamePreference, idCaseVariants, "_id", "id_", integerTypes)
	if got != "id" {
		t.Fatalf("got %q, want id", got)
	}
}
