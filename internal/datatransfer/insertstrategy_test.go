package datatransfer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pgsynclabs/syncengine/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeExecer struct {
	execs      []string
	failOnRow  int // 1-indexed call number to fail, 0 = never
	callCount  int
	uniqueErr  bool
}

func (f *fakeExecer) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.callCount++
	f.execs = append(f.execs, sql)
	if f.failOnRow != 0 && f.callCount == f.failOnRow {
		if f.uniqueErr {
			return pgconn.CommandTag{}, &pgconn.PgError{Code: "23505"}
		}
		return pgconn.CommandTag{}, errors.New("boom")
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestInsertSkipContinuesPastUniqueViolation(t *testing.T) {
	exec := &fakeExecer{failOnRow: 2, uniqueErr: true}
	rows := [][]any{{1, "a"}, {2, "b"}, {3, "c"}}

	written, err := insertSkip(context.Background(), exec, "public", "orders", []string{"id", "name"}, rows, nil, testLogger())
	if err != nil {
		t.Fatalf("insertSkip: %v", err)
	}
	if written != 2 {
		t.Fatalf("got %d written, want 2 (one row skipped)", written)
	}
	if exec.callCount != 3 {
		t.Fatalf("expected one Exec call per row (3), got %d", exec.callCount)
	}
}

func TestInsertSkipPropagatesNonConflictError(t *testing.T) {
	exec := &fakeExecer{failOnRow: 1, uniqueErr: false}
	rows := [][]any{{1, "a"}}

	_, err := insertSkip(context.Background(), exec, "public", "orders", []string{"id", "name"}, rows, nil, testLogger())
	if err == nil {
		t.Fatal("expected error to propagate for non-conflict failure")
	}
}

func TestInsertReplaceDegradesToIgnoreWithoutPrimaryKey(t *testing.T) {
	exec := &fakeExecer{}
	rows := [][]any{{1, "a"}}

	_, err := InsertBatch(context.Background(), exec, "public", "orders", []string{"id", "name"}, rows, nil, domain.ConflictReplace, nil, testLogger())
	if err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}
	if len(exec.execs) != 1 {
		t.Fatalf("expected one exec call, got %d", len(exec.execs))
	}
	want := "ON CONFLICT DO NOTHING"
	if !strings.Contains(exec.execs[0], want) {
		t.Fatalf("expected degraded IGNORE clause, got %q", exec.execs[0])
	}
}

func TestInsertReplaceBuildsOnConflictUpdateClause(t *testing.T) {
	exec := &fakeExecer{}
	rows := [][]any{{1, "a"}}

	_, err := InsertBatch(context.Background(), exec, "public", "orders", []string{"id", "name"}, rows, nil, domain.ConflictReplace, []string{"id"}, testLogger())
	if err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}
	sql := exec.execs[0]
	if !strings.Contains(sql, `ON CONFLICT ("id") DO UPDATE SET "name" = EXCLUDED."name"`) {
		t.Fatalf("got %q", sql)
	}
}

