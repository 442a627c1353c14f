package datatransfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pgsynclabs/syncengine/internal/domain"
)

// InsertBatch writes a batch of rows to schema.table on dest using the
// conflict strategy named by conflict. destTypes maps each destination
// column name to its udt_name, driving array/JSON value encoding. Returns
// the number of rows actually persisted (SKIP may persist fewer than
// len(rows)).
func InsertBatch(ctx context.Context, dest pgxExecer, schema, table string, columnNames []string, rows [][]any, destTypes map[string]string, conflict domain.ConflictStrategy, pkColumns []string, logger *slog.Logger) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	switch conflict {
	case domain.ConflictReplace:
		if len(pkColumns) == 0 {
			logger.Warn("REPLACE requested but table has no primary key, degrading to IGNORE", "table", table)
			return insertIgnore(ctx, dest, schema, table, columnNames, rows, destTypes)
		}
		return insertReplace(ctx, dest, schema, table, columnNames, rows, destTypes, pkColumns)
	case domain.ConflictIgnore:
		return insertIgnore(ctx, dest, schema, table, columnNames, rows, destTypes)
	case domain.ConflictSkip:
		return insertSkip(ctx, dest, schema, table, columnNames, rows, destTypes, logger)
	case domain.ConflictError:
		return insertError(ctx, dest, schema, table, columnNames, rows, destTypes)
	default:
		return insertError(ctx, dest, schema, table, columnNames, rows, destTypes)
	}
}

// pgxExecer is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgxExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertError(ctx context.Context, dest pgxExecer, schema, table string, columnNames []string, rows [][]any, destTypes map[string]string) (int, error) {
	sql, args := buildMultiRowInsert(schema, table, columnNames, rows, destTypes, "")
	tag, err := dest.Exec(ctx, sql, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("%w: %s: %v", domain.ErrConflict, table, err)
		}
		return 0, fmt.Errorf("insert batch: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func insertIgnore(ctx context.Context, dest pgxExecer, schema, table string, columnNames []string, rows [][]any, destTypes map[string]string) (int, error) {
	sql, args := buildMultiRowInsert(schema, table, columnNames, rows, destTypes, "ON CONFLICT DO NOTHING")
	tag, err := dest.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("insert batch with ignore: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func insertReplace(ctx context.Context, dest pgxExecer, schema, table string, columnNames []string, rows [][]any, destTypes map[string]string, pkColumns []string) (int, error) {
	pkSet := make(map[string]bool, len(pkColumns))
	for _, c := range pkColumns {
		pkSet[c] = true
	}
	var setClauses []string
	for _, c := range columnNames {
		if pkSet[c] {
			continue
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = EXCLUDED.%s", quoteIdent(c), quoteIdent(c)))
	}
	if len(setClauses) == 0 {
		// every column is part of the PK — nothing to update, same as IGNORE.
		return insertIgnore(ctx, dest, schema, table, columnNames, rows, destTypes)
	}

	quotedPK := make([]string, len(pkColumns))
	for i, c := range pkColumns {
		quotedPK[i] = quoteIdent(c)
	}
	conflictClause := fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s",
		strings.Join(quotedPK, ", "), strings.Join(setClauses, ", "))

	sql, args := buildMultiRowInsert(schema, table, columnNames, rows, destTypes, conflictClause)
	tag, err := dest.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("insert batch with replace: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// insertSkip inserts rows one at a time so a conflict on row N cannot
// abort row N+1 in the same batch — a single multi-row statement can't do
// that without per-row savepoints. Deliberately slow; reserved for small
// or pathological inputs per spec.
func insertSkip(ctx context.Context, dest pgxExecer, schema, table string, columnNames []string, rows [][]any, destTypes map[string]string, logger *slog.Logger) (int, error) {
	written := 0
	for _, row := range rows {
		sql, args := buildMultiRowInsert(schema, table, columnNames, [][]any{row}, destTypes, "")
		if _, err := dest.Exec(ctx, sql, args...); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				logger.Debug("skipping row due to unique violation", "table", table)
				continue
			}
			return written, fmt.Errorf("insert row: %w", err)
		}
		written++
	}
	return written, nil
}

func buildMultiRowInsert(schema, table string, columnNames []string, rows [][]any, destTypes map[string]string, suffix string) (string, []any) {
	quotedCols := make([]string, len(columnNames))
	for i, c := range columnNames {
		quotedCols[i] = quoteIdent(c)
	}

	var args []any
	var placeholders []string
	for _, row := range rows {
		var ph []string
		for i, v := range row {
			name := columnNames[i]
			args = append(args, normalizeValue(v, name, destTypes[name]))
			ph = append(ph, fmt.Sprintf("$%d", len(args)))
		}
		placeholders = append(placeholders, "("+strings.Join(ph, ", ")+")")
	}

	sql := fmt.Sprintf("INSERT INTO %s.%s (%s) VALUES %s",
		quoteIdent(schema), quoteIdent(table), strings.Join(quotedCols, ", "), strings.Join(placeholders, ", "))
	if suffix != "" {
		sql += " " + suffix
	}
	return sql, args
}
