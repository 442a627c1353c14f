package datatransfer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pgsynclabs/syncengine/internal/domain"
)

// CopyBatch bulk-loads rows via COPY FROM STDIN using pgx's low-level
// wire-protocol entry point rather than pgx.CopyFrom's binary-protocol
// helper, so the wire format matches spec 4.6.6 exactly (tab-delimited
// text, \N null, backslash-escaping) and the INSERT fallback path below
// can re-encode the identical batch without a format mismatch. On failure
// the caller should fall back to InsertBatch with the same rows — REPLACE
// and IGNORE semantics only exist on that path.
func CopyBatch(ctx context.Context, conn *pgx.Conn, schema, table string, columnNames []string, rows [][]any, destTypes map[string]string, timeout time.Duration, logger *slog.Logger) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	copyCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		copyCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	buf := encodeCopyText(rows, columnNames, destTypes)

	quotedCols := make([]string, len(columnNames))
	for i, c := range columnNames {
		quotedCols[i] = quoteIdent(c)
	}
	sql := fmt.Sprintf(
		`COPY %s.%s (%s) FROM STDIN WITH (FORMAT text, DELIMITER E'\t', NULL '\N')`,
		quoteIdent(schema), quoteIdent(table), strings.Join(quotedCols, ", "))

	tag, err := conn.PgConn().CopyFrom(copyCtx, buf, sql)
	if err != nil {
		return 0, fmt.Errorf("copy from stdin: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func encodeCopyText(rows [][]any, columnNames []string, destTypes map[string]string) *bytes.Reader {
	var buf bytes.Buffer
	for _, row := range rows {
		fields := make([]string, len(row))
		for i, v := range row {
			fields[i] = copyTextEncode(v, columnNames[i], destTypes[columnNames[i]])
		}
		buf.WriteString(strings.Join(fields, "\t"))
		buf.WriteByte('\n')
	}
	return bytes.NewReader(buf.Bytes())
}

// CopyOrFallback attempts CopyBatch; on any failure it re-encodes the same
// rows through InsertBatch so REPLACE/IGNORE/SKIP semantics still apply.
func CopyOrFallback(ctx context.Context, conn *pgx.Conn, dest pgxExecer, schema, table string, columnNames []string, rows [][]any, destTypes map[string]string, conflict domain.ConflictStrategy, pkColumns []string, timeout time.Duration, logger *slog.Logger) (int, error) {
	written, err := CopyBatch(ctx, conn, schema, table, columnNames, rows, destTypes, timeout, logger)
	if err == nil {
		return written, nil
	}
	logger.Warn("copy batch failed, falling back to row-batch insert", "table", table, "error", err)
	return InsertBatch(ctx, dest, schema, table, columnNames, rows, destTypes, conflict, pkColumns, logger)
}
