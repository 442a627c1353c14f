package datatransfer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgsynclabs/syncengine/internal/domain"
	"github.com/pgsynclabs/syncengine/internal/repository"
)

// Config carries the tunables named in spec 4.6 (env-driven, see
// config.Config): batch sizes, the COPY selector threshold, and the
// per-copy-call timeout.
type Config struct {
	InsertBatchSize        int
	CopyBatchSize          int
	CopySelectorThreshold  int64
	CopyTimeout            time.Duration
	ProgressUpdateInterval int // report every K batches
}

// ProgressFunc receives the cumulative record count written so far for the
// table. It is called after every ProgressUpdateInterval-th batch (after
// every batch when that interval is zero or less) and once more when the
// table's stream ends.
type ProgressFunc func(recordsWritten int64)

// IsCancelledFunc polls StatusController between batches.
type IsCancelledFunc func(ctx context.Context) (bool, error)

type Transfer struct {
	sourcePool *pgxpool.Pool
	destPool   *pgxpool.Pool
	tableRepo  repository.TargetTableRepository
	cfg        Config
	logger     *slog.Logger
}

func New(sourcePool, destPool *pgxpool.Pool, tableRepo repository.TargetTableRepository, cfg Config, logger *slog.Logger) *Transfer {
	return &Transfer{sourcePool: sourcePool, destPool: destPool, tableRepo: tableRepo, cfg: cfg, logger: logger.With("component", "datatransfer")}
}

// Sync replicates rows for one target table from source to destination.
// Returns the number of records written. Truncates the destination first
// when sync_mode is FULL or the table's incremental strategy is NONE.
func (t *Transfer) Sync(ctx context.Context, job *domain.Job, table *domain.TargetTable, progress ProgressFunc, isCancelled IsCancelledFunc) (int64, error) {
	if job.SyncMode == domain.SyncModeFull || table.IncrementalStrategy == domain.IncrementalNone {
		if err := t.truncateDestination(ctx, table); err != nil {
			return 0, fmt.Errorf("truncate destination: %w", err)
		}
	}

	sourceColumns, err := t.loadColumnInfo(ctx, t.sourcePool, table.SchemaName, table.TableName)
	if err != nil {
		return 0, fmt.Errorf("load source columns: %w", err)
	}
	if len(sourceColumns) == 0 {
		return 0, fmt.Errorf("%w: %s", domain.ErrSourceMissing, table.QualifiedName())
	}

	query, args, incrementalField := BuildQuery(*table, sourceColumns, job.SyncMode, job.WhereCondition)

	rowCount, err := t.estimateRowCount(ctx, table)
	if err != nil {
		t.logger.Warn("row count estimate failed, defaulting to INSERT", "table", table.TableName, "error", err)
		rowCount = 0
	}
	strategy := SelectStrategy(rowCount, sourceColumns, t.cfg.CopySelectorThreshold)

	pkColumns, err := t.loadPrimaryKeyColumns(ctx, table.SchemaName, table.TableName)
	if err != nil {
		return 0, fmt.Errorf("load destination primary key: %w", err)
	}

	destTypes, err := t.loadDestColumnTypes(ctx, table.SchemaName, table.TableName)
	if err != nil {
		return 0, fmt.Errorf("load destination column types: %w", err)
	}

	batchSize := t.cfg.InsertBatchSize
	if strategy == StrategyCopy {
		batchSize = t.cfg.CopyBatchSize
	}
	if batchSize <= 0 {
		batchSize = 1000
	}

	return t.stream(ctx, job, table, query, args, sourceColumns, incrementalField, strategy, pkColumns, destTypes, batchSize, progress, isCancelled)
}

func (t *Transfer) stream(
	ctx context.Context,
	job *domain.Job,
	table *domain.TargetTable,
	query string,
	args []any,
	columns []ColumnInfo,
	incrementalField string,
	strategy Strategy,
	pkColumns []string,
	destTypes map[string]string,
	batchSize int,
	progress ProgressFunc,
	isCancelled IsCancelledFunc,
) (int64, error) {
	rows, err := t.sourcePool.Query(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("open extraction cursor: %w", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columnNames := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columnNames[i] = string(fd.Name)
	}

	var (
		batch        [][]any
		total        int64
		batchCount   int
		lastWatermark string
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		written, err := t.writeBatch(ctx, table, columnNames, batch, strategy, job.ConflictStrategy, pkColumns, destTypes)
		if err != nil {
			return err
		}
		total += int64(written)
		batchCount++
		batch = batch[:0]

		if progress != nil && (t.cfg.ProgressUpdateInterval <= 0 || batchCount%t.cfg.ProgressUpdateInterval == 0) {
			progress(total)
		}
		return nil
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return total, fmt.Errorf("read row: %w", err)
		}

		if incrementalField != "" {
			for i, name := range columnNames {
				if name == incrementalField {
					if s, ok := watermarkString(values[i]); ok {
						lastWatermark = s
					}
					break
				}
			}
		}

		batch = append(batch, values)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return total, err
			}
			if cancelled, err := t.checkCancelled(ctx, isCancelled); err != nil || cancelled {
				return total, err
			}
		}
	}
	if err := rows.Err(); err != nil {
		return total, fmt.Errorf("iterate rows: %w", err)
	}
	if err := flush(); err != nil {
		return total, err
	}

	if incrementalField != "" && lastWatermark != "" {
		if err := t.tableRepo.UpdateLastSyncValue(ctx, table.ID, lastWatermark); err != nil {
			return total, fmt.Errorf("update watermark: %w", err)
		}
	}

	if progress != nil {
		progress(total)
	}
	return total, nil
}

func (t *Transfer) checkCancelled(ctx context.Context, isCancelled IsCancelledFunc) (bool, error) {
	if isCancelled == nil {
		return false, nil
	}
	cancelled, err := isCancelled(ctx)
	if err != nil {
		return false, fmt.Errorf("check cancellation: %w", err)
	}
	if cancelled {
		return true, domain.ErrCancelled
	}
	return false, nil
}

func (t *Transfer) writeBatch(ctx context.Context, table *domain.TargetTable, columnNames []string, batch [][]any, strategy Strategy, conflict domain.ConflictStrategy, pkColumns []string, destTypes map[string]string) (int, error) {
	if strategy == StrategyCopy {
		acquired, err := t.destPool.Acquire(ctx)
		if err != nil {
			return 0, fmt.Errorf("acquire copy connection: %w", err)
		}
		defer acquired.Release()

		conn := acquired.Conn()
		return CopyOrFallback(ctx, conn, t.destPool, table.SchemaName, table.TableName, columnNames, batch, destTypes, conflict, pkColumns, t.cfg.CopyTimeout, t.logger)
	}
	return InsertBatch(ctx, t.destPool, table.SchemaName, table.TableName, columnNames, batch, destTypes, conflict, pkColumns, t.logger)
}

func (t *Transfer) truncateDestination(ctx context.Context, table *domain.TargetTable) error {
	qualified := quoteIdent(table.SchemaName) + "." + quoteIdent(table.TableName)
	_, err := t.destPool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", qualified))
	if err == nil {
		return nil
	}
	t.logger.Warn("truncate failed, falling back to delete", "table", table.TableName, "error", err)
	_, err = t.destPool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", qualified))
	return err
}

func (t *Transfer) estimateRowCount(ctx context.Context, table *domain.TargetTable) (int64, error) {
	var count int64
	qualified := quoteIdent(table.SchemaName) + "." + quoteIdent(table.TableName)
	err := t.sourcePool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", qualified)).Scan(&count)
	return count, err
}

func (t *Transfer) loadColumnInfo(ctx context.Context, pool *pgxpool.Pool, schema, table string) ([]ColumnInfo, error) {
	rows, err := pool.Query(ctx, `
		SELECT column_name, udt_name
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position ASC`, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var c ColumnInfo
		if err := rows.Scan(&c.Name, &c.DataType); err != nil {
			return nil, err
		}
		columns = append(columns, c)
	}
	return columns, rows.Err()
}

// loadDestColumnTypes maps each destination column name to its udt_name,
// the type normalizeValue uses to tell an array column from a JSON one.
func (t *Transfer) loadDestColumnTypes(ctx context.Context, schema, table string) (map[string]string, error) {
	rows, err := t.destPool.Query(ctx, `
		SELECT column_name, udt_name
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2`, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types := make(map[string]string)
	for rows.Next() {
		var name, udtName string
		if err := rows.Scan(&name, &udtName); err != nil {
			return nil, err
		}
		types[name] = udtName
	}
	return types, rows.Err()
}

func (t *Transfer) loadPrimaryKeyColumns(ctx context.Context, schema, table string) ([]string, error) {
	rows, err := t.destPool.Query(ctx, `
		SELECT a.attname
		FROM pg_index i
		JOIN pg_class c ON c.oid = i.indrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = ANY(i.indkey)
		WHERE i.indisprimary
		  AND n.nspname = $1
		  AND c.relname = $2
		ORDER BY array_position(i.indkey, a.attnum)`, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}
