package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgsynclabs/syncengine/internal/domain"
)

type TargetTableRepository struct {
	pool *pgxpool.Pool
}

func NewTargetTableRepository(pool *pgxpool.Pool) *TargetTableRepository {
	return &TargetTableRepository{pool: pool}
}

func (r *TargetTableRepository) Create(ctx context.Context, t *domain.TargetTable) (*domain.TargetTable, error) {
	query := `
		INSERT INTO sync_job_target_tables (
			job_id, schema_name, table_name, active, incremental_strategy,
			incremental_field, custom_condition, last_sync_value
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, job_id, schema_name, table_name, active, incremental_strategy,
		          incremental_field, custom_condition, last_sync_value, created_at`

	row := r.pool.QueryRow(ctx, query,
		t.JobID, t.SchemaName, t.TableName, t.Active, t.IncrementalStrategy,
		t.IncrementalField, t.CustomCondition, t.LastSyncValue,
	)
	return scanTargetTable(row)
}

func (r *TargetTableRepository) ListByJobID(ctx context.Context, jobID string) ([]*domain.TargetTable, error) {
	return r.list(ctx, `
		SELECT id, job_id, schema_name, table_name, active, incremental_strategy,
		       incremental_field, custom_condition, last_sync_value, created_at
		FROM sync_job_target_tables WHERE job_id = $1 ORDER BY table_name ASC`, jobID)
}

func (r *TargetTableRepository) ListActiveByJobID(ctx context.Context, jobID string) ([]*domain.TargetTable, error) {
	return r.list(ctx, `
		SELECT id, job_id, schema_name, table_name, active, incremental_strategy,
		       incremental_field, custom_condition, last_sync_value, created_at
		FROM sync_job_target_tables WHERE job_id = $1 AND active = true ORDER BY table_name ASC`, jobID)
}

func (r *TargetTableRepository) list(ctx context.Context, query string, args ...any) ([]*domain.TargetTable, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list target tables: %w", err)
	}
	defer rows.Close()

	var tables []*domain.TargetTable
	for rows.Next() {
		t, err := scanTargetTable(rows)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (r *TargetTableRepository) Update(ctx context.Context, t *domain.TargetTable) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sync_job_target_tables
		SET schema_name = $2, table_name = $3, active = $4, incremental_strategy = $5,
		    incremental_field = $6, custom_condition = $7
		WHERE id = $1`,
		t.ID, t.SchemaName, t.TableName, t.Active, t.IncrementalStrategy,
		t.IncrementalField, t.CustomCondition,
	)
	if err != nil {
		return fmt.Errorf("update target table: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTargetTableNotFound
	}
	return nil
}

func (r *TargetTableRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sync_job_target_tables WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete target table: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTargetTableNotFound
	}
	return nil
}

// UpdateLastSyncValue only advances the watermark — called after a batch
// commits successfully, never speculatively before.
func (r *TargetTableRepository) UpdateLastSyncValue(ctx context.Context, id, value string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sync_job_target_tables SET last_sync_value = $2 WHERE id = $1`,
		id, value)
	if err != nil {
		return fmt.Errorf("update last sync value: %w", err)
	}
	return nil
}

func scanTargetTable(row rowScanner) (*domain.TargetTable, error) {
	var t domain.TargetTable
	err := row.Scan(
		&t.ID, &t.JobID, &t.SchemaName, &t.TableName, &t.Active, &t.IncrementalStrategy,
		&t.IncrementalField, &t.CustomCondition, &t.LastSyncValue, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTargetTableNotFound
		}
		return nil, fmt.Errorf("scan target table: %w", err)
	}
	return &t, nil
}
