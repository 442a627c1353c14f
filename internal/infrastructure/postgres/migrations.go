package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrator owns the metadata-store schema. It is intentionally a single
// idempotent DDL batch rather than a versioned migration chain — the
// engine has one schema generation, and operators running an older
// pgsyncd against a newer schema is out of scope.
type Migrator struct {
	pool *pgxpool.Pool
}

func NewMigrator(pool *pgxpool.Pool) *Migrator {
	return &Migrator{pool: pool}
}

// Upgrade creates every metadata table if absent. Safe to run repeatedly.
func (m *Migrator) Upgrade(ctx context.Context) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upgrade tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, stmt := range upgradeStatements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upgrade tx: %w", err)
	}
	return nil
}

// Downgrade drops every metadata table. Destructive — intended for local
// development and test fixtures, not production rollback.
func (m *Migrator) Downgrade(ctx context.Context) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin downgrade tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, stmt := range downgradeStatements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply downgrade: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit downgrade tx: %w", err)
	}
	return nil
}

var upgradeStatements = []string{
	`CREATE TABLE IF NOT EXISTS database_connections (
		id                  uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		name                text NOT NULL UNIQUE,
		host                text NOT NULL,
		port                integer NOT NULL DEFAULT 5432,
		database_name       text NOT NULL,
		username            text NOT NULL,
		encrypted_password  text NOT NULL,
		encrypted_dsn       text NOT NULL,
		active              boolean NOT NULL DEFAULT true,
		created_at          timestamptz NOT NULL DEFAULT now(),
		updated_at          timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS sync_jobs (
		id                  uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		name                text NOT NULL UNIQUE,
		description         text NOT NULL DEFAULT '',
		source_conn_id      uuid NOT NULL REFERENCES database_connections(id),
		dest_conn_id        uuid NOT NULL REFERENCES database_connections(id),
		sync_mode           text NOT NULL,
		conflict_strategy   text NOT NULL,
		where_condition     text NOT NULL DEFAULT '',
		execution_mode      text NOT NULL,
		cron_expression     text NOT NULL DEFAULT '',
		timezone            text NOT NULL DEFAULT 'Asia/Shanghai',
		status              text NOT NULL DEFAULT 'ACTIVE',
		is_running          boolean NOT NULL DEFAULT false,
		created_at          timestamptz NOT NULL DEFAULT now(),
		updated_at          timestamptz NOT NULL DEFAULT now(),
		last_run_at         timestamptz,
		next_run_at         timestamptz
	)`,
	`CREATE TABLE IF NOT EXISTS sync_job_target_tables (
		id                    uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		job_id                uuid NOT NULL REFERENCES sync_jobs(id) ON DELETE CASCADE,
		schema_name           text NOT NULL DEFAULT 'public',
		table_name            text NOT NULL,
		active                boolean NOT NULL DEFAULT true,
		incremental_strategy  text NOT NULL DEFAULT 'NONE',
		incremental_field     text NOT NULL DEFAULT '',
		custom_condition      text NOT NULL DEFAULT '',
		last_sync_value       varchar(255) NOT NULL DEFAULT '',
		created_at            timestamptz NOT NULL DEFAULT now(),
		UNIQUE (job_id, schema_name, table_name)
	)`,
	`CREATE TABLE IF NOT EXISTS sync_job_run_logs (
		id                   uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		job_id               uuid NOT NULL REFERENCES sync_jobs(id) ON DELETE CASCADE,
		status               text NOT NULL DEFAULT 'RUNNING',
		start_time           timestamptz NOT NULL DEFAULT now(),
		end_time             timestamptz,
		duration_seconds     double precision,
		tables_processed     integer NOT NULL DEFAULT 0,
		records_transferred  bigint NOT NULL DEFAULT 0,
		log_details          text NOT NULL DEFAULT '',
		error_message        text NOT NULL DEFAULT '',
		error_traceback      text NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS sync_job_run_status (
		id                          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		job_id                      uuid NOT NULL REFERENCES sync_jobs(id) ON DELETE CASCADE,
		run_log_id                  uuid REFERENCES sync_job_run_logs(id) ON DELETE CASCADE,
		status                      text NOT NULL DEFAULT 'RUNNING',
		is_cancellation_requested   boolean NOT NULL DEFAULT false,
		current_stage               text NOT NULL DEFAULT '',
		progress_percentage         integer NOT NULL DEFAULT 0,
		created_at                  timestamptz NOT NULL DEFAULT now(),
		updated_at                  timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_run_status_job_id ON sync_job_run_status(job_id)`,
	`CREATE INDEX IF NOT EXISTS idx_run_logs_job_id ON sync_job_run_logs(job_id)`,
	// scheduler_jobs is a write-through snapshot the Scheduler updates on every
	// AddJob/RemoveJob/fire. robfig/cron holds the authoritative live schedule
	// in memory; this table exists purely so an operator can inspect next-fire
	// times without attaching to a running process.
	`CREATE TABLE IF NOT EXISTS scheduler_jobs (
		id              text PRIMARY KEY,
		next_run_time   double precision,
		job_state       bytea
	)`,
}

var downgradeStatements = []string{
	`DROP TABLE IF EXISTS scheduler_jobs`,
	`DROP TABLE IF EXISTS sync_job_run_status`,
	`DROP TABLE IF EXISTS sync_job_run_logs`,
	`DROP TABLE IF EXISTS sync_job_target_tables`,
	`DROP TABLE IF EXISTS sync_jobs`,
	`DROP TABLE IF EXISTS database_connections`,
}
