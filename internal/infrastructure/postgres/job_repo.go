package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgsynclabs/syncengine/internal/domain"
	"github.com/pgsynclabs/syncengine/internal/repository"
)

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) Create(ctx context.Context, job *domain.Job) (*domain.Job, error) {
	query := `
		INSERT INTO sync_jobs (
			name, description, source_conn_id, dest_conn_id, sync_mode,
			conflict_strategy, where_condition, execution_mode, cron_expression,
			timezone, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, name, description, source_conn_id, dest_conn_id, sync_mode,
		          conflict_strategy, where_condition, execution_mode, cron_expression,
		          timezone, status, is_running, created_at, updated_at, last_run_at, next_run_at`

	row := r.pool.QueryRow(ctx, query,
		job.Name, job.Description, job.SourceConnID, job.DestConnID, job.SyncMode,
		job.ConflictStrategy, job.WhereCondition, job.ExecutionMode, job.CronExpression,
		job.Timezone, job.Status,
	)

	created, err := scanJob(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrJobNameConflict
		}
		return nil, err
	}
	return created, nil
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, description, source_conn_id, dest_conn_id, sync_mode,
		       conflict_strategy, where_condition, execution_mode, cron_expression,
		       timezone, status, is_running, created_at, updated_at, last_run_at, next_run_at
		FROM sync_jobs WHERE id = $1`, id)
	return scanJob(row)
}

func (r *JobRepository) List(ctx context.Context, input repository.ListJobsInput) ([]*domain.Job, error) {
	args := []any{}
	where := []string{"1=1"}

	if input.Status != "" {
		args = append(args, input.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if input.CursorTime != nil {
		args = append(args, *input.CursorTime, input.CursorID)
		where = append(where, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	args = append(args, input.Limit)

	query := fmt.Sprintf(`
		SELECT id, name, description, source_conn_id, dest_conn_id, sync_mode,
		       conflict_strategy, where_condition, execution_mode, cron_expression,
		       timezone, status, is_running, created_at, updated_at, last_run_at, next_run_at
		FROM sync_jobs
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d`,
		strings.Join(where, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *JobRepository) Update(ctx context.Context, job *domain.Job) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sync_jobs
		SET name = $2, description = $3, source_conn_id = $4, dest_conn_id = $5,
		    sync_mode = $6, conflict_strategy = $7, where_condition = $8,
		    execution_mode = $9, cron_expression = $10, timezone = $11, updated_at = NOW()
		WHERE id = $1`,
		job.ID, job.Name, job.Description, job.SourceConnID, job.DestConnID,
		job.SyncMode, job.ConflictStrategy, job.WhereCondition,
		job.ExecutionMode, job.CronExpression, job.Timezone,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *JobRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sync_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *JobRepository) SetPaused(ctx context.Context, id string, paused bool) error {
	wantStatus, fromStatus := domain.JobStatusPaused, domain.JobStatusActive
	if !paused {
		wantStatus, fromStatus = domain.JobStatusActive, domain.JobStatusPaused
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE sync_jobs SET status = $2, updated_at = NOW()
		 WHERE id = $1 AND status = $3`,
		id, wantStatus, fromStatus)
	if err != nil {
		return fmt.Errorf("set paused: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err // ErrJobNotFound
		}
		if paused {
			return domain.ErrJobPaused
		}
		return domain.ErrJobNotRunning
	}
	return nil
}

// LockJobForRun is the single-flight guard for RunJob: a conditional UPDATE
// flips is_running false->true in one round trip and reports whether this
// caller won the race. No lease, no heartbeat — the row is the lock.
func (r *JobRepository) LockJobForRun(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sync_jobs SET is_running = true, updated_at = NOW()
		 WHERE id = $1 AND is_running = false`,
		id)
	if err != nil {
		return false, fmt.Errorf("lock job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *JobRepository) UnlockJob(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sync_jobs SET is_running = false, last_run_at = NOW(), updated_at = NOW()
		 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("unlock job: %w", err)
	}
	return nil
}

func (r *JobRepository) AdvanceNextRun(ctx context.Context, id string, nextRunAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sync_jobs SET next_run_at = $2, updated_at = NOW() WHERE id = $1`,
		id, nextRunAt)
	if err != nil {
		return fmt.Errorf("advance next run: %w", err)
	}
	return nil
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var j domain.Job
	err := row.Scan(
		&j.ID, &j.Name, &j.Description, &j.SourceConnID, &j.DestConnID, &j.SyncMode,
		&j.ConflictStrategy, &j.WhereCondition, &j.ExecutionMode, &j.CronExpression,
		&j.Timezone, &j.Status, &j.IsRunning, &j.CreatedAt, &j.UpdatedAt,
		&j.LastRunAt, &j.NextRunAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	return &j, nil
}
