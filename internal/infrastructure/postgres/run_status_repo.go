package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgsynclabs/syncengine/internal/domain"
)

type RunStatusRepository struct {
	pool *pgxpool.Pool
}

func NewRunStatusRepository(pool *pgxpool.Pool) *RunStatusRepository {
	return &RunStatusRepository{pool: pool}
}

func (r *RunStatusRepository) Create(ctx context.Context, s *domain.RunStatus) (*domain.RunStatus, error) {
	query := `
		INSERT INTO sync_job_run_status (
			job_id, run_log_id, status, is_cancellation_requested, current_stage, progress_percentage
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, job_id, run_log_id, status, is_cancellation_requested,
		          current_stage, progress_percentage, created_at, updated_at`

	row := r.pool.QueryRow(ctx, query,
		s.JobID, s.RunLogID, s.Status, s.IsCancellationRequested, s.CurrentStage, s.ProgressPercentage,
	)
	return scanRunStatus(row)
}

func (r *RunStatusRepository) GetByID(ctx context.Context, id string) (*domain.RunStatus, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, job_id, run_log_id, status, is_cancellation_requested,
		       current_stage, progress_percentage, created_at, updated_at
		FROM sync_job_run_status WHERE id = $1`, id)
	return scanRunStatus(row)
}

func (r *RunStatusRepository) GetByRunLogID(ctx context.Context, runLogID string) (*domain.RunStatus, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, job_id, run_log_id, status, is_cancellation_requested,
		       current_stage, progress_percentage, created_at, updated_at
		FROM sync_job_run_status WHERE run_log_id = $1`, runLogID)
	return scanRunStatus(row)
}

// IsCancelled is the hot-path poll used at batch/table boundaries — a
// single scalar read, deliberately cheaper than loading the full row.
func (r *RunStatusRepository) IsCancelled(ctx context.Context, id string) (bool, error) {
	var cancelled bool
	err := r.pool.QueryRow(ctx,
		`SELECT is_cancellation_requested FROM sync_job_run_status WHERE id = $1`, id,
	).Scan(&cancelled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, domain.ErrRunStatusNotFound
		}
		return false, fmt.Errorf("check cancellation: %w", err)
	}
	return cancelled, nil
}

func (r *RunStatusRepository) RequestCancellation(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sync_job_run_status
		SET is_cancellation_requested = true, status = 'STOP_REQUESTED', updated_at = NOW()
		WHERE id = $1 AND status = 'RUNNING'`, id)
	if err != nil {
		return fmt.Errorf("request cancellation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err // ErrRunStatusNotFound
		}
		return domain.ErrNotCancellable
	}
	return nil
}

func (r *RunStatusRepository) UpdateProgress(ctx context.Context, id string, stage string, pct int) error {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE sync_job_run_status
		SET current_stage = $2, progress_percentage = $3, updated_at = NOW()
		WHERE id = $1`, id, stage, pct)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

func (r *RunStatusRepository) MarkTerminal(ctx context.Context, id string, state domain.ControlState) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE sync_job_run_status SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, state)
	if err != nil {
		return fmt.Errorf("mark terminal: %w", err)
	}
	return nil
}

func (r *RunStatusRepository) CleanupOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM sync_job_run_status
		WHERE updated_at < $1
		  AND status IN ('COMPLETED', 'FAILED', 'STOPPED')`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup run status: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanRunStatus(row rowScanner) (*domain.RunStatus, error) {
	var s domain.RunStatus
	err := row.Scan(
		&s.ID, &s.JobID, &s.RunLogID, &s.Status, &s.IsCancellationRequested,
		&s.CurrentStage, &s.ProgressPercentage, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRunStatusNotFound
		}
		return nil, fmt.Errorf("scan run status: %w", err)
	}
	return &s, nil
}
