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

type RunLogRepository struct {
	pool *pgxpool.Pool
}

func NewRunLogRepository(pool *pgxpool.Pool) *RunLogRepository {
	return &RunLogRepository{pool: pool}
}

func (r *RunLogRepository) Create(ctx context.Context, log *domain.RunLog) (*domain.RunLog, error) {
	query := `
		INSERT INTO sync_job_run_logs (
			job_id, status, start_time, tables_processed, records_transferred, log_details
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, job_id, status, start_time, end_time, duration_seconds,
		          tables_processed, records_transferred, log_details, error_message, error_traceback`

	row := r.pool.QueryRow(ctx, query,
		log.JobID, log.Status, log.StartTime, log.TablesProcessed,
		log.RecordsTransferred, log.LogDetails,
	)
	return scanRunLog(row)
}

func (r *RunLogRepository) GetByID(ctx context.Context, id string) (*domain.RunLog, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, job_id, status, start_time, end_time, duration_seconds,
		       tables_processed, records_transferred, log_details, error_message, error_traceback
		FROM sync_job_run_logs WHERE id = $1`, id)
	return scanRunLog(row)
}

func (r *RunLogRepository) ListByJobID(ctx context.Context, jobID string, limit int) ([]*domain.RunLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, job_id, status, start_time, end_time, duration_seconds,
		       tables_processed, records_transferred, log_details, error_message, error_traceback
		FROM sync_job_run_logs WHERE job_id = $1
		ORDER BY start_time DESC LIMIT $2`, jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("list run logs: %w", err)
	}
	defer rows.Close()

	var logs []*domain.RunLog
	for rows.Next() {
		l, err := scanRunLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// AppendDetail appends one timestamped line to log_details without
// requiring the caller to hold the full RunLog in memory.
func (r *RunLogRepository) AppendDetail(ctx context.Context, id string, line string) error {
	line = "[" + time.Now().UTC().Format(time.RFC3339) + "] " + line
	_, err := r.pool.Exec(ctx, `
		UPDATE sync_job_run_logs
		SET log_details = log_details || CASE WHEN log_details = '' THEN '' ELSE E'\n' END || $2
		WHERE id = $1`, id, line)
	if err != nil {
		return fmt.Errorf("append run log detail: %w", err)
	}
	return nil
}

func (r *RunLogRepository) Finalize(ctx context.Context, log *domain.RunLog) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sync_job_run_logs
		SET status = $2, end_time = $3, duration_seconds = $4, tables_processed = $5,
		    records_transferred = $6, error_message = $7, error_traceback = $8
		WHERE id = $1`,
		log.ID, log.Status, log.EndTime, log.DurationSeconds, log.TablesProcessed,
		log.RecordsTransferred, log.ErrorMessage, log.ErrorTraceback,
	)
	if err != nil {
		return fmt.Errorf("finalize run log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRunLogNotFound
	}
	return nil
}

func scanRunLog(row rowScanner) (*domain.RunLog, error) {
	var l domain.RunLog
	err := row.Scan(
		&l.ID, &l.JobID, &l.Status, &l.StartTime, &l.EndTime, &l.DurationSeconds,
		&l.TablesProcessed, &l.RecordsTransferred, &l.LogDetails, &l.ErrorMessage, &l.ErrorTraceback,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRunLogNotFound
		}
		return nil, fmt.Errorf("scan run log: %w", err)
	}
	return &l, nil
}
