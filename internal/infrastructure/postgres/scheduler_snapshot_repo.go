package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type SchedulerSnapshotRepository struct {
	pool *pgxpool.Pool
}

func NewSchedulerSnapshotRepository(pool *pgxpool.Pool) *SchedulerSnapshotRepository {
	return &SchedulerSnapshotRepository{pool: pool}
}

func (r *SchedulerSnapshotRepository) Upsert(ctx context.Context, jobID string, nextRunUnix float64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO scheduler_jobs (id, next_run_time)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET next_run_time = EXCLUDED.next_run_time`,
		jobID, nextRunUnix)
	return err
}

func (r *SchedulerSnapshotRepository) Delete(ctx context.Context, jobID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM scheduler_jobs WHERE id = $1`, jobID)
	return err
}
