package repository

import "context"

// SchedulerSnapshotRepository persists a read-only view of the Scheduler's
// in-memory cron state so an operator can inspect next-fire times without
// attaching to a running process. robfig/cron itself remains the
// authoritative schedule.
type SchedulerSnapshotRepository interface {
	Upsert(ctx context.Context, jobID string, nextRunUnix float64) error
	Delete(ctx context.Context, jobID string) error
}
