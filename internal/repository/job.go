package repository

import (
	"context"
	"time"

	"github.com/pgsynclabs/syncengine/internal/domain"
)

type ListJobsInput struct {
	Status     domain.JobStatus
	CursorTime *time.Time // cursor on (created_at DESC, id DESC)
	CursorID   string
	Limit      int
}

type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) (*domain.Job, error)
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	List(ctx context.Context, input ListJobsInput) ([]*domain.Job, error)
	Update(ctx context.Context, job *domain.Job) error
	Delete(ctx context.Context, id string) error
	SetPaused(ctx context.Context, id string, paused bool) error

	// LockJobForRun is the single-flight guard: it flips is_running false->true
	// with one conditional UPDATE and reports whether this caller won the race.
	LockJobForRun(ctx context.Context, id string) (bool, error)
	UnlockJob(ctx context.Context, id string) error

	AdvanceNextRun(ctx context.Context, id string, nextRunAt time.Time) error
}

type TargetTableRepository interface {
	Create(ctx context.Context, t *domain.TargetTable) (*domain.TargetTable, error)
	ListByJobID(ctx context.Context, jobID string) ([]*domain.TargetTable, error)
	ListActiveByJobID(ctx context.Context, jobID string) ([]*domain.TargetTable, error)
	Update(ctx context.Context, t *domain.TargetTable) error
	Delete(ctx context.Context, id string) error
	UpdateLastSyncValue(ctx context.Context, id, value string) error
}
