package repository

import (
	"context"
	"time"

	"github.com/pgsynclabs/syncengine/internal/domain"
)

type RunLogRepository interface {
	Create(ctx context.Context, log *domain.RunLog) (*domain.RunLog, error)
	GetByID(ctx context.Context, id string) (*domain.RunLog, error)
	ListByJobID(ctx context.Context, jobID string, limit int) ([]*domain.RunLog, error)
	AppendDetail(ctx context.Context, id string, line string) error
	Finalize(ctx context.Context, log *domain.RunLog) error
}

type RunStatusRepository interface {
	Create(ctx context.Context, status *domain.RunStatus) (*domain.RunStatus, error)
	GetByID(ctx context.Context, id string) (*domain.RunStatus, error)
	GetByRunLogID(ctx context.Context, runLogID string) (*domain.RunStatus, error)

	// IsCancelled is the hot-path poll: a single scalar read, no RunLog join.
	IsCancelled(ctx context.Context, id string) (bool, error)
	RequestCancellation(ctx context.Context, id string) error
	UpdateProgress(ctx context.Context, id string, stage string, pct int) error
	MarkTerminal(ctx context.Context, id string, state domain.ControlState) error

	// CleanupOlderThan deletes terminal-status rows older than the cutoff.
	CleanupOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
