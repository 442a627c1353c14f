package repository

import (
	"context"

	"github.com/pgsynclabs/syncengine/internal/domain"
)

// ConnectionRepository depends on interface, not concrete implementation.
// This way the orchestrator can swap the Postgres-backed store for a fake
// without touching any sync logic.
type ConnectionRepository interface {
	Create(ctx context.Context, conn *domain.Connection) (*domain.Connection, error)
	GetByID(ctx context.Context, id string) (*domain.Connection, error)
	List(ctx context.Context) ([]*domain.Connection, error)
	Update(ctx context.Context, conn *domain.Connection) error
	Delete(ctx context.Context, id string) error
}
