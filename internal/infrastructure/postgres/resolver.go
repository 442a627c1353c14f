package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgsynclabs/syncengine/internal/cryptox"
	"github.com/pgsynclabs/syncengine/internal/domain"
)

// ConnectionResolver decrypts a Connection's stored DSN and opens a pool
// sized for a single sync run rather than the application's own pool —
// a run only ever holds one source and one destination pool at a time, so
// there is no need for NewPool's full MaxConns=25 budget per job.
type ConnectionResolver struct {
	cipher *cryptox.Cipher
}

func NewConnectionResolver(cipher *cryptox.Cipher) *ConnectionResolver {
	return &ConnectionResolver{cipher: cipher}
}

func (r *ConnectionResolver) Resolve(ctx context.Context, conn *domain.Connection) (*pgxpool.Pool, error) {
	dsn, err := r.cipher.Decrypt(conn.EncryptedDSN)
	if err != nil {
		return nil, fmt.Errorf("decrypt dsn for connection %s: %w", conn.ID, err)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn for connection %s: %w", conn.ID, err)
	}

	cfg.MaxConns = 5
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 1 * time.Hour
	cfg.MaxConnIdleTime = 10 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.ConnConfig.ConnectTimeout = 5 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool for connection %s: %w", conn.ID, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping connection %s: %w", conn.ID, err)
	}

	return pool, nil
}
