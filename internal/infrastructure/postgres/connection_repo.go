package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgsynclabs/syncengine/internal/domain"
)

type ConnectionRepository struct {
	pool *pgxpool.Pool
}

func NewConnectionRepository(pool *pgxpool.Pool) *ConnectionRepository {
	return &ConnectionRepository{pool: pool}
}

func (r *ConnectionRepository) Create(ctx context.Context, c *domain.Connection) (*domain.Connection, error) {
	query := `
		INSERT INTO database_connections (
			name, host, port, database_name, username, encrypted_password,
			encrypted_dsn, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, name, host, port, database_name, username,
		          encrypted_password, encrypted_dsn, active, created_at, updated_at`

	row := r.pool.QueryRow(ctx, query,
		c.Name, c.Host, c.Port, c.Database, c.Username,
		c.EncryptedPassword, c.EncryptedDSN, c.Active,
	)
	return scanConnection(row)
}

func (r *ConnectionRepository) GetByID(ctx context.Context, id string) (*domain.Connection, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, host, port, database_name, username,
		       encrypted_password, encrypted_dsn, active, created_at, updated_at
		FROM database_connections WHERE id = $1`, id)
	return scanConnection(row)
}

func (r *ConnectionRepository) List(ctx context.Context) ([]*domain.Connection, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, host, port, database_name, username,
		       encrypted_password, encrypted_dsn, active, created_at, updated_at
		FROM database_connections ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var conns []*domain.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, c)
	}
	return conns, rows.Err()
}

func (r *ConnectionRepository) Update(ctx context.Context, c *domain.Connection) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE database_connections
		SET name = $2, host = $3, port = $4, database_name = $5, username = $6,
		    encrypted_password = $7, encrypted_dsn = $8, active = $9, updated_at = NOW()
		WHERE id = $1`,
		c.ID, c.Name, c.Host, c.Port, c.Database, c.Username,
		c.EncryptedPassword, c.EncryptedDSN, c.Active,
	)
	if err != nil {
		return fmt.Errorf("update connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConnectionNotFound
	}
	return nil
}

func (r *ConnectionRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM database_connections WHERE id = $1`, id)
	if err != nil {
		var pgErr interface{ SQLState() string }
		if errors.As(err, &pgErr) && pgErr.SQLState() == "23503" {
			return domain.ErrConnectionInUse
		}
		return fmt.Errorf("delete connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConnectionNotFound
	}
	return nil
}

func scanConnection(row rowScanner) (*domain.Connection, error) {
	var c domain.Connection
	err := row.Scan(
		&c.ID, &c.Name, &c.Host, &c.Port, &c.Database, &c.Username,
		&c.EncryptedPassword, &c.EncryptedDSN, &c.Active, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConnectionNotFound
		}
		return nil, fmt.Errorf("scan connection: %w", err)
	}
	return &c, nil
}
