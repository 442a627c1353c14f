package domain

import (
	"errors"
	"time"
)

var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrConnectionInUse    = errors.New("connection is referenced by at least one job")
)

// Connection is a registered source or destination Postgres database.
// Password and DSN are stored as opaque ciphertext — the core never logs
// or compares them in plaintext.
type Connection struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Host               string    `json:"host"`
	Port               int       `json:"port"`
	Database           string    `json:"database"`
	Username           string    `json:"username"`
	EncryptedPassword  string    `json:"-"`
	EncryptedDSN       string    `json:"-"`
	Active             bool      `json:"active"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}
