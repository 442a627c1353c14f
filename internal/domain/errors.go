package domain

import "errors"

// Shared sentinel errors for the execution pipeline (Orchestrator,
// DataTransfer, Supervisor). Callers use errors.Is/As instead of string
// matching, mirroring the teacher's domain.ErrJobNotFound /
// domain.ErrDuplicateJob convention.
var (
	ErrConnect       = errors.New("failed to connect to source or destination database")
	ErrSchema        = errors.New("schema replication failed")
	ErrTransfer      = errors.New("data transfer failed")
	ErrConflict      = errors.New("conflict strategy could not be applied")
	ErrCancelled     = errors.New("run was cancelled")
	ErrSourceMissing = errors.New("source table not found")
)
