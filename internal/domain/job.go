package domain

import (
	"errors"
	"time"
)

var (
	ErrJobNotFound       = errors.New("sync job not found")
	ErrJobNameConflict   = errors.New("sync job name already in use")
	ErrJobAlreadyRunning = errors.New("sync job is already running")
	ErrJobNotRunning     = errors.New("sync job is not running")
	ErrJobPaused         = errors.New("sync job is paused")
	ErrInvalidCronExpr   = errors.New("invalid cron expression")
	ErrNoActiveTables    = errors.New("sync job has no active target tables")
	ErrTargetTableNotFound = errors.New("target table not found")
)

type SyncMode string

const (
	SyncModeFull        SyncMode = "FULL"
	SyncModeIncremental SyncMode = "INCREMENTAL"
)

type ConflictStrategy string

const (
	ConflictSkip    ConflictStrategy = "SKIP"
	ConflictReplace ConflictStrategy = "REPLACE"
	ConflictIgnore  ConflictStrategy = "IGNORE"
	ConflictError   ConflictStrategy = "ERROR"
)

type ExecutionMode string

const (
	ExecutionImmediate ExecutionMode = "IMMEDIATE"
	ExecutionScheduled ExecutionMode = "SCHEDULED"
)

type JobStatus string

const (
	JobStatusActive   JobStatus = "ACTIVE"
	JobStatusInactive JobStatus = "INACTIVE"
	JobStatusPaused   JobStatus = "PAUSED"
)

type IncrementalStrategy string

const (
	IncrementalNone            IncrementalStrategy = "NONE"
	IncrementalAutoID          IncrementalStrategy = "AUTO_ID"
	IncrementalAutoTimestamp   IncrementalStrategy = "AUTO_TIMESTAMP"
	IncrementalCustomCondition IncrementalStrategy = "CUSTOM_CONDITION"
)

// Job is a configured replication task from one Connection to another.
// IsRunning is the single-flight guard enforced with a compare-and-swap
// UPDATE at claim time; it is not a lease and carries no heartbeat.
type Job struct {
	ID                string
	Name              string
	Description        string
	SourceConnID      string
	DestConnID        string
	SyncMode          SyncMode
	ConflictStrategy  ConflictStrategy
	WhereCondition    string
	ExecutionMode     ExecutionMode
	CronExpression    string
	Timezone          string
	Status            JobStatus
	IsRunning         bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
	LastRunAt         *time.Time
	NextRunAt         *time.Time
}

// TargetTable is one table within a Job's replication scope.
type TargetTable struct {
	ID                  string
	JobID               string
	SchemaName          string
	TableName           string
	Active              bool
	IncrementalStrategy IncrementalStrategy
	IncrementalField    string
	CustomCondition     string
	LastSyncValue       string
	CreatedAt           time.Time
}

func (t TargetTable) QualifiedName() string {
	if t.SchemaName == "" || t.SchemaName == "public" {
		return t.TableName
	}
	return t.SchemaName + "." + t.TableName
}
