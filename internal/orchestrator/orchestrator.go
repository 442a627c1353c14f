// Package orchestrator drives a single run of a Job end to end: it opens
// source/destination connections, replicates schema, transfers data table
// by table, and reports terminal state — mirroring the original engine's
// SyncEngine.execute()/_perform_sync() shape.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgsynclabs/syncengine/internal/datatransfer"
	"github.com/pgsynclabs/syncengine/internal/domain"
	"github.com/pgsynclabs/syncengine/internal/metrics"
	"github.com/pgsynclabs/syncengine/internal/progressbus"
	"github.com/pgsynclabs/syncengine/internal/repository"
	"github.com/pgsynclabs/syncengine/internal/schemareplicator"
	"github.com/pgsynclabs/syncengine/internal/statuscontrol"
)

// ConnectionResolver turns a Connection into a ready-to-use, pinged pool.
// The orchestrator does not know how credentials are decrypted — that
// stays in the caller's domain so this package never sees plaintext DSNs
// outside of the pool construction it delegates.
type ConnectionResolver interface {
	Resolve(ctx context.Context, conn *domain.Connection) (*pgxpool.Pool, error)
}

type Config struct {
	Transfer datatransfer.Config
}

type Orchestrator struct {
	tables        repository.TargetTableRepository
	runLogs       repository.RunLogRepository
	conns         repository.ConnectionRepository
	status        *statuscontrol.Controller
	bus           *progressbus.Bus
	resolver      ConnectionResolver
	cfg           Config
	logger        *slog.Logger
}

// New wires an Orchestrator. Releasing the job's is_running lock is
// Supervisor's responsibility, not Execute's — Execute can return before
// any work starts (e.g. no active target tables), and a lock released only
// on the happy path would strand the job locked forever.
func New(
	tables repository.TargetTableRepository,
	runLogs repository.RunLogRepository,
	conns repository.ConnectionRepository,
	status *statuscontrol.Controller,
	bus *progressbus.Bus,
	resolver ConnectionResolver,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		tables: tables, runLogs: runLogs, conns: conns,
		status: status, bus: bus, resolver: resolver, cfg: cfg,
		logger: logger.With("component", "orchestrator"),
	}
}

// Execute runs job end to end. The caller (Supervisor) is responsible for
// the is_running lock — Execute assumes it is already held.
func (o *Orchestrator) Execute(ctx context.Context, job *domain.Job) error {
	startedAt := time.Now()
	metrics.RunsStartedTotal.WithLabelValues(job.Name).Inc()
	metrics.RunsInFlight.Inc()
	defer metrics.RunsInFlight.Dec()

	targetTables, err := o.tables.ListActiveByJobID(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("list active target tables: %w", err)
	}
	if len(targetTables) == 0 {
		return domain.ErrNoActiveTables
	}

	runLog, err := o.runLogs.Create(ctx, &domain.RunLog{
		JobID:     job.ID,
		Status:    domain.ExecutionRunning,
		StartTime: startedAt,
	})
	if err != nil {
		return fmt.Errorf("create run log: %w", err)
	}

	status, err := o.status.Create(ctx, job.ID, runLog.ID)
	if err != nil {
		return fmt.Errorf("create run status: %w", err)
	}

	result := o.perform(ctx, job, targetTables, runLog, status)
	o.finalize(ctx, job, runLog, status, startedAt, result)
	return result.err
}

type runResult struct {
	tablesProcessed    int
	recordsTransferred int64
	err                error
}

func (o *Orchestrator) perform(ctx context.Context, job *domain.Job, tables []*domain.TargetTable, runLog *domain.RunLog, status *domain.RunStatus) runResult {
	sourceConn, err := o.conns.GetByID(ctx, job.SourceConnID)
	if err != nil {
		return runResult{err: fmt.Errorf("%w: %v", domain.ErrConnect, err)}
	}
	destConn, err := o.conns.GetByID(ctx, job.DestConnID)
	if err != nil {
		return runResult{err: fmt.Errorf("%w: %v", domain.ErrConnect, err)}
	}

	sourcePool, err := o.resolver.Resolve(ctx, sourceConn)
	if err != nil {
		return runResult{err: fmt.Errorf("%w: source: %v", domain.ErrConnect, err)}
	}
	defer sourcePool.Close()

	destPool, err := o.resolver.Resolve(ctx, destConn)
	if err != nil {
		return runResult{err: fmt.Errorf("%w: destination: %v", domain.ErrConnect, err)}
	}
	defer destPool.Close()

	replicator := schemareplicator.New(sourcePool, destPool, o.logger)
	transfer := datatransfer.New(sourcePool, destPool, o.tables, o.cfg.Transfer, o.logger)

	var result runResult
	for i, table := range tables {
		if cancelled, err := o.pollCancellation(ctx, status.ID); err != nil {
			result.err = err
			return result
		} else if cancelled {
			result.err = domain.ErrCancelled
			return result
		}

		pct := int(float64(i) / float64(len(tables)) * 100)
		o.reportProgress(job.ID, status.ID, "syncing", pct, fmt.Sprintf("table %s (%d/%d)", table.QualifiedName(), i+1, len(tables)))

		if err := replicator.ReplicateTable(ctx, table.SchemaName, table.TableName); err != nil {
			metrics.TablesProcessedTotal.WithLabelValues("failed").Inc()
			result.err = fmt.Errorf("%w: %s: %v", domain.ErrSchema, table.QualifiedName(), err)
			return result
		}

		isCancelled := func(ctx context.Context) (bool, error) {
			return o.status.IsCancelled(ctx, status.ID)
		}
		progress := func(records int64) {
			overall := int(float64(i+1) / float64(len(tables)) * 100)
			o.reportProgress(job.ID, status.ID, "syncing", overall, fmt.Sprintf("table %s: %d records", table.QualifiedName(), records))
		}

		written, err := transfer.Sync(ctx, job, table, progress, isCancelled)
		result.recordsTransferred += written
		if err != nil {
			if errors.Is(err, domain.ErrCancelled) {
				metrics.CancellationsTotal.WithLabelValues("run").Inc()
				result.err = domain.ErrCancelled
				return result
			}
			metrics.TablesProcessedTotal.WithLabelValues("failed").Inc()
			result.err = fmt.Errorf("%w: %s: %v", domain.ErrTransfer, table.QualifiedName(), err)
			return result
		}
		metrics.RecordsTransferredTotal.WithLabelValues("batch").Add(float64(written))

		result.tablesProcessed++
		metrics.TablesProcessedTotal.WithLabelValues("success").Inc()
		_ = o.runLogs.AppendDetail(ctx, runLog.ID, fmt.Sprintf("synced %s: %d records", table.QualifiedName(), written))
	}

	return result
}

func (o *Orchestrator) pollCancellation(ctx context.Context, statusID string) (bool, error) {
	cancelled, err := o.status.IsCancelled(ctx, statusID)
	if err != nil {
		return false, fmt.Errorf("poll cancellation: %w", err)
	}
	return cancelled, nil
}

func (o *Orchestrator) reportProgress(jobID, statusID, stage string, pct int, message string) {
	_ = o.status.UpdateProgress(context.Background(), statusID, stage, pct)
	o.bus.Publish(jobID, domain.ProgressEvent{
		JobID:      jobID,
		Stage:      stage,
		Percentage: pct,
		Message:    message,
	})
}

func (o *Orchestrator) finalize(ctx context.Context, job *domain.Job, runLog *domain.RunLog, status *domain.RunStatus, startedAt time.Time, result runResult) {
	endedAt := time.Now()
	duration := endedAt.Sub(startedAt).Seconds()

	runLog.EndTime = &endedAt
	runLog.DurationSeconds = &duration
	runLog.TablesProcessed = result.tablesProcessed
	runLog.RecordsTransferred = result.recordsTransferred

	var terminalStage string
	switch {
	case result.err == nil:
		runLog.Status = domain.ExecutionSuccess
		_ = o.status.MarkCompleted(ctx, status.ID)
		terminalStage = "completed"
	case errors.Is(result.err, domain.ErrCancelled):
		runLog.Status = domain.ExecutionCancelled
		_ = o.status.MarkStopped(ctx, status.ID)
		terminalStage = "cancelled"
	default:
		runLog.Status = domain.ExecutionFailed
		runLog.ErrorMessage = result.err.Error()
		_ = o.status.MarkFailed(ctx, status.ID)
		terminalStage = "failed"
	}

	if err := o.runLogs.Finalize(ctx, runLog); err != nil {
		o.logger.Error("failed to finalize run log", "run_log_id", runLog.ID, "error", err)
	}

	metrics.RunsCompletedTotal.WithLabelValues(job.Name, string(runLog.Status)).Inc()
	metrics.RunDuration.WithLabelValues(job.Name, string(runLog.Status)).Observe(duration)

	o.bus.Publish(job.ID, domain.ProgressEvent{
		JobID:      job.ID,
		RunLogID:   runLog.ID,
		Stage:      terminalStage,
		Percentage: 100,
		Terminal:   true,
	})
}
