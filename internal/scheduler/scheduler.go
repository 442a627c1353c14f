// Package scheduler fires SCHEDULED jobs on their cron expression and
// drains them through a bounded worker pool. It collapses the teacher's
// Dispatcher/Worker/Reaper trio into one component: this domain's
// concurrency guard is Job.is_running (enforced by Supervisor), not a
// claim/heartbeat/lease model, so there is nothing left for a reaper to do.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pgsynclabs/syncengine/internal/domain"
	"github.com/pgsynclabs/syncengine/internal/metrics"
	"github.com/pgsynclabs/syncengine/internal/repository"
)

// Runner is satisfied by *supervisor.Supervisor.
type Runner interface {
	RunJob(ctx context.Context, jobID string) error
}

type Config struct {
	MaxWorkers       int
	DispatchInterval time.Duration
	DefaultTimezone  string
}

type Scheduler struct {
	cron     *cron.Cron
	jobs     repository.JobRepository
	snapshot repository.SchedulerSnapshotRepository
	runner   Runner
	pool     *WorkerPool
	cfg      Config
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID

	running atomic.Bool
}

func New(jobs repository.JobRepository, snapshot repository.SchedulerSnapshotRepository, runner Runner, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "Asia/Shanghai"
	}
	if cfg.DispatchInterval <= 0 {
		cfg.DispatchInterval = 5 * time.Second
	}

	logger = logger.With("component", "scheduler")
	s := &Scheduler{
		cron:     cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
		jobs:     jobs,
		snapshot: snapshot,
		runner:   runner,
		cfg:      cfg,
		logger:   logger,
		entries:  make(map[string]cron.EntryID),
	}
	s.pool = NewWorkerPool(cfg.MaxWorkers, cfg.MaxWorkers*2, s.runJob, logger)
	return s
}

// Start loads every currently ACTIVE, SCHEDULED job, registers it with the
// cron runner, and begins the reconciliation loop that picks up jobs
// created, paused, or deleted after startup.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.reconcile(ctx); err != nil {
		return fmt.Errorf("initial reconcile: %w", err)
	}

	s.pool.Start(ctx, s.cfg.MaxWorkers)
	s.cron.Start()

	go s.reconcileLoop(ctx)

	s.running.Store(true)
	s.logger.Info("scheduler started", "max_workers", s.cfg.MaxWorkers, "dispatch_interval", s.cfg.DispatchInterval)
	return nil
}

func (s *Scheduler) Stop() {
	s.running.Store(false)
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.pool.Shutdown()
	s.logger.Info("scheduler stopped")
}

// Running reports whether the dispatch loop is currently active, used by
// the HTTP readiness check.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

func (s *Scheduler) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.DispatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.reconcile(ctx); err != nil {
				s.logger.Error("reconcile failed", "error", err)
			}
		}
	}
}

// reconcile diffs the persisted set of ACTIVE, SCHEDULED jobs against the
// in-memory cron entries, adding newly eligible jobs and removing ones that
// were paused, deactivated, or deleted since the last pass.
func (s *Scheduler) reconcile(ctx context.Context) error {
	active, err := s.jobs.List(ctx, repository.ListJobsInput{Status: domain.JobStatusActive, Limit: 1000})
	if err != nil {
		return fmt.Errorf("list active jobs: %w", err)
	}

	wanted := make(map[string]*domain.Job, len(active))
	for _, job := range active {
		if job.ExecutionMode == domain.ExecutionScheduled && job.CronExpression != "" {
			wanted[job.ID] = job
		}
	}

	s.mu.Lock()
	var toRemove []string
	for jobID := range s.entries {
		if _, ok := wanted[jobID]; !ok {
			toRemove = append(toRemove, jobID)
		}
	}
	s.mu.Unlock()

	for _, jobID := range toRemove {
		s.RemoveJob(ctx, jobID)
	}

	for jobID, job := range wanted {
		s.mu.Lock()
		_, already := s.entries[jobID]
		s.mu.Unlock()
		if already {
			continue
		}
		if err := s.AddJob(ctx, job); err != nil {
			s.logger.Error("add job to scheduler", "job_id", jobID, "error", err)
		}
	}

	return nil
}

// AddJob registers job's cron expression with the runner. The expression
// is prefixed with CRON_TZ=<tz> so each job runs in its own stored
// timezone without needing one cron.Cron per timezone — cron/v3's
// documented per-entry timezone mechanism.
func (s *Scheduler) AddJob(ctx context.Context, job *domain.Job) error {
	tz := job.Timezone
	if tz == "" {
		tz = s.cfg.DefaultTimezone
	}
	spec := fmt.Sprintf("CRON_TZ=%s %s", tz, job.CronExpression)

	jobID := job.ID
	entryID, err := s.cron.AddFunc(spec, func() { s.fire(jobID) })
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidCronExpr, job.CronExpression, err)
	}

	s.mu.Lock()
	s.entries[jobID] = entryID
	activeCount := len(s.entries)
	s.mu.Unlock()
	metrics.ScheduledJobsActive.Set(float64(activeCount))

	next := s.cron.Entry(entryID).Next
	if err := s.jobs.AdvanceNextRun(ctx, jobID, next); err != nil {
		s.logger.Warn("persist next run time", "job_id", jobID, "error", err)
	}
	if err := s.snapshot.Upsert(ctx, jobID, float64(next.Unix())); err != nil {
		s.logger.Warn("persist scheduler snapshot", "job_id", jobID, "error", err)
	}

	s.logger.Info("job registered with scheduler", "job_id", jobID, "cron", job.CronExpression, "timezone", tz, "next_run", next)
	return nil
}

func (s *Scheduler) RemoveJob(ctx context.Context, jobID string) {
	s.mu.Lock()
	entryID, ok := s.entries[jobID]
	if ok {
		delete(s.entries, jobID)
	}
	activeCount := len(s.entries)
	s.mu.Unlock()

	if !ok {
		return
	}
	metrics.ScheduledJobsActive.Set(float64(activeCount))
	s.cron.Remove(entryID)
	if err := s.snapshot.Delete(ctx, jobID); err != nil {
		s.logger.Warn("delete scheduler snapshot", "job_id", jobID, "error", err)
	}
	s.logger.Info("job removed from scheduler", "job_id", jobID)
}

func (s *Scheduler) fire(jobID string) {
	s.mu.Lock()
	entryID, ok := s.entries[jobID]
	s.mu.Unlock()
	if ok {
		next := s.cron.Entry(entryID).Next
		ctx := context.Background()
		if err := s.jobs.AdvanceNextRun(ctx, jobID, next); err != nil {
			s.logger.Warn("advance next run", "job_id", jobID, "error", err)
		}
		if err := s.snapshot.Upsert(ctx, jobID, float64(next.Unix())); err != nil {
			s.logger.Warn("update scheduler snapshot", "job_id", jobID, "error", err)
		}
	}
	s.pool.Submit(jobID)
}

func (s *Scheduler) runJob(ctx context.Context, jobID string) {
	err := s.runner.RunJob(ctx, jobID)
	switch {
	case err == nil:
		return
	case isExpectedSkip(err):
		s.logger.Info("scheduled run skipped", "job_id", jobID, "reason", err)
	default:
		s.logger.Error("scheduled run failed", "job_id", jobID, "error", err)
	}
}

func isExpectedSkip(err error) bool {
	return errors.Is(err, domain.ErrJobAlreadyRunning) || errors.Is(err, domain.ErrJobPaused) || errors.Is(err, domain.ErrJobNotRunning)
}
