// Package supervisor owns the single-flight guard around a job run: it
// claims the is_running lock, hands off to the Orchestrator, and always
// releases the lock no matter how the run ends.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pgsynclabs/syncengine/internal/domain"
	"github.com/pgsynclabs/syncengine/internal/repository"
)

// Executor is satisfied by *orchestrator.Orchestrator. Kept as an interface
// here so the scheduler and HTTP trigger can be tested against a fake
// without pulling in the orchestrator's full dependency graph.
type Executor interface {
	Execute(ctx context.Context, job *domain.Job) error
}

type Supervisor struct {
	jobs       repository.JobRepository
	orchestrator Executor
	logger     *slog.Logger
}

func New(jobs repository.JobRepository, orchestrator Executor, logger *slog.Logger) *Supervisor {
	return &Supervisor{jobs: jobs, orchestrator: orchestrator, logger: logger.With("component", "supervisor")}
}

// RunJob attempts to claim job id for execution. If another run already
// holds the lock, RunJob returns domain.ErrJobAlreadyRunning without
// touching the orchestrator. The lock is always released before RunJob
// returns, success or failure.
func (s *Supervisor) RunJob(ctx context.Context, jobID string) error {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}

	if job.Status == domain.JobStatusPaused {
		return domain.ErrJobPaused
	}
	if job.Status == domain.JobStatusInactive {
		return domain.ErrJobNotRunning
	}

	acquired, err := s.jobs.LockJobForRun(ctx, jobID)
	if err != nil {
		return fmt.Errorf("lock job %s: %w", jobID, err)
	}
	if !acquired {
		return domain.ErrJobAlreadyRunning
	}
	defer func() {
		if err := s.jobs.UnlockJob(ctx, jobID); err != nil {
			s.logger.Error("failed to unlock job after run", "job_id", jobID, "error", err)
		}
	}()

	s.logger.Info("run started", "job_id", jobID, "job_name", job.Name)

	if err := s.orchestrator.Execute(ctx, job); err != nil {
		s.logger.Error("run finished with error", "job_id", jobID, "error", err)
		return err
	}

	s.logger.Info("run finished", "job_id", jobID)
	return nil
}
