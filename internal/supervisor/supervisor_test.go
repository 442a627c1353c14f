package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pgsynclabs/syncengine/internal/domain"
	"github.com/pgsynclabs/syncengine/internal/repository"
)

type fakeJobRepo struct {
	job       *domain.Job
	locked    bool
	lockCalls int
	unlockCalls int
}

func (f *fakeJobRepo) Create(context.Context, *domain.Job) (*domain.Job, error) { return nil, nil }
func (f *fakeJobRepo) GetByID(context.Context, string) (*domain.Job, error)     { return f.job, nil }
func (f *fakeJobRepo) List(context.Context, repository.ListJobsInput) ([]*domain.Job, error) {
	return nil, nil
}
func (f *fakeJobRepo) Update(context.Context, *domain.Job) error       { return nil }
func (f *fakeJobRepo) Delete(context.Context, string) error            { return nil }
func (f *fakeJobRepo) SetPaused(context.Context, string, bool) error   { return nil }

func (f *fakeJobRepo) LockJobForRun(_ context.Context, _ string) (bool, error) {
	f.lockCalls++
	if f.locked {
		return false, nil
	}
	f.locked = true
	return true, nil
}

func (f *fakeJobRepo) UnlockJob(context.Context, string) error {
	f.unlockCalls++
	f.locked = false
	return nil
}

func (f *fakeJobRepo) AdvanceNextRun(context.Context, string, time.Time) error { return nil }

type fakeExecutor struct {
	err    error
	called bool
}

func (f *fakeExecutor) Execute(context.Context, *domain.Job) error {
	f.called = true
	return f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunJobExecutesWhenLockAcquired(t *testing.T) {
	jobs := &fakeJobRepo{job: &domain.Job{ID: "j1", Status: domain.JobStatusActive}}
	exec := &fakeExecutor{}
	sup := New(jobs, exec, testLogger())

	if err := sup.RunJob(context.Background(), "j1"); err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if !exec.called {
		t.Fatal("expected orchestrator to be invoked")
	}
	if jobs.unlockCalls != 1 {
		t.Fatalf("expected job to be unlocked exactly once, got %d", jobs.unlockCalls)
	}
}

// TestRunJobUnlocksEvenWhenExecutorErrors guards against a lock permanently
// held because Execute returned before performing any work of its own
// (e.g. no active target tables) — the lock is Supervisor's responsibility
// regardless of how Execute ends.
func TestRunJobUnlocksEvenWhenExecutorErrors(t *testing.T) {
	jobs := &fakeJobRepo{job: &domain.Job{ID: "j1", Status: domain.JobStatusActive}}
	exec := &fakeExecutor{err: domain.ErrNoActiveTables}
	sup := New(jobs, exec, testLogger())

	if err := sup.RunJob(context.Background(), "j1"); !errors.Is(err, domain.ErrNoActiveTables) {
		t.Fatalf("got %v, want ErrNoActiveTables", err)
	}
	if jobs.unlockCalls != 1 {
		t.Fatalf("expected job to be unlocked exactly once, got %d", jobs.unlockCalls)
	}
	if jobs.locked {
		t.Fatal("expected job to be unlocked after a failed run")
	}
}

func TestRunJobReturnsAlreadyRunningWhenLockHeld(t *testing.T) {
	jobs := &fakeJobRepo{job: &domain.Job{ID: "j1", Status: domain.JobStatusActive}, locked: true}
	exec := &fakeExecutor{}
	sup := New(jobs, exec, testLogger())

	err := sup.RunJob(context.Background(), "j1")
	if !errors.Is(err, domain.ErrJobAlreadyRunning) {
		t.Fatalf("got %v, want ErrJobAlreadyRunning", err)
	}
	if exec.called {
		t.Fatal("orchestrator must not run when lock is held")
	}
}

func TestRunJobRejectsPausedJob(t *testing.T) {
	jobs := &fakeJobRepo{job: &domain.Job{ID: "j1", Status: domain.JobStatusPaused}}
	exec := &fakeExecutor{}
	sup := New(jobs, exec, testLogger())

	err := sup.RunJob(context.Background(), "j1")
	if !errors.Is(err, domain.ErrJobPaused) {
		t.Fatalf("got %v, want ErrJobPaused", err)
	}
	if exec.called {
		t.Fatal("orchestrator must not run for a paused job")
	}
}

func TestRunJobPropagatesOrchestratorError(t *testing.T) {
	jobs := &fakeJobRepo{job: &domain.Job{ID: "j1", Status: domain.JobStatusActive}}
	exec := &fakeExecutor{err: errors.New("boom")}
	sup := New(jobs, exec, testLogger())

	err := sup.RunJob(context.Background(), "j1")
	if err == nil {
		t.Fatal("expected error to propagate")
	}
}
