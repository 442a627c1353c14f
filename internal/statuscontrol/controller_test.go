package statuscontrol

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pgsynclabs/syncengine/internal/domain"
)

type fakeRunStatusRepo struct {
	statuses map[string]*domain.RunStatus
	nextID   int
}

func newFakeRunStatusRepo() *fakeRunStatusRepo {
	return &fakeRunStatusRepo{statuses: make(map[string]*domain.RunStatus)}
}

func (f *fakeRunStatusRepo) Create(_ context.Context, s *domain.RunStatus) (*domain.RunStatus, error) {
	f.nextID++
	cp := *s
	cp.ID = itoa(f.nextID)
	f.statuses[cp.ID] = &cp
	return &cp, nil
}

func (f *fakeRunStatusRepo) GetByID(_ context.Context, id string) (*domain.RunStatus, error) {
	s, ok := f.statuses[id]
	if !ok {
		return nil, domain.ErrRunStatusNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeRunStatusRepo) GetByRunLogID(context.Context, string) (*domain.RunStatus, error) {
	return nil, domain.ErrRunStatusNotFound
}

func (f *fakeRunStatusRepo) IsCancelled(_ context.Context, id string) (bool, error) {
	s, ok := f.statuses[id]
	if !ok {
		return false, domain.ErrRunStatusNotFound
	}
	return s.IsCancellationRequested, nil
}

func (f *fakeRunStatusRepo) RequestCancellation(_ context.Context, id string) error {
	s, ok := f.statuses[id]
	if !ok {
		return domain.ErrRunStatusNotFound
	}
	s.RequestCancellation()
	return nil
}

func (f *fakeRunStatusRepo) UpdateProgress(_ context.Context, id string, stage string, pct int) error {
	s, ok := f.statuses[id]
	if !ok {
		return domain.ErrRunStatusNotFound
	}
	s.UpdateProgress(stage, pct)
	return nil
}

func (f *fakeRunStatusRepo) MarkTerminal(_ context.Context, id string, state domain.ControlState) error {
	s, ok := f.statuses[id]
	if !ok {
		return domain.ErrRunStatusNotFound
	}
	s.Status = state
	return nil
}

func (f *fakeRunStatusRepo) CleanupOlderThan(context.Context, time.Time) (int, error) {
	return 0, nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestMarkCompletedThenRejectsFurtherTransitions(t *testing.T) {
	repo := newFakeRunStatusRepo()
	ctrl := New(repo)
	ctx := context.Background()

	status, err := ctrl.Create(ctx, "job-1", "run-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := ctrl.MarkCompleted(ctx, status.ID); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	if err := ctrl.UpdateProgress(ctx, status.ID, "cleanup", 50); err == nil {
		t.Fatal("expected error updating progress on a terminal status")
	}
	if err := ctrl.MarkFailed(ctx, status.ID); !errors.Is(err, domain.ErrNotCancellable) {
		t.Fatalf("got %v, want wrapped ErrNotCancellable", err)
	}
}

func TestUpdateProgressClampsPercentage(t *testing.T) {
	repo := newFakeRunStatusRepo()
	ctrl := New(repo)
	ctx := context.Background()

	status, _ := ctrl.Create(ctx, "job-1", "run-1")
	if err := ctrl.UpdateProgress(ctx, status.ID, "transfer", 250); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	got, _ := repo.GetByID(ctx, status.ID)
	if got.ProgressPercentage != 100 {
		t.Fatalf("got %d, want 100", got.ProgressPercentage)
	}
}

func TestIsCancelledReflectsRequestCancel(t *testing.T) {
	repo := newFakeRunStatusRepo()
	ctrl := New(repo)
	ctx := context.Background()

	status, _ := ctrl.Create(ctx, "job-1", "run-1")

	cancelled, err := ctrl.IsCancelled(ctx, status.ID)
	if err != nil || cancelled {
		t.Fatalf("expected not cancelled initially, got %v err=%v", cancelled, err)
	}

	if err := ctrl.RequestCancel(ctx, status.ID); err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}

	cancelled, err = ctrl.IsCancelled(ctx, status.ID)
	if err != nil || !cancelled {
		t.Fatalf("expected cancelled after RequestCancel, got %v err=%v", cancelled, err)
	}
}
