// Package statuscontrol implements the hot-path cancellation and progress
// control surface (C4) — a thin layer over RunStatusRepository that
// enforces the "once terminal, no further transitions" rule in one place
// instead of scattering the check across callers.
package statuscontrol

import (
	"context"
	"fmt"

	"github.com/pgsynclabs/syncengine/internal/domain"
	"github.com/pgsynclabs/syncengine/internal/repository"
)

type Controller struct {
	repo repository.RunStatusRepository
}

func New(repo repository.RunStatusRepository) *Controller {
	return &Controller{repo: repo}
}

func (c *Controller) Create(ctx context.Context, jobID, runLogID string) (*domain.RunStatus, error) {
	status := &domain.RunStatus{
		JobID:    jobID,
		RunLogID: runLogID,
		Status:   domain.ControlRunning,
	}
	return c.repo.Create(ctx, status)
}

func (c *Controller) UpdateProgress(ctx context.Context, statusID, stage string, pct int) error {
	if err := c.ensureNotTerminal(ctx, statusID); err != nil {
		return err
	}
	return c.repo.UpdateProgress(ctx, statusID, stage, pct)
}

func (c *Controller) RequestCancel(ctx context.Context, statusID string) error {
	if err := c.ensureNotTerminal(ctx, statusID); err != nil {
		return err
	}
	return c.repo.RequestCancellation(ctx, statusID)
}

// IsCancelled is the cheap single-column poll callers hit between batches.
func (c *Controller) IsCancelled(ctx context.Context, statusID string) (bool, error) {
	return c.repo.IsCancelled(ctx, statusID)
}

func (c *Controller) MarkCompleted(ctx context.Context, statusID string) error {
	return c.markTerminal(ctx, statusID, domain.ControlCompleted)
}

func (c *Controller) MarkFailed(ctx context.Context, statusID string) error {
	return c.markTerminal(ctx, statusID, domain.ControlFailed)
}

func (c *Controller) MarkStopped(ctx context.Context, statusID string) error {
	return c.markTerminal(ctx, statusID, domain.ControlStopped)
}

func (c *Controller) markTerminal(ctx context.Context, statusID string, state domain.ControlState) error {
	if err := c.ensureNotTerminal(ctx, statusID); err != nil {
		return err
	}
	return c.repo.MarkTerminal(ctx, statusID, state)
}

func (c *Controller) ensureNotTerminal(ctx context.Context, statusID string) error {
	current, err := c.repo.GetByID(ctx, statusID)
	if err != nil {
		return err
	}
	if isTerminal(current.Status) {
		return fmt.Errorf("status %s already terminal (%s): %w", statusID, current.Status, domain.ErrNotCancellable)
	}
	return nil
}

func isTerminal(s domain.ControlState) bool {
	switch s {
	case domain.ControlCompleted, domain.ControlFailed, domain.ControlStopped:
		return true
	default:
		return false
	}
}
