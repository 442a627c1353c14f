package domain

import (
	"errors"
	"time"
)

var (
	ErrRunStatusNotFound  = errors.New("run status not found")
	ErrNotCancellable     = errors.New("run status is not in a cancellable state")
)

type ControlState string

const (
	ControlRunning       ControlState = "RUNNING"
	ControlStopRequested ControlState = "STOP_REQUESTED"
	ControlStopped       ControlState = "STOPPED"
	ControlCompleted     ControlState = "COMPLETED"
	ControlFailed        ControlState = "FAILED"
)

// RunStatus is the lightweight, frequently-polled control row for a single
// run. It is deliberately separate from RunLog so that cancellation checks
// and progress updates stay a single-column read/write.
type RunStatus struct {
	ID                        string
	JobID                     string
	RunLogID                  string
	Status                    ControlState
	IsCancellationRequested   bool
	CurrentStage              string
	ProgressPercentage        int
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

func (s *RunStatus) RequestCancellation() {
	s.IsCancellationRequested = true
	s.Status = ControlStopRequested
}

func (s *RunStatus) MarkCompleted() {
	s.Status = ControlCompleted
	s.ProgressPercentage = 100
}

func (s *RunStatus) MarkFailed() {
	s.Status = ControlFailed
}

func (s *RunStatus) MarkStopped() {
	s.Status = ControlStopped
}

func (s *RunStatus) UpdateProgress(stage string, pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	s.CurrentStage = stage
	s.ProgressPercentage = pct
}
