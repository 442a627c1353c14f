package handler

const (
	errInternalServer   = "Internal server error"
	errJobNotFound      = "Job not found"
	errJobAlreadyRunning = "Job is already running"
	errJobPaused        = "Job is paused"
	errJobNotRunning    = "Job is not running"
	errRunStatusNotFound = "Run status not found"
	errNotCancellable   = "Run is not in a cancellable state"
)
