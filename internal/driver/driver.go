package driver

import (
	"context"
	"time"
)

// State represents the lifecycle state of a worker process.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateFailed   State = "failed"
)

// ProcessInfo holds runtime information about a worker process.
type ProcessInfo struct {
	PID       int
	State     State
	StartedAt time.Time
	Exited    bool
	ExitCode  int
	Error     string
}

// Driver is the interface for worker process lifecycle management.
type Driver interface {
	// Start launches the process and returns immediately.
	// The process runs in the background.
	Start(ctx context.Context) error

	// Stop sends a graceful shutdown signal, waits up to grace,
	// then force-kills if still running. A zero grace kills immediately.
	Stop(ctx context.Context, grace time.Duration) error

	// Info returns current process state and metadata.
	Info() ProcessInfo

	// Wait blocks until the process exits and returns the exit code.
	Wait() (int, error)

	// Done is closed once the process has exited. Nil before Start.
	Done() <-chan struct{}

	// LogLines returns the last n lines of combined stdout/stderr.
	LogLines(n int) []string
}
