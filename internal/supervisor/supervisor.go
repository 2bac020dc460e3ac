// Package supervisor owns the single worker process for a launcher run.
//
// A Supervisor moves through none → running → terminated exactly once.
// The live handle sits behind a mutex and is taken out on the first
// Terminate, so a shutdown hook racing the startup path can never stop the
// same process twice. There is no restart policy: a crashed worker stays
// down and the readiness probe runs out its deadline.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benaskins/launchpad/internal/driver"
)

// State is the supervisor lifecycle state.
type State string

const (
	StateNone       State = "none"
	StateRunning    State = "running"
	StateTerminated State = "terminated"
)

var (
	// ErrSpawn is matched by every *SpawnError.
	ErrSpawn = errors.New("worker spawn failed")

	// ErrAlreadySpawned is returned by a second Spawn on the same supervisor.
	ErrAlreadySpawned = errors.New("worker already spawned")
)

// SpawnError reports a worker that could not be launched. It indicates a
// packaging problem (missing or non-executable binary), so it is not retried.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawning worker %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

func (e *SpawnError) Is(target error) bool { return target == ErrSpawn }

// Config describes how to launch the worker.
type Config struct {
	Command    string   // path to the worker binary
	Args       []string // passed before --port
	Env        []string // KEY=VALUE pairs added to the launcher environment
	WorkingDir string
	StopGrace  time.Duration // SIGTERM grace before SIGKILL; 0 kills immediately
	StateDir   string        // where worker.json is kept; empty disables stale reaping
	BufSize    int           // output lines retained for diagnostics
}

// Supervisor spawns and terminates one worker process.
type Supervisor struct {
	cfg       Config
	logger    *slog.Logger
	newDriver func(driver.NativeConfig) driver.Driver
	record    *recordFile

	mu     sync.Mutex
	handle driver.Driver // live handle; nil once taken
	last   driver.Driver // most recent spawn, kept for diagnostics
	state  State
	port   int
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the supervisor logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Supervisor) {
		s.logger = l
	}
}

// New creates a supervisor in the none state.
func New(cfg Config, opts ...Option) *Supervisor {
	s := &Supervisor{
		cfg:    cfg,
		logger: slog.With("component", "supervisor"),
		newDriver: func(c driver.NativeConfig) driver.Driver {
			return driver.NewNative(c)
		},
		state: StateNone,
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.StateDir != "" {
		s.record = newRecordFile(cfg.StateDir)
	}
	return s
}

// Spawn launches the worker with "--port <port>" appended to its arguments.
func (s *Supervisor) Spawn(ctx context.Context, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateNone {
		return fmt.Errorf("%w (state %s)", ErrAlreadySpawned, s.state)
	}

	command, err := resolveCommand(s.cfg.Command)
	if err != nil {
		return &SpawnError{Command: s.cfg.Command, Err: err}
	}

	args := make([]string, 0, len(s.cfg.Args)+2)
	args = append(args, s.cfg.Args...)
	args = append(args, "--port", strconv.Itoa(port))

	var env []string
	if len(s.cfg.Env) > 0 {
		env = append(os.Environ(), s.cfg.Env...)
	}

	drv := s.newDriver(driver.NativeConfig{
		Command:    command,
		Args:       args,
		Env:        env,
		WorkingDir: s.cfg.WorkingDir,
		BufSize:    s.cfg.BufSize,
	})
	if err := drv.Start(ctx); err != nil {
		return &SpawnError{Command: command, Err: err}
	}

	s.handle = drv
	s.last = drv
	s.state = StateRunning
	s.port = port

	pid := drv.Info().PID
	s.logger.Info("worker spawned", "command", command, "pid", pid, "port", port)

	if s.record != nil {
		if err := s.record.save(newWorkerRecord(pid, port, command)); err != nil {
			s.logger.Warn("failed to record worker pid", "error", err)
		}
	}
	return nil
}

// Terminate kills the worker if one is held. It never fails: a worker that
// already exited is not an error. Safe to call any number of times, including
// before or without a successful Spawn.
func (s *Supervisor) Terminate() {
	h := s.take()
	if h == nil {
		return
	}

	pid := h.Info().PID
	if err := h.Stop(context.Background(), s.cfg.StopGrace); err != nil {
		s.logger.Debug("terminating worker", "pid", pid, "error", err)
	}
	if s.record != nil {
		if err := s.record.remove(); err != nil {
			s.logger.Debug("removing worker record", "error", err)
		}
	}
	s.logger.Info("worker terminated", "pid", pid)
}

// take moves the live handle out of the supervisor.
func (s *Supervisor) take() driver.Driver {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.handle
	s.handle = nil
	if h != nil {
		s.state = StateTerminated
	}
	return h
}

// State returns the supervisor lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Port returns the port the worker was spawned with, or 0.
func (s *Supervisor) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// Info returns process details of the most recent spawn.
func (s *Supervisor) Info() driver.ProcessInfo {
	drv := s.lastDriver()
	if drv == nil {
		return driver.ProcessInfo{State: driver.StateStopped}
	}
	return drv.Info()
}

// Output returns the last n lines the worker wrote to stdout/stderr.
func (s *Supervisor) Output(n int) []string {
	drv := s.lastDriver()
	if drv == nil {
		return nil
	}
	return drv.LogLines(n)
}

// Done is closed when the worker process exits for any reason.
// It is nil if no worker was spawned.
func (s *Supervisor) Done() <-chan struct{} {
	drv := s.lastDriver()
	if drv == nil {
		return nil
	}
	return drv.Done()
}

func (s *Supervisor) lastDriver() driver.Driver {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// resolveCommand checks the worker binary exists before handing it to exec,
// so a packaging defect reports the missing path instead of a fork error.
func resolveCommand(command string) (string, error) {
	if command == "" {
		return "", errors.New("no worker command configured")
	}
	if !strings.ContainsRune(command, filepath.Separator) && !strings.ContainsRune(command, '/') {
		path, err := exec.LookPath(command)
		if err != nil {
			return "", err
		}
		return path, nil
	}
	info, err := os.Stat(command)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", &fs.PathError{Op: "exec", Path: command, Err: errors.New("is a directory")}
	}
	return command, nil
}
