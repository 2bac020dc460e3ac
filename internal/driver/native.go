package driver

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/benaskins/launchpad/internal/logbuf"
)

// killWait bounds how long Stop waits for the process to be reaped after SIGKILL.
const killWait = 5 * time.Second

// NativeDriver manages a native (fork/exec) worker process.
type NativeDriver struct {
	command    string
	args       []string
	env        []string
	workingDir string

	mu        sync.Mutex
	cmd       *exec.Cmd
	state     State
	startedAt time.Time
	exited    bool
	exitCode  int
	exitErr   string
	buf       *logbuf.Ring
	done      chan struct{}
}

// NativeConfig holds configuration for a native process.
type NativeConfig struct {
	Command    string
	Args       []string
	Env        []string // nil inherits the launcher environment
	WorkingDir string
	BufSize    int // log ring buffer size (lines), 0 for default
}

// NewNative creates a new native process driver.
func NewNative(cfg NativeConfig) *NativeDriver {
	bufSize := cfg.BufSize
	if bufSize <= 0 {
		bufSize = 1000
	}

	return &NativeDriver{
		command:    cfg.Command,
		args:       cfg.Args,
		env:        cfg.Env,
		workingDir: cfg.WorkingDir,
		state:      StateStopped,
		buf:        logbuf.New(bufSize),
	}
}

func (d *NativeDriver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateRunning || d.state == StateStarting {
		return fmt.Errorf("process already running")
	}

	cmd := exec.CommandContext(ctx, d.command, d.args...)
	cmd.Env = d.env
	if d.workingDir != "" {
		cmd.Dir = d.workingDir
	}

	// Capture stdout and stderr into the ring buffer
	cmd.Stdout = d.buf
	cmd.Stderr = d.buf

	// Own process group so a kill reaches the worker's children too
	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		return killGroup(cmd.Process.Pid)
	}
	// Don't let a grandchild holding the output pipes block Wait forever
	cmd.WaitDelay = time.Second
	d.cmd = cmd

	d.state = StateStarting

	if err := d.cmd.Start(); err != nil {
		d.state = StateFailed
		d.exitErr = err.Error()
		return fmt.Errorf("starting process: %w", err)
	}

	d.state = StateRunning
	d.startedAt = time.Now()
	d.done = make(chan struct{})

	// Wait for process exit in background
	go func() {
		err := cmd.Wait()
		d.mu.Lock()
		defer d.mu.Unlock()

		if d.state == StateStopping {
			// Expected shutdown
			d.state = StateStopped
		} else {
			d.state = StateFailed
		}

		d.exited = true
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				d.exitCode = exitErr.ExitCode()
			}
			d.exitErr = err.Error()
		} else {
			d.exitCode = 0
		}

		close(d.done)
	}()

	return nil
}

func (d *NativeDriver) Stop(ctx context.Context, grace time.Duration) error {
	d.mu.Lock()

	if d.state != StateRunning {
		d.mu.Unlock()
		return nil
	}

	d.state = StateStopping
	pid := d.cmd.Process.Pid
	done := d.done
	d.mu.Unlock()

	if grace > 0 {
		_ = terminateGroup(pid)

		select {
		case <-done:
			return nil
		case <-time.After(grace):
		case <-ctx.Done():
			_ = killGroup(pid)
			waitReaped(done)
			return ctx.Err()
		}
	}

	if err := killGroup(pid); err != nil {
		// Already gone is fine; the wait goroutine records the exit.
		waitReaped(done)
		return nil
	}
	if !waitReaped(done) {
		return fmt.Errorf("process %d not reaped within %s of SIGKILL", pid, killWait)
	}
	return nil
}

func waitReaped(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	case <-time.After(killWait):
		return false
	}
}

func (d *NativeDriver) Info() ProcessInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	info := ProcessInfo{
		State:     d.state,
		StartedAt: d.startedAt,
		Exited:    d.exited,
		ExitCode:  d.exitCode,
		Error:     d.exitErr,
	}

	if d.cmd != nil && d.cmd.Process != nil {
		info.PID = d.cmd.Process.Pid
	}

	return info
}

func (d *NativeDriver) Wait() (int, error) {
	done := d.Done()
	if done == nil {
		return -1, fmt.Errorf("process not started")
	}
	<-done

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.exitCode, nil
}

func (d *NativeDriver) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

func (d *NativeDriver) LogLines(n int) []string {
	return d.buf.Last(n)
}
