// Package handoff sequences a launcher run and drives the front end surface.
//
// The order is fixed: splash, allocate a port, spawn the worker, probe it on
// a background goroutine, then hand the surface either the worker URL or a
// diagnostic page. Allocation and spawn failures abort the run; a readiness
// timeout does not. Shutdown terminates the worker exactly once no matter
// which step the run has reached.
package handoff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/benaskins/launchpad/internal/driver"
	"github.com/benaskins/launchpad/internal/health"
	"github.com/benaskins/launchpad/internal/journal"
)

// Surface is the front end the controller hands control to.
type Surface interface {
	Navigate(url string) error
	Render(page string) error
}

// Allocator picks the worker port.
type Allocator interface {
	Allocate() (int, error)
}

// Worker is the supervised worker process.
type Worker interface {
	Spawn(ctx context.Context, port int) error
	Terminate()
	Info() driver.ProcessInfo
	Output(n int) []string
}

// Prober waits for the worker to accept connections.
type Prober interface {
	Wait(ctx context.Context, port int, timeout time.Duration) health.Result
}

// Recorder receives run events.
type Recorder interface {
	Record(journal.Entry) error
}

// Startup stages that can abort a run.
const (
	StageAllocate = "allocate"
	StageSpawn    = "spawn"
)

var (
	// ErrShutdown is returned by Start when Shutdown ran first or its
	// context ended before the worker was running.
	ErrShutdown = errors.New("launcher is shutting down")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("handoff already started")
)

// StartupError is a fatal failure before the worker could be probed.
type StartupError struct {
	Stage string
	Err   error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("startup failed at %s: %v", e.Stage, e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }

// Config holds run parameters.
type Config struct {
	ReadyTimeout time.Duration
	RunID        string
	OutputLines  int // worker output lines kept in the diagnostic
}

// DefaultOutputLines is used when Config.OutputLines is zero.
const DefaultOutputLines = 20

// Result is the terminal state of a run once the outcome reached the surface.
type Result struct {
	Port       int
	URL        string // set when ready
	Probe      health.Result
	Diagnostic *Diagnostic // set when timed out
	Dispatched bool        // false if Shutdown ran before the outcome was ready
	SurfaceErr error
}

// Ready reports whether the worker became reachable.
func (r Result) Ready() bool {
	return r.Probe.Outcome == health.Ready
}

// Controller runs the handoff protocol for one launcher run.
type Controller struct {
	cfg      Config
	surface  Surface
	alloc    Allocator
	worker   Worker
	probe    Prober
	recorder Recorder
	logger   *slog.Logger

	mu       sync.Mutex
	started  bool
	shutdown bool
	port     int

	shutdownOnce sync.Once
	done         chan struct{}
	result       Result
	startErr     error
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithRecorder sends run events to r.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// New creates a controller.
func New(cfg Config, surface Surface, alloc Allocator, worker Worker, probe Prober, opts ...Option) *Controller {
	if cfg.OutputLines == 0 {
		cfg.OutputLines = DefaultOutputLines
	}
	if cfg.RunID == "" {
		cfg.RunID = journal.NewRunID()
	}
	c := &Controller{
		cfg:     cfg,
		surface: surface,
		alloc:   alloc,
		worker:  worker,
		probe:   probe,
		logger:  slog.With("component", "handoff"),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunID returns the identifier of this run.
func (c *Controller) RunID() string {
	return c.cfg.RunID
}

// Port returns the allocated port, or 0 before allocation.
func (c *Controller) Port() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.port
}

// Start shows the splash, allocates a port, spawns the worker and starts the
// background readiness watcher. It returns once the watcher is running; the
// outcome is reported by Wait. A *StartupError aborts the run. ctx bounds
// the worker process lifetime but not the readiness probe.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true

	if c.shutdown {
		return c.fail(ErrShutdown)
	}

	c.record(journal.Entry{Event: journal.EventRunStarted})

	if err := c.surface.Render(SplashPage()); err != nil {
		c.logger.Warn("failed to render splash", "error", err)
	}

	port, err := c.alloc.Allocate()
	if err != nil {
		return c.fail(&StartupError{Stage: StageAllocate, Err: err})
	}
	c.port = port
	c.logger.Info("port allocated", "port", port)
	c.record(journal.Entry{Event: journal.EventPortAllocated, Port: port})

	if err := interrupted(ctx); err != nil {
		return c.fail(err)
	}

	// Shutdown blocks on c.mu until the spawn has completed, so a worker
	// spawned here is always seen by its Terminate.
	if err := c.worker.Spawn(ctx, port); err != nil {
		// A signal while the process was starting is not a launch failure.
		if ierr := interrupted(ctx); ierr != nil {
			c.logger.Info("startup interrupted", "port", port, "error", err)
			return c.fail(ierr)
		}
		return c.fail(&StartupError{Stage: StageSpawn, Err: err})
	}
	c.record(journal.Entry{Event: journal.EventWorkerSpawned, Port: port, PID: c.worker.Info().PID})

	// The probe is never cancelled: it runs to its own deadline even if the
	// caller's context ends or the surface closes.
	go c.watch(context.WithoutCancel(ctx), port)
	return nil
}

// interrupted returns ErrShutdown wrapping the cause once ctx has ended.
func interrupted(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrShutdown, context.Cause(ctx))
}

// fail records a startup failure and releases Wait. Caller holds c.mu.
func (c *Controller) fail(err error) error {
	c.startErr = err
	var se *StartupError
	if errors.As(err, &se) {
		c.logger.Error("startup failed", "stage", se.Stage, "error", se.Err)
		c.record(journal.Entry{Event: journal.EventStartupFailed, Stage: se.Stage, Port: c.port, Error: se.Err.Error()})
	}
	close(c.done)
	return err
}

// watch runs the probe and dispatches its outcome to the surface. It is the
// only writer of c.result.
func (c *Controller) watch(ctx context.Context, port int) {
	res := Result{Port: port}
	res.Probe = c.probe.Wait(ctx, port, c.cfg.ReadyTimeout)

	switch res.Probe.Outcome {
	case health.Ready:
		res.URL = URL(port)
		c.record(journal.Entry{
			Event:     journal.EventWorkerReady,
			Port:      port,
			Attempts:  res.Probe.Attempts,
			ElapsedMS: res.Probe.Elapsed.Milliseconds(),
		})
	default:
		d := c.snapshot(port, res.Probe)
		res.Diagnostic = &d
		c.record(journal.Entry{
			Event:     journal.EventWorkerTimeout,
			Port:      port,
			Attempts:  res.Probe.Attempts,
			ElapsedMS: res.Probe.Elapsed.Milliseconds(),
			Error:     d.LastError,
		})
	}

	if c.isShutdown() {
		c.logger.Debug("surface closed before readiness outcome", "outcome", res.Probe.Outcome)
	} else {
		res.Dispatched = true
		res.SurfaceErr = c.dispatch(res)
	}

	c.result = res
	close(c.done)
}

func (c *Controller) dispatch(res Result) error {
	if res.Diagnostic == nil {
		c.logger.Info("handing off to worker", "url", res.URL)
		if err := c.surface.Navigate(res.URL); err != nil {
			c.logger.Warn("navigate failed", "url", res.URL, "error", err)
			return err
		}
		return nil
	}

	page, err := DiagnosticPage(*res.Diagnostic)
	if err != nil {
		return fmt.Errorf("building diagnostic page: %w", err)
	}
	c.logger.Warn("worker did not become ready, showing diagnostic",
		"port", res.Port,
		"timeout", c.cfg.ReadyTimeout,
		"worker_exited", res.Diagnostic.WorkerExited,
	)
	if err := c.surface.Render(page); err != nil {
		c.logger.Warn("render diagnostic failed", "error", err)
		return err
	}
	return nil
}

func (c *Controller) snapshot(port int, probe health.Result) Diagnostic {
	info := c.worker.Info()
	return newDiagnostic(diagnosticInput{
		runID:    c.cfg.RunID,
		port:     port,
		timeout:  c.cfg.ReadyTimeout,
		probe:    probe,
		exited:   info.Exited,
		exitCode: info.ExitCode,
		output:   c.worker.Output(c.cfg.OutputLines),
	})
}

// Wait blocks until the outcome has been handed to the surface, or Start
// failed, or ctx is done.
func (c *Controller) Wait(ctx context.Context) (Result, error) {
	select {
	case <-c.done:
		return c.outcome()
	case <-ctx.Done():
		// An outcome already in hand wins over an ended ctx.
		select {
		case <-c.done:
			return c.outcome()
		default:
			return Result{}, ctx.Err()
		}
	}
}

func (c *Controller) outcome() (Result, error) {
	if c.startErr != nil {
		return Result{}, c.startErr
	}
	return c.result, nil
}

// Done is closed when Wait would return without blocking.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Shutdown terminates the worker. Only the first call has any effect; it is
// safe from any goroutine and at any point in the run, including before Start.
func (c *Controller) Shutdown() {
	c.shutdownOnce.Do(func() {
		c.mu.Lock()
		c.shutdown = true
		port := c.port
		c.mu.Unlock()

		pid := c.worker.Info().PID
		c.worker.Terminate()
		if pid != 0 {
			c.record(journal.Entry{Event: journal.EventWorkerTerminated, Port: port, PID: pid})
		}
	})
}

func (c *Controller) isShutdown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shutdown
}

func (c *Controller) record(e journal.Entry) {
	if c.recorder == nil {
		return
	}
	if e.RunID == "" {
		e.RunID = c.cfg.RunID
	}
	if err := c.recorder.Record(e); err != nil {
		c.logger.Debug("journal write failed", "event", e.Event, "error", err)
	}
}

// URL is the address the surface navigates to once the worker is ready.
func URL(port int) string {
	return "http://127.0.0.1:" + strconv.Itoa(port)
}
