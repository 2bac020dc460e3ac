package health

import (
	"context"
	"log/slog"
	"time"
)

// Outcome is the terminal result of a readiness wait.
type Outcome int

const (
	Ready Outcome = iota + 1
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Ready:
		return "ready"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Result is what a Probe reports once it stops polling.
type Result struct {
	Outcome  Outcome
	Attempts int
	Elapsed  time.Duration
	LastErr  error // last failed attempt; nil when Ready on the first try
}

// Probe polls a port until it accepts a connection or the deadline passes.
type Probe struct {
	cfg    Config
	logger *slog.Logger
}

// NewProbe creates a probe. Zero durations in cfg take the package defaults.
func NewProbe(cfg Config, logger *slog.Logger) *Probe {
	if logger == nil {
		logger = slog.With("component", "readiness")
	}
	return &Probe{cfg: cfg.withDefaults(), logger: logger}
}

// Config returns the effective configuration.
func (p *Probe) Config() Config {
	return p.cfg
}

// Wait blocks until the worker on port is reachable or timeout has elapsed
// since the call began. A failed attempt is followed by a sleep of Interval.
// TimedOut is never returned before timeout; it may come up to Interval plus
// ConnectTimeout after it. A cancelled ctx ends the wait early as TimedOut.
func (p *Probe) Wait(ctx context.Context, port int, timeout time.Duration) Result {
	start := time.Now()
	deadline := start.Add(timeout)
	var res Result

	p.logger.Debug("waiting for worker", "port", port, "timeout", timeout)

	for {
		res.Attempts++
		err := SingleCheck(ctx, p.cfg, port)
		if err == nil {
			res.Outcome = Ready
			res.Elapsed = time.Since(start)
			p.logger.Info("worker ready", "port", port, "attempts", res.Attempts, "elapsed", res.Elapsed)
			return res
		}
		res.LastErr = err

		if !time.Now().Before(deadline) || ctx.Err() != nil {
			break
		}

		timer := time.NewTimer(p.cfg.Interval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
		if ctx.Err() != nil {
			break
		}
	}

	res.Outcome = TimedOut
	res.Elapsed = time.Since(start)
	p.logger.Warn("worker not ready before deadline",
		"port", port,
		"timeout", timeout,
		"attempts", res.Attempts,
		"error", res.LastErr,
	)
	return res
}
