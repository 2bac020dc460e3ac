package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/benaskins/launchpad/internal/config"
	"github.com/benaskins/launchpad/internal/handoff"
	"github.com/benaskins/launchpad/internal/health"
	"github.com/benaskins/launchpad/internal/journal"
	"github.com/benaskins/launchpad/internal/logging"
	"github.com/benaskins/launchpad/internal/port"
	"github.com/benaskins/launchpad/internal/supervisor"
	"github.com/benaskins/launchpad/internal/surface"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the worker and hand off to it once it is reachable",
	Long: `Show a splash, pick a free port, start the worker with --port, and wait
for it to accept connections. On success the surface moves to the worker URL;
on timeout it shows a diagnostic that can be copied into a support request.
The worker is stopped when the surface closes or on SIGINT/SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var (
	runWorker        string
	runTimeout       time.Duration
	runPortStart     int
	runPortEnd       int
	runSurface       string
	runExitOnTimeout bool
	runOpen          bool
)

func init() {
	runCmd.Flags().StringVar(&runWorker, "worker", "", "Worker command (overrides worker.command)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Readiness timeout (overrides readiness.timeout)")
	runCmd.Flags().IntVar(&runPortStart, "port-start", 0, "First port to try (overrides ports.start)")
	runCmd.Flags().IntVar(&runPortEnd, "port-end", 0, "End of port range, exclusive (overrides ports.end)")
	runCmd.Flags().StringVar(&runSurface, "surface", "", "Surface: auto, terminal, browser, headless")
	runCmd.Flags().BoolVar(&runExitOnTimeout, "exit-on-timeout", false, "Exit with status 5 if the worker never becomes ready")
	runCmd.Flags().BoolVar(&runOpen, "open", false, "Terminal surface: also open the worker URL in a browser")
	rootCmd.AddCommand(runCmd)
}

// loadRunConfig loads the config file and applies command-line overrides.
func loadRunConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, configError(err)
	}

	flags := cmd.Flags()
	if flags.Changed("worker") {
		cfg.Worker.Command = runWorker
	}
	if flags.Changed("timeout") {
		cfg.Readiness.Timeout = config.Duration{Duration: runTimeout}
	}
	if flags.Changed("port-start") {
		cfg.Ports.Start = runPortStart
	}
	if flags.Changed("port-end") {
		cfg.Ports.End = runPortEnd
	}
	if flags.Changed("surface") {
		cfg.Surface = runSurface
	}

	if err := cfg.Validate(); err != nil {
		return nil, configError(err)
	}
	return cfg, nil
}

// resolveSurface picks the concrete surface for "auto".
func resolveSurface(kind string, interactive bool) string {
	if kind != config.SurfaceAuto {
		return kind
	}
	if interactive {
		return config.SurfaceTerminal
	}
	return config.SurfaceHeadless
}

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}
	paths, err := newStatePaths(cfg)
	if err != nil {
		return configError(err)
	}
	if err := os.MkdirAll(paths.Dir, 0700); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}

	kind := resolveSurface(cfg.Surface, isInteractive())

	// The terminal surface owns the screen; logs go to a file instead.
	if kind == config.SurfaceTerminal {
		f, err := logging.OpenFile(paths.Log)
		if err != nil {
			return err
		}
		defer f.Close()
		logging.Setup(logLevel, logFormat, f)
	}

	runID := journal.NewRunID()
	logger := slog.With("run_id", runID)

	supCfg, err := cfg.SupervisorConfig(launcherDir())
	if err != nil {
		return configError(err)
	}
	supCfg.StateDir = paths.Dir
	sup := supervisor.New(supCfg, supervisor.WithLogger(logger.With("component", "supervisor")))
	if pid, err := sup.ReapStale(); err != nil {
		logger.Warn("checking for stale worker", "error", err)
	} else if pid != 0 {
		logger.Info("stopped worker left by a previous run", "pid", pid)
	}

	opts := []handoff.Option{handoff.WithLogger(logger.With("component", "handoff"))}
	if j, err := journal.Open(paths.Journal, runID); err != nil {
		logger.Warn("run journal unavailable", "error", err)
	} else {
		defer j.Close()
		opts = append(opts, handoff.WithRecorder(j))
	}

	newController := func(s handoff.Surface) *handoff.Controller {
		return handoff.New(
			handoff.Config{
				ReadyTimeout: cfg.Readiness.Timeout.Duration,
				RunID:        runID,
				OutputLines:  cfg.Worker.OutputLines,
			},
			s,
			port.NewAllocator(cfg.Ports.Start, cfg.Ports.End),
			sup,
			health.NewProbe(cfg.Readiness.HealthConfig(), logger.With("component", "readiness")),
			opts...,
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("launchpad starting",
		"worker", supCfg.Command,
		"ports", fmt.Sprintf("[%d, %d)", cfg.Ports.Start, cfg.Ports.End),
		"timeout", cfg.Readiness.Timeout.Duration,
		"surface", kind,
	)

	switch kind {
	case config.SurfaceTerminal:
		return runTerminal(ctx, logger, newController)
	case config.SurfaceBrowser:
		return runDetached(ctx, logger, newController(surface.NewBrowser(paths.Pages, logger.With("component", "surface"))))
	default:
		return runDetached(ctx, logger, newController(surface.NewHeadless(os.Stdout, paths.Pages, logger.With("component", "surface"))))
	}
}

// runTerminal keeps the bubbletea program on this goroutine and drives the
// handoff from another. Quitting the program is the window-close event.
func runTerminal(ctx context.Context, logger *slog.Logger, newController func(handoff.Surface) *handoff.Controller) error {
	topts := []surface.TerminalOption{}
	if runOpen {
		topts = append(topts, surface.WithBrowser(surface.OpenURL))
	}
	t := surface.NewTerminal(topts...)
	ctrl := newController(t)
	defer ctrl.Shutdown()

	startErr := make(chan error, 1)
	go func() {
		err := ctrl.Start(ctx)
		if err != nil {
			t.Quit()
		}
		startErr <- err
	}()
	go func() {
		select {
		case <-ctx.Done():
			t.Quit()
		case <-ctrl.Done():
			if res, err := ctrl.Wait(ctx); err == nil && !res.Ready() && runExitOnTimeout {
				t.Quit()
			}
		}
	}()

	runErr := t.Run()
	ctrl.Shutdown()

	if err := <-startErr; err != nil {
		if !errors.Is(err, handoff.ErrShutdown) {
			return err
		}
		logger.Info("shutting down before the worker started", "reason", err)
	}
	if runErr != nil {
		return fmt.Errorf("terminal surface: %w", runErr)
	}
	return timeoutExit(ctrl, true)
}

// runDetached runs a surface that does not block: it returns after a
// signal, or straight after the outcome with --exit-on-timeout.
func runDetached(ctx context.Context, logger *slog.Logger, ctrl *handoff.Controller) error {
	defer ctrl.Shutdown()

	if err := ctrl.Start(ctx); err != nil {
		if errors.Is(err, handoff.ErrShutdown) {
			logger.Info("shutting down before the worker started", "reason", err)
			return nil
		}
		return err
	}
	res, err := ctrl.Wait(ctx)
	if err != nil {
		// interrupted before the outcome
		return nil
	}
	if !res.Ready() && runExitOnTimeout {
		return timeoutExit(ctrl, false)
	}

	<-ctx.Done()
	logger.Info("shutting down", "reason", context.Cause(ctx))
	return nil
}

// timeoutExit returns the not-ready exit error if the run ended without the
// worker becoming ready and --exit-on-timeout is set. With printDiag the
// diagnostic text is written to stderr, for surfaces that are gone by now.
func timeoutExit(ctrl *handoff.Controller, printDiag bool) error {
	if !runExitOnTimeout {
		return nil
	}
	select {
	case <-ctrl.Done():
	default:
		return nil
	}
	res, err := ctrl.Wait(context.Background())
	if err != nil || res.Ready() {
		return nil
	}
	if d := res.Diagnostic; d != nil && printDiag {
		io.WriteString(os.Stderr, d.Text())
	}
	return &exitError{Code: ExitNotReady, Cause: fmt.Errorf("worker not ready on port %d within %s", res.Port, res.Probe.Elapsed.Round(time.Millisecond))}
}
