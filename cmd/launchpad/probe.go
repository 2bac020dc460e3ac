package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/benaskins/launchpad/internal/health"
)

type probeResult struct {
	Port      int    `json:"port"`
	Outcome   string `json:"outcome"`
	Attempts  int    `json:"attempts"`
	ElapsedMS int64  `json:"elapsed_ms"`
	Error     string `json:"error,omitempty"`
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Wait for a port to accept connections",
	Long:  "Poll 127.0.0.1:<port> until it accepts a connection or the timeout elapses. Exits 0 when ready, 5 on timeout.",
	Args:  cobra.NoArgs,
	RunE:  runProbe,
}

var (
	probePort     int
	probeTimeout  time.Duration
	probeType     string
	probePath     string
	probeInterval time.Duration
	probeConnect  time.Duration
)

func init() {
	probeCmd.Flags().IntVar(&probePort, "port", 0, "Port to probe (required)")
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", 15*time.Second, "Overall readiness timeout")
	probeCmd.Flags().StringVar(&probeType, "type", health.TypeTCP, "Check type (tcp, http)")
	probeCmd.Flags().StringVar(&probePath, "path", "/health", "HTTP path for --type http")
	probeCmd.Flags().DurationVar(&probeInterval, "interval", health.DefaultInterval, "Sleep between attempts")
	probeCmd.Flags().DurationVar(&probeConnect, "connect-timeout", health.DefaultConnectTimeout, "Per-attempt connect timeout")
	probeCmd.Flags().Bool("json", false, "Output as JSON")
	probeCmd.MarkFlagRequired("port")
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")

	if probePort < 1 || probePort > 65535 {
		return &exitError{Code: ExitConfigError, Cause: fmt.Errorf("--port must be between 1 and 65535, got %d", probePort)}
	}
	if probeType != health.TypeTCP && probeType != health.TypeHTTP {
		return &exitError{Code: ExitConfigError, Cause: fmt.Errorf("--type must be \"tcp\" or \"http\", got %q", probeType)}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := health.NewProbe(health.Config{
		Type:           probeType,
		Path:           probePath,
		Interval:       probeInterval,
		ConnectTimeout: probeConnect,
	}, nil)
	res := p.Wait(ctx, probePort, probeTimeout)

	out := probeResult{
		Port:      probePort,
		Outcome:   res.Outcome.String(),
		Attempts:  res.Attempts,
		ElapsedMS: res.Elapsed.Milliseconds(),
	}
	if res.Outcome != health.Ready && res.LastErr != nil {
		out.Error = res.LastErr.Error()
	}

	if jsonOut {
		if err := printJSON(out); err != nil {
			return err
		}
	} else if res.Outcome == health.Ready {
		fmt.Printf("ready   127.0.0.1:%d after %d attempt(s), %s\n", probePort, res.Attempts, res.Elapsed.Round(time.Millisecond))
	} else {
		fmt.Fprintf(os.Stderr, "timeout 127.0.0.1:%d after %d attempt(s), %s\n        %s\n", probePort, res.Attempts, res.Elapsed.Round(time.Millisecond), out.Error)
	}

	if res.Outcome != health.Ready {
		return &exitError{Code: ExitNotReady, Cause: fmt.Errorf("port %d not ready within %s", probePort, probeTimeout)}
	}
	return nil
}
