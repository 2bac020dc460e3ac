package handoff

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/benaskins/launchpad/internal/health"
)

// Diagnostic is the context captured when the worker failed to become ready.
// It is built once and never modified.
type Diagnostic struct {
	RunID        string
	Port         int
	Timeout      time.Duration
	OS           string
	Arch         string
	Attempts     int
	LastError    string
	WorkerExited bool
	ExitCode     int
	Output       []string
	CapturedAt   time.Time
}

type diagnosticInput struct {
	runID    string
	port     int
	timeout  time.Duration
	probe    health.Result
	exited   bool
	exitCode int
	output   []string
}

func newDiagnostic(in diagnosticInput) Diagnostic {
	d := Diagnostic{
		RunID:        in.runID,
		Port:         in.port,
		Timeout:      in.timeout,
		OS:           runtime.GOOS,
		Arch:         runtime.GOARCH,
		Attempts:     in.probe.Attempts,
		WorkerExited: in.exited,
		ExitCode:     in.exitCode,
		Output:       append([]string(nil), in.output...),
		CapturedAt:   time.Now().UTC(),
	}
	if in.probe.LastErr != nil {
		d.LastError = in.probe.LastErr.Error()
	}
	return d
}

// Summary is the one-line headline for the failure.
func (d Diagnostic) Summary() string {
	if d.WorkerExited {
		return fmt.Sprintf("The worker stopped unexpectedly (exit code %d) before it was ready.", d.ExitCode)
	}
	return fmt.Sprintf("The worker did not start within %s.", d.Timeout)
}

// Text renders the diagnostic as plain text for pasting into a support request.
func (d Diagnostic) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "port: %d\n", d.Port)
	fmt.Fprintf(&b, "timeout: %s\n", d.Timeout)
	fmt.Fprintf(&b, "os: %s\n", d.OS)
	fmt.Fprintf(&b, "arch: %s\n", d.Arch)
	if d.RunID != "" {
		fmt.Fprintf(&b, "run: %s\n", d.RunID)
	}
	fmt.Fprintf(&b, "attempts: %d\n", d.Attempts)
	if d.LastError != "" {
		fmt.Fprintf(&b, "last error: %s\n", d.LastError)
	}
	if d.WorkerExited {
		fmt.Fprintf(&b, "worker exited: yes (code %d)\n", d.ExitCode)
	} else {
		b.WriteString("worker exited: no\n")
	}
	if !d.CapturedAt.IsZero() {
		fmt.Fprintf(&b, "captured: %s\n", d.CapturedAt.Format(time.RFC3339))
	}
	if len(d.Output) > 0 {
		b.WriteString("--- worker output ---\n")
		for _, line := range d.Output {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

type diagnosticJSON struct {
	RunID        string    `json:"run_id,omitempty"`
	Port         int       `json:"port"`
	Timeout      string    `json:"timeout"`
	TimeoutMS    int64     `json:"timeout_ms"`
	OS           string    `json:"os"`
	Arch         string    `json:"arch"`
	Attempts     int       `json:"attempts"`
	LastError    string    `json:"last_error,omitempty"`
	WorkerExited bool      `json:"worker_exited"`
	ExitCode     *int      `json:"exit_code,omitempty"`
	Output       []string  `json:"output,omitempty"`
	CapturedAt   time.Time `json:"captured_at"`
}

// MarshalJSON writes the timeout both as a duration string and in
// milliseconds. The exit code is present only if the worker exited.
func (d Diagnostic) MarshalJSON() ([]byte, error) {
	out := diagnosticJSON{
		RunID:        d.RunID,
		Port:         d.Port,
		Timeout:      d.Timeout.String(),
		TimeoutMS:    d.Timeout.Milliseconds(),
		OS:           d.OS,
		Arch:         d.Arch,
		Attempts:     d.Attempts,
		LastError:    d.LastError,
		WorkerExited: d.WorkerExited,
		Output:       d.Output,
		CapturedAt:   d.CapturedAt,
	}
	if d.WorkerExited {
		code := d.ExitCode
		out.ExitCode = &code
	}
	return json.Marshal(out)
}
