// Package config loads launcher configuration from ~/.launchpad/config.yaml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"gopkg.in/yaml.v3"

	"github.com/benaskins/launchpad/internal/health"
	"github.com/benaskins/launchpad/internal/port"
	"github.com/benaskins/launchpad/internal/supervisor"
)

// Surface kinds.
const (
	SurfaceAuto     = "auto"
	SurfaceTerminal = "terminal"
	SurfaceBrowser  = "browser"
	SurfaceHeadless = "headless"
)

// Defaults for an absent config file.
const (
	// DefaultWorkerCommand is the worker binary shipped next to launchpad.
	DefaultWorkerCommand = "tablerreur-backend"
	DefaultReadyTimeout  = 90 * time.Second
)

// Config holds launcher configuration.
type Config struct {
	Worker    Worker    `yaml:"worker"`
	Ports     Ports     `yaml:"ports"`
	Readiness Readiness `yaml:"readiness"`
	Surface   string    `yaml:"surface"`
	StateDir  string    `yaml:"state_dir"`
}

// Worker describes the worker binary and how to launch it.
type Worker struct {
	Command     string            `yaml:"command"`
	Args        []string          `yaml:"args,omitempty"`
	Env         map[string]string `yaml:"env,omitempty"`
	WorkingDir  string            `yaml:"working_dir,omitempty"`
	StopGrace   Duration          `yaml:"stop_grace,omitempty"`
	OutputLines int               `yaml:"output_lines,omitempty"` // kept for the diagnostic
}

// Ports is the half-open scan range [Start, End).
type Ports struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// Readiness configures the readiness probe.
type Readiness struct {
	Type           string   `yaml:"type"` // "tcp" | "http"
	Path           string   `yaml:"path,omitempty"`
	Timeout        Duration `yaml:"timeout"`
	Interval       Duration `yaml:"interval"`
	ConnectTimeout Duration `yaml:"connect_timeout"`
}

// Duration wraps time.Duration for YAML unmarshaling from strings like "90s", "200ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Worker: Worker{Command: DefaultWorkerCommand},
		Ports:  Ports{Start: port.DefaultStart, End: port.DefaultEnd},
		Readiness: Readiness{
			Type:           health.TypeTCP,
			Timeout:        Duration{DefaultReadyTimeout},
			Interval:       Duration{health.DefaultInterval},
			ConnectTimeout: Duration{health.DefaultConnectTimeout},
		},
		Surface:  SurfaceAuto,
		StateDir: "~/.launchpad",
	}
}

// DefaultPath returns the default config file path: ~/.launchpad/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".launchpad", "config.yaml")
}

// Load reads a YAML config file from path over the defaults. If the file does
// not exist, or is empty or all comments, the defaults are returned with no
// error. Load does not validate; call Validate after applying overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Worker.Command) == "" {
		return fmt.Errorf("worker.command is required")
	}
	if _, err := shellquote.Split(c.Worker.Command); err != nil {
		return fmt.Errorf("worker.command %q: %w", c.Worker.Command, err)
	}
	if c.Worker.StopGrace.Duration < 0 {
		return fmt.Errorf("worker.stop_grace must not be negative")
	}
	if c.Worker.OutputLines < 0 {
		return fmt.Errorf("worker.output_lines must not be negative")
	}

	if c.Ports.Start < 1 || c.Ports.End > 65536 || c.Ports.Start >= c.Ports.End {
		return fmt.Errorf("ports must satisfy 1 <= start < end <= 65536, got [%d, %d)", c.Ports.Start, c.Ports.End)
	}

	r := c.Readiness
	switch r.Type {
	case health.TypeTCP:
		// bare accept is the whole contract
	case health.TypeHTTP:
		if !strings.HasPrefix(r.Path, "/") {
			return fmt.Errorf("readiness.path must start with / for http checks, got %q", r.Path)
		}
	default:
		return fmt.Errorf("readiness.type must be \"tcp\" or \"http\", got %q", r.Type)
	}
	if r.Timeout.Duration <= 0 {
		return fmt.Errorf("readiness.timeout must be positive")
	}
	if r.Interval.Duration <= 0 {
		return fmt.Errorf("readiness.interval must be positive")
	}
	if r.ConnectTimeout.Duration <= 0 {
		return fmt.Errorf("readiness.connect_timeout must be positive")
	}
	if r.ConnectTimeout.Duration >= r.Timeout.Duration {
		return fmt.Errorf("readiness.connect_timeout (%s) must be less than readiness.timeout (%s)",
			r.ConnectTimeout.Duration, r.Timeout.Duration)
	}

	switch c.Surface {
	case SurfaceAuto, SurfaceTerminal, SurfaceBrowser, SurfaceHeadless:
		// ok
	default:
		return fmt.Errorf("surface must be \"auto\", \"terminal\", \"browser\", or \"headless\", got %q", c.Surface)
	}

	if c.StateDir == "" {
		return fmt.Errorf("state_dir is required")
	}
	return nil
}

// CommandLine splits worker.command and returns the binary and its
// arguments, with worker.args appended. A relative binary that exists in
// baseDir (normally the launcher's own directory) is resolved there, so a
// worker bundled next to the launcher is found regardless of the working
// directory.
func (w Worker) CommandLine(baseDir string) (string, []string, error) {
	words, err := shellquote.Split(w.Command)
	if err != nil {
		return "", nil, fmt.Errorf("splitting worker.command: %w", err)
	}
	if len(words) == 0 {
		return "", nil, fmt.Errorf("worker.command is empty")
	}

	bin := words[0]
	if !filepath.IsAbs(bin) && baseDir != "" {
		candidate := filepath.Join(baseDir, bin)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			bin = candidate
		}
	}

	args := append(words[1:len(words):len(words)], w.Args...)
	return bin, args, nil
}

// Environ returns worker.env as sorted KEY=VALUE pairs.
func (w Worker) Environ() []string {
	if len(w.Env) == 0 {
		return nil
	}
	env := make([]string, 0, len(w.Env))
	for k, v := range w.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}

// SupervisorConfig builds the supervisor configuration for the worker.
func (c *Config) SupervisorConfig(baseDir string) (supervisor.Config, error) {
	bin, args, err := c.Worker.CommandLine(baseDir)
	if err != nil {
		return supervisor.Config{}, err
	}
	stateDir, err := c.ResolvedStateDir()
	if err != nil {
		return supervisor.Config{}, err
	}
	return supervisor.Config{
		Command:    bin,
		Args:       args,
		Env:        c.Worker.Environ(),
		WorkingDir: c.Worker.WorkingDir,
		StopGrace:  c.Worker.StopGrace.Duration,
		StateDir:   stateDir,
		BufSize:    c.Worker.OutputLines,
	}, nil
}

// HealthConfig builds the readiness probe configuration.
func (r Readiness) HealthConfig() health.Config {
	return health.Config{
		Type:           r.Type,
		Path:           r.Path,
		ConnectTimeout: r.ConnectTimeout.Duration,
		Interval:       r.Interval.Duration,
	}
}

// ResolvedStateDir returns state_dir with a leading ~ expanded.
func (c *Config) ResolvedStateDir() (string, error) {
	return ExpandHome(c.StateDir)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
