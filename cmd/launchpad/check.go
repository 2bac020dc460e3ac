package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/benaskins/launchpad/internal/config"
)

type checkResult struct {
	Path     string `json:"path"`
	Worker   string `json:"worker,omitempty"`
	Resolved string `json:"resolved,omitempty"`
	Ports    string `json:"ports,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
	Surface  string `json:"surface,omitempty"`
	Valid    bool   `json:"valid"`
	Error    string `json:"error,omitempty"`
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the launcher config",
	Long:  "Load the config file (default ~/.launchpad/config.yaml), apply defaults, and validate it.",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")

	res := checkConfig(configPath, launcherDir())

	if jsonOut {
		if err := printJSON(res); err != nil {
			return err
		}
	} else if res.Valid {
		fmt.Printf("OK    %s\n", res.Path)
		fmt.Printf("      worker:  %s (%s)\n", res.Worker, res.Resolved)
		fmt.Printf("      ports:   %s\n", res.Ports)
		fmt.Printf("      timeout: %s\n", res.Timeout)
		fmt.Printf("      surface: %s\n", res.Surface)
	} else {
		fmt.Fprintf(os.Stderr, "FAIL  %s\n      %v\n", res.Path, res.Error)
	}

	if !res.Valid {
		return &exitError{Code: ExitConfigError, Cause: fmt.Errorf("%s failed validation", res.Path)}
	}
	return nil
}

func checkConfig(path, baseDir string) checkResult {
	res := checkResult{Path: path}

	cfg, err := config.Load(path)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if err := cfg.Validate(); err != nil {
		res.Error = err.Error()
		return res
	}
	bin, _, err := cfg.Worker.CommandLine(baseDir)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	res.Valid = true
	res.Worker = cfg.Worker.Command
	res.Resolved = bin
	res.Ports = fmt.Sprintf("[%d, %d)", cfg.Ports.Start, cfg.Ports.End)
	res.Timeout = cfg.Readiness.Timeout.Duration.String()
	res.Surface = cfg.Surface
	return res
}
