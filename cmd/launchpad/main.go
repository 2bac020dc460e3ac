package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/benaskins/launchpad/internal/config"
	"github.com/benaskins/launchpad/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:           "launchpad",
	Short:         "Sidecar launcher: start a local worker and hand off once it is reachable",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(logLevel, logFormat, os.Stderr)
	},
}

var (
	configPath string
	logLevel   string
	logFormat  string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "launchpad:", err)
		os.Exit(exitCode(err))
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
