package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/benaskins/launchpad/internal/config"
	"github.com/benaskins/launchpad/internal/handoff"
	"github.com/benaskins/launchpad/internal/port"
	"github.com/benaskins/launchpad/internal/supervisor"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain", errors.New("boom"), ExitGeneralError},
		{"config", configError(errors.New("worker.command is required")), ExitConfigError},
		{"invalid range", fmt.Errorf("allocating: %w", port.ErrInvalidRange), ExitConfigError},
		{"no free port", &handoff.StartupError{
			Stage: handoff.StageAllocate,
			Err:   &port.NoFreePortError{Start: 8400, End: 8500},
		}, ExitNoFreePort},
		{"spawn", &handoff.StartupError{
			Stage: handoff.StageSpawn,
			Err:   &supervisor.SpawnError{Command: "backend", Err: os.ErrNotExist},
		}, ExitSpawnFailed},
		{"not ready", &exitError{Code: ExitNotReady, Cause: errors.New("timeout")}, ExitNotReady},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestResolveSurface(t *testing.T) {
	tests := []struct {
		kind        string
		interactive bool
		want        string
	}{
		{config.SurfaceAuto, true, config.SurfaceTerminal},
		{config.SurfaceAuto, false, config.SurfaceHeadless},
		{config.SurfaceBrowser, false, config.SurfaceBrowser},
		{config.SurfaceTerminal, false, config.SurfaceTerminal},
		{config.SurfaceHeadless, true, config.SurfaceHeadless},
	}
	for _, tt := range tests {
		if got := resolveSurface(tt.kind, tt.interactive); got != tt.want {
			t.Errorf("resolveSurface(%q, %v) = %q, want %q", tt.kind, tt.interactive, got, tt.want)
		}
	}
}

func TestCheckConfigValid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "worker:\n  command: tablerreur-backend\nreadiness:\n  timeout: 30s\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	bundled := filepath.Join(dir, "tablerreur-backend")
	if err := os.WriteFile(bundled, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}

	res := checkConfig(path, dir)
	if !res.Valid {
		t.Fatalf("expected valid config, got error %q", res.Error)
	}
	if res.Resolved != bundled {
		t.Errorf("Resolved = %q, want %q", res.Resolved, bundled)
	}
	if res.Ports != "[8400, 8500)" || res.Timeout != "30s" {
		t.Errorf("unexpected summary %+v", res)
	}
}

func TestCheckConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("ports:\n  start: 9000\n  end: 9000\n"), 0644); err != nil {
		t.Fatal(err)
	}

	res := checkConfig(path, "")
	if res.Valid {
		t.Fatal("expected invalid config")
	}
	if !strings.Contains(res.Error, "ports") {
		t.Errorf("unexpected error %q", res.Error)
	}
}

func TestCheckConfigWithoutFileUsesBundledWorker(t *testing.T) {
	dir := t.TempDir()
	bundled := filepath.Join(dir, config.DefaultWorkerCommand)
	if err := os.WriteFile(bundled, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}

	res := checkConfig(filepath.Join(dir, "absent.yaml"), dir)
	if !res.Valid {
		t.Fatalf("expected defaults to be valid, got error %q", res.Error)
	}
	if res.Resolved != bundled {
		t.Errorf("Resolved = %q, want %q", res.Resolved, bundled)
	}
}

func TestStatePaths(t *testing.T) {
	cfg := config.Default()
	cfg.StateDir = "/var/lib/launchpad"

	p, err := newStatePaths(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if p.Journal != "/var/lib/launchpad/runs.log" || p.Pages != "/var/lib/launchpad/pages" {
		t.Errorf("unexpected paths %+v", p)
	}
}
