package driver

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestNativeStartAndWait(t *testing.T) {
	d := NewNative(NativeConfig{
		Command: "echo",
		Args:    []string{"hello"},
	})

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	info := d.Info()
	if info.PID <= 0 {
		t.Errorf("expected positive PID, got %d", info.PID)
	}

	exitCode, err := d.Wait()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}

	info = d.Info()
	// An exit nobody asked for is recorded as failed
	if info.State != StateFailed {
		t.Errorf("expected state failed (unrequested exit), got %v", info.State)
	}
	if !info.Exited {
		t.Error("expected Exited after Wait")
	}
}

func TestNativeStdoutCapture(t *testing.T) {
	d := NewNative(NativeConfig{
		Command: "echo",
		Args:    []string{"hello", "world"},
	})

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	d.Wait()

	lines := d.LogLines(10)
	found := false
	for _, line := range lines {
		if strings.Contains(line, "hello world") {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("expected 'hello world' in log lines, got %v", lines)
	}
}

func TestNativeStopKillsImmediately(t *testing.T) {
	d := NewNative(NativeConfig{
		Command: "sleep",
		Args:    []string{"60"},
	})

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	if info := d.Info(); info.State != StateRunning {
		t.Fatalf("expected running, got %v", info.State)
	}

	start := time.Now()
	if err := d.Stop(ctx, 0); err != nil {
		t.Fatalf("failed to stop: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("zero-grace stop took %s", elapsed)
	}

	info := d.Info()
	if info.State != StateStopped {
		t.Errorf("expected stopped, got %v", info.State)
	}
}

func TestNativeStopGraceful(t *testing.T) {
	d := NewNative(NativeConfig{
		Command: "sleep",
		Args:    []string{"60"},
	})

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	// sleep exits on SIGTERM, well inside the grace period
	if err := d.Stop(ctx, 5*time.Second); err != nil {
		t.Fatalf("failed to stop: %v", err)
	}

	if info := d.Info(); info.State != StateStopped {
		t.Errorf("expected stopped, got %v", info.State)
	}
}

func TestNativeStopKillsProcessGroup(t *testing.T) {
	// The shell's child sleep must die with it; otherwise Done would wait
	// on the inherited output pipe.
	d := NewNative(NativeConfig{
		Command: "sh",
		Args:    []string{"-c", "sleep 60 & wait"},
	})

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	if err := d.Stop(ctx, 0); err != nil {
		t.Fatalf("failed to stop: %v", err)
	}

	select {
	case <-d.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("process group still alive after Stop")
	}
}

func TestNativeFailedProcess(t *testing.T) {
	d := NewNative(NativeConfig{
		Command: "false", // exits with code 1
	})

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	exitCode, _ := d.Wait()
	if exitCode != 1 {
		t.Errorf("expected exit code 1, got %d", exitCode)
	}

	info := d.Info()
	if info.State != StateFailed {
		t.Errorf("expected failed, got %v", info.State)
	}
	if info.ExitCode != 1 {
		t.Errorf("expected recorded exit code 1, got %d", info.ExitCode)
	}
}

func TestNativeMissingBinary(t *testing.T) {
	d := NewNative(NativeConfig{
		Command: "/nonexistent/launchpad-worker",
	})

	if err := d.Start(context.Background()); err == nil {
		t.Fatal("expected error starting a missing binary")
	}
	if info := d.Info(); info.State != StateFailed {
		t.Errorf("expected failed, got %v", info.State)
	}
	if d.Done() != nil {
		t.Error("expected nil Done channel when start failed")
	}
}

func TestNativeEnvironment(t *testing.T) {
	// Use printenv which takes a single argument; no shell quoting issues
	d := NewNative(NativeConfig{
		Command: "printenv",
		Args:    []string{"TEST_VAR"},
		Env:     []string{"TEST_VAR=launchpad_test_value"},
	})

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	d.Wait()

	lines := d.LogLines(10)
	if len(lines) == 0 {
		t.Fatal("expected log output")
	}
	output := strings.TrimSpace(lines[0])

	if output != "launchpad_test_value" {
		t.Errorf("expected 'launchpad_test_value', got %q", output)
	}
}

func TestNativeDoubleStart(t *testing.T) {
	d := NewNative(NativeConfig{
		Command: "sleep",
		Args:    []string{"60"},
	})

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	defer d.Stop(ctx, 0)

	if err := d.Start(ctx); err == nil {
		t.Error("expected error on double start")
	}
}

func TestNativeStopAlreadyStopped(t *testing.T) {
	d := NewNative(NativeConfig{
		Command: "true",
	})

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	d.Wait()

	// Stopping an already-exited process should not error
	if err := d.Stop(context.Background(), 2*time.Second); err != nil {
		t.Errorf("unexpected error stopping exited process: %v", err)
	}
}

func TestNativeWaitNotStarted(t *testing.T) {
	d := NewNative(NativeConfig{
		Command: "echo",
	})

	_, err := d.Wait()
	if err == nil {
		t.Error("expected error waiting on unstarted process")
	}
}
