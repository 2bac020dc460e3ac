//go:build !unix

package driver

import (
	"os"
	"os/exec"
)

func setProcessGroup(cmd *exec.Cmd) {}

// terminateGroup has no graceful equivalent here; the grace period is skipped.
func terminateGroup(pid int) error {
	return killGroup(pid)
}

func killGroup(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

// KillGroup force-kills a process that this driver did not start.
func KillGroup(pid int) error {
	return killGroup(pid)
}
