//go:build unix

package driver

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateGroup sends SIGTERM to the process group led by pid.
func terminateGroup(pid int) error {
	return unix.Kill(-pid, unix.SIGTERM)
}

// killGroup sends SIGKILL to the process group led by pid.
func killGroup(pid int) error {
	return unix.Kill(-pid, unix.SIGKILL)
}

// KillGroup force-kills a process group that this driver did not start,
// such as a worker left behind by a previous launcher run.
func KillGroup(pid int) error {
	return killGroup(pid)
}
