//go:build !windows

package hub4com

import (
	"os/exec"
	"syscall"
)

func hideWindow(*exec.Cmd) {}

func terminate(cmd *exec.Cmd) error {
	return cmd.Process.Signal(syscall.SIGTERM)
}
