//go:build windows

package com0com

import (
	"os/exec"
	"syscall"
)

// hideWindow keeps setupc's console window from flashing over the GUI.
func hideWindow(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.HideWindow = true
}
