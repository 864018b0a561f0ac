//go:build windows

package hub4com

import (
	"fmt"
	"os/exec"
	"strconv"
	"syscall"
)

// hideWindow keeps hub4com's console window from flashing over the GUI.
func hideWindow(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.HideWindow = true
}

// terminate asks hub4com and anything it spawned to exit. taskkill without
// /F sends a close request the process can honor.
func terminate(cmd *exec.Cmd) error {
	kill := exec.Command("taskkill", "/T", "/PID", strconv.Itoa(cmd.Process.Pid))
	kill.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
	if out, err := kill.CombinedOutput(); err != nil {
		return fmt.Errorf("taskkill pid %d: %v: %s", cmd.Process.Pid, err, out)
	}
	return nil
}
