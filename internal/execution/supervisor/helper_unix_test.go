//go:build unix

package supervisor_test

import (
	"errors"
	"os/exec"
	"syscall"
)

// detach starts cmd in its own session, out of reach of signals sent
// to the process group of its parent.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
