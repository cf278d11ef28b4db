package worker

import (
	"os"
	"os/exec"
)

func signalProcess(pid int, _ bool) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}

	return process.Kill()
}

func initCmd(cmd *exec.Cmd) {
	// No-op on Windows.
}
