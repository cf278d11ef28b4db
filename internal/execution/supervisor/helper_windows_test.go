//go:build windows

package supervisor_test

import (
	"os"
	"os/exec"
)

func detach(*exec.Cmd) {}

func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	p.Release()
	return true
}
