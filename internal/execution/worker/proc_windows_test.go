//go:build windows

package worker_test

import "os"

func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	p.Release()
	return true
}
