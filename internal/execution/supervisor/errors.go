package supervisor

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyLaunched  = errors.New("worker already launched")
	ErrSpawn            = errors.New("failed to spawn worker")
	ErrNeverCheckedIn   = errors.New("worker never checked in")
	ErrCrashedAtStartup = errors.New("worker crashed at startup")
	ErrSessionClosed    = errors.New("session closed")
)

// CrashError describes a worker that exited before it checked in.
type CrashError struct {
	Status ExitStatus
}

func (e *CrashError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCrashedAtStartup, e.Status)
}

func (e *CrashError) Unwrap() error {
	return ErrCrashedAtStartup
}
