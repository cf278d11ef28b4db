package worker

import (
	"errors"
	"fmt"
	"io"
)

var ErrMissingCommand = errors.New("missing command")

type StartConfig struct {
	// Cmd is the path or name of the binary to execute
	Cmd string `conf:"cmd"`

	// Cwd is the working directory in which
	// the binary should be executed
	Cwd string `conf:"cwd"`

	// Args is the list of arguments to pass to the command
	Args []string `conf:"args"`

	// Env is a map of environment variables layered
	// onto the inherited environment of the supervisor
	Env map[string]string `conf:"env"`
}

// Stdio receives the output of the worker process. Nil writers
// discard the corresponding stream.
type Stdio struct {
	Stdout io.Writer
	Stderr io.Writer
}

type ExitEvent struct {
	// Code is the exit code of the process
	Code *int

	// Signal is the signal that caused the process to exit
	Signal *int
}

// ExitCode returns the exit code of the process, or -1 if the
// process was terminated by a signal.
func (e ExitEvent) ExitCode() int {
	if e.Code != nil {
		return *e.Code
	}

	return -1
}

func (e ExitEvent) String() string {
	if e.Signal != nil {
		return fmt.Sprintf("signal %d", *e.Signal)
	}

	return fmt.Sprintf("exit code %d", e.ExitCode())
}
