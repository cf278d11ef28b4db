package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// waitDelay bounds how long Wait keeps copying output after the
// process exited, in case a grandchild inherited the pipes.
const waitDelay = 2 * time.Second

// Process is a running worker process. The process is started in its
// own process group, signals are delivered to the whole group.
type Process struct {
	pid  int
	done chan struct{}
	exit ExitEvent

	log *zap.Logger
}

// Start spawns the worker process described by config. The process
// inherits the environment of the current process, overlaid with
// config.Env. Output is copied to stdio until the process exits.
func Start(config StartConfig, stdio Stdio, log *zap.Logger) (*Process, error) {
	if config.Cmd == "" {
		return nil, ErrMissingCommand
	}

	cmd := exec.Command(config.Cmd, config.Args...)
	cmd.Env = BuildEnv(os.Environ(), config.Env)
	cmd.Dir = config.Cwd
	cmd.Stdout = stdio.Stdout
	cmd.Stderr = stdio.Stderr
	cmd.WaitDelay = waitDelay

	initCmd(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start process: %w", err)
	}

	process := &Process{
		pid:  cmd.Process.Pid,
		done: make(chan struct{}),
		log:  log.Named("proc").With(zap.Int("pid", cmd.Process.Pid)),
	}

	go func() {
		// block until the process exits and its output is drained
		err := cmd.Wait()

		process.exit = getExitEvent(err)

		process.log.Debug("process exited", zap.Stringer("status", process.exit))

		close(process.done)
	}()

	return process, nil
}

func (p *Process) Pid() int {
	return p.pid
}

// Done returns a channel that is closed once the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Exited reports whether the process has exited.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// ExitEvent returns the exit status. It is only meaningful once Done
// is closed.
func (p *Process) ExitEvent() ExitEvent {
	<-p.done
	return p.exit
}

// Wait blocks until the process exits or ctx is done.
func (p *Process) Wait(ctx context.Context) (ExitEvent, error) {
	select {
	case <-ctx.Done():
		return ExitEvent{}, ctx.Err()
	case <-p.done:
		return p.exit, nil
	}
}

// Terminate sends SIGTERM to the process group. It returns immediately,
// without waiting for the process to stop.
func (p *Process) Terminate() error {
	return p.signal(false)
}

// Kill sends SIGKILL to the process group. It returns immediately,
// without waiting for the process to stop.
func (p *Process) Kill() error {
	return p.signal(true)
}

func (p *Process) signal(force bool) error {
	// signalling should report success if the process terminated
	// by the time the request arrives
	if p.Exited() {
		p.log.Debug("process already terminated")
		return nil
	}

	log := p.log.With(zap.Bool("force", force))
	log.Debug("sending signal")

	if err := signalProcess(p.pid, force); err != nil {
		if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
			return nil
		}

		log.Error("signal failed", zap.Error(err))
		return err
	}

	return nil
}

// MARK: - Helpers

func getExitEvent(err error) ExitEvent {
	var cell int
	var exitStatus *int
	var signo *int

	if err == nil {
		// the process exited successfully, set the exit code to 0
		exitStatus = &cell
	} else if exitError, ok := err.(*exec.ExitError); ok {
		// the process exited with an error
		if status, ok := exitError.Sys().(syscall.WaitStatus); ok {
			if code := status.ExitStatus(); code >= 0 {
				// the process exited with an exit code
				cell = code
				exitStatus = &cell
			} else {
				// the process was terminated by a signal
				cell = int(status.Signal())
				signo = &cell
			}
		}
	}

	if signo == nil && exitStatus == nil {
		// could not determine the exit status or signal,
		// set exit status to 1
		cell = 1
		exitStatus = &cell
	}

	return ExitEvent{
		Code:   exitStatus,
		Signal: signo,
	}
}
