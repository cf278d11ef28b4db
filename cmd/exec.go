package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lambda-feedback/tether/config"
	"github.com/lambda-feedback/tether/internal/execution/channel"
	"github.com/lambda-feedback/tether/internal/execution/supervisor"
	"github.com/lambda-feedback/tether/runtime"
	"github.com/lambda-feedback/tether/util/conf"
	"github.com/lambda-feedback/tether/util/logging"
	"github.com/lambda-feedback/tether/util/oneshot"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	execCmdDescription = `The exec command launches the worker, waits for it to check in
and sends it the commands given as arguments, in order. Without
arguments, commands are read from stdin, one per line.

Every result is printed to stdout as a json line. Once all
commands completed, the worker is shut down gracefully.

The command fails if the worker does not start, or if it exits
before a command completed.`
	execCmd = &cli.Command{
		Name:        "exec",
		Usage:       "Send commands to the worker and print the results.",
		ArgsUsage:   "[command...]",
		Description: execCmdDescription,
		Action:      execAction,
	}
)

func execAction(ctx *cli.Context) error {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return err
	}

	cfg, err := conf.GetConfigFromContext[config.Config](ctx.Context)
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sv, err := supervisor.New(supervisor.Params{
		Config: cfg.Runtime.Supervisor,
		Log:    log,
	})
	if err != nil {
		return err
	}

	ready, err := sv.Start(sigCtx, func(status supervisor.ExitStatus) {
		log.Warn("worker exited unexpectedly", zap.Stringer("status", status))
	})
	if err != nil {
		return err
	}

	defer shutdownWorker(sv, log)

	startErr, err := ready.Wait(sigCtx)
	if err == nil {
		err = startErr
	}
	if err != nil {
		return fmt.Errorf("worker did not start: %w", err)
	}

	exec := &commandExec{
		session: sv,
		timeout: cfg.Runtime.Send.Timeout,
		out:     json.NewEncoder(ctx.App.Writer),
	}

	if ctx.Args().Present() {
		return exec.sendAll(sigCtx, ctx.Args().Slice())
	}

	return exec.sendLines(sigCtx, ctx.App.Reader)
}

func shutdownWorker(sv *supervisor.Supervisor, log *zap.Logger) {
	// the supervisor bounds the shutdown by its own timeouts
	status, err := sv.Shutdown().Wait(context.Background())
	if err != nil {
		log.Error("error shutting down worker", zap.Error(err))
		return
	}

	log.Info("worker shut down", zap.Stringer("status", status))
}

// commandSender is the part of a session the exec command uses.
type commandSender interface {
	SendCommand(command string) *oneshot.Future[channel.Result]
}

// commandExec sends commands one at a time and writes every result as
// a json line.
type commandExec struct {
	session commandSender
	timeout time.Duration
	out     *json.Encoder
}

func (e *commandExec) sendAll(ctx context.Context, commands []string) error {
	for _, command := range commands {
		if err := e.send(ctx, command); err != nil {
			return err
		}
	}

	return nil
}

// sendLines sends every non-blank line of r as a command.
func (e *commandExec) sendLines(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		command := strings.TrimSpace(scanner.Text())
		if command == "" {
			continue
		}

		if err := e.send(ctx, command); err != nil {
			return err
		}
	}

	return scanner.Err()
}

func (e *commandExec) send(ctx context.Context, command string) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	result, err := e.session.SendCommand(command).Wait(ctx)
	if errors.Is(err, oneshot.ErrAbandoned) {
		return fmt.Errorf("worker exited before %q completed", command)
	}
	if err != nil {
		return fmt.Errorf("error sending %q: %w", command, err)
	}

	return e.out.Encode(runtime.CommandResponse{
		Command: command,
		Result:  result,
	})
}

func init() {
	rootApp.Commands = append(rootApp.Commands, execCmd)
}
