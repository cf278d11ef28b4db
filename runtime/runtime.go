package runtime

import (
	"context"
	"time"

	"github.com/lambda-feedback/tether/internal/execution/dispatcher"
	"github.com/lambda-feedback/tether/internal/execution/locate"
	"github.com/lambda-feedback/tether/internal/execution/supervisor"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Runtime is the interface for a runtime.
type Runtime interface {
	Handle(context.Context, CommandRequest) (CommandResponse, error)

	Status() Status

	Start(context.Context) error

	Shutdown(context.Context) error
}

type SendConfig struct {
	// Timeout bounds the wait for a command result. Zero waits as
	// long as the request context allows.
	Timeout time.Duration `conf:"timeout"`
}

// Config is the runtime-specific type for the config.
type Config struct {
	// Supervisor is the config of the worker session.
	Supervisor supervisor.Config `conf:"supervisor"`

	// Send is the config for sending commands.
	Send SendConfig `conf:"send"`
}

// CommandRuntime is a runtime that forwards commands to a supervised
// worker session.
type CommandRuntime struct {
	dispatcher *dispatcher.Dispatcher

	send SendConfig

	log *zap.Logger
}

var _ Runtime = (*CommandRuntime)(nil)

// RuntimeParams defines the dependencies for the runtime.
type RuntimeParams struct {
	fx.In

	// Context is the context to use for the underlying runtime
	Context context.Context

	// Config is the config for the underlying runtime
	Config Config

	// Locator resolves the worker binary, optional
	Locator locate.Locator `optional:"true"`

	// SessionFactory creates worker sessions, optional
	SessionFactory dispatcher.SessionFactory `optional:"true"`

	// Log is the logger to use for the runtime
	Log *zap.Logger
}

// NewRuntime creates a new runtime.
func NewRuntime(params RuntimeParams) (*CommandRuntime, error) {
	d, err := dispatcher.New(dispatcher.Params{
		Context: params.Context,
		Config: dispatcher.Config{
			Supervisor: params.Config.Supervisor,
		},
		Locator:        params.Locator,
		SessionFactory: params.SessionFactory,
		Log:            params.Log,
	})
	if err != nil {
		return nil, err
	}

	return &CommandRuntime{
		dispatcher: d,
		send:       params.Config.Send,
		log:        params.Log.Named("runtime"),
	}, nil
}

// NewLifecycleRuntime creates a runtime that is started and shut down
// with the fx app.
func NewLifecycleRuntime(params RuntimeParams, lc fx.Lifecycle) (Runtime, error) {
	r, err := NewRuntime(params)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return r.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return r.Shutdown(ctx)
		},
	})

	return r, nil
}

func (r *CommandRuntime) Start(ctx context.Context) error {
	return r.dispatcher.Start(ctx)
}

func (r *CommandRuntime) Handle(
	ctx context.Context,
	request CommandRequest,
) (CommandResponse, error) {
	if r.send.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.send.Timeout)
		defer cancel()
	}

	result, err := r.dispatcher.Send(ctx, request.Command)
	if err != nil {
		r.log.Debug("command failed",
			zap.String("command", request.Command),
			zap.Error(err),
		)
		return CommandResponse{}, err
	}

	return CommandResponse{
		Command: request.Command,
		Result:  result,
	}, nil
}

func (r *CommandRuntime) Status() Status {
	status := r.dispatcher.Status()

	return Status{
		State:        status.State,
		StateName:    status.State.String(),
		SessionID:    status.SessionID,
		ArtifactPath: status.ArtifactPath,
	}
}

func (r *CommandRuntime) Shutdown(ctx context.Context) error {
	return r.dispatcher.Shutdown(ctx)
}
