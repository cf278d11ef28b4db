package app

import (
	"time"

	"github.com/lambda-feedback/tether/config"
	"github.com/lambda-feedback/tether/internal/execution/supervisor"
	"github.com/lambda-feedback/tether/internal/shell"
	"github.com/lambda-feedback/tether/runtime"
	"github.com/lambda-feedback/tether/util/conf"
	"github.com/lambda-feedback/tether/util/logging"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
)

// lifecycleMargin is added to the computed start and stop timeouts.
const lifecycleMargin = 15 * time.Second

func New(ctx *cli.Context) (*shell.Shell, error) {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return nil, err
	}

	config, err := conf.GetConfigFromContext[config.Config](ctx.Context)
	if err != nil {
		return nil, err
	}

	sharedModule := fx.Module(
		"shared",
		// provide global config
		fx.Supply(config),
		// provide runtime and its handler
		runtime.Module(config.Runtime),
	)

	sv := config.Runtime.Supervisor

	return shell.New(
		log,
		// the runtime blocks start until the worker checked in
		fx.StartTimeout(startTimeout(sv)),
		fx.StopTimeout(stopTimeout(sv)),
		sharedModule,
	), nil
}

// startTimeout covers every launch attempt, including killing the
// worker after a failed one.
func startTimeout(config supervisor.Config) time.Duration {
	attempts := time.Duration(max(config.Retries, 0) + 1)
	perAttempt := durationOr(config.StartupTimeout, supervisor.DefaultStartupTimeout) +
		durationOr(config.KillTimeout, supervisor.DefaultKillTimeout)

	return attempts*perAttempt + lifecycleMargin
}

func stopTimeout(config supervisor.Config) time.Duration {
	return durationOr(config.TerminationTimeout, supervisor.DefaultTerminationTimeout) +
		durationOr(config.KillTimeout, supervisor.DefaultKillTimeout) +
		lifecycleMargin
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}

	return d
}
