package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/lambda-feedback/tether/config"
	"github.com/lambda-feedback/tether/internal/shell"
	"github.com/lambda-feedback/tether/util/conf"
	"github.com/lambda-feedback/tether/util/logging"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	appName  = "tether"
	appUsage = `Supervise a long-running trace worker and feed it commands
over a unix socket.`

	// cliMap maps flags to config keys that do not follow the
	// default naming
	cliMap = map[string]string{
		"auth-key":                 "auth.key",
		"command":                  "runtime.supervisor.cmd",
		"arg":                      "runtime.supervisor.args",
		"env-file":                 "runtime.supervisor.env_file",
		"socket":                   "runtime.supervisor.socket",
		"scratch-dir":              "runtime.supervisor.scratch_dir",
		"startup-timeout":          "runtime.supervisor.startup_timeout",
		"termination-timeout":      "runtime.supervisor.termination_timeout",
		"kill-timeout":             "runtime.supervisor.kill_timeout",
		"retries":                  "runtime.supervisor.retries",
		"exit-expected-at-startup": "runtime.supervisor.exit_expected_at_startup",
		"send-timeout":             "runtime.send.timeout",
	}

	rootApp = &cli.App{
		Name:            appName,
		Usage:           appUsage,
		HideHelpCommand: true,
		Args:            true,
		Flags: []cli.Flag{
			// general flags
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "set the log level. Options: debug, info, warn, error, panic, fatal.",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "set the log format. Options: production, development.",
				EnvVars: []string{"LOG_FORMAT"},
			},
			&cli.PathFlag{
				Name:    "config",
				Usage:   "load the configuration from a json file.",
				EnvVars: []string{"TETHER_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "auth-key",
				Usage:   "require this api key on command requests.",
				EnvVars: []string{"API_KEY"},
			},
			// worker flags
			&cli.StringFlag{
				Name:     "command",
				Usage:    "the worker binary, resolved against PATH if it contains no separator.",
				Aliases:  []string{"c"},
				Category: "worker",
				EnvVars:  []string{"WORKER_COMMAND"},
			},
			&cli.StringSliceFlag{
				Name:     "arg",
				Usage:    "additional arguments to pass to the worker.",
				Aliases:  []string{"a"},
				Category: "worker",
				EnvVars:  []string{"WORKER_ARGS"},
			},
			&cli.PathFlag{
				Name:     "env-file",
				Usage:    "a dotenv file merged into the worker environment.",
				Category: "worker",
				EnvVars:  []string{"WORKER_ENV_FILE"},
			},
			&cli.PathFlag{
				Name:     "socket",
				Usage:    "the unix socket the worker connects to.",
				Aliases:  []string{"s"},
				Category: "worker",
				EnvVars:  []string{"WORKER_SOCKET"},
			},
			&cli.PathFlag{
				Name:     "scratch-dir",
				Usage:    "the working directory of the worker, emptied before every launch.",
				Category: "worker",
				EnvVars:  []string{"WORKER_SCRATCH_DIR"},
			},
			&cli.DurationFlag{
				Name:     "startup-timeout",
				Usage:    "the time the worker is given to check in.",
				Category: "worker",
				EnvVars:  []string{"WORKER_STARTUP_TIMEOUT"},
			},
			&cli.DurationFlag{
				Name:     "termination-timeout",
				Usage:    "the time the worker is given to exit after SIGTERM.",
				Category: "worker",
				EnvVars:  []string{"WORKER_TERMINATION_TIMEOUT"},
			},
			&cli.DurationFlag{
				Name:     "kill-timeout",
				Usage:    "the time the worker is given to exit after SIGKILL.",
				Category: "worker",
				EnvVars:  []string{"WORKER_KILL_TIMEOUT"},
			},
			&cli.IntFlag{
				Name:     "retries",
				Usage:    "the number of relaunches after a failed startup.",
				Aliases:  []string{"r"},
				Category: "worker",
				EnvVars:  []string{"WORKER_RETRIES"},
			},
			&cli.BoolFlag{
				Name:     "exit-expected-at-startup",
				Usage:    "treat an exit before check-in as a normal completion.",
				Category: "worker",
				EnvVars:  []string{"WORKER_EXIT_EXPECTED_AT_STARTUP"},
			},
			&cli.DurationFlag{
				Name:     "send-timeout",
				Usage:    "the time to wait for the result of a command. 0 waits indefinitely.",
				Category: "worker",
				EnvVars:  []string{"WORKER_SEND_TIMEOUT"},
			},
		},
		Before: func(ctx *cli.Context) error {
			// create the logger
			log, err := createLogger(ctx)
			if err != nil {
				return err
			}

			// inject logger into cli context
			ctx.Context = logging.ContextWithLogger(ctx.Context, log)

			// parse config using defaults, file, env and flags
			cfg, err := conf.Parse[config.Config](conf.ParseOptions{
				Cli:       ctx,
				CliMap:    cliMap,
				Defaults:  config.DefaultConfig,
				EnvPrefix: config.EnvPrefix,
				FileName:  ctx.Path("config"),
				Log:       log,
			})
			if err != nil {
				return err
			}

			// inject the config into the cli context
			ctx.Context = conf.ContextWithConfig(ctx.Context, cfg)

			return nil
		},
		After: func(ctx *cli.Context) error {
			log, err := logging.LoggerFromContext(ctx.Context)
			if err != nil {
				return err
			}

			_ = log.Sync()

			return nil
		},
	}
)

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:               "version",
		Usage:              "print the version",
		DisableDefaultText: true,
	}
}

type ExecuteParams struct {
	Version  string
	Compiled time.Time
}

// Execute runs the cli and returns the exit code of the process.
func Execute(params ExecuteParams) int {
	rootApp.Version = params.Version
	rootApp.Compiled = params.Compiled

	return run(context.Background(), os.Args)
}

func run(ctx context.Context, args []string) int {
	err := rootApp.RunContext(ctx, args)

	// if app exited without error, return
	if err == nil {
		return 0
	}

	// if app exited with ExitError, exit with given exit code
	var exitErr *shell.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode
	}

	sentry.CaptureException(err)

	fmt.Fprintf(os.Stderr, "exit error: %s\n", err.Error())

	// otherwise, exit with exit code 1
	return 1
}

func createLogger(ctx *cli.Context) (*zap.Logger, error) {
	level := getLogLevelFromCLI(ctx)
	format := getLogFormatFromCLI(ctx)

	var config zap.Config
	if format == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	config.InitialFields = map[string]any{
		"app": appName,
	}

	config.Level = level

	return config.Build()
}

func getLogFormatFromCLI(ctx *cli.Context) string {
	format := ctx.String("log-format")
	if format != "" {
		return format
	}

	return "production"
}

func getLogLevelFromCLI(ctx *cli.Context) zap.AtomicLevel {
	lvl := ctx.String("log-level")

	if atom, err := zap.ParseAtomicLevel(lvl); err == nil {
		return atom
	}

	return zap.NewAtomicLevelAt(zap.InfoLevel)
}
