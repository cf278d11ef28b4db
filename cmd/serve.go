package cmd

import (
	"github.com/lambda-feedback/tether/app"
	"github.com/lambda-feedback/tether/app/standalone"
	"github.com/lambda-feedback/tether/config"
	"github.com/lambda-feedback/tether/util/conf"
	"github.com/lambda-feedback/tether/util/logging"
	"github.com/urfave/cli/v2"
)

var (
	serveCmdDescription = `The serve command launches the worker, waits for it to check
in and starts a http server. Commands posted to /command are
forwarded to the worker, /health reports the session state.

If the session ends, the next command launches a fresh worker.
The command blocks until it receives SIGINT or SIGTERM, then
shuts the worker down gracefully.`
	serveCmd = &cli.Command{
		Name:        "serve",
		Usage:       "Start a http server forwarding commands to the worker.",
		Description: serveCmdDescription,
		Action:      serveAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "host",
				Aliases:  []string{"H"},
				Usage:    "The host to listen on.",
				Value:    "localhost",
				Category: "http",
				EnvVars:  []string{"HTTP_HOST"},
			},
			&cli.IntFlag{
				Name:     "port",
				Aliases:  []string{"P"},
				Usage:    "The port to listen on.",
				Value:    8080,
				Category: "http",
				EnvVars:  []string{"HTTP_PORT"},
			},
			&cli.BoolFlag{
				Name:     "h2c",
				Usage:    "Enable HTTP/2 cleartext upgrade.",
				Value:    false,
				Category: "http",
				EnvVars:  []string{"HTTP_H2C"},
			},
		},
	}
)

func serveAction(ctx *cli.Context) error {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return err
	}

	app, err := app.New(ctx)
	if err != nil {
		return err
	}

	cfg, err := conf.Parse[standalone.Config](conf.ParseOptions{
		Log:       log,
		Cli:       ctx,
		EnvPrefix: config.EnvPrefix,
		Defaults: conf.DefaultConfig{
			"host": "localhost",
			"port": 8080,
		},
	})
	if err != nil {
		return err
	}

	return app.Run(ctx.Context, standalone.Module(cfg))
}

func init() {
	rootApp.Commands = append(rootApp.Commands, serveCmd)
}
