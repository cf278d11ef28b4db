package cmd

import (
	"github.com/lambda-feedback/tether/app"
	"github.com/lambda-feedback/tether/app/lambda"
	"github.com/lambda-feedback/tether/config"
	"github.com/lambda-feedback/tether/util/conf"
	"github.com/lambda-feedback/tether/util/logging"
	"github.com/urfave/cli/v2"
)

var (
	lambdaCmdDescription = `The lambda command launches the worker and starts an AWS Lambda
runtime interface client. Incoming proxy events are translated
into requests against the /command and /health routes, so the
worker can sit behind API Gateway or an ALB.

The command blocks indefinitely, processing incoming events.`
	lambdaCmd = &cli.Command{
		Name:        "lambda",
		Usage:       "Run the AWS Lambda handler",
		Description: lambdaCmdDescription,
		Action:      lambdaAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "lambda-proxy-source",
				Usage:    "the source of the AWS Lambda event. Options: API_GW_V1, API_GW_V2, ALB.",
				Value:    "API_GW_V2",
				EnvVars:  []string{"LAMBDA_PROXY_SOURCE"},
				Category: "lambda",
			},
		},
	}
)

func lambdaAction(ctx *cli.Context) error {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return err
	}

	cfg, err := conf.Parse[lambda.Config](conf.ParseOptions{
		Log:       log,
		Cli:       ctx,
		EnvPrefix: config.EnvPrefix,
		Defaults: conf.DefaultConfig{
			"lambda_proxy_source": lambda.ProxySourceApiGatewayV2.String(),
		},
	})
	if err != nil {
		return err
	}

	app, err := app.New(ctx)
	if err != nil {
		return err
	}

	log.Info("starting AWS Lambda handler")

	return app.Run(ctx.Context, lambda.Module(cfg))
}

func init() {
	rootApp.Commands = append(rootApp.Commands, lambdaCmd)
}
