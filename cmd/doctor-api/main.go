// Package main provides the workflow health API server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/creditflow/workflowdoctor/pkg/cmd"
	"github.com/creditflow/workflowdoctor/pkg/log"
	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"
)

const (
	serviceName = "workflowdoctor-api"
	defaultPort = 9091
)

func main() {
	_ = godotenv.Load()

	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "doctor-api",
		Usage:                 "Serve workflow health analysis and repair over HTTP",
		EnableShellCompletion: true,
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
		}, cmd.Flags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))
			logger = log.WithModule("api")

			logger.InfoContext(ctx, "Initializing workflow doctor API")

			runtime, err := cmd.NewRuntime(ctx, logger, cmd.OptionsFromCommand(command, serviceName))
			if err != nil {
				return err
			}

			defer runtime.Close(context.WithoutCancel(ctx))

			api := NewAPI(logger, runtime.Service, runtime.Metrics)

			return api.Start(ctx, command.Int("port"))
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := command.Run(ctx, os.Args); err != nil {
		logger.Error("API server failed", "error", err)
		os.Exit(1)
	}
}
