// Package main provides the lmsflow API server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/ycslms/lmsflow/pkg/cmd"
	"github.com/ycslms/lmsflow/pkg/log"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "lmsflow-api",
		Usage:                 "Serve the rule engine and workflow executor over HTTP",
		EnableShellCompletion: true,
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
		}, cmd.CommonFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing lmsflow API")

			stack, err := cmd.Open(ctx, command, "lmsflow-api", logger)
			if err != nil {
				return err
			}
			defer stack.Close(ctx, logger)

			poller := stack.TimerPoller(command, log.WithModule("timer_poller"))

			go func() {
				if err := poller.Run(ctx); err != nil {
					logger.ErrorContext(ctx, "Timer poller stopped", "error", err)
				}
			}()

			api := NewAPI(logger, stack)

			err = api.Start(ctx, command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return err
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := command.Run(ctx, os.Args); err != nil {
		logger.Error("lmsflow API exited", "error", err)
		stop()
		os.Exit(1)
	}
}
