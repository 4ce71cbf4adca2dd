// Package main provides the lmsflow worker, which runs workflow commands from the event bus.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/ycslms/lmsflow/pkg/cmd"
	"github.com/ycslms/lmsflow/pkg/log"
)

func main() {
	command := &cli.Command{
		Name:                  "lmsflow-worker",
		EnableShellCompletion: true,
		Usage:                 "Start a worker executing workflow commands and timers",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
		}, cmd.CommonFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("lmsflow-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing lmsflow worker")

			stack, err := cmd.Open(ctx, command, "lmsflow-worker", logger)
			if err != nil {
				return err
			}
			defer stack.Close(ctx, logger)

			worker := NewWorker(
				logger,
				stack.Executor,
				stack.EventBus,
				stack.TimerPoller(command, log.WithModule("timer_poller")),
			)

			return worker.Start(ctx)
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := command.Run(ctx, os.Args); err != nil {
		log.WithModule("lmsflow-worker").Error("lmsflow worker exited", "error", err)
		stop()
		os.Exit(1)
	}
}
