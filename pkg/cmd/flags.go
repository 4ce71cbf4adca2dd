package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/ycslms/lmsflow/pkg/channels/kafka"
	"github.com/ycslms/lmsflow/pkg/otelhelper"
	"github.com/ycslms/lmsflow/pkg/workflow"
)

// CommonFlags are shared by every lmsflow process.
func CommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Store URL (memory://, file://<dir>, postgres://..., redis://...)",
			Value:   "memory://",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (gochannel, kafka)",
			Value:   "gochannel",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Value:   "localhost:9092",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "plugins-path",
			Usage:   "Path to the directory containing operation plugins",
			Value:   "./plugins",
			Sources: cli.EnvVars("PLUGINS_PATH"),
		},
		&cli.DurationFlag{
			Name:    "timer-interval",
			Usage:   "How often due workflow timers are fired",
			Value:   workflow.DefaultConfig().TimerInterval,
			Sources: cli.EnvVars("TIMER_INTERVAL"),
		},
		&cli.BoolFlag{
			Name:    "otel",
			Usage:   "Export traces over OTLP/HTTP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
	}
}

// Open builds the stack described by the common flags of command.
func Open(ctx context.Context, command *cli.Command, serviceName string, logger *slog.Logger) (*Stack, error) {
	var shutdown otelhelper.ShutdownFunc

	if command.Bool("otel") {
		_, fn, err := otelhelper.NewTracer(ctx, serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}

		shutdown = fn
	}

	store, err := NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return nil, err
	}

	bus, err := NewEventBus(command.String("event-bus"), serviceName, kafka.ParseBrokers(command.String("kafka-brokers")), logger)
	if err != nil {
		_ = store.Close(ctx)

		return nil, err
	}

	stack, err := NewStack(ctx, store, bus, command.String("plugins-path"))
	if err != nil {
		_ = bus.Close()
		_ = store.Close(ctx)

		return nil, err
	}

	stack.shutdown = shutdown

	return stack, nil
}

// TimerPoller returns a poller over the stack's executor using the timer-interval flag.
func (s *Stack) TimerPoller(command *cli.Command, logger *slog.Logger) *workflow.TimerPoller {
	return workflow.NewTimerPoller(logger, s.Executor, workflow.Config{TimerInterval: command.Duration("timer-interval")})
}
