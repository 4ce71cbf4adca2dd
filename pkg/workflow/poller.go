package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ycslms/lmsflow/pkg/models"
	"github.com/ycslms/lmsflow/pkg/persistence"
)

// Config holds the process-level workflow settings.
type Config struct {
	// TimerInterval is how often the poller looks for due timers.
	TimerInterval time.Duration
}

func DefaultConfig() Config {
	return Config{TimerInterval: 30 * time.Second}
}

// TimerPoller fires timer waits whose due time has passed.
type TimerPoller struct {
	logger   *slog.Logger
	executor *Executor
	interval time.Duration
}

func NewTimerPoller(logger *slog.Logger, executor *Executor, config Config) *TimerPoller {
	interval := config.TimerInterval
	if interval <= 0 {
		interval = DefaultConfig().TimerInterval
	}

	return &TimerPoller{logger: logger, executor: executor, interval: interval}
}

// Run polls until ctx is cancelled.
func (p *TimerPoller) Run(ctx context.Context) error {
	p.logger.InfoContext(ctx, "Starting timer poller", "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "Stopping timer poller")

			return nil
		case <-ticker.C:
			if _, err := p.Poll(ctx); err != nil {
				p.logger.ErrorContext(ctx, "Timer poll failed", "error", err)
			}
		}
	}
}

// Poll fires every due timer once and returns how many fired.
func (p *TimerPoller) Poll(ctx context.Context) (int, error) {
	now := p.executor.now()

	instances, err := p.executor.store.Instances(ctx, persistence.InstanceFilter{})
	if err != nil {
		return 0, err
	}

	fired := 0

	for _, inst := range instances {
		if inst.Status.Terminal() {
			continue
		}

		for key, wait := range inst.Waits {
			if wait.Kind != models.WaitTimer || wait.DueAt == nil || wait.DueAt.After(now) {
				continue
			}

			err := p.executor.FireTimer(ctx, inst.ID, key)
			if errors.Is(err, models.ErrInvalidState) {
				// Fired or cancelled since the scan.
				continue
			}

			if err != nil {
				p.logger.ErrorContext(ctx, "Failed to fire timer", "instance_id", inst.ID, "wait", key, "error", err)

				continue
			}

			fired++
		}
	}

	return fired, nil
}
