package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var errEmptyDelay = errors.New("timer needs a delay")

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// delay computes when a timer started at a given time becomes due.
type delay interface {
	dueAt(from time.Time) time.Time
}

type fixedDelay time.Duration

func (d fixedDelay) dueAt(from time.Time) time.Time {
	return from.Add(time.Duration(d))
}

type cronDelay struct {
	schedule cron.Schedule
}

func (d cronDelay) dueAt(from time.Time) time.Time {
	return d.schedule.Next(from)
}

// parseDelay accepts a Go duration ("36h", "90m") or a cron expression
// ("0 9 * * MON", "@daily"). Cron delays fire at the next matching time.
func parseDelay(spec string) (delay, error) {
	if spec == "" {
		return nil, errEmptyDelay
	}

	if d, err := time.ParseDuration(spec); err == nil {
		if d < 0 {
			return nil, fmt.Errorf("negative timer delay %q", spec)
		}

		return fixedDelay(d), nil
	}

	schedule, err := cronParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid timer delay %q: %w", spec, err)
	}

	return cronDelay{schedule: schedule}, nil
}
