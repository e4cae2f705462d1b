package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/fbz-tec/chxport/internal/logger"
	"github.com/robfig/cron/v3"
)

// Sweeper removes expired entries.
type Sweeper interface {
	Sweep(now time.Time) int
}

// Janitor runs Sweep on a cron schedule ("@every 1m", "*/5 * * * *", ...).
type Janitor struct {
	sched *cron.Cron
}

// NewJanitor schedules sweeps of s. The schedule is validated here.
func NewJanitor(s Sweeper, schedule string) (*Janitor, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if n := s.Sweep(time.Now()); n > 0 {
			logger.Debug("Progress janitor removed %d expired transfer(s)", n)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return &Janitor{sched: c}, nil
}

func (j *Janitor) Start() {
	j.sched.Start()
}

// Stop halts scheduling and waits for a running sweep, up to ctx.
func (j *Janitor) Stop(ctx context.Context) {
	done := j.sched.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
