package cronjob

import (
	"fmt"
	"time"

	"github.com/bytedance/gopkg/lang/fastrand"
	"github.com/robfig/cron/v3"
)

// cronParser is a standard 5-field cron expression parser (minute hour dom month dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

func (s Schedule) Validate() error {
	switch s.Kind {
	case ScheduleAt:
		if _, err := time.Parse(time.RFC3339, s.At); err != nil {
			return fmt.Errorf("parse at timestamp %q: %w", s.At, err)
		}
	case ScheduleEvery:
		if s.EveryMs <= 0 {
			return fmt.Errorf("everyMs must be positive, got %d", s.EveryMs)
		}
	case ScheduleCron:
		if _, err := s.cronSchedule(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown schedule kind: %q", s.Kind)
	}
	return nil
}

func (s Schedule) cronSchedule() (cron.Schedule, error) {
	expr := s.Expr
	if s.Tz != "" {
		if _, err := time.LoadLocation(s.Tz); err != nil {
			return nil, fmt.Errorf("load tz %q: %w", s.Tz, err)
		}
		expr = "CRON_TZ=" + s.Tz + " " + expr
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", s.Expr, err)
	}
	return sched, nil
}

// NextRun computes the next execution time strictly after from. A zero
// time means the schedule will not fire again.
func (s Schedule) NextRun(from time.Time) (time.Time, error) {
	switch s.Kind {
	case ScheduleEvery:
		if s.EveryMs <= 0 {
			return time.Time{}, fmt.Errorf("everyMs must be positive, got %d", s.EveryMs)
		}
		if s.AnchorMs <= 0 {
			return from.Add(time.Duration(s.EveryMs) * time.Millisecond), nil
		}
		// align to anchor + k*every
		nowMs := from.UnixMilli()
		if nowMs < s.AnchorMs {
			return time.UnixMilli(s.AnchorMs), nil
		}
		k := (nowMs-s.AnchorMs)/s.EveryMs + 1
		return time.UnixMilli(s.AnchorMs + k*s.EveryMs), nil

	case ScheduleCron:
		sched, err := s.cronSchedule()
		if err != nil {
			return time.Time{}, err
		}
		return sched.Next(from), nil

	case ScheduleAt:
		t, err := time.Parse(time.RFC3339, s.At)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse at timestamp %q: %w", s.At, err)
		}
		if t.After(from) {
			return t, nil
		}
		return time.Time{}, nil

	default:
		return time.Time{}, fmt.Errorf("unknown schedule kind: %q", s.Kind)
	}
}

// backoffSteps defines exponential retry delays on consecutive failures.
var backoffSteps = []time.Duration{
	30 * time.Second,
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	60 * time.Minute, // cap
}

// backoffDelay returns the retry delay for the given consecutive error count.
func backoffDelay(consecutiveErr int) time.Duration {
	idx := consecutiveErr - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(backoffSteps) {
		idx = len(backoffSteps) - 1
	}
	return backoffSteps[idx]
}

// withJitter spreads d by up to a tenth so failing jobs do not retry in lockstep.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	return d + time.Duration(fastrand.Int63n(int64(d/10)+1))
}
