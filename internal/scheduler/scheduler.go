// Package scheduler runs a job on a fixed cadence.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shelfmail/shelfmail/internal/logger"
	"github.com/shelfmail/shelfmail/internal/metrics"
)

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// Scheduler invokes a job repeatedly until ctx is cancelled.
type Scheduler interface {
	Run(ctx context.Context, job Job) error
}

// Locker is a cross-process mutex, used so replicas never run the job at once.
type Locker interface {
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// Options configures a Trigger.
type Options struct {
	Interval   time.Duration
	StartAt    string // "HH:MM" UTC; empty starts one interval from now
	RunOnStart bool
	LockKey    string
	LockTTL    time.Duration
}

// Trigger is a Scheduler firing at a fixed interval, optionally aligned to a
// daily wall-clock time. Runs never overlap within a process; with a Locker
// they never overlap across processes either.
type Trigger struct {
	opts   Options
	locker Locker
	now    func() time.Time
	after  func(time.Duration) <-chan time.Time
	log    *logger.Logger
}

var _ Scheduler = (*Trigger)(nil)

// NewTrigger creates a Trigger. locker may be nil.
func NewTrigger(opts Options, locker Locker, log *logger.Logger) (*Trigger, error) {
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("scheduler: interval must be positive")
	}
	if opts.StartAt != "" {
		if _, err := time.Parse("15:04", opts.StartAt); err != nil {
			return nil, fmt.Errorf("scheduler: invalid start time %q: %w", opts.StartAt, err)
		}
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = time.Hour
	}
	return &Trigger{
		opts:   opts,
		locker: locker,
		now:    time.Now,
		after:  time.After,
		log:    log.WithComponent("scheduler"),
	}, nil
}

// Run blocks, firing job on schedule until ctx is done.
func (t *Trigger) Run(ctx context.Context, job Job) error {
	if t.opts.RunOnStart {
		t.Fire(ctx, job)
	}

	for {
		now := t.now()
		next := NextRun(now, t.opts.StartAt, t.opts.Interval)
		t.log.Info().Time("next_run", next).Msg("next scan scheduled")

		select {
		case <-ctx.Done():
			return nil
		case <-t.after(next.Sub(now)):
			t.Fire(ctx, job)
		}
	}
}

// Fire runs job once, guarded by the lock when one is configured. Job errors
// are logged, never returned, so the schedule keeps going.
func (t *Trigger) Fire(ctx context.Context, job Job) {
	if t.locker != nil {
		token := uuid.NewString()
		ok, err := t.locker.AcquireLock(ctx, t.opts.LockKey, token, t.opts.LockTTL)
		if err != nil {
			t.log.Error().Err(err).Msg("failed to acquire scan lock, skipping run")
			metrics.IncScanRun("error")
			return
		}
		if !ok {
			t.log.Info().Str("lock_key", t.opts.LockKey).Msg("another scan holds the lock, skipping run")
			metrics.IncScanRun("locked")
			return
		}
		defer func() {
			// Release with a fresh context so shutdown does not strand the lock.
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := t.locker.ReleaseLock(rctx, t.opts.LockKey, token); err != nil {
				t.log.Warn().Err(err).Msg("failed to release scan lock")
			}
		}()
	}

	if err := job(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			t.log.Error().Err(err).Msg("scheduled job failed")
		}
		metrics.IncScanRun("error")
		return
	}
	metrics.IncScanRun("ok")
}

// NextRun returns the next fire time after now. Without startAt it is now +
// interval; with startAt it is the first startAt + k*interval (UTC) after now.
func NextRun(now time.Time, startAt string, interval time.Duration) time.Time {
	now = now.UTC()
	if startAt == "" {
		return now.Add(interval)
	}

	hm, err := time.Parse("15:04", startAt)
	if err != nil {
		return now.Add(interval)
	}
	anchor := time.Date(now.Year(), now.Month(), now.Day(), hm.Hour(), hm.Minute(), 0, 0, time.UTC)
	if anchor.After(now) {
		// Step back so intervals shorter than a day still fire before today's anchor.
		steps := (anchor.Sub(now) - 1) / interval
		return anchor.Add(-steps * interval)
	}
	steps := now.Sub(anchor)/interval + 1
	return anchor.Add(steps * interval)
}
