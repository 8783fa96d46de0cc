package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfmail/shelfmail/internal/logger"
)

type fakeLocker struct {
	held     bool
	err      error
	acquired int
	released int
}

func (f *fakeLocker) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.held {
		return false, nil
	}
	f.acquired++
	f.held = true
	return true, nil
}

func (f *fakeLocker) ReleaseLock(ctx context.Context, key, token string) error {
	f.released++
	f.held = false
	return nil
}

func TestNextRun(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2026, 1, 10, h, m, 0, 0, time.UTC) }

	assert.Equal(t, at(12, 0), NextRun(at(11, 0), "", time.Hour))
	assert.Equal(t, at(2, 0), NextRun(at(1, 0), "02:00", 24*time.Hour))
	assert.Equal(t, at(2, 0).Add(24*time.Hour), NextRun(at(10, 0), "02:00", 24*time.Hour))
	assert.Equal(t, at(2, 0).Add(24*time.Hour), NextRun(at(2, 0), "02:00", 24*time.Hour))
	assert.Equal(t, at(2, 0), NextRun(at(1, 0), "14:00", 6*time.Hour))
	assert.Equal(t, at(14, 0), NextRun(at(13, 30), "02:00", 6*time.Hour))
}

func TestNewTrigger_Validation(t *testing.T) {
	_, err := NewTrigger(Options{}, nil, logger.Nop())
	assert.Error(t, err)

	_, err = NewTrigger(Options{Interval: time.Hour, StartAt: "noon"}, nil, logger.Nop())
	assert.Error(t, err)
}

func TestFire_LockHeldSkips(t *testing.T) {
	locker := &fakeLocker{held: true}
	tr, err := NewTrigger(Options{Interval: time.Hour, LockKey: "k"}, locker, logger.Nop())
	require.NoError(t, err)

	ran := 0
	tr.Fire(context.Background(), func(ctx context.Context) error { ran++; return nil })

	assert.Zero(t, ran)
	assert.Zero(t, locker.released)
}

func TestFire_LockAcquiredAndReleased(t *testing.T) {
	locker := &fakeLocker{}
	tr, err := NewTrigger(Options{Interval: time.Hour, LockKey: "k"}, locker, logger.Nop())
	require.NoError(t, err)

	ran := 0
	tr.Fire(context.Background(), func(ctx context.Context) error {
		ran++
		assert.True(t, locker.held)
		return errors.New("scan failed")
	})

	assert.Equal(t, 1, ran)
	assert.Equal(t, 1, locker.acquired)
	assert.Equal(t, 1, locker.released)
	assert.False(t, locker.held)
}

func TestFire_LockErrorSkips(t *testing.T) {
	tr, err := NewTrigger(Options{Interval: time.Hour}, &fakeLocker{err: errors.New("redis down")}, logger.Nop())
	require.NoError(t, err)

	ran := 0
	tr.Fire(context.Background(), func(ctx context.Context) error { ran++; return nil })
	assert.Zero(t, ran)
}

func TestRun_FiresOnEachTick(t *testing.T) {
	tr, err := NewTrigger(Options{Interval: time.Hour, RunOnStart: true}, nil, logger.Nop())
	require.NoError(t, err)

	ticks := make(chan time.Time)
	tr.after = func(time.Duration) <-chan time.Time { return ticks }

	ctx, cancel := context.WithCancel(context.Background())
	runs := make(chan struct{}, 10)
	done := make(chan error)
	go func() {
		done <- tr.Run(ctx, func(ctx context.Context) error {
			runs <- struct{}{}
			return nil
		})
	}()

	<-runs // run on start
	ticks <- time.Now()
	<-runs
	ticks <- time.Now()
	<-runs

	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, runs)
}
