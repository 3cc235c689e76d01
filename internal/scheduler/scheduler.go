// Package scheduler runs an iteration at a fixed interval, measured from the
// start of one iteration to the start of the next.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	logx "unitwatch/pkg/logx"
)

var ErrInvalidInterval = errors.New("scheduler: interval must be positive")

// Loop runs iterations one at a time. The zero value of every field except
// Interval is usable.
type Loop struct {
	Interval time.Duration
	Log      logx.Logger
	// Observe is called after every iteration with its duration and result.
	Observe func(elapsed time.Duration, err error)
	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration)
	// Now defaults to time.Now.
	Now func() time.Time
}

// Run is a shorthand for a Loop with only an interval.
func Run(ctx context.Context, interval time.Duration, iteration func(ctx context.Context) error, shouldStop func() bool) error {
	l := &Loop{Interval: interval}
	return l.Run(ctx, iteration, shouldStop)
}

// Run calls iteration until shouldStop reports true or ctx is done, both
// checked only between iterations. When an iteration takes less than the
// interval the loop sleeps for the remainder; otherwise the next iteration
// starts immediately.
//
// An iteration error ends the loop and is returned. A stop request returns nil.
func (l *Loop) Run(ctx context.Context, iteration func(ctx context.Context) error, shouldStop func() bool) error {
	if l.Interval <= 0 {
		return ErrInvalidInterval
	}
	if iteration == nil {
		return errors.New("scheduler: nil iteration")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	log := l.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	now := l.Now
	if now == nil {
		now = time.Now
	}
	sleep := l.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	for {
		if ctx.Err() != nil || (shouldStop != nil && shouldStop()) {
			return nil
		}
		start := now()
		err := iteration(ctx)
		elapsed := now().Sub(start)
		if l.Observe != nil {
			l.Observe(elapsed, err)
		}
		if err != nil {
			return fmt.Errorf("error during main loop: %w", err)
		}
		if elapsed >= l.Interval {
			log.Warn("iteration overran interval", logx.Duration("elapsed", elapsed), logx.Duration("interval", l.Interval))
			continue
		}
		sleep(ctx, l.Interval-elapsed)
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
