package scheduler

import (
	"context"
	"time"
)

// SleepContext sleeps for d, returning false early when ctx ends.
func SleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// NextDelay doubles a reconnect delay up to max.
func NextDelay(current, max time.Duration) time.Duration {
	if current <= 0 {
		return time.Second
	}
	next := current * 2
	if next > max {
		next = max
	}
	return next
}
