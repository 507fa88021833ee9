package sched

import (
	"context"
	"log/slog"
	"time"
)

// DefaultBackoff is the default polling progression while waiting for the
// queue to drain. The last interval repeats until the maximum wait elapses.
var DefaultBackoff = []time.Duration{
	5 * time.Second,
	10 * time.Second,
	15 * time.Second,
	30 * time.Second,
	60 * time.Second,
}

// DefaultMaxWait bounds the total time spent waiting for a drain.
const DefaultMaxWait = 48 * time.Hour

// Waiter polls the scheduler until none of a set of jobs remain queued.
type Waiter struct {
	Scheduler Scheduler
	Backoff   []time.Duration
	MaxWait   time.Duration
	Logger    *slog.Logger
}

func (w Waiter) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

// WaitForDrain blocks until every job in ids has left the queue, the maximum
// wait elapses, or the context is cancelled. It returns true when drained and
// false on timeout; jobs are never cancelled on its behalf.
func (w Waiter) WaitForDrain(ctx context.Context, ids map[JobID]struct{}) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}
	backoff := w.Backoff
	if len(backoff) == 0 {
		backoff = DefaultBackoff
	}
	maxWait := w.MaxWait
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}

	var waited time.Duration
	for step := 0; waited < maxWait; step++ {
		interval := backoff[min(step, len(backoff)-1)]
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(interval):
		}
		waited += interval

		queued, err := w.Scheduler.QueuedIDs(ctx)
		if err != nil {
			return false, err
		}
		remaining := 0
		for id := range ids {
			if _, ok := queued[id]; ok {
				remaining++
			}
		}
		if remaining == 0 {
			return true, nil
		}
		w.logger().Info("waiting for queue to drain",
			"waited", waited.String(), "remaining", remaining)
	}
	return false, nil
}
