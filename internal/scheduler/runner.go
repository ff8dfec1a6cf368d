package scheduler

import (
	"context"
	"sync"
	"time"

	"hyperfeed/internal/logger"
)

// Runner owns a set of named recurring tasks. Every timer the ingester
// uses (flush, coverage, enrichment, candle sweep, catalog refresh)
// is registered here so shutdown is one Stop call instead of timer
// bookkeeping scattered across components.
type Runner struct {
	mu    sync.Mutex
	tasks map[string]context.CancelFunc
	wg    sync.WaitGroup
}

func NewRunner() *Runner {
	return &Runner{tasks: make(map[string]context.CancelFunc)}
}

// Every schedules fn at a fixed interval under the given name until
// the task is cancelled or ctx ends. Registering a name twice cancels
// the previous task. If immediate is set, fn runs once before the
// first tick.
func (r *Runner) Every(ctx context.Context, name string, interval time.Duration, immediate bool, fn func(context.Context)) {
	if r == nil || fn == nil {
		return
	}
	if interval <= 0 {
		logger.Warnf("scheduler: task %s has invalid interval %s, skipped", name, interval)
		return
	}
	taskCtx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	if prev, ok := r.tasks[name]; ok {
		prev()
	}
	r.tasks[name] = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		logger.Debugf("scheduler: task %s started interval=%s", name, interval)
		if immediate {
			fn(taskCtx)
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-taskCtx.Done():
				logger.Debugf("scheduler: task %s stopped", name)
				return
			case <-ticker.C:
				fn(taskCtx)
			}
		}
	}()
}

// Cancel stops a single named task.
func (r *Runner) Cancel(name string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.tasks[name]; ok {
		cancel()
		delete(r.tasks, name)
	}
}

// Stop cancels every task and waits for the loops to exit.
func (r *Runner) Stop() {
	if r == nil {
		return
	}
	r.mu.Lock()
	for name, cancel := range r.tasks {
		cancel()
		delete(r.tasks, name)
	}
	r.mu.Unlock()
	r.wg.Wait()
}
