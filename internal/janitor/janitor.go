// Package janitor runs periodic housekeeping: expired sessions, expired
// verification tokens and idle rate-limiter entries.
package janitor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task removes stale state and returns how many items it removed.
type Task struct {
	Name string
	Run  func() (int64, error)
}

type Janitor struct {
	mu       sync.RWMutex
	tasks    []Task
	interval time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

func New(interval time.Duration, logger *slog.Logger, tasks ...Task) *Janitor {
	return &Janitor{
		tasks:    tasks,
		interval: interval,
		logger:   logger.With("component", "janitor"),
	}
}

// Start runs every task once immediately, then on each interval.
func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	ctx, j.cancel = context.WithCancel(ctx)
	j.done = make(chan struct{})
	j.mu.Unlock()

	go func() {
		defer close(j.done)
		j.RunOnce()

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.RunOnce()
			}
		}
	}()
}

// Stop halts the loop and waits for a running pass to finish.
func (j *Janitor) Stop() {
	j.mu.RLock()
	cancel := j.cancel
	done := j.done
	j.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// RunOnce runs every task. A failing task does not stop the others.
func (j *Janitor) RunOnce() {
	for _, t := range j.tasks {
		n, err := t.Run()
		if err != nil {
			j.logger.Error("cleanup failed", "task", t.Name, "error", err)
			continue
		}
		if n > 0 {
			j.logger.Info("cleanup", "task", t.Name, "removed", n)
		}
	}
}
