// Package schedule runs cancellable repeating tasks.
package schedule

import (
	"context"
	"sync"
	"time"
)

// TickFunc is invoked once per interval. Returning false ends the task.
type TickFunc func(ctx context.Context) bool

// Task is a handle to a running repeating task. Ticks never overlap: a slow tick
// delays the next one instead of running concurrently with it.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Every starts fn on a fixed interval, first firing one interval after the call.
// The task stops when fn returns false, when Stop is called or when parent is done.
func Every(parent context.Context, interval time.Duration, fn TickFunc) *Task {
	ctx, cancel := context.WithCancel(parent)
	t := &Task{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(t.done)
		defer cancel()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !fn(ctx) {
					return
				}
			}
		}
	}()

	return t
}

// Stop cancels the task without waiting for an in-flight tick to return.
// It is safe to call from inside the tick and more than once.
func (t *Task) Stop() {
	if t == nil {
		return
	}
	t.once.Do(t.cancel)
}

// Done is closed once the task goroutine has exited
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait stops the task and blocks until it has exited or ctx is done
func (t *Task) Wait(ctx context.Context) error {
	if t == nil {
		return nil
	}
	t.Stop()
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
