// Package periodic runs a function on a fixed interval in a single goroutine.
// Stopping prevents the next tick; a tick already running is allowed to finish.
// A restarted task does not tick until the previous loop has exited, so runs
// never overlap.
package periodic

import (
	"context"
	"sync"
	"time"
)

type Task struct {
	interval  time.Duration
	timeout   time.Duration
	immediate bool
	run       func(ctx context.Context)

	mu   sync.Mutex
	stop chan struct{}
	// done is closed when the most recently started loop exits.
	done chan struct{}
}

type Option func(*Task)

// WithImmediateRun makes Start execute a tick right away instead of waiting a
// full interval.
func WithImmediateRun() Option {
	return func(t *Task) { t.immediate = true }
}

// WithTimeout bounds each tick's context. Zero means no deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(t *Task) { t.timeout = timeout }
}

func New(interval time.Duration, run func(ctx context.Context), opts ...Option) *Task {
	task := &Task{interval: interval, run: run}
	for _, opt := range opts {
		opt(task)
	}
	return task
}

// Start launches the ticker goroutine. It reports false when the task was
// already running.
func (t *Task) Start() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return false
	}
	prev := t.done
	stop, done := make(chan struct{}), make(chan struct{})
	t.stop, t.done = stop, done
	go t.loop(stop, done, prev)
	return true
}

// Stop is safe to call in any state.
func (t *Task) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop == nil {
		return
	}
	close(t.stop)
	t.stop = nil
}

func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

func (t *Task) Interval() time.Duration {
	return t.interval
}

func (t *Task) loop(stop, done, prev chan struct{}) {
	defer close(done)
	if prev != nil {
		<-prev
		select {
		case <-stop:
			return
		default:
		}
	}
	if t.immediate {
		t.tick()
	}
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			t.tick()
		case <-stop:
			return
		}
	}
}

func (t *Task) tick() {
	ctx := context.Background()
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	t.run(ctx)
}
