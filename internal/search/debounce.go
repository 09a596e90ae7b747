package search

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Debouncer runs one search at a time per input field. Submitting a new
// query cancels the pending one; results of superseded tasks are never
// delivered, even when they arrive after a newer result.
type Debouncer struct {
	searcher Searcher
	wait     time.Duration

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

func NewDebouncer(s Searcher, wait time.Duration) *Debouncer {
	if wait < 0 {
		wait = 0
	}
	return &Debouncer{searcher: s, wait: wait}
}

// Task is one submitted query.
type Task struct {
	d         *Debouncer
	seq       uint64
	query     string
	cancel    context.CancelFunc
	cancelled atomic.Bool
	done      chan struct{}
	result    Result
}

// Submit supersedes the previous task and schedules query after the
// quiescence window.
func (d *Debouncer) Submit(ctx context.Context, query string) *Task {
	tctx, cancel := context.WithCancel(ctx)

	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.seq++
	t := &Task{d: d, seq: d.seq, query: query, cancel: cancel, done: make(chan struct{})}
	d.cancel = cancel
	d.mu.Unlock()

	go t.run(tctx)
	return t
}

func (d *Debouncer) latest(seq uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seq == seq
}

func (t *Task) run(ctx context.Context) {
	defer close(t.done)

	if t.d.wait > 0 {
		timer := time.NewTimer(t.d.wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			t.cancelled.Store(true)
			return
		case <-timer.C:
		}
	}
	if ctx.Err() != nil {
		t.cancelled.Store(true)
		return
	}
	t.result = t.d.searcher.Search(ctx, t.query)
	if ctx.Err() != nil {
		t.cancelled.Store(true)
	}
}

// Cancel marks the task abandoned. A search already in flight may still
// complete, but its result is discarded.
func (t *Task) Cancel() {
	t.cancelled.Store(true)
	t.cancel()
}

// Query returns the submitted query text.
func (t *Task) Query() string { return t.query }

// Wait blocks until the task settles or ctx ends. ok is false when the task
// was cancelled or superseded by a later Submit.
func (t *Task) Wait(ctx context.Context) (Result, bool) {
	select {
	case <-ctx.Done():
		return Result{}, false
	case <-t.done:
	}
	if t.cancelled.Load() || !t.d.latest(t.seq) {
		return Result{}, false
	}
	return t.result, true
}
