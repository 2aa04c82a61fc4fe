// Package ratewindow implements a sliding-window event counter used for
// per-hour rate limiting by the scheduler and the auto-approval engine.
package ratewindow

import (
	"sync"
	"time"
)

// Window counts timestamps inside a sliding duration. All methods are
// safe for concurrent use.
type Window struct {
	mu       sync.Mutex
	duration time.Duration
	limit    int
	stamps   []time.Time
	now      func() time.Time
}

// New creates a sliding window of the given duration and ceiling.
func New(duration time.Duration, limit int) *Window {
	return &Window{duration: duration, limit: limit, now: time.Now}
}

// SetClock swaps the time source. Intended for tests.
func (w *Window) SetClock(now func() time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.now = now
}

// prune drops timestamps that have slid out of the window.
// Caller must hold w.mu.
func (w *Window) prune(now time.Time) {
	cutoff := now.Add(-w.duration)
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

// Count returns the number of events currently inside the window.
func (w *Window) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(w.now())
	return len(w.stamps)
}

// Remaining returns the quota left before the ceiling is reached.
func (w *Window) Remaining() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(w.now())
	r := w.limit - len(w.stamps)
	if r < 0 {
		r = 0
	}
	return r
}

// Limit returns the configured ceiling.
func (w *Window) Limit() int { return w.limit }

// Record stamps one event into the window without checking the ceiling.
func (w *Window) Record() {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	w.prune(now)
	w.stamps = append(w.stamps, now)
}

// TryAcquire records an event only if quota remains, reporting whether it
// was admitted.
func (w *Window) TryAcquire() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	w.prune(now)
	if len(w.stamps) >= w.limit {
		return false
	}
	w.stamps = append(w.stamps, now)
	return true
}
