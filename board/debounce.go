package board

import (
	"sync"
	"time"
)

// Debouncer runs only the last of a burst of calls, once no new call has
// arrived for the quiet interval. A single pending token identifies the call
// that may still run; every new call replaces it.
type Debouncer struct {
	wait time.Duration

	mu      sync.Mutex
	token   uint64
	pending *time.Timer
}

// NewDebouncer returns a debouncer with the given quiet interval. A
// non-positive interval runs calls immediately.
func NewDebouncer(wait time.Duration) *Debouncer {
	return &Debouncer{wait: wait}
}

// Trigger schedules fn, cancelling any call scheduled before it.
func (d *Debouncer) Trigger(fn func()) {
	if d.wait <= 0 {
		d.Cancel()
		fn()
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.token++
	tok := d.token
	if d.pending != nil {
		d.pending.Stop()
	}
	d.pending = time.AfterFunc(d.wait, func() {
		d.mu.Lock()
		if tok != d.token {
			d.mu.Unlock()
			return
		}
		d.pending = nil
		d.mu.Unlock()
		fn()
	})
}

// Cancel drops the pending call, if any.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.token++
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
}

// Pending reports whether a call is waiting to run.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}
