package board

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestDebouncerRunsLastCallOnly(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := NewDebouncer(30 * time.Millisecond)
	var calls atomic.Int32
	var mu sync.Mutex
	var last string
	done := make(chan struct{}, 1)

	for _, term := range []string{"p", "pr", "pri", "pric"} {
		term := term
		d.Trigger(func() {
			calls.Add(1)
			mu.Lock()
			last = term
			mu.Unlock()
			done <- struct{}{}
		})
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced call never ran")
	}
	time.Sleep(60 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected one call, got %d", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if last != "pric" {
		t.Fatalf("expected last term, got %q", last)
	}
	if d.Pending() {
		t.Fatal("nothing should be pending after the call ran")
	}
}

func TestDebouncerCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := NewDebouncer(20 * time.Millisecond)
	var calls atomic.Int32
	d.Trigger(func() { calls.Add(1) })
	if !d.Pending() {
		t.Fatal("expected pending call")
	}
	d.Cancel()
	time.Sleep(50 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatalf("cancelled call ran %d times", calls.Load())
	}
}

func TestDebouncerZeroWaitRunsInline(t *testing.T) {
	d := NewDebouncer(0)
	ran := false
	d.Trigger(func() { ran = true })
	if !ran {
		t.Fatal("expected immediate call")
	}
}
