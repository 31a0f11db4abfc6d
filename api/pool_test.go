package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"go.uber.org/goleak"

	"github.com/jevenson76/atl-dashboards/domain"
)

type blockingQueue struct {
	release chan struct{}
	mu      sync.Mutex
	users   []string
}

func (q *blockingQueue) EnqueueEdits(ctx context.Context, userID string, _ []domain.Edit) error {
	select {
	case <-q.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	q.mu.Lock()
	q.users = append(q.users, userID)
	q.mu.Unlock()
	return nil
}

func (q *blockingQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.users)
}

func oneEdit() []domain.Edit {
	return []domain.Edit{{CommandID: "k", TaskID: "ATL-001", Type: domain.CommandSetProgress, Progress: 10}}
}

func TestDispatcherDeliversThroughWorkers(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	q := &mockQueue{}
	d := NewDispatcher(q, DispatchConfig{Workers: 2, Buffer: 4, HandoffTimeout: 10 * time.Millisecond}, log.New())
	for i := 0; i < 3; i++ {
		if err := d.Dispatch("user", oneEdit()); err != nil {
			t.Fatalf("dispatch: %v", err)
		}
	}
	d.Close()

	if n := len(q.Edits()); n != 3 {
		t.Fatalf("expected 3 edits after drain, got %d", n)
	}
}

func TestDispatcherWritesInlineWhenSaturated(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	q := &blockingQueue{release: make(chan struct{})}
	logger, hook := test.NewNullLogger()
	d := NewDispatcher(q, DispatchConfig{Workers: 1, Timeout: time.Second, HandoffTimeout: 100 * time.Millisecond}, logger)

	// the single worker holds this job until released
	if err := d.Dispatch("first", oneEdit()); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- d.Dispatch("second", oneEdit()) }()

	deadline := time.Now().Add(time.Second)
	for !hasLevel(hook, log.WarnLevel) {
		if time.Now().After(deadline) {
			t.Fatalf("expected saturation warning")
		}
		time.Sleep(5 * time.Millisecond)
	}

	close(q.release)
	if err := <-done; err != nil {
		t.Fatalf("inline dispatch: %v", err)
	}
	d.Close()
	if n := q.count(); n != 2 {
		t.Fatalf("expected both jobs written, got %d", n)
	}
}

func hasLevel(hook *test.Hook, level log.Level) bool {
	for _, e := range hook.AllEntries() {
		if e.Level == level {
			return true
		}
	}
	return false
}

func TestDispatcherWithoutWorkersIsSynchronous(t *testing.T) {
	q := &mockQueue{}
	d := NewDispatcher(q, DispatchConfig{}, log.New())
	defer d.Close()

	if err := d.Dispatch("user", oneEdit()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if n := len(q.Edits()); n != 1 {
		t.Fatalf("expected immediate write, got %d edits", n)
	}

	q.err = errors.New("queue down")
	if err := d.Dispatch("user", oneEdit()); err == nil {
		t.Fatalf("expected inline error to surface")
	}
}

func TestDispatcherIgnoresEmptyBatches(t *testing.T) {
	q := &blockingQueue{release: make(chan struct{})}
	d := NewDispatcher(q, DispatchConfig{}, log.New())
	defer d.Close()

	if err := d.Dispatch("user", nil); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if q.count() != 0 {
		t.Fatalf("expected no queue write")
	}
}

func TestDispatcherClosed(t *testing.T) {
	d := NewDispatcher(&mockQueue{}, DispatchConfig{Workers: 1, Buffer: 1}, log.New())
	d.Close()
	d.Close()

	if err := d.Dispatch("user", oneEdit()); !errors.Is(err, errDispatcherClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
}

func TestTrySendHelpers(t *testing.T) {
	ch := make(chan dispatchJob, 1)
	if ok, closed := trySendNonBlocking(ch, dispatchJob{}); !ok || closed {
		t.Fatalf("expected send into free buffer")
	}
	if ok, _ := trySendNonBlocking(ch, dispatchJob{}); ok {
		t.Fatalf("expected full buffer to refuse")
	}

	timer := time.NewTimer(10 * time.Millisecond)
	defer timer.Stop()
	if ok, closed := sendWithTimer(ch, dispatchJob{}, timer.C); ok || closed {
		t.Fatalf("expected timeout on full buffer")
	}

	<-ch
	close(ch)
	if _, closed := trySendNonBlocking(ch, dispatchJob{}); !closed {
		t.Fatalf("expected closed channel to be reported")
	}
}

func TestDispatchConfigFromEnv(t *testing.T) {
	t.Setenv("DISPATCH_WORKERS", "3")
	t.Setenv("DISPATCH_BUFFER", "")
	t.Setenv("DISPATCH_HANDOFF_TIMEOUT", "5ms")

	cfg := DispatchConfigFromEnv()
	if cfg.Workers != 3 || cfg.Buffer != 4096 || cfg.HandoffTimeout != 5*time.Millisecond || cfg.Timeout != 60*time.Second {
		t.Fatalf("unexpected config: %#v", cfg)
	}
}
