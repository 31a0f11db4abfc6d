package api

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jevenson76/atl-dashboards/domain"
)

var errDispatcherClosed = errors.New("dispatcher closed")

type dispatchJob struct {
	userID string
	edits  []domain.Edit
}

// DispatchConfig sizes the edit dispatcher.
type DispatchConfig struct {
	Workers int
	Buffer  int
	// Timeout bounds one queue write.
	Timeout time.Duration
	// HandoffTimeout is how long a request waits for buffer space before it
	// writes to the queue itself.
	HandoffTimeout time.Duration
}

// DispatchConfigFromEnv reads DISPATCH_* variables.
func DispatchConfigFromEnv() DispatchConfig {
	return DispatchConfig{
		Workers:        envInt("DISPATCH_WORKERS", 32),
		Buffer:         envInt("DISPATCH_BUFFER", 4096),
		Timeout:        envDur("DISPATCH_TIMEOUT", 60*time.Second),
		HandoffTimeout: envDur("DISPATCH_HANDOFF_TIMEOUT", 15*time.Millisecond),
	}
}

// Dispatcher hands applied edits to the reconciliation queue from a pool of
// workers. When the buffer is full the caller writes inline.
type Dispatcher struct {
	queue  EditQueue
	cfg    DispatchConfig
	logger *log.Logger

	mu     sync.RWMutex
	jobs   chan dispatchJob
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher starts cfg.Workers workers. With no workers every dispatch is
// written inline.
func NewDispatcher(queue EditQueue, cfg DispatchConfig, logger *log.Logger) *Dispatcher {
	if queue == nil {
		panic("api.NewDispatcher: queue is nil")
	}
	if logger == nil {
		panic("Logger is not initialized")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	d := &Dispatcher{queue: queue, cfg: cfg, logger: logger}
	if cfg.Workers > 0 {
		d.jobs = make(chan dispatchJob, cfg.Buffer)
		for i := 0; i < cfg.Workers; i++ {
			d.wg.Add(1)
			go d.worker(i)
		}
	}
	logger.Infof("edit dispatcher started, workers: %d, buffer: %d, timeout: %v, handoff: %v", cfg.Workers, cfg.Buffer, cfg.Timeout, cfg.HandoffTimeout)
	return d
}

// Dispatch queues edits for userID. It returns an error when the dispatcher
// is closed or the inline fallback write fails.
func (d *Dispatcher) Dispatch(userID string, edits []domain.Edit) error {
	if len(edits) == 0 {
		return nil
	}
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return errDispatcherClosed
	}
	job := dispatchJob{userID: userID, edits: edits}
	if d.tryHandoff(job) {
		return nil
	}

	d.logger.Warn("dispatch buffer saturated; writing inline")
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	defer cancel()
	return d.queue.EnqueueEdits(ctx, userID, edits)
}

// Close stops accepting jobs and waits for queued ones to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		if d.jobs != nil {
			close(d.jobs)
		}
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for j := range d.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
		err := d.queue.EnqueueEdits(ctx, j.userID, j.edits)
		cancel()
		if err != nil {
			d.logger.Errorf("edit dispatch failed, err: %v, user: %s, count: %d, worker: %d", err, j.userID, len(j.edits), id)
		}
	}
}

func (d *Dispatcher) tryHandoff(job dispatchJob) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed || d.jobs == nil {
		return false
	}

	if ok, closed := trySendNonBlocking(d.jobs, job); closed {
		return false
	} else if ok {
		return true
	}

	if d.cfg.HandoffTimeout <= 0 {
		return false
	}

	timer := time.NewTimer(d.cfg.HandoffTimeout)
	defer timer.Stop()

	ok, closed := sendWithTimer(d.jobs, job, timer.C)
	if closed {
		return false
	}
	return ok
}

func trySendNonBlocking(ch chan dispatchJob, job dispatchJob) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- job:
		return true, false
	default:
		return false, false
	}
}

func sendWithTimer(ch chan dispatchJob, job dispatchJob, timer <-chan time.Time) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- job:
		return true, false
	case <-timer:
		return false, false
	}
}
