package storage

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"

	"github.com/jevenson76/atl-dashboards/domain"
)

type fakeQueue struct {
	mu       sync.Mutex
	inFlight int
	max      int
	count    int
	failAt   int
	sleep    time.Duration
	messages []string
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{failAt: -1, sleep: 1 * time.Millisecond}
}

func (f *fakeQueue) EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error) {
	f.mu.Lock()
	idx := f.count
	f.count++
	f.inFlight++
	if f.inFlight > f.max {
		f.max = f.inFlight
	}
	f.messages = append(f.messages, content)
	f.mu.Unlock()

	if f.sleep > 0 {
		select {
		case <-time.After(f.sleep):
		case <-ctx.Done():
			f.mu.Lock()
			f.inFlight--
			f.mu.Unlock()
			return azqueue.EnqueueMessagesResponse{}, ctx.Err()
		}
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if f.failAt >= 0 && idx == f.failAt {
		return azqueue.EnqueueMessagesResponse{}, errors.New("enqueue failure")
	}
	return azqueue.EnqueueMessagesResponse{}, nil
}

func (f *fakeQueue) GetProperties(ctx context.Context, o *azqueue.GetQueuePropertiesOptions) (azqueue.GetQueuePropertiesResponse, error) {
	return azqueue.GetQueuePropertiesResponse{}, nil
}

type fakeTable struct {
	value []byte
	err   error
}

func (f *fakeTable) GetEntity(ctx context.Context, pk, rk string, o *aztables.GetEntityOptions) (aztables.GetEntityResponse, error) {
	if f.err != nil {
		return aztables.GetEntityResponse{}, f.err
	}
	return aztables.GetEntityResponse{Value: f.value}, nil
}

func testEdits(n int) []domain.Edit {
	edits := make([]domain.Edit, n)
	for i := range edits {
		edits[i] = domain.Edit{CommandID: "k", TaskID: "ATL-001", Type: domain.CommandSetProgress, Progress: i}
	}
	return edits
}

func TestQueueConcurrencyForCPU(t *testing.T) {
	tests := []struct {
		name string
		cpu  int
		want int
	}{
		{name: "below minimum", cpu: 0, want: defaultQueueConcurrency},
		{name: "single cpu", cpu: 1, want: queuePerCPU},
		{name: "multi cpu scale", cpu: 4, want: 40},
		{name: "cap applied", cpu: 32, want: maxQueueConcurrency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := queueConcurrencyForCPU(tt.cpu)
			if got != tt.want {
				t.Fatalf("queueConcurrencyForCPU(%d) = %d, want %d", tt.cpu, got, tt.want)
			}
		})
	}
}

func TestEnqueueEditsUsesConcurrency(t *testing.T) {
	fq := newFakeQueue()
	store := &Storage{editQueue: fq, queueConcurrency: 4}

	if err := store.EnqueueEdits(context.Background(), "user", testEdits(8)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if fq.max < 2 {
		t.Fatalf("expected concurrent sends, max in flight: %d", fq.max)
	}
	if fq.max > 4 {
		t.Fatalf("expected at most 4 in flight, got %d", fq.max)
	}
	if fq.count != 8 {
		t.Fatalf("expected 8 sends, got %d", fq.count)
	}

	var env domain.EditEnvelope
	if err := sonic.UnmarshalString(fq.messages[0], &env); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if env.UserID != "user" || env.Edit.TaskID != "ATL-001" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestEnqueueEditsPropagatesErrors(t *testing.T) {
	fq := newFakeQueue()
	fq.failAt = 2
	store := &Storage{editQueue: fq, queueConcurrency: 3}

	if err := store.EnqueueEdits(context.Background(), "user", testEdits(6)); err == nil {
		t.Fatal("expected error")
	}
}

func TestEnqueueEditsSequentialWhenConfigured(t *testing.T) {
	fq := newFakeQueue()
	store := &Storage{editQueue: fq, queueConcurrency: 1}

	if err := store.EnqueueEdits(context.Background(), "user", testEdits(5)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if fq.max != 1 {
		t.Fatalf("expected sequential sends, observed max in flight: %d", fq.max)
	}
}

func TestDecodeSettingsEntity(t *testing.T) {
	data := []byte(`{"PartitionKey":"u1","RowKey":"u1","OwnerName":"Jason Evenson","DefaultFilter":"On-Track","NoteLimit":25}`)
	s, err := decodeSettingsEntity(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.OwnerName != "Jason Evenson" || s.DefaultFilter != domain.FilterOnTrack || s.NoteLimit != 25 {
		t.Fatalf("unexpected settings: %+v", s)
	}

	s, err = decodeSettingsEntity([]byte(`{"DefaultFilter":"someday"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.DefaultFilter != "" {
		t.Fatalf("unknown filters should be dropped, got %q", s.DefaultFilter)
	}
}

func TestFetchSettings(t *testing.T) {
	store := &Storage{settingsTable: &fakeTable{value: []byte(`{"OwnerName":"Pat"}`)}}
	s, err := store.FetchSettings(context.Background(), "u1")
	if err != nil || s.OwnerName != "Pat" {
		t.Fatalf("FetchSettings = %+v, %v", s, err)
	}

	missing := &Storage{settingsTable: &fakeTable{err: &azcore.ResponseError{StatusCode: http.StatusNotFound, ErrorCode: "ResourceNotFound"}}}
	s, err = missing.FetchSettings(context.Background(), "u2")
	if err != nil || s != (domain.Settings{}) {
		t.Fatalf("missing row should yield zero settings, got %+v, %v", s, err)
	}

	broken := &Storage{settingsTable: &fakeTable{err: &azcore.ResponseError{StatusCode: http.StatusServiceUnavailable}}}
	if _, err := broken.FetchSettings(context.Background(), "u3"); err == nil {
		t.Fatal("expected error")
	}
}
