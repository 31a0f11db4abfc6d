package board

import (
	"context"
	"errors"
	"testing"

	"github.com/jevenson76/atl-dashboards/domain"
	"github.com/jevenson76/atl-dashboards/listapi"
)

type stubSettings struct {
	settings map[string]domain.Settings
	err      error
	calls    int
}

func (s *stubSettings) FetchSettings(_ context.Context, userID string) (domain.Settings, error) {
	s.calls++
	if s.err != nil {
		return domain.Settings{}, s.err
	}
	return s.settings[userID], nil
}

func TestRegistryLoadsSessionOnce(t *testing.T) {
	src := &stubSource{records: taskRecords()}
	settings := &stubSettings{settings: map[string]domain.Settings{
		"user-1": {OwnerName: "Jason Evenson", DefaultFilter: domain.FilterOnTrack, NoteLimit: 2},
	}}
	r := NewRegistry(NewLoader(src, nil), settings, RegistryOptions{NoteLimit: DefaultNoteLimit}, nil)
	defer r.Close()

	s, err := r.Session(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if s.Store.Len() != 3 {
		t.Fatalf("expected 3 tasks, got %d", s.Store.Len())
	}
	if s.Store.View().Filter != domain.FilterOnTrack {
		t.Fatalf("expected default filter applied, got %q", s.Store.View().Filter)
	}
	if src.seen[0].Filter != "Owner/Title eq 'Jason Evenson'" {
		t.Fatalf("unexpected load filter: %q", src.seen[0].Filter)
	}

	again, err := r.Session(context.Background(), "user-1")
	if err != nil || again != s {
		t.Fatalf("expected cached session, got %v, %v", again, err)
	}
	if src.calls() != 1 || settings.calls != 1 {
		t.Fatalf("expected a single load, got %d fetches and %d settings reads", src.calls(), settings.calls)
	}

	for _, text := range []string{"a", "b", "c"} {
		s.Store.AppendNote("ATL-002", text)
	}
	task, _ := s.Store.Get("ATL-002")
	if len(task.Notes) != 2 {
		t.Fatalf("expected per-user note limit, got %d notes", len(task.Notes))
	}
}

func TestRegistryReloadSupersedes(t *testing.T) {
	src := &stubSource{records: taskRecords()}
	r := NewRegistry(NewLoader(src, nil), nil, RegistryOptions{}, nil)

	s, err := r.Session(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	s.Store.SetStatus("ATL-002", domain.StatusAtRisk)

	src.mu.Lock()
	src.records = []listapi.Record{listapi.Record(`{"Id":9,"TaskID":"ATL-009","Title":"Fresh","Status":"Not Started"}`)}
	src.mu.Unlock()

	if _, err := r.Reload(context.Background(), "user-1"); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if s.Store.Len() != 1 {
		t.Fatalf("expected reload to replace the collection, got %d tasks", s.Store.Len())
	}
	if _, ok := s.Store.Get("ATL-002"); ok {
		t.Fatal("local edits should be superseded by the reload")
	}
}

func TestRegistryErrors(t *testing.T) {
	want := errors.New("table unavailable")
	r := NewRegistry(NewLoader(&stubSource{}, nil), &stubSettings{err: want}, RegistryOptions{}, nil)
	if _, err := r.Session(context.Background(), "user-1"); !errors.Is(err, want) {
		t.Fatalf("expected settings error, got %v", err)
	}
	if _, ok := r.Lookup("user-1"); ok {
		t.Fatal("failed sessions must not be cached")
	}

	listErr := errors.New("list unavailable")
	r = NewRegistry(NewLoader(&stubSource{err: listErr}, nil), nil, RegistryOptions{}, nil)
	if _, err := r.Session(context.Background(), "user-1"); !errors.Is(err, listErr) {
		t.Fatalf("expected list error, got %v", err)
	}
}

type evictingSettings struct {
	stubSettings
	evicted []string
}

func (s *evictingSettings) Evict(_ context.Context, userID string) {
	s.evicted = append(s.evicted, userID)
}

func TestRegistryReloadRefreshesSettings(t *testing.T) {
	src := &stubSource{records: taskRecords()}
	settings := &evictingSettings{stubSettings: stubSettings{settings: map[string]domain.Settings{
		"user-1": {OwnerName: "Jason Evenson"},
	}}}
	r := NewRegistry(NewLoader(src, nil), settings, RegistryOptions{}, nil)

	first, err := r.Session(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}

	settings.settings["user-1"] = domain.Settings{OwnerName: "Pat O'Neil"}
	reloaded, err := r.Reload(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if len(settings.evicted) != 1 || settings.evicted[0] != "user-1" {
		t.Fatalf("expected cached settings to be evicted, got %v", settings.evicted)
	}
	if reloaded.Settings.OwnerName != "Pat O'Neil" {
		t.Fatalf("expected refreshed owner, got %q", reloaded.Settings.OwnerName)
	}
	if reloaded.Store != first.Store {
		t.Fatal("reload must keep the session's store")
	}
	if s, _ := r.Lookup("user-1"); s != reloaded {
		t.Fatal("registry must hand out the refreshed session")
	}
	src.mu.Lock()
	last := src.seen[len(src.seen)-1]
	src.mu.Unlock()
	if last.Filter != "Owner/Title eq 'Pat O''Neil'" {
		t.Fatalf("reload must use the refreshed owner, got %q", last.Filter)
	}
}
