package board

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jevenson76/atl-dashboards/domain"
)

// SettingsSource returns per-user board settings.
type SettingsSource interface {
	FetchSettings(ctx context.Context, userID string) (domain.Settings, error)
}

// settingsEvicter is implemented by settings sources that cache.
type settingsEvicter interface {
	Evict(ctx context.Context, userID string)
}

// Session is one user's board.
type Session struct {
	UserID   string
	Settings domain.Settings
	Store    *Store
	// Search debounces search-term updates.
	Search *Debouncer
}

// RegistryOptions tunes new sessions.
type RegistryOptions struct {
	NoteLimit      int
	SearchDebounce time.Duration
}

// Registry keeps a board session per user and loads each lazily on first use.
type Registry struct {
	loader   *Loader
	settings SettingsSource
	opts     RegistryOptions
	logger   *log.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(loader *Loader, settings SettingsSource, opts RegistryOptions, logger *log.Logger) *Registry {
	if loader == nil {
		panic("board.NewRegistry: loader is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Registry{
		loader:   loader,
		settings: settings,
		opts:     opts,
		logger:   logger,
		sessions: map[string]*Session{},
	}
}

// Session returns the user's session, loading it if needed.
func (r *Registry) Session(ctx context.Context, userID string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	r.mu.Unlock()
	if ok {
		return s, nil
	}

	s, err := r.open(ctx, userID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[userID]; ok {
		s.Search.Cancel()
		return existing, nil
	}
	r.sessions[userID] = s
	return s, nil
}

// Lookup returns a session only if it is already loaded.
func (r *Registry) Lookup(userID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// Reload re-reads the user's settings and tasks and replaces the collection
// wholesale. Cached settings are evicted first.
func (r *Registry) Reload(ctx context.Context, userID string) (*Session, error) {
	s, err := r.Session(ctx, userID)
	if err != nil {
		return nil, err
	}

	settings := s.Settings
	if r.settings != nil {
		if ev, ok := r.settings.(settingsEvicter); ok {
			ev.Evict(ctx, userID)
		}
		if settings, err = r.settings.FetchSettings(ctx, userID); err != nil {
			return nil, err
		}
	}

	tasks, err := r.loader.Load(ctx, settings.OwnerName)
	if err != nil {
		return nil, err
	}
	s.Store.Load(tasks)
	if settings == s.Settings {
		return s, nil
	}

	next := &Session{UserID: s.UserID, Settings: settings, Store: s.Store, Search: s.Search}
	r.mu.Lock()
	r.sessions[userID] = next
	r.mu.Unlock()
	r.logger.WithField("user", userID).Info("board settings refreshed")
	return next, nil
}

// Close cancels pending debounced work of every session.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		s.Search.Cancel()
	}
}

func (r *Registry) open(ctx context.Context, userID string) (*Session, error) {
	var settings domain.Settings
	if r.settings != nil {
		var err error
		settings, err = r.settings.FetchSettings(ctx, userID)
		if err != nil {
			return nil, err
		}
	}

	limit := r.opts.NoteLimit
	if settings.NoteLimit > 0 {
		limit = settings.NoteLimit
	}
	store := NewStore(limit)
	if settings.DefaultFilter != "" {
		if f, ok := domain.ParseFilter(string(settings.DefaultFilter)); ok {
			store.SetFilter(f)
		}
	}

	tasks, err := r.loader.Load(ctx, settings.OwnerName)
	if err != nil {
		return nil, err
	}
	store.Load(tasks)

	r.logger.WithFields(log.Fields{"user": userID, "tasks": len(tasks)}).Info("board session opened")
	return &Session{
		UserID:   userID,
		Settings: settings,
		Store:    store,
		Search:   NewDebouncer(r.opts.SearchDebounce),
	}, nil
}
