// Package board holds one user's task collection and its view state, and
// projects tasks into display records.
package board

import (
	"strings"
	"sync"
	"time"

	"github.com/jevenson76/atl-dashboards/domain"
)

// DefaultNoteLimit is the number of newest notes kept per task.
const DefaultNoteLimit = 100

// onTrackProgress is the progress at which an in-progress task counts as on track.
const onTrackProgress = 50

// ViewState is the board's derived, unpersisted selection state.
type ViewState struct {
	Filter   domain.Filter `json:"filter"`
	Search   string        `json:"search"`
	Expanded string        `json:"expanded,omitempty"`
}

// Store is an in-memory task collection keyed by id. Every operation holds the
// store's lock for its whole duration.
type Store struct {
	mu        sync.Mutex
	tasks     []domain.Task
	index     map[string]int
	view      ViewState
	noteLimit int
	loadedAt  time.Time
	now       func() time.Time
}

// NewStore creates an empty store keeping at most noteLimit notes per task.
// A limit of 0 keeps every note.
func NewStore(noteLimit int) *Store {
	if noteLimit < 0 {
		noteLimit = 0
	}
	return &Store{
		index:     map[string]int{},
		view:      ViewState{Filter: domain.FilterAll},
		noteLimit: noteLimit,
		now:       time.Now,
	}
}

// Load replaces the whole collection. The view state is kept, except an
// expanded id that no longer exists.
func (s *Store) Load(tasks []domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = make([]domain.Task, 0, len(tasks))
	s.index = make(map[string]int, len(tasks))
	for _, t := range tasks {
		if _, dup := s.index[t.ID]; dup {
			continue
		}
		t = t.Clone()
		if t.Notes == nil {
			t.Notes = []domain.Note{}
		}
		if t.Attachments == nil {
			t.Attachments = []domain.Attachment{}
		}
		s.index[t.ID] = len(s.tasks)
		s.tasks = append(s.tasks, t)
	}
	if _, ok := s.index[s.view.Expanded]; !ok {
		s.view.Expanded = ""
	}
	s.loadedAt = s.now()
}

// LoadedAt returns when the collection was last replaced.
func (s *Store) LoadedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadedAt
}

// Len returns the number of tasks.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Get returns a copy of one task.
func (s *Store) Get(id string) (domain.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.find(id)
	if t == nil {
		return domain.Task{}, false
	}
	return t.Clone(), true
}

// Tasks returns a copy of the whole collection in load order.
func (s *Store) Tasks() []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	return out
}

// SetStatus changes a task's status. Completing a task sets its progress to
// 100. Unknown ids are ignored and report false.
func (s *Store) SetStatus(id string, status domain.Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.find(id)
	if t == nil {
		return false
	}
	t.Status = status
	if status == domain.StatusCompleted {
		t.Progress = 100
	}
	return true
}

// SetProgress stores value as given. Callers clamp it to [0,100].
func (s *Store) SetProgress(id string, value int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.find(id)
	if t == nil {
		return false
	}
	t.Progress = value
	return true
}

// AppendNote adds a note dated today in front of the task's notes. Blank text
// is ignored.
func (s *Store) AppendNote(id, text string) (domain.Note, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Note{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.find(id)
	if t == nil {
		return domain.Note{}, false
	}
	note := domain.Note{Date: s.now().UTC().Format("2006-01-02"), Text: text}
	notes := make([]domain.Note, 0, len(t.Notes)+1)
	notes = append(notes, note)
	notes = append(notes, t.Notes...)
	if s.noteLimit > 0 && len(notes) > s.noteLimit {
		notes = notes[:s.noteLimit]
	}
	t.Notes = notes
	return note, true
}

// AddAttachment validates a and records it on the task. A rejected
// attachment returns a *ValidationError and leaves the task unchanged.
func (s *Store) AddAttachment(id string, a domain.Attachment) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.find(id)
	if t == nil {
		return false, nil
	}
	if err := validateAttachment(t.Attachments, a); err != nil {
		return false, err
	}
	t.Attachments = append(t.Attachments, a)
	return true, nil
}

// RemoveAttachment drops the attachment with the given name.
func (s *Store) RemoveAttachment(id, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.find(id)
	if t == nil {
		return false
	}
	for i, a := range t.Attachments {
		if a.Name == name {
			t.Attachments = append(t.Attachments[:i:i], t.Attachments[i+1:]...)
			return true
		}
	}
	return false
}

// Query returns the tasks matching both filter and search, in load order.
func (s *Store) Query(filter domain.Filter, search string) []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query(filter, search)
}

func (s *Store) query(filter domain.Filter, search string) []domain.Task {
	needle := strings.ToLower(strings.TrimSpace(search))
	out := []domain.Task{}
	for _, t := range s.tasks {
		if matchesFilter(t, filter) && matchesSearch(t, needle) {
			out = append(out, t.Clone())
		}
	}
	return out
}

// Stats counts over the full collection regardless of the view.
func (s *Store) Stats() domain.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats()
}

func (s *Store) stats() domain.Stats {
	st := domain.Stats{Total: len(s.tasks)}
	for _, t := range s.tasks {
		if countsAsOnTrack(t) {
			st.OnTrack++
		}
		switch t.Status {
		case domain.StatusInProgress:
			st.InProgress++
		case domain.StatusAtRisk:
			st.AtRisk++
		case domain.StatusBlocked:
			st.Blocked++
		}
	}
	return st
}

// View returns the current view state.
func (s *Store) View() ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// SetFilter selects the active filter.
func (s *Store) SetFilter(f domain.Filter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Filter = f
}

// SetSearch sets the search term.
func (s *Store) SetSearch(term string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Search = term
}

// SetExpanded expands id, collapsing any other task. Expanding the already
// expanded task, or passing "", collapses it. It returns the new expanded id.
func (s *Store) SetExpanded(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == s.view.Expanded {
		id = ""
	}
	s.view.Expanded = id
	return id
}

// Snapshot is a consistent read of the view state, the matching tasks and
// the stats.
type Snapshot struct {
	View  ViewState
	Tasks []domain.Task
	Stats domain.Stats
}

// Snapshot evaluates the current view under one lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		View:  s.view,
		Tasks: s.query(s.view.Filter, s.view.Search),
		Stats: s.stats(),
	}
}

func (s *Store) find(id string) *domain.Task {
	i, ok := s.index[id]
	if !ok {
		return nil
	}
	return &s.tasks[i]
}

// computedOnTrack is the on-track filter: in progress and at least half done.
func computedOnTrack(t domain.Task) bool {
	return t.Status == domain.StatusInProgress && t.Progress >= onTrackProgress
}

// countsAsOnTrack is the on-track stat: the literal status or the computed one.
func countsAsOnTrack(t domain.Task) bool {
	return t.Status == domain.StatusOnTrack || computedOnTrack(t)
}

func matchesFilter(t domain.Task, f domain.Filter) bool {
	switch f {
	case "", domain.FilterAll:
		return true
	case domain.FilterOnTrack:
		return computedOnTrack(t)
	default:
		return string(t.Status) == string(f)
	}
}

func matchesSearch(t domain.Task, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Title), needle) ||
		strings.Contains(strings.ToLower(t.Workstream), needle) ||
		strings.Contains(strings.ToLower(t.ID), needle)
}
