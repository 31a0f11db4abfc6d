package domain

// Status is the workflow state of a task as stored by the list service.
type Status string

const (
	StatusNotStarted Status = "not-started"
	StatusInProgress Status = "in-progress"
	StatusOnTrack    Status = "on-track"
	StatusAtRisk     Status = "at-risk"
	StatusBlocked    Status = "blocked"
	StatusCompleted  Status = "completed"
)

// Statuses lists the statuses a user may assign from the board, in display order.
var Statuses = []Status{
	StatusNotStarted,
	StatusInProgress,
	StatusAtRisk,
	StatusBlocked,
	StatusCompleted,
}

// Note is a dated free-text update on a task.
type Note struct {
	Date string `json:"date"`
	Text string `json:"text"`
}

// Attachment describes a file attached to a task. Content lives elsewhere.
type Attachment struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type,omitempty"`
}

// Task represents a single board item owned by one assignee.
type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Phase       string       `json:"phase,omitempty"`
	Workstream  string       `json:"workstream,omitempty"`
	Owner       string       `json:"owner,omitempty"`
	DueDate     string       `json:"dueDate,omitempty"`
	Status      Status       `json:"status"`
	Progress    int          `json:"progress"`
	Notes       []Note       `json:"notes"`
	Attachments []Attachment `json:"attachments"`
}

// Clone returns a deep copy so callers cannot alias the store's slices.
func (t Task) Clone() Task {
	out := t
	out.Notes = append([]Note(nil), t.Notes...)
	out.Attachments = append([]Attachment(nil), t.Attachments...)
	return out
}

// Stats are the board counters, always computed over the full collection.
type Stats struct {
	Total      int `json:"total"`
	OnTrack    int `json:"onTrack"`
	InProgress int `json:"inProgress"`
	AtRisk     int `json:"atRisk"`
	Blocked    int `json:"blocked"`
}
