package board

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jevenson76/atl-dashboards/domain"
)

const (
	// RingRadius is the radius of the progress ring.
	RingRadius = 20
	// RecentNotes is how many notes a task view shows.
	RecentNotes = 3

	dateLayout   = "Jan 2, 2006"
	notAvailable = "N/A"

	emptyAll      = "No tasks assigned to you."
	emptyFiltered = "No tasks match the current filter."
)

var statusLabels = map[domain.Status]string{
	domain.StatusNotStarted: "Not Started",
	domain.StatusInProgress: "In Progress",
	domain.StatusOnTrack:    "On Track",
	domain.StatusAtRisk:     "At Risk",
	domain.StatusBlocked:    "Blocked",
	domain.StatusCompleted:  "Completed",
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// Ring is the stroke geometry of a circular progress indicator.
type Ring struct {
	Radius     float64 `json:"radius"`
	DashArray  float64 `json:"dashArray"`
	DashOffset float64 `json:"dashOffset"`
}

type NoteView struct {
	Date string `json:"date"`
	Text string `json:"text"`
}

type AttachmentView struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	SizeText string `json:"sizeText"`
	Type     string `json:"type,omitempty"`
}

// TaskView is a task ready for display.
type TaskView struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Phase        string           `json:"phase"`
	Workstream   string           `json:"workstream"`
	Owner        string           `json:"owner"`
	DueDate      string           `json:"dueDate"`
	Status       domain.Status    `json:"status"`
	StatusLabel  string           `json:"statusLabel"`
	Progress     int              `json:"progress"`
	ProgressText string           `json:"progressText"`
	Ring         Ring             `json:"ring"`
	Notes        []NoteView       `json:"notes"`
	NoteCount    int              `json:"noteCount"`
	Attachments  []AttachmentView `json:"attachments"`
	Expanded     bool             `json:"expanded"`
}

// BoardView is the whole board as shown to one user.
type BoardView struct {
	Filter   domain.Filter `json:"filter"`
	Search   string        `json:"search"`
	Expanded string        `json:"expanded,omitempty"`
	Tasks    []TaskView    `json:"tasks"`
	Stats    domain.Stats  `json:"stats"`
	Empty    string        `json:"empty,omitempty"`
}

// Project maps a task to its display record.
func Project(t domain.Task, expandedID string) TaskView {
	notes := t.Notes
	if len(notes) > RecentNotes {
		notes = notes[:RecentNotes]
	}
	nv := make([]NoteView, 0, len(notes))
	for _, n := range notes {
		nv = append(nv, NoteView{Date: FormatDate(n.Date), Text: n.Text})
	}
	av := make([]AttachmentView, 0, len(t.Attachments))
	for _, a := range t.Attachments {
		av = append(av, AttachmentView{Name: a.Name, Size: a.Size, SizeText: FormatFileSize(a.Size), Type: a.Type})
	}
	return TaskView{
		ID:           t.ID,
		Title:        t.Title,
		Phase:        t.Phase,
		Workstream:   t.Workstream,
		Owner:        t.Owner,
		DueDate:      FormatDate(t.DueDate),
		Status:       t.Status,
		StatusLabel:  StatusLabel(t.Status),
		Progress:     t.Progress,
		ProgressText: strconv.Itoa(t.Progress) + "%",
		Ring:         ProgressRing(t.Progress),
		Notes:        nv,
		NoteCount:    len(t.Notes),
		Attachments:  av,
		Expanded:     expandedID != "" && t.ID == expandedID,
	}
}

// ProjectSnapshot renders a store snapshot.
func ProjectSnapshot(s Snapshot) BoardView {
	views := make([]TaskView, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		views = append(views, Project(t, s.View.Expanded))
	}
	bv := BoardView{
		Filter:   s.View.Filter,
		Search:   s.View.Search,
		Expanded: s.View.Expanded,
		Tasks:    views,
		Stats:    s.Stats,
	}
	if len(views) == 0 {
		bv.Empty = EmptyMessage(s.View.Filter)
	}
	return bv
}

// StatusLabel returns the display label of s. Unknown statuses pass through.
func StatusLabel(s domain.Status) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// FormatDate renders a stored date as "Jan 2, 2006", or N/A when it is
// missing or unparseable.
func FormatDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return notAvailable
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(dateLayout)
		}
	}
	return notAvailable
}

// ProgressRing computes the ring geometry for a progress value.
func ProgressRing(progress int) Ring {
	circumference := 2 * math.Pi * RingRadius
	return Ring{
		Radius:     RingRadius,
		DashArray:  circumference,
		DashOffset: circumference * (1 - float64(progress)/100),
	}
}

// FormatFileSize renders a byte count with base-1024 units and at most one
// decimal.
func FormatFileSize(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB"}
	i := int(math.Floor(math.Log(float64(n)) / math.Log(1024)))
	if i >= len(units) {
		i = len(units) - 1
	}
	v := math.Round(float64(n)/math.Pow(1024, float64(i))*10) / 10
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + units[i]
}

// EmptyMessage is shown when a view has no tasks.
func EmptyMessage(f domain.Filter) string {
	if f == "" || f == domain.FilterAll {
		return emptyAll
	}
	return emptyFiltered
}

// Initials returns the first letter of each part of a name.
func Initials(name string) string {
	var b strings.Builder
	for _, part := range strings.Fields(name) {
		for _, r := range part {
			b.WriteRune(r)
			break
		}
	}
	return b.String()
}
