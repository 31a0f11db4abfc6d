package domain

import (
	"math"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// TaskRecord is the raw shape of one item of the project-plan list. It is the
// only place remote field names appear; everything past ToTask uses Task.
type TaskRecord struct {
	ID              int                    `json:"Id"`
	Title           string                 `json:"Title"`
	TaskID          string                 `json:"TaskID"`
	Phase           string                 `json:"Phase"`
	Workstream      string                 `json:"Workstream"`
	Status          string                 `json:"Status"`
	PercentComplete *float64               `json:"PercentComplete"`
	Priority        string                 `json:"Priority"`
	DueDate         string                 `json:"DueDate"`
	Owner           sonic.NoCopyRawMessage `json:"Owner"`
	Modified        string                 `json:"Modified"`
	TaskType        string                 `json:"TaskType"`
	Description     string                 `json:"Description"`
	IsBlocked       bool                   `json:"IsBlocked"`
	BlockerReason   string                 `json:"BlockerReason"`
}

// ToTask maps a remote record into a Task.
func (r TaskRecord) ToTask() Task {
	id := strings.TrimSpace(r.TaskID)
	if id == "" {
		id = strconv.Itoa(r.ID)
	}
	status := NormalizeStatus(r.Status)
	if r.IsBlocked {
		status = StatusBlocked
	}
	return Task{
		ID:          id,
		Title:       r.Title,
		Phase:       r.Phase,
		Workstream:  r.Workstream,
		Owner:       ownerName(r.Owner),
		DueDate:     r.DueDate,
		Status:      status,
		Progress:    percent(r.PercentComplete),
		Notes:       []Note{},
		Attachments: []Attachment{},
	}
}

// NormalizeStatus converts list-service spellings such as "In Progress" into
// Status values. Unknown values are kept, lower-cased and hyphenated.
func NormalizeStatus(raw string) Status {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return StatusNotStarted
	}
	v = strings.Join(strings.Fields(strings.ReplaceAll(v, "_", " ")), "-")
	if v == "complete" || v == "done" {
		return StatusCompleted
	}
	return Status(v)
}

// percent accepts both 0..1 fractions (the list service's percentage column)
// and whole numbers, returning an integer in [0,100].
func percent(v *float64) int {
	if v == nil {
		return 0
	}
	p := *v
	if p > 0 && p <= 1 {
		p *= 100
	}
	n := int(math.Round(p))
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// ownerName reads a person field that is either a plain string or an
// expanded lookup object carrying Title.
func ownerName(raw sonic.NoCopyRawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := sonic.Unmarshal(raw, &s); err == nil {
		return s
	}
	var lookup struct {
		Title string `json:"Title"`
	}
	if err := sonic.Unmarshal(raw, &lookup); err == nil {
		return lookup.Title
	}
	return ""
}
