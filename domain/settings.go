package domain

// Settings represents per-user board options.
type Settings struct {
	// OwnerName is the assignee display name used to scope the task load.
	// Empty loads every task in the list.
	OwnerName     string `json:"ownerName"`
	DefaultFilter Filter `json:"defaultFilter,omitempty"`
	NoteLimit     int    `json:"noteLimit,omitempty"`
}
