package domain

import "github.com/bytedance/sonic"

// Command types accepted by the board.
const (
	CommandSetStatus        = "set-status"
	CommandSetProgress      = "set-progress"
	CommandAppendNote       = "append-note"
	CommandAddAttachment    = "add-attachment"
	CommandRemoveAttachment = "remove-attachment"
)

// Command represents a mutation request against one task.
type Command struct {
	// ID carries the idempotency key once the command has been accepted.
	ID             string                 `json:"id,omitempty"`
	IdempotencyKey string                 `json:"idempotencyKey"`
	TaskID         string                 `json:"taskId"`
	Type           string                 `json:"type"`
	Data           sonic.NoCopyRawMessage `json:"data,omitempty"`
	Timestamp      int64                  `json:"timestamp"`
}

type StatusData struct {
	Status Status `json:"status"`
}

type ProgressData struct {
	Progress int `json:"progress"`
}

type NoteData struct {
	Text string `json:"text"`
}

type RemoveAttachmentData struct {
	Name string `json:"name"`
}

// Edit is a locally applied change that still has to be reconciled with the
// list service by a downstream consumer.
type Edit struct {
	CommandID  string      `json:"commandId"`
	TaskID     string      `json:"taskId"`
	Type       string      `json:"type"`
	Status     Status      `json:"status"`
	Progress   int         `json:"progress"`
	Note       *Note       `json:"note,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
	Timestamp  int64       `json:"timestamp"`
}

// EditEnvelope wraps an edit with the user who made it.
type EditEnvelope struct {
	UserID string `json:"userId"`
	Edit   Edit   `json:"edit"`
}
