package api

import (
	"time"

	"github.com/jevenson76/atl-dashboards/board"
	"github.com/jevenson76/atl-dashboards/domain"
)

const postCommandMaxSize = 64 * 1024 // 64 KiB

// Error kinds reported next to error messages.
const (
	errorKindConfiguration = "configuration"
	errorKindTransport     = "transport"
	errorKindRequest       = "request"
	errorKindInternal      = "internal"
)

type errorResponse struct {
	Error     string `json:"error"`
	ErrorKind string `json:"error_kind"`
}

// GET /api/tasks, PUT /api/view and POST /api/reload response body
type boardResponse struct {
	board.BoardView
	Owner    string    `json:"owner,omitempty"`
	Initials string    `json:"initials,omitempty"`
	LoadedAt time.Time `json:"loadedAt"`
	// SearchPending is set when a debounced search update has not run yet.
	SearchPending bool `json:"searchPending,omitempty"`
}

// PUT /api/view request body. Absent fields are left unchanged.
type viewRequest struct {
	Filter   *string `json:"filter"`
	Search   *string `json:"search"`
	Expanded *string `json:"expanded"`
	// Debounce delays the search update until input settles.
	Debounce bool `json:"debounce"`
}

type commandResult struct {
	IdempotencyKey string `json:"idempotencyKey"`
	TaskID         string `json:"taskId"`
	Type           string `json:"type"`
	Applied        bool   `json:"applied"`
	Duplicate      bool   `json:"duplicate,omitempty"`
	Rule           string `json:"rule,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// POST /api/commands response body
type postCommandResponse struct {
	Results []commandResult `json:"results"`
	Stats   domain.Stats    `json:"stats"`
	// Queued is false when applied edits could not be handed to the
	// reconciliation queue.
	Queued bool   `json:"queued"`
	Error  string `json:"error,omitempty"`
}
