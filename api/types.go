package api

import (
	"context"

	"github.com/jevenson76/atl-dashboards/board"
	"github.com/jevenson76/atl-dashboards/domain"
	"github.com/jevenson76/atl-dashboards/listapi"
)

// EditQueue receives applied edits for reconciliation with the list service.
type EditQueue interface {
	EnqueueEdits(ctx context.Context, userID string, edits []domain.Edit) error
}

// Sessions hands out per-user boards. *board.Registry implements it.
type Sessions interface {
	Session(ctx context.Context, userID string) (*board.Session, error)
	Reload(ctx context.Context, userID string) (*board.Session, error)
}

// StatusReporter exposes list-service diagnostics. *listapi.Client implements it.
type StatusReporter interface {
	Status() listapi.Status
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper prevents processing of duplicate commands.
type Deduper interface {
	// AddMany records the keys and reports which were newly added.
	AddMany(ctx context.Context, userID string, keys []string) ([]bool, error)
	// Remove deletes a previously added key so the command may be retried.
	Remove(ctx context.Context, userID, key string) error
}
