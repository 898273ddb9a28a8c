package audit

import (
	"context"

	"github.com/google/uuid"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Filter narrows ListByActor results
type Filter struct {
	Event EventKind // optional
	Limit int       // default 50, max 200
}

func (f Filter) normalized() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	return f
}

// Repository stores audit events. There is deliberately no update or delete.
type Repository interface {
	// Append persists a fully populated event
	Append(ctx context.Context, event AuditEvent) error

	// ListByActor returns the actor's events, most recent first
	ListByActor(ctx context.Context, actorID uuid.UUID, filter Filter) ([]AuditEvent, error)
}
