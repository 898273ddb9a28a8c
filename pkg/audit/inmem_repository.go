package audit

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// InMemRepository keeps audit events in an append-only slice
type InMemRepository struct {
	mu     sync.RWMutex
	events []AuditEvent
}

// NewInMemRepository creates a new in-memory audit repository
func NewInMemRepository() *InMemRepository {
	return &InMemRepository{}
}

// Append stores a copy of event
func (r *InMemRepository) Append(ctx context.Context, event AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event.clone())
	return nil
}

// ListByActor returns the actor's events, most recent first
func (r *InMemRepository) ListByActor(ctx context.Context, actorID uuid.UUID, filter Filter) ([]AuditEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return selectEvents(r.events, actorID, filter.normalized()), nil
}

// selectEvents walks events (in append order) backwards and picks matches
func selectEvents(events []AuditEvent, actorID uuid.UUID, filter Filter) []AuditEvent {
	result := make([]AuditEvent, 0)
	for i := len(events) - 1; i >= 0 && len(result) < filter.Limit; i-- {
		e := events[i]
		if e.ActorID != actorID {
			continue
		}
		if filter.Event != "" && e.Event != filter.Event {
			continue
		}
		result = append(result, e.clone())
	}
	return result
}
