package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-trust/pkg/errors"
)

// Logger is the single write path into the audit trail
type Logger struct {
	repo Repository
	now  func() time.Time
}

// Option configures a Logger
type Option func(*Logger)

// WithClock replaces the clock used to stamp events
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		l.now = now
	}
}

// NewLogger creates a new audit logger backed by repo
func NewLogger(repo Repository, opts ...Option) *Logger {
	l := &Logger{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LogEvent appends a new event. The id and creation time are assigned here.
func (l *Logger) LogEvent(ctx context.Context, actorID uuid.UUID, kind EventKind, ip string, device *DeviceSnapshot) (AuditEvent, error) {
	if !kind.Valid() {
		return AuditEvent{}, errors.InvalidInput("event", string(kind))
	}
	if actorID == uuid.Nil {
		return AuditEvent{}, errors.InvalidInput("actor_id", "required")
	}

	event := AuditEvent{
		ID:         uuid.New(),
		ActorID:    actorID,
		Event:      kind,
		IP:         ip,
		DeviceInfo: device,
		CreatedAt:  l.now(),
	}
	event = event.clone()

	if err := l.repo.Append(ctx, event); err != nil {
		slog.Error("Failed to write audit event", "actorID", actorID, "event", kind, "err", err)
		return AuditEvent{}, errors.Wrap(err, errors.ErrCodeAuditWriteFailure, "failed to record audit event")
	}

	slog.Info("Audit event recorded", "actorID", actorID, "event", kind, "ip", ip)
	return event, nil
}

// ListEvents returns the actor's events, most recent first
func (l *Logger) ListEvents(ctx context.Context, actorID uuid.UUID, filter Filter) ([]AuditEvent, error) {
	if filter.Event != "" && !filter.Event.Valid() {
		return nil, errors.InvalidInput("event", string(filter.Event))
	}
	events, err := l.repo.ListByActor(ctx, actorID, filter.normalized())
	if err != nil {
		return nil, errors.InternalWrap(err, "failed to list audit events")
	}
	return events, nil
}
