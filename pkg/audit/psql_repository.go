package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresRepository stores events in the audit_events table. The table
// carries rules that turn UPDATE and DELETE into no-ops.
type PostgresRepository struct {
	db DBTX
}

// NewPostgresRepository creates a new PostgreSQL audit repository
func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append inserts event
func (r *PostgresRepository) Append(ctx context.Context, event AuditEvent) error {
	var deviceInfo []byte
	if event.DeviceInfo != nil {
		b, err := json.Marshal(event.DeviceInfo)
		if err != nil {
			return fmt.Errorf("failed to marshal device snapshot: %w", err)
		}
		deviceInfo = b
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO audit_events (id, actor_id, event, ip, device_info, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
	`, event.ID, event.ActorID, string(event.Event), event.IP, deviceInfo, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// ListByActor returns the actor's events, most recent first
func (r *PostgresRepository) ListByActor(ctx context.Context, actorID uuid.UUID, filter Filter) ([]AuditEvent, error) {
	filter = filter.normalized()

	rows, err := r.db.Query(ctx, `
		SELECT id, actor_id, event, COALESCE(ip, ''), device_info, created_at
		FROM audit_events
		WHERE actor_id = $1 AND ($2 = '' OR event = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, actorID, string(filter.Event), filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	events := make([]AuditEvent, 0)
	for rows.Next() {
		var (
			event      AuditEvent
			kind       string
			deviceInfo []byte
		)
		if err := rows.Scan(&event.ID, &event.ActorID, &kind, &event.IP, &deviceInfo, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		event.Event = EventKind(kind)
		if len(deviceInfo) > 0 {
			var snapshot DeviceSnapshot
			if err := json.Unmarshal(deviceInfo, &snapshot); err != nil {
				return nil, fmt.Errorf("failed to decode device snapshot: %w", err)
			}
			event.DeviceInfo = &snapshot
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over audit events: %w", err)
	}
	return events, nil
}
