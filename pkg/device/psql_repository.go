package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	Begin(context.Context) (pgx.Tx, error)
}

// PostgresDeviceRepository implements DeviceRepository using PostgreSQL
type PostgresDeviceRepository struct {
	db DBTX
}

// NewPostgresDeviceRepository creates a new PostgreSQL device repository
func NewPostgresDeviceRepository(db DBTX) *PostgresDeviceRepository {
	return &PostgresDeviceRepository{db: db}
}

const deviceColumns = `id, user_id, device_id, name, platform, status, token_version, last_seen_at, ip_address, created_at, updated_at`

// UpsertDevice runs the count, the trust decision and the insert-or-update
// in one transaction. A per-user advisory lock serializes first logins of a
// user so the device count cannot go stale, and the unique constraint on
// (user_id, device_id) turns a racing insert into an update.
func (r *PostgresDeviceRepository) UpsertDevice(ctx context.Context, params UpsertDeviceParams) (UpsertResult, error) {
	if err := validateUpsert(params); err != nil {
		return UpsertResult{}, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, params.UserID.String()); err != nil {
		return UpsertResult{}, fmt.Errorf("failed to lock user devices: %w", err)
	}

	var previous Status
	err = tx.QueryRow(ctx, `
		SELECT status FROM devices WHERE user_id = $1 AND device_id = $2 FOR UPDATE
	`, params.UserID, params.Info.DeviceID).Scan(&previous)
	exists := err == nil
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return UpsertResult{}, fmt.Errorf("failed to read device: %w", err)
	}

	status := previous
	if !exists {
		var count int
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM devices WHERE user_id = $1`, params.UserID).Scan(&count); err != nil {
			return UpsertResult{}, fmt.Errorf("failed to count devices: %w", err)
		}
		status = DecideInitialTrust(count, params.ForceTrust)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO devices (id, user_id, device_id, name, platform, status, token_version, last_seen_at, ip_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, COALESCE($7, now()), $8, COALESCE($7, now()), COALESCE($7, now()))
		ON CONFLICT ON CONSTRAINT devices_user_device_unique DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), devices.name),
			platform = COALESCE(NULLIF(EXCLUDED.platform, ''), devices.platform),
			last_seen_at = EXCLUDED.last_seen_at,
			ip_address = EXCLUDED.ip_address,
			status = CASE WHEN $9::boolean AND devices.status = 'untrusted' THEN 'trusted' ELSE devices.status END,
			updated_at = EXCLUDED.updated_at
		RETURNING `+deviceColumns+`, (xmax = 0) AS inserted
	`, uuid.New(), params.UserID, params.Info.DeviceID, params.Info.Name, params.Info.Platform,
		string(status), nullTime(params.SeenAt), params.IPAddress, params.ForceTrust)

	var device Device
	var inserted bool
	if err := row.Scan(deviceScanTargets(&device, &inserted)...); err != nil {
		slog.Error("Failed to upsert device", "err", err, "userID", params.UserID, "deviceID", params.Info.DeviceID)
		return UpsertResult{}, fmt.Errorf("failed to upsert device: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return UpsertResult{}, fmt.Errorf("failed to commit device upsert: %w", err)
	}

	return UpsertResult{
		Device:   device,
		Created:  inserted,
		Promoted: !inserted && previous == StatusUntrusted && device.Status == StatusTrusted,
	}, nil
}

// GetDevice retrieves a device by its record id
func (r *PostgresDeviceRepository) GetDevice(ctx context.Context, id uuid.UUID) (Device, error) {
	row := r.db.QueryRow(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = $1`, id)
	return scanDevice(row)
}

// GetDeviceByUserAndDeviceID retrieves a user's device by fingerprint
func (r *PostgresDeviceRepository) GetDeviceByUserAndDeviceID(ctx context.Context, userID uuid.UUID, deviceID string) (Device, error) {
	row := r.db.QueryRow(ctx, `SELECT `+deviceColumns+` FROM devices WHERE user_id = $1 AND device_id = $2`, userID, deviceID)
	return scanDevice(row)
}

// FindDevicesByUser returns all devices of a user, most recently seen first
func (r *PostgresDeviceRepository) FindDevicesByUser(ctx context.Context, userID uuid.UUID) ([]Device, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+deviceColumns+`
		FROM devices
		WHERE user_id = $1
		ORDER BY last_seen_at DESC, device_id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	devices := make([]Device, 0)
	for rows.Next() {
		var device Device
		if err := rows.Scan(deviceScanTargets(&device, nil)...); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, device)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating devices: %w", err)
	}
	return devices, nil
}

// CountDevicesByUser returns how many devices a user has
func (r *PostgresDeviceRepository) CountDevicesByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM devices WHERE user_id = $1`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count devices: %w", err)
	}
	return count, nil
}

// CompareAndSetStatus updates the status only while it still equals expected
func (r *PostgresDeviceRepository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, expected, next Status, bumpTokenVersion bool) (Device, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE devices
		SET status = $3,
			token_version = token_version + CASE WHEN $4::boolean THEN 1 ELSE 0 END,
			updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+deviceColumns,
		id, string(expected), string(next), bumpTokenVersion)

	device, err := scanDevice(row)
	if errors.Is(err, ErrDeviceNotFound) {
		// Either the row is gone or its status moved on
		current, getErr := r.GetDevice(ctx, id)
		if getErr != nil {
			return Device{}, getErr
		}
		return current, ErrStatusConflict
	}
	return device, err
}

// DeleteDevice removes a device row. Audit events are not touched.
func (r *PostgresDeviceRepository) DeleteDevice(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

func scanDevice(row pgx.Row) (Device, error) {
	var device Device
	if err := row.Scan(deviceScanTargets(&device, nil)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Device{}, ErrDeviceNotFound
		}
		return Device{}, fmt.Errorf("failed to get device: %w", err)
	}
	return device, nil
}

func deviceScanTargets(d *Device, inserted *bool) []any {
	targets := []any{
		&d.ID, &d.UserID, &d.DeviceID, &d.Name, &d.Platform, &d.Status,
		&d.TokenVersion, &d.LastSeenAt, &d.IPAddress, &d.CreatedAt, &d.UpdatedAt,
	}
	if inserted != nil {
		targets = append(targets, inserted)
	}
	return targets
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
