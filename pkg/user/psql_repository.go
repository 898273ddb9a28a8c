package user

import (
	"context"
	"errors"
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

// PostgresUserRepository implements UserRepository using PostgreSQL
type PostgresUserRepository struct {
	db DBTX
}

// NewPostgresUserRepository creates a new PostgreSQL user repository
func NewPostgresUserRepository(db DBTX) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

const userColumns = `id, username, email, password_hash, disabled, admin, token_version, force_trust_next_device, dnd_enabled, dnd_until, created_at, updated_at`

func (r *PostgresUserRepository) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *PostgresUserRepository) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)`, username))
}

// CreateUser creates a new user
func (r *PostgresUserRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO users (id, username, email, password_hash, admin, disabled)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+userColumns,
		uuid.New(), params.Username, params.Email, params.PasswordHash, params.Admin, params.Disabled)

	u, err := scanUser(row)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return User{}, ErrUsernameTaken
	}
	return u, err
}

// ClaimForceTrustNextDevice is a single conditional UPDATE so concurrent
// logins cannot both observe the flag
func (r *PostgresUserRepository) ClaimForceTrustNextDevice(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET force_trust_next_device = FALSE, updated_at = now()
		WHERE id = $1 AND force_trust_next_device
	`, id)
	if err != nil {
		return false, fmt.Errorf("failed to claim force trust flag: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := r.GetUser(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (r *PostgresUserRepository) SetForceTrustNextDevice(ctx context.Context, id uuid.UUID, value bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET force_trust_next_device = $2, updated_at = now() WHERE id = $1`, id, value)
	if err != nil {
		return fmt.Errorf("failed to set force trust flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PostgresUserRepository) IncrementTokenVersion(ctx context.Context, id uuid.UUID) (int, error) {
	var version int
	err := r.db.QueryRow(ctx, `
		UPDATE users SET token_version = token_version + 1, updated_at = now()
		WHERE id = $1
		RETURNING token_version
	`, id).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment token version: %w", err)
	}
	return version, nil
}

func (r *PostgresUserRepository) UpdatePreferences(ctx context.Context, id uuid.UUID, prefs Preferences) (User, error) {
	return scanUser(r.db.QueryRow(ctx, `
		UPDATE users SET dnd_enabled = $2, dnd_until = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		id, prefs.DndEnabled, prefs.DndUntil))
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Disabled, &u.Admin,
		&u.TokenVersion, &u.ForceTrustNextDevice, &u.DndEnabled, &u.DndUntil, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to scan user: %w", err)
	}
	return u, nil
}
