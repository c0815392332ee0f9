package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shelfmark/backend/internal/model"
)

const userColumns = `id, username, email, password_hash, role, first_name, last_name, country, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		user model.User
		role string
	)
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.FirstName,
		&user.LastName,
		&user.Country,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	if user.Role, err = model.ParseRole(role); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser inserts user and returns the stored row. Username and email
// collisions (case-insensitive) surface as ErrDuplicate.
func (db *Postgres) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash, role, first_name, last_name, country, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING ` + userColumns
	return scanUser(db.Pool.QueryRow(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role.String(),
		user.FirstName,
		user.LastName,
		user.Country,
	))
}

func (db *Postgres) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(db.Pool.QueryRow(ctx, query, userID))
}

// GetUserByIdentifier matches the username or the email, ignoring case.
// A username match wins over an email match.
func (db *Postgres) GetUserByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE lower(username) = lower($1) OR lower(email) = lower($1)
		ORDER BY (lower(username) = lower($1)) DESC, id
		LIMIT 1
	`
	return scanUser(db.Pool.QueryRow(ctx, query, identifier))
}

func (db *Postgres) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUser(db.Pool.QueryRow(ctx, query, email))
}

// RevokeToken adds jti to the blocklist. It reports false when the jti was
// already present, which lets callers treat a second use as a lost race.
func (db *Postgres) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	query := `
		INSERT INTO revoked_tokens (jti, expires_at, revoked_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (jti) DO NOTHING
	`
	tag, err := db.Pool.Exec(ctx, query, jti, expiresAt)
	if err != nil {
		return false, mapError(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (db *Postgres) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1)`, jti).Scan(&revoked)
	if err != nil {
		return false, mapError(err)
	}
	return revoked, nil
}

// DeleteExpiredRevocations drops blocklist entries whose token expired before now.
func (db *Postgres) DeleteExpiredRevocations(ctx context.Context, now time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}
