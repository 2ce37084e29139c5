package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/contactly/server/internal/model"
)

// SessionRepo defines the interface for session repository operations.
// At most one session row exists per user at any time.
type SessionRepo interface {
	Replace(ctx context.Context, userID uuid.UUID, accessToken, refreshToken string, accessExpiry, refreshExpiry time.Time) (uuid.UUID, error)
	FindByRefreshToken(ctx context.Context, refreshToken string) (model.Session, error)
	DeleteByID(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteByUserID(ctx context.Context, userID uuid.UUID) (bool, error)
}

type sessionRepo struct {
	db *sql.DB
}

// NewSessionRepo creates a new SessionRepo instance
func NewSessionRepo(db *sql.DB) SessionRepo {
	return &sessionRepo{db: db}
}

// Replace deletes any existing session for the user and inserts a new one in a
// single transaction. Concurrent replaces for the same user serialize on the
// delete; the last writer wins and at most one row survives.
func (r *sessionRepo) Replace(ctx context.Context, userID uuid.UUID, accessToken, refreshToken string, accessExpiry, refreshExpiry time.Time) (uuid.UUID, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin replace session: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM sessions WHERE user_id = $1
	`, userID); err != nil {
		return uuid.Nil, fmt.Errorf("delete prior session: %w", err)
	}

	var idStr string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO sessions (user_id, access_token, refresh_token, access_token_valid_until, refresh_token_valid_until)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, userID, accessToken, refreshToken, accessExpiry, refreshExpiry).Scan(&idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("commit replace session: %w", err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse session ID: %w", err)
	}
	return id, nil
}

// FindByRefreshToken returns the session holding the given refresh token value.
func (r *sessionRepo) FindByRefreshToken(ctx context.Context, refreshToken string) (model.Session, error) {
	var s model.Session
	var idStr, userIDStr string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, access_token, refresh_token, access_token_valid_until, refresh_token_valid_until, created_at
		FROM sessions
		WHERE refresh_token = $1
	`, refreshToken).Scan(
		&idStr,
		&userIDStr,
		&s.AccessToken,
		&s.RefreshToken,
		&s.AccessTokenValidUntil,
		&s.RefreshTokenValidUntil,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Session{}, fmt.Errorf("session not found: %w", err)
		}
		return model.Session{}, fmt.Errorf("find session: %w", err)
	}
	s.ID, _ = uuid.Parse(idStr)
	s.UserID, _ = uuid.Parse(userIDStr)
	return s, nil
}

// DeleteByID removes a session by its identifier. Returns true if a row was removed.
func (r *sessionRepo) DeleteByID(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE id = $1
	`, id)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// DeleteByUserID removes the session owned by a user. Returns true if a row was removed.
func (r *sessionRepo) DeleteByUserID(ctx context.Context, userID uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE user_id = $1
	`, userID)
	if err != nil {
		return false, fmt.Errorf("delete session for user: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}
