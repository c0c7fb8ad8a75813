package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sentryops/account-security/internal/models"
)

// SessionRepository upserts session rows keyed by session token.
type SessionRepository interface {
	// UpsertByToken inserts the session or, when the token already exists,
	// refreshes last_active_at and the owning device (idempotent refresh).
	UpsertByToken(ctx context.Context, session *models.UserSession) error

	GetByToken(ctx context.Context, token string) (*models.UserSession, error)
	CountActive(ctx context.Context, userID uuid.UUID) (int, error)
}

type postgresSessionRepository struct {
	db *sql.DB
}

func NewPostgresSessionRepository(db *sql.DB) SessionRepository {
	return &postgresSessionRepository{db: db}
}

func (r *postgresSessionRepository) UpsertByToken(ctx context.Context, session *models.UserSession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.LastActiveAt.IsZero() {
		session.LastActiveAt = now
	}

	const q = `
INSERT INTO user_sessions (id, user_id, device_id, session_token, is_revoked, last_active_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (session_token) DO UPDATE
SET last_active_at = GREATEST(user_sessions.last_active_at, EXCLUDED.last_active_at),
    device_id = EXCLUDED.device_id
`
	_, err := r.db.ExecContext(ctx, q,
		session.ID, session.UserID, session.DeviceID, session.SessionToken,
		session.IsRevoked, session.LastActiveAt, session.CreatedAt,
	)
	return err
}

func (r *postgresSessionRepository) GetByToken(ctx context.Context, token string) (*models.UserSession, error) {
	const q = `
SELECT id, user_id, device_id, session_token, is_revoked, last_active_at, created_at
FROM user_sessions WHERE session_token = $1
`
	var s models.UserSession
	err := r.db.QueryRowContext(ctx, q, token).Scan(
		&s.ID, &s.UserID, &s.DeviceID, &s.SessionToken, &s.IsRevoked,
		&s.LastActiveAt, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *postgresSessionRepository) CountActive(ctx context.Context, userID uuid.UUID) (int, error) {
	const q = `SELECT count(*) FROM user_sessions WHERE user_id = $1 AND is_revoked = false`
	var n int
	err := r.db.QueryRowContext(ctx, q, userID).Scan(&n)
	return n, err
}
