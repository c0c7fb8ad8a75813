package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/sentryops/account-security/internal/models"
)

// ProfileRepository is read-only access to the externally owned profiles and
// user_2fa tables.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)

	// GetTwoFactor returns ErrNotFound when the user has no user_2fa row,
	// which callers treat as two-factor disabled.
	GetTwoFactor(ctx context.Context, userID uuid.UUID) (*models.TwoFactor, error)
}

type postgresProfileRepository struct {
	db *sql.DB
}

func NewPostgresProfileRepository(db *sql.DB) ProfileRepository {
	return &postgresProfileRepository{db: db}
}

func (r *postgresProfileRepository) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	const q = `
SELECT user_id, email, full_name, password_changed_at
FROM profiles WHERE user_id = $1
`
	var p models.Profile
	err := r.db.QueryRowContext(ctx, q, userID).Scan(&p.UserID, &p.Email, &p.FullName, &p.PasswordChangedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *postgresProfileRepository) GetTwoFactor(ctx context.Context, userID uuid.UUID) (*models.TwoFactor, error) {
	const q = `SELECT user_id, enabled FROM user_2fa WHERE user_id = $1`
	var t models.TwoFactor
	err := r.db.QueryRowContext(ctx, q, userID).Scan(&t.UserID, &t.Enabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}
