package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/sentryops/account-security/internal/models"
)

// GeofencingRepository reads rules and per-user exceptions. Both are managed
// externally; this service only consumes them.
type GeofencingRepository interface {
	// ActiveRules returns active rules ordered newest-first, the evaluation order.
	ActiveRules(ctx context.Context) ([]models.GeofencingRule, error)

	// ActiveExceptions returns the user's non-expired exceptions as of now.
	ActiveExceptions(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.GeofencingException, error)
}

type postgresGeofencingRepository struct {
	db *sql.DB
}

func NewPostgresGeofencingRepository(db *sql.DB) GeofencingRepository {
	return &postgresGeofencingRepository{db: db}
}

func (r *postgresGeofencingRepository) ActiveRules(ctx context.Context) ([]models.GeofencingRule, error) {
	const q = `
SELECT id, rule_name, rule_type, country_codes, is_active, created_at
FROM geofencing_rules
WHERE is_active = true
ORDER BY created_at DESC
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.GeofencingRule
	for rows.Next() {
		var rule models.GeofencingRule
		if err := rows.Scan(&rule.ID, &rule.RuleName, &rule.RuleType,
			pq.Array(&rule.CountryCodes), &rule.IsActive, &rule.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *postgresGeofencingRepository) ActiveExceptions(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.GeofencingException, error) {
	const q = `
SELECT id, user_id, country_codes, expires_at, created_at
FROM geofencing_exceptions
WHERE user_id = $1 AND (expires_at IS NULL OR expires_at > $2)
`
	rows, err := r.db.QueryContext(ctx, q, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.GeofencingException
	for rows.Next() {
		var exc models.GeofencingException
		if err := rows.Scan(&exc.ID, &exc.UserID, pq.Array(&exc.CountryCodes),
			&exc.ExpiresAt, &exc.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, exc)
	}
	return out, rows.Err()
}
