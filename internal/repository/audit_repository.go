package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sentryops/account-security/internal/models"
)

var ErrNotFound = errors.New("not found")

// AuditLogRepository is the append-only system of record for auth events.
// Rows are inserted and queried, never updated or deleted.
type AuditLogRepository interface {
	Insert(ctx context.Context, entry *models.SecurityAuditLogEntry) error

	// CountFailedLoginsFromIP counts login_failed rows from ip since the
	// given instant, excluding nothing; the caller decides thresholds.
	CountFailedLoginsFromIP(ctx context.Context, ip string, since time.Time) (int, error)

	// RecentSuccessfulLogins returns the user's most recent successful login
	// rows, newest first, capped at limit.
	RecentSuccessfulLogins(ctx context.Context, userID uuid.UUID, limit int) ([]models.SecurityAuditLogEntry, error)

	// CountSuccessfulLoginsSince counts the user's successful logins since
	// the given instant.
	CountSuccessfulLoginsSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
}

type postgresAuditLogRepository struct {
	db *sql.DB
}

func NewPostgresAuditLogRepository(db *sql.DB) AuditLogRepository {
	return &postgresAuditLogRepository{db: db}
}

func (r *postgresAuditLogRepository) Insert(ctx context.Context, entry *models.SecurityAuditLogEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	details, err := json.Marshal(entry.EventDetails)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO security_audit_log (
  id, user_id, event_type, event_details, ip_address, user_agent, success,
  latitude, longitude, city, country, country_code, region, is_high_risk, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
`
	_, err = r.db.ExecContext(ctx, q,
		entry.ID, entry.UserID, entry.EventType, details, entry.IPAddress,
		entry.UserAgent, entry.Success, entry.Latitude, entry.Longitude,
		entry.City, entry.Country, entry.CountryCode, entry.Region,
		entry.IsHighRisk, entry.CreatedAt,
	)
	return err
}

func (r *postgresAuditLogRepository) CountFailedLoginsFromIP(ctx context.Context, ip string, since time.Time) (int, error) {
	const q = `
SELECT count(*) FROM security_audit_log
WHERE event_type = $1 AND ip_address = $2 AND created_at >= $3
`
	var n int
	err := r.db.QueryRowContext(ctx, q, models.EventLoginFailed, ip, since).Scan(&n)
	return n, err
}

func (r *postgresAuditLogRepository) RecentSuccessfulLogins(ctx context.Context, userID uuid.UUID, limit int) ([]models.SecurityAuditLogEntry, error) {
	const q = `
SELECT id, user_id, event_type, ip_address, user_agent, success, created_at
FROM security_audit_log
WHERE user_id = $1 AND event_type = $2 AND success = true
ORDER BY created_at DESC
LIMIT $3
`
	rows, err := r.db.QueryContext(ctx, q, userID, models.EventLogin, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SecurityAuditLogEntry
	for rows.Next() {
		var e models.SecurityAuditLogEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.EventType, &e.IPAddress, &e.UserAgent, &e.Success, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *postgresAuditLogRepository) CountSuccessfulLoginsSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	const q = `
SELECT count(*) FROM security_audit_log
WHERE user_id = $1 AND event_type = $2 AND success = true AND created_at >= $3
`
	var n int
	err := r.db.QueryRowContext(ctx, q, userID, models.EventLogin, since).Scan(&n)
	return n, err
}
