package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sentryops/account-security/internal/models"
)

// DeviceRepository persists user devices keyed by (user_id, device_fingerprint).
type DeviceRepository interface {
	GetByFingerprint(ctx context.Context, userID uuid.UUID, fingerprint string) (*models.UserDevice, error)

	// Insert creates the device row. Two logins racing on the same new device
	// may both attempt the insert; the uniqueness constraint resolves the race
	// and the loser falls back to a last_used_at touch, returning the winner's row.
	Insert(ctx context.Context, device *models.UserDevice) (*models.UserDevice, error)

	TouchLastUsed(ctx context.Context, deviceID uuid.UUID, ts time.Time) error
	CountTrusted(ctx context.Context, userID uuid.UUID) (int, error)
	CountFirstSeenSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
}

type postgresDeviceRepository struct {
	db *sql.DB
}

func NewPostgresDeviceRepository(db *sql.DB) DeviceRepository {
	return &postgresDeviceRepository{db: db}
}

const deviceColumns = `
id, user_id, device_fingerprint, device_name, browser, browser_version,
os, os_version, device_type, screen_resolution, timezone, is_trusted,
first_seen_at, last_used_at
`

func scanDevice(row *sql.Row) (*models.UserDevice, error) {
	var d models.UserDevice
	err := row.Scan(
		&d.ID, &d.UserID, &d.DeviceFingerprint, &d.DeviceName, &d.Browser,
		&d.BrowserVersion, &d.OS, &d.OSVersion, &d.DeviceType,
		&d.ScreenResolution, &d.Timezone, &d.IsTrusted,
		&d.FirstSeenAt, &d.LastUsedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *postgresDeviceRepository) GetByFingerprint(ctx context.Context, userID uuid.UUID, fingerprint string) (*models.UserDevice, error) {
	const q = `
SELECT ` + deviceColumns + `
FROM user_devices WHERE user_id = $1 AND device_fingerprint = $2
`
	return scanDevice(r.db.QueryRowContext(ctx, q, userID, fingerprint))
}

func (r *postgresDeviceRepository) Insert(ctx context.Context, device *models.UserDevice) (*models.UserDevice, error) {
	if device.ID == uuid.Nil {
		device.ID = uuid.New()
	}
	now := time.Now().UTC()
	if device.FirstSeenAt.IsZero() {
		device.FirstSeenAt = now
	}
	if device.LastUsedAt.IsZero() {
		device.LastUsedAt = now
	}

	const q = `
INSERT INTO user_devices (` + deviceColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (user_id, device_fingerprint) DO UPDATE
SET last_used_at = GREATEST(user_devices.last_used_at, EXCLUDED.last_used_at)
RETURNING ` + deviceColumns + `
`
	return scanDevice(r.db.QueryRowContext(ctx, q,
		device.ID, device.UserID, device.DeviceFingerprint, device.DeviceName,
		device.Browser, device.BrowserVersion, device.OS, device.OSVersion,
		device.DeviceType, device.ScreenResolution, device.Timezone,
		device.IsTrusted, device.FirstSeenAt, device.LastUsedAt,
	))
}

func (r *postgresDeviceRepository) TouchLastUsed(ctx context.Context, deviceID uuid.UUID, ts time.Time) error {
	const q = `
UPDATE user_devices
SET last_used_at = GREATEST(last_used_at, $2)
WHERE id = $1
`
	_, err := r.db.ExecContext(ctx, q, deviceID, ts)
	return err
}

func (r *postgresDeviceRepository) CountTrusted(ctx context.Context, userID uuid.UUID) (int, error) {
	const q = `SELECT count(*) FROM user_devices WHERE user_id = $1 AND is_trusted = true`
	var n int
	err := r.db.QueryRowContext(ctx, q, userID).Scan(&n)
	return n, err
}

func (r *postgresDeviceRepository) CountFirstSeenSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	const q = `SELECT count(*) FROM user_devices WHERE user_id = $1 AND first_seen_at >= $2`
	var n int
	err := r.db.QueryRowContext(ctx, q, userID, since).Scan(&n)
	return n, err
}
