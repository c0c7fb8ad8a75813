package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentryops/account-security/internal/alert"
	"github.com/sentryops/account-security/internal/models"
	"github.com/sentryops/account-security/internal/repository"
)

// noonDetector pins the clock to midday so the unusual-hour check stays quiet
// unless a test wants it.
func noonDetector(audit repository.AuditLogRepository) (*Detector, time.Time) {
	noon := time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local)
	d := NewDetector(audit)
	d.now = func() time.Time { return noon }
	return d, noon
}

func failedLoginAt(ip string, at time.Time) models.SecurityAuditLogEntry {
	return models.SecurityAuditLogEntry{
		ID:        uuid.New(),
		EventType: models.EventLoginFailed,
		IPAddress: ip,
		CreatedAt: at,
	}
}

func successfulLoginAt(userID uuid.UUID, ip string, at time.Time) models.SecurityAuditLogEntry {
	return models.SecurityAuditLogEntry{
		ID:        uuid.New(),
		UserID:    &userID,
		EventType: models.EventLogin,
		IPAddress: ip,
		Success:   true,
		CreatedAt: at,
	}
}

func alertTypes(flags []Flag) []string {
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		out = append(out, f.AlertType)
	}
	return out
}

func TestScanFlagsRepeatedFailedLogins(t *testing.T) {
	audit := repository.NewMemoryAuditLogRepository()
	det, noon := noonDetector(audit)
	ip := "203.0.113.7"

	for i := 0; i < 3; i++ {
		audit.Seed(failedLoginAt(ip, noon.Add(-time.Duration(i+1)*time.Minute)))
	}
	current := failedLoginAt(ip, noon)
	audit.Seed(current)

	flags := det.Scan(context.Background(), current)

	require.Len(t, flags, 1)
	assert.Equal(t, alert.TypeFailedLogins, flags[0].AlertType)
	assert.Contains(t, flags[0].Details, ip)
}

func TestScanIgnoresFewFailedLogins(t *testing.T) {
	audit := repository.NewMemoryAuditLogRepository()
	det, noon := noonDetector(audit)
	ip := "203.0.113.7"

	audit.Seed(failedLoginAt(ip, noon.Add(-time.Minute)))
	audit.Seed(failedLoginAt(ip, noon.Add(-2*time.Minute)))
	current := failedLoginAt(ip, noon)
	audit.Seed(current)

	assert.Empty(t, det.Scan(context.Background(), current))
}

func TestScanIgnoresFailedLoginsOutsideWindow(t *testing.T) {
	audit := repository.NewMemoryAuditLogRepository()
	det, noon := noonDetector(audit)
	ip := "203.0.113.7"

	for i := 0; i < 5; i++ {
		audit.Seed(failedLoginAt(ip, noon.Add(-20*time.Minute)))
	}
	current := failedLoginAt(ip, noon)
	audit.Seed(current)

	assert.Empty(t, det.Scan(context.Background(), current))
}

func TestScanFirstEverLoginNotFlaggedAsNewIP(t *testing.T) {
	audit := repository.NewMemoryAuditLogRepository()
	det, noon := noonDetector(audit)
	userID := uuid.New()

	current := successfulLoginAt(userID, "203.0.113.7", noon)
	audit.Seed(current)

	assert.Empty(t, det.Scan(context.Background(), current))
}

func TestScanFlagsLoginFromNewIP(t *testing.T) {
	audit := repository.NewMemoryAuditLogRepository()
	det, noon := noonDetector(audit)
	userID := uuid.New()

	audit.Seed(successfulLoginAt(userID, "198.51.100.1", noon.Add(-24*time.Hour)))
	current := successfulLoginAt(userID, "203.0.113.7", noon)
	audit.Seed(current)

	flags := det.Scan(context.Background(), current)
	assert.Contains(t, alertTypes(flags), alert.TypeNewLocation)
}

func TestScanKnownIPNotFlagged(t *testing.T) {
	audit := repository.NewMemoryAuditLogRepository()
	det, noon := noonDetector(audit)
	userID := uuid.New()

	audit.Seed(successfulLoginAt(userID, "203.0.113.7", noon.Add(-24*time.Hour)))
	current := successfulLoginAt(userID, "203.0.113.7", noon)
	audit.Seed(current)

	assert.Empty(t, det.Scan(context.Background(), current))
}

func TestScanNewIPComparisonCapped(t *testing.T) {
	audit := repository.NewMemoryAuditLogRepository()
	det, noon := noonDetector(audit)
	userID := uuid.New()

	// The only login from this IP is older than the ten most recent ones,
	// so it falls outside the comparison window and the IP counts as new.
	audit.Seed(successfulLoginAt(userID, "203.0.113.7", noon.Add(-30*24*time.Hour)))
	for i := 0; i < 10; i++ {
		audit.Seed(successfulLoginAt(userID, "198.51.100.1", noon.Add(-time.Duration(i+1)*time.Hour)))
	}
	current := successfulLoginAt(userID, "203.0.113.7", noon)
	audit.Seed(current)

	flags := det.Scan(context.Background(), current)
	assert.Contains(t, alertTypes(flags), alert.TypeNewLocation)
}

func TestScanFlagsUnusualHour(t *testing.T) {
	audit := repository.NewMemoryAuditLogRepository()
	det := NewDetector(audit)
	night := time.Date(2025, 6, 1, 3, 30, 0, 0, time.Local)
	det.now = func() time.Time { return night }
	userID := uuid.New()

	audit.Seed(successfulLoginAt(userID, "203.0.113.7", night.Add(-24*time.Hour)))
	current := successfulLoginAt(userID, "203.0.113.7", night)
	audit.Seed(current)

	flags := det.Scan(context.Background(), current)
	require.Len(t, flags, 1)
	assert.Equal(t, alert.TypeUnusualTime, flags[0].AlertType)
}

func TestScanHourBoundaries(t *testing.T) {
	audit := repository.NewMemoryAuditLogRepository()
	userID := uuid.New()

	for _, tc := range []struct {
		hour    int
		flagged bool
	}{
		{1, false}, {2, true}, {4, true}, {5, false},
	} {
		det := NewDetector(audit)
		at := time.Date(2025, 6, 1, tc.hour, 0, 0, 0, time.Local)
		det.now = func() time.Time { return at }

		audit.Seed(successfulLoginAt(userID, "203.0.113.7", at.Add(-24*time.Hour)))
		current := successfulLoginAt(userID, "203.0.113.7", at)
		audit.Seed(current)

		flags := det.Scan(context.Background(), current)
		if tc.flagged {
			assert.Contains(t, alertTypes(flags), alert.TypeUnusualTime, "hour %d", tc.hour)
		} else {
			assert.NotContains(t, alertTypes(flags), alert.TypeUnusualTime, "hour %d", tc.hour)
		}
	}
}

func TestScanFlagsRapidLogins(t *testing.T) {
	audit := repository.NewMemoryAuditLogRepository()
	det, noon := noonDetector(audit)
	userID := uuid.New()
	ip := "203.0.113.7"

	for i := 0; i < 3; i++ {
		audit.Seed(successfulLoginAt(userID, ip, noon.Add(-time.Duration(i+1)*10*time.Second)))
	}
	current := successfulLoginAt(userID, ip, noon)
	audit.Seed(current)

	flags := det.Scan(context.Background(), current)
	assert.Contains(t, alertTypes(flags), alert.TypeRapidLogins)
}

func TestScanQueryFailureSkipsCheck(t *testing.T) {
	audit := repository.NewMemoryAuditLogRepository()
	det, noon := noonDetector(audit)
	ip := "203.0.113.7"

	current := failedLoginAt(ip, noon)
	audit.Seed(current)
	audit.FailNext = context.DeadlineExceeded

	assert.Empty(t, det.Scan(context.Background(), current))
}
