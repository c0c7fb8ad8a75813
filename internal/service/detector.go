package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sentryops/account-security/internal/alert"
	"github.com/sentryops/account-security/internal/models"
	"github.com/sentryops/account-security/internal/repository"
	"github.com/sentryops/account-security/internal/util/logger"
)

const (
	failedLoginWindow    = 15 * time.Minute
	failedLoginThreshold = 3 // prior failures before the current one

	rapidLoginWindow    = 60 * time.Second
	rapidLoginThreshold = 3 // prior successes before the current one

	unusualHourStart = 2 // inclusive, server local time
	unusualHourEnd   = 5 // exclusive

	// Only this many prior successful logins are consulted when deciding
	// whether an IP is new. Older history does not suppress the alert.
	newIPHistoryCap = 10
)

// Flag marks one suspicious pattern found around a persisted audit entry.
type Flag struct {
	AlertType string
	Details   string
}

// Detector scans login activity recorded in the audit log for suspicious
// patterns. Scan runs after the triggering entry has been persisted, so
// thresholds below account for the entry itself. Query failures skip the
// affected check rather than failing the scan.
type Detector struct {
	audit repository.AuditLogRepository
	now   func() time.Time
}

func NewDetector(audit repository.AuditLogRepository) *Detector {
	return &Detector{audit: audit, now: time.Now}
}

// Scan inspects the audit log around entry and returns a flag per pattern
// detected. The entry must already be inserted.
func (d *Detector) Scan(ctx context.Context, entry models.SecurityAuditLogEntry) []Flag {
	var flags []Flag
	now := d.now()

	if entry.EventType == models.EventLoginFailed {
		n, err := d.audit.CountFailedLoginsFromIP(ctx, entry.IPAddress, now.Add(-failedLoginWindow))
		switch {
		case err != nil:
			logger.Warnf("Failed-login count unavailable for %s: %v", entry.IPAddress, err)
		case n >= failedLoginThreshold+1:
			flags = append(flags, Flag{
				AlertType: alert.TypeFailedLogins,
				Details:   fmt.Sprintf("%d failed login attempts from %s in the last 15 minutes", n, entry.IPAddress),
			})
		}
	}

	if entry.EventType != models.EventLogin || !entry.Success || entry.UserID == nil {
		return flags
	}
	userID := *entry.UserID

	history, err := d.audit.RecentSuccessfulLogins(ctx, userID, newIPHistoryCap+1)
	if err != nil {
		logger.Warnf("Login history unavailable for user %s: %v", userID, err)
	} else if newIP(history, entry) {
		flags = append(flags, Flag{
			AlertType: alert.TypeNewLocation,
			Details:   fmt.Sprintf("First login from IP %s", entry.IPAddress),
		})
	}

	if h := now.Hour(); h >= unusualHourStart && h < unusualHourEnd {
		flags = append(flags, Flag{
			AlertType: alert.TypeUnusualTime,
			Details:   fmt.Sprintf("Login at %02d:%02d, outside your usual hours", now.Hour(), now.Minute()),
		})
	}

	n, err := d.audit.CountSuccessfulLoginsSince(ctx, userID, now.Add(-rapidLoginWindow))
	switch {
	case err != nil:
		logger.Warnf("Rapid-login count unavailable for user %s: %v", userID, err)
	case n >= rapidLoginThreshold+1:
		flags = append(flags, Flag{
			AlertType: alert.TypeRapidLogins,
			Details:   fmt.Sprintf("%d successful logins within 60 seconds", n),
		})
	}

	return flags
}

// newIP reports whether entry's IP appears in no prior successful login.
// A first-ever login carries no history and is not flagged.
func newIP(history []models.SecurityAuditLogEntry, entry models.SecurityAuditLogEntry) bool {
	seenPrior := false
	for _, h := range history {
		if h.ID == entry.ID {
			continue
		}
		seenPrior = true
		if h.IPAddress == entry.IPAddress {
			return false
		}
	}
	return seenPrior
}
