package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sentryops/account-security/internal/alert"
	"github.com/sentryops/account-security/internal/models"
	"github.com/sentryops/account-security/internal/repository"
	"github.com/sentryops/account-security/internal/util/logger"
)

// geoResolver resolves an IP to a location, failing open to a zero result.
type geoResolver interface {
	Resolve(ctx context.Context, ip string) models.GeolocationResult
}

// LogRequest describes one security event to record.
type LogRequest struct {
	UserID       *uuid.UUID
	EventType    string
	EventDetails models.JSONMap
	IPAddress    string
	UserAgent    string
	Success      bool
}

// LogResult reports the outcome of recording an event.
type LogResult struct {
	Success    bool `json:"success"`
	AlertsSent int  `json:"alertsSent"`
}

// EventLogger persists security events enriched with geolocation and runs
// suspicious-activity detection on them. The audit insert is the only
// hard dependency: detection and alerting failures are logged and
// swallowed so the event record always wins.
type EventLogger struct {
	audit      repository.AuditLogRepository
	profiles   repository.ProfileRepository
	resolver   geoResolver
	detector   *Detector
	dispatcher alert.Dispatcher
	now        func() time.Time
}

func NewEventLogger(audit repository.AuditLogRepository, profiles repository.ProfileRepository, resolver geoResolver, detector *Detector, dispatcher alert.Dispatcher) *EventLogger {
	return &EventLogger{
		audit:      audit,
		profiles:   profiles,
		resolver:   resolver,
		detector:   detector,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// Log records the event and dispatches an alert per suspicious pattern
// found around it. Alerts are fire-and-forget; the returned count is the
// number handed to the dispatcher.
func (l *EventLogger) Log(ctx context.Context, req LogRequest) (LogResult, error) {
	geo := l.resolver.Resolve(ctx, req.IPAddress)

	entry := models.SecurityAuditLogEntry{
		ID:           uuid.New(),
		UserID:       req.UserID,
		EventType:    req.EventType,
		EventDetails: req.EventDetails,
		IPAddress:    req.IPAddress,
		UserAgent:    req.UserAgent,
		Success:      req.Success,
		CreatedAt:    l.now().UTC(),
	}
	entry.SetGeolocation(geo)

	if err := l.audit.Insert(ctx, &entry); err != nil {
		return LogResult{}, fmt.Errorf("insert audit entry: %w", err)
	}

	flags := l.detector.Scan(ctx, entry)
	if entry.IsHighRisk && entry.EventType == models.EventLogin && entry.Success {
		flags = append(flags, Flag{
			AlertType: alert.TypeHighRiskRegion,
			Details:   fmt.Sprintf("Login from %s, a high-risk region", derefOr(entry.Country, "an unknown country")),
		})
	}

	return LogResult{Success: true, AlertsSent: l.dispatch(ctx, entry, flags)}, nil
}

func (l *EventLogger) dispatch(ctx context.Context, entry models.SecurityAuditLogEntry, flags []Flag) int {
	if len(flags) == 0 {
		return 0
	}
	if entry.UserID == nil {
		logger.Warnf("Skipping %d alerts for anonymous event %s", len(flags), entry.EventType)
		return 0
	}
	profile, err := l.profiles.GetProfile(ctx, *entry.UserID)
	if err != nil {
		logger.Warnf("Skipping %d alerts, profile lookup failed for user %s: %v", len(flags), *entry.UserID, err)
		return 0
	}

	location := formatLocation(derefOr(entry.City, ""), derefOr(entry.Country, ""))
	sent := 0
	for _, f := range flags {
		l.dispatcher.Dispatch(alert.Alert{
			Email:        profile.Email,
			UserName:     profile.FullName,
			AlertType:    f.AlertType,
			AlertDetails: f.Details,
			Timestamp:    l.now().UTC(),
			IPAddress:    entry.IPAddress,
			Location:     location,
		})
		sent++
	}
	return sent
}

func derefOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
