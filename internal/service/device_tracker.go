package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sentryops/account-security/internal/alert"
	"github.com/sentryops/account-security/internal/models"
	"github.com/sentryops/account-security/internal/repository"
	"github.com/sentryops/account-security/internal/util/logger"
)

// TrackRequest ties a fingerprinted device to a user and session.
type TrackRequest struct {
	UserID       uuid.UUID
	SessionToken string
	IPAddress    string
	Device       models.DeviceInfo
}

// TrackResult reports what Track learned about the device.
type TrackResult struct {
	Success     bool `json:"success"`
	IsNewDevice bool `json:"isNewDevice"`
	IsTrusted   bool `json:"isTrusted"`
}

// DeviceTracker registers devices per user and keeps their session rows
// fresh. Device identity is the primary concern: a session upsert failure
// is logged but does not fail the call.
type DeviceTracker struct {
	devices    repository.DeviceRepository
	sessions   repository.SessionRepository
	profiles   repository.ProfileRepository
	dispatcher alert.Dispatcher
	now        func() time.Time
}

func NewDeviceTracker(devices repository.DeviceRepository, sessions repository.SessionRepository, profiles repository.ProfileRepository, dispatcher alert.Dispatcher) *DeviceTracker {
	return &DeviceTracker{
		devices:    devices,
		sessions:   sessions,
		profiles:   profiles,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// Track upserts the device identified by the request fingerprint, alerts on
// the first sighting, and refreshes the session row when a token is present.
func (t *DeviceTracker) Track(ctx context.Context, req TrackRequest) (TrackResult, error) {
	now := t.now().UTC()

	isNew := false
	device, err := t.devices.GetByFingerprint(ctx, req.UserID, req.Device.Fingerprint)
	switch {
	case err == nil:
		if err := t.devices.TouchLastUsed(ctx, device.ID, now); err != nil {
			logger.Warnf("Device touch failed for %s: %v", device.ID, err)
		}
	case errors.Is(err, repository.ErrNotFound):
		fresh := &models.UserDevice{
			ID:                uuid.New(),
			UserID:            req.UserID,
			DeviceFingerprint: req.Device.Fingerprint,
			DeviceName:        fmt.Sprintf("%s on %s", req.Device.Browser, req.Device.OS),
			Browser:           req.Device.Browser,
			BrowserVersion:    req.Device.BrowserVersion,
			OS:                req.Device.OS,
			OSVersion:         req.Device.OSVersion,
			DeviceType:        req.Device.DeviceType,
			ScreenResolution:  req.Device.ScreenResolution,
			Timezone:          req.Device.Timezone,
			FirstSeenAt:       now,
			LastUsedAt:        now,
		}
		device, err = t.devices.Insert(ctx, fresh)
		if err != nil {
			return TrackResult{}, fmt.Errorf("register device: %w", err)
		}
		// A racing login may have created the row first; only the winner
		// announces the device.
		if device.ID == fresh.ID {
			isNew = true
			t.notifyNewDevice(ctx, req, device)
		}
	default:
		return TrackResult{}, fmt.Errorf("look up device: %w", err)
	}

	if req.SessionToken != "" {
		session := &models.UserSession{
			ID:           uuid.New(),
			UserID:       req.UserID,
			DeviceID:     device.ID,
			SessionToken: req.SessionToken,
			LastActiveAt: now,
			CreatedAt:    now,
		}
		if err := t.sessions.UpsertByToken(ctx, session); err != nil {
			logger.Warnf("Session upsert failed for user %s: %v", req.UserID, err)
		}
	}

	return TrackResult{Success: true, IsNewDevice: isNew, IsTrusted: device.IsTrusted}, nil
}

func (t *DeviceTracker) notifyNewDevice(ctx context.Context, req TrackRequest, device *models.UserDevice) {
	profile, err := t.profiles.GetProfile(ctx, req.UserID)
	if err != nil {
		logger.Warnf("Skipping new-device alert, profile lookup failed for user %s: %v", req.UserID, err)
		return
	}
	t.dispatcher.Dispatch(alert.Alert{
		Email:        profile.Email,
		UserName:     profile.FullName,
		AlertType:    alert.TypeNewDevice,
		AlertDetails: fmt.Sprintf("New %s device: %s %s on %s", device.DeviceType, device.Browser, device.BrowserVersion, device.OS),
		Timestamp:    t.now().UTC(),
		IPAddress:    req.IPAddress,
	})
}
