package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sentryops/account-security/internal/models"
	"github.com/sentryops/account-security/internal/repository"
)

// Category weights of the composite security score.
const (
	twoFactorMax      = 30
	passwordAgeMax    = 25
	trustedDevicesMax = 30
	activeSessionsMax = 15
)

// ScoreService computes a 0-100 security posture score from a user's
// two-factor state, password age, device list, and session count.
type ScoreService struct {
	profiles repository.ProfileRepository
	devices  repository.DeviceRepository
	sessions repository.SessionRepository
	now      func() time.Time
}

func NewScoreService(profiles repository.ProfileRepository, devices repository.DeviceRepository, sessions repository.SessionRepository) *ScoreService {
	return &ScoreService{
		profiles: profiles,
		devices:  devices,
		sessions: sessions,
		now:      time.Now,
	}
}

// Calculate evaluates the four categories in order and accumulates one
// recommendation per deficiency found.
func (s *ScoreService) Calculate(ctx context.Context, userID uuid.UUID) (*models.SecurityScore, error) {
	score := &models.SecurityScore{
		MaxScore: twoFactorMax + passwordAgeMax + trustedDevicesMax + activeSessionsMax,
	}

	twoFA, err := s.twoFactorScore(ctx, userID, score)
	if err != nil {
		return nil, err
	}
	score.Breakdown.TwoFactor = twoFA

	pwAge, err := s.passwordAgeScore(ctx, userID, score)
	if err != nil {
		return nil, err
	}
	score.Breakdown.PasswordAge = pwAge

	devices, err := s.trustedDeviceScore(ctx, userID, score)
	if err != nil {
		return nil, err
	}
	score.Breakdown.TrustedDevices = devices

	sessions, err := s.sessionScore(ctx, userID, score)
	if err != nil {
		return nil, err
	}
	score.Breakdown.ActiveSessions = sessions

	score.TotalScore = twoFA.Score + pwAge.Score + devices.Score + sessions.Score
	switch {
	case score.TotalScore >= 80:
		score.RiskLevel = models.RiskLow
	case score.TotalScore >= 50:
		score.RiskLevel = models.RiskMedium
	default:
		score.RiskLevel = models.RiskHigh
	}
	return score, nil
}

func (s *ScoreService) twoFactorScore(ctx context.Context, userID uuid.UUID, score *models.SecurityScore) (models.CategoryScore, error) {
	out := models.CategoryScore{Max: twoFactorMax}
	twoFA, err := s.profiles.GetTwoFactor(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		// no row means two-factor was never set up
	case err != nil:
		return out, fmt.Errorf("load two-factor state: %w", err)
	case twoFA.Enabled:
		out.Score = twoFactorMax
	}
	if out.Score == 0 {
		score.Recommendations = append(score.Recommendations,
			"Enable two-factor authentication to protect your account")
	}
	return out, nil
}

func (s *ScoreService) passwordAgeScore(ctx context.Context, userID uuid.UUID, score *models.SecurityScore) (models.PasswordAgeScore, error) {
	out := models.PasswordAgeScore{Max: passwordAgeMax}
	profile, err := s.profiles.GetProfile(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return out, nil
	case err != nil:
		return out, fmt.Errorf("load profile: %w", err)
	case profile.PasswordChangedAt == nil:
		return out, nil
	}

	days := int(s.now().Sub(*profile.PasswordChangedAt).Hours() / 24)
	out.DaysOld = &days
	switch {
	case days <= 30:
		out.Score = passwordAgeMax
	case days <= 60:
		out.Score = 15
		score.Recommendations = append(score.Recommendations,
			"Consider changing your password")
	case days <= 90:
		out.Score = 5
		score.Recommendations = append(score.Recommendations,
			"Your password expires soon, change it")
	default:
		score.Recommendations = append(score.Recommendations,
			"Your password has expired, change it immediately")
	}
	return out, nil
}

func (s *ScoreService) trustedDeviceScore(ctx context.Context, userID uuid.UUID, score *models.SecurityScore) (models.CategoryScore, error) {
	out := models.CategoryScore{Max: trustedDevicesMax}

	trusted, err := s.devices.CountTrusted(ctx, userID)
	if err != nil {
		return out, fmt.Errorf("count trusted devices: %w", err)
	}
	if trusted > 0 {
		out.Score += 20
	} else {
		score.Recommendations = append(score.Recommendations,
			"Mark devices you use regularly as trusted")
	}

	recent, err := s.devices.CountFirstSeenSince(ctx, userID, s.now().Add(-7*24*time.Hour))
	if err != nil {
		return out, fmt.Errorf("count recent devices: %w", err)
	}
	if recent == 0 {
		out.Score += 10
	} else {
		score.Recommendations = append(score.Recommendations,
			"Review recent logins, a new device was added in the last 7 days")
	}
	return out, nil
}

func (s *ScoreService) sessionScore(ctx context.Context, userID uuid.UUID, score *models.SecurityScore) (models.CategoryScore, error) {
	out := models.CategoryScore{Max: activeSessionsMax}
	active, err := s.sessions.CountActive(ctx, userID)
	if err != nil {
		return out, fmt.Errorf("count active sessions: %w", err)
	}
	switch {
	case active <= 1:
		out.Score = activeSessionsMax
	case active <= 3:
		out.Score = 10
	default:
		out.Score = 5
		score.Recommendations = append(score.Recommendations,
			"Revoke sessions you no longer use")
	}
	return out, nil
}
