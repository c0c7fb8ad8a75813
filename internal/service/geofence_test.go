package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentryops/account-security/internal/alert"
	"github.com/sentryops/account-security/internal/models"
	"github.com/sentryops/account-security/internal/repository"
)

func newGeofenceFixture(t *testing.T) (*GeofenceService, *repository.MemoryGeofencingRepository, *repository.MemoryProfileRepository, *alert.CaptureDispatcher) {
	t.Helper()
	rules := repository.NewMemoryGeofencingRepository()
	profiles := repository.NewMemoryProfileRepository()
	capture := &alert.CaptureDispatcher{}
	svc := NewGeofenceService(rules, profiles, capture)
	return svc, rules, profiles, capture
}

func strptr(s string) *string { return &s }

func TestEvaluateAllowsWhenNoRulesConfigured(t *testing.T) {
	svc, _, _, capture := newGeofenceFixture(t)

	d := svc.Evaluate(context.Background(), uuid.New(), strptr("FR"), "Paris", "France", "203.0.113.7")

	assert.True(t, d.Allowed)
	assert.Empty(t, capture.Alerts())
}

func TestEvaluateAllowsUnknownLocation(t *testing.T) {
	svc, rules, _, capture := newGeofenceFixture(t)
	rules.SeedRules(models.GeofencingRule{
		RuleName: "block all", RuleType: models.RuleBlock,
		CountryCodes: []string{"FR", "US", "DE"}, IsActive: true,
	})

	d := svc.Evaluate(context.Background(), uuid.New(), nil, "", "", "203.0.113.7")

	assert.True(t, d.Allowed)
	assert.Equal(t, "location could not be determined", d.Reason)
	assert.Empty(t, capture.Alerts())
}

func TestEvaluateBlockRuleDeniesAndAlerts(t *testing.T) {
	svc, rules, profiles, capture := newGeofenceFixture(t)
	userID := uuid.New()
	profiles.SeedProfile(models.Profile{UserID: userID, Email: "ana@example.com", FullName: "Ana"})
	rules.SeedRules(models.GeofencingRule{
		RuleName: "sanctions", RuleType: models.RuleBlock,
		CountryCodes: []string{"KP", "IR"}, IsActive: true,
	})

	d := svc.Evaluate(context.Background(), userID, strptr("IR"), "Tehran", "Iran", "203.0.113.7")

	assert.False(t, d.Allowed)
	assert.Equal(t, "sanctions", d.RuleMatched)

	require.Len(t, capture.Alerts(), 1)
	a := capture.Alerts()[0]
	assert.Equal(t, alert.TypeLoginBlocked, a.AlertType)
	assert.Equal(t, "ana@example.com", a.Email)
	assert.Equal(t, "Tehran, Iran", a.Location)
}

func TestEvaluateAllowRuleMatches(t *testing.T) {
	svc, rules, _, _ := newGeofenceFixture(t)
	rules.SeedRules(models.GeofencingRule{
		RuleName: "home markets", RuleType: models.RuleAllow,
		CountryCodes: []string{"US", "CA"}, IsActive: true,
	})

	d := svc.Evaluate(context.Background(), uuid.New(), strptr("US"), "Boston", "United States", "203.0.113.7")

	assert.True(t, d.Allowed)
	assert.Equal(t, "home markets", d.RuleMatched)
}

func TestEvaluateDeniesOutsideAllowList(t *testing.T) {
	svc, rules, profiles, capture := newGeofenceFixture(t)
	userID := uuid.New()
	profiles.SeedProfile(models.Profile{UserID: userID, Email: "ana@example.com"})
	rules.SeedRules(models.GeofencingRule{
		RuleName: "home markets", RuleType: models.RuleAllow,
		CountryCodes: []string{"US"}, IsActive: true,
	})

	d := svc.Evaluate(context.Background(), userID, strptr("FR"), "Paris", "France", "203.0.113.7")

	assert.False(t, d.Allowed)
	assert.Empty(t, d.RuleMatched)
	require.Len(t, capture.Alerts(), 1)
	assert.Equal(t, alert.TypeUnusualLocation, capture.Alerts()[0].AlertType)
}

func TestEvaluateAllowsWhenOnlyBlockRulesMiss(t *testing.T) {
	svc, rules, _, capture := newGeofenceFixture(t)
	rules.SeedRules(models.GeofencingRule{
		RuleName: "sanctions", RuleType: models.RuleBlock,
		CountryCodes: []string{"KP"}, IsActive: true,
	})

	d := svc.Evaluate(context.Background(), uuid.New(), strptr("FR"), "Paris", "France", "203.0.113.7")

	assert.True(t, d.Allowed)
	assert.Empty(t, capture.Alerts())
}

func TestEvaluateNewestRuleWins(t *testing.T) {
	svc, rules, profiles, _ := newGeofenceFixture(t)
	userID := uuid.New()
	profiles.SeedProfile(models.Profile{UserID: userID, Email: "ana@example.com"})
	now := time.Now().UTC()
	rules.SeedRules(
		models.GeofencingRule{
			RuleName: "old block", RuleType: models.RuleBlock,
			CountryCodes: []string{"BR"}, IsActive: true, CreatedAt: now.Add(-time.Hour),
		},
		models.GeofencingRule{
			RuleName: "new allow", RuleType: models.RuleAllow,
			CountryCodes: []string{"BR"}, IsActive: true, CreatedAt: now,
		},
	)

	d := svc.Evaluate(context.Background(), userID, strptr("BR"), "", "Brazil", "203.0.113.7")

	assert.True(t, d.Allowed)
	assert.Equal(t, "new allow", d.RuleMatched)
}

func TestEvaluateExceptionOverridesBlock(t *testing.T) {
	svc, rules, _, capture := newGeofenceFixture(t)
	userID := uuid.New()
	rules.SeedRules(models.GeofencingRule{
		RuleName: "sanctions", RuleType: models.RuleBlock,
		CountryCodes: []string{"RU"}, IsActive: true,
	})
	rules.SeedExceptions(models.GeofencingException{
		UserID: userID, CountryCodes: []string{"RU"},
	})

	d := svc.Evaluate(context.Background(), userID, strptr("RU"), "", "Russia", "203.0.113.7")

	assert.True(t, d.Allowed)
	assert.Equal(t, "user exception active", d.Reason)
	assert.Empty(t, capture.Alerts())
}

func TestEvaluateExpiredExceptionDoesNotApply(t *testing.T) {
	svc, rules, profiles, _ := newGeofenceFixture(t)
	userID := uuid.New()
	profiles.SeedProfile(models.Profile{UserID: userID, Email: "ana@example.com"})
	expired := time.Now().UTC().Add(-time.Minute)
	rules.SeedRules(models.GeofencingRule{
		RuleName: "sanctions", RuleType: models.RuleBlock,
		CountryCodes: []string{"RU"}, IsActive: true,
	})
	rules.SeedExceptions(models.GeofencingException{
		UserID: userID, CountryCodes: []string{"RU"}, ExpiresAt: &expired,
	})

	d := svc.Evaluate(context.Background(), userID, strptr("RU"), "", "Russia", "203.0.113.7")

	assert.False(t, d.Allowed)
}

func TestEvaluateFailsOpenOnRuleLookupError(t *testing.T) {
	svc, rules, _, capture := newGeofenceFixture(t)
	rules.RulesErr = errors.New("connection refused")

	d := svc.Evaluate(context.Background(), uuid.New(), strptr("KP"), "", "North Korea", "203.0.113.7")

	assert.True(t, d.Allowed)
	assert.Equal(t, "geofencing rules unavailable", d.Reason)
	assert.Empty(t, capture.Alerts())
}

func TestEvaluateInactiveRulesIgnored(t *testing.T) {
	svc, rules, _, _ := newGeofenceFixture(t)
	rules.SeedRules(models.GeofencingRule{
		RuleName: "disabled", RuleType: models.RuleBlock,
		CountryCodes: []string{"FR"}, IsActive: false,
	})

	d := svc.Evaluate(context.Background(), uuid.New(), strptr("FR"), "Paris", "France", "203.0.113.7")

	assert.True(t, d.Allowed)
}
