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

// Decision is the outcome of a geofencing evaluation.
type Decision struct {
	Allowed     bool   `json:"allowed"`
	Reason      string `json:"reason,omitempty"`
	RuleMatched string `json:"ruleMatched,omitempty"`
}

// GeofenceService evaluates login locations against country-level
// allow/block rules with per-user exceptions. Rule lookups fail open:
// if the rule set cannot be fetched the login is allowed.
type GeofenceService struct {
	rules      repository.GeofencingRepository
	profiles   repository.ProfileRepository
	dispatcher alert.Dispatcher
	now        func() time.Time
}

func NewGeofenceService(rules repository.GeofencingRepository, profiles repository.ProfileRepository, dispatcher alert.Dispatcher) *GeofenceService {
	return &GeofenceService{
		rules:      rules,
		profiles:   profiles,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// Evaluate decides whether a login from the given country is permitted.
// countryCode may be nil when geolocation failed; unknown locations are
// always allowed. city and country are used only for alert context.
func (s *GeofenceService) Evaluate(ctx context.Context, userID uuid.UUID, countryCode *string, city, country, ipAddress string) Decision {
	if countryCode == nil || *countryCode == "" {
		return Decision{Allowed: true, Reason: "location could not be determined"}
	}
	code := *countryCode

	exceptions, err := s.rules.ActiveExceptions(ctx, userID, s.now())
	if err != nil {
		logger.Warnf("Geofencing exception lookup failed for user %s: %v", userID, err)
	}
	for _, ex := range exceptions {
		if ex.Contains(code) {
			return Decision{Allowed: true, Reason: "user exception active"}
		}
	}

	rules, err := s.rules.ActiveRules(ctx)
	if err != nil {
		logger.Warnf("Geofencing rule lookup failed, allowing login: %v", err)
		return Decision{Allowed: true, Reason: "geofencing rules unavailable"}
	}
	if len(rules) == 0 {
		return Decision{Allowed: true}
	}

	hasAllowRule := false
	for _, rule := range rules {
		if rule.RuleType == models.RuleAllow {
			hasAllowRule = true
		}
		if !rule.Contains(code) {
			continue
		}
		if rule.RuleType == models.RuleBlock {
			s.notifyBlocked(ctx, userID, alert.TypeLoginBlocked,
				fmt.Sprintf("A login attempt from %s was blocked by rule %q", country, rule.RuleName),
				city, country, ipAddress)
			return Decision{
				Allowed:     false,
				Reason:      fmt.Sprintf("access from %s is not permitted", country),
				RuleMatched: rule.RuleName,
			}
		}
		return Decision{Allowed: true, RuleMatched: rule.RuleName}
	}

	if hasAllowRule {
		s.notifyBlocked(ctx, userID, alert.TypeUnusualLocation,
			fmt.Sprintf("A login attempt from %s did not match any allowed region", country),
			city, country, ipAddress)
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("%s is not on the allow list", country),
		}
	}
	return Decision{Allowed: true}
}

func (s *GeofenceService) notifyBlocked(ctx context.Context, userID uuid.UUID, alertType, details, city, country, ipAddress string) {
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		logger.Warnf("Skipping %s alert, profile lookup failed for user %s: %v", alertType, userID, err)
		return
	}
	s.dispatcher.Dispatch(alert.Alert{
		Email:        profile.Email,
		UserName:     profile.FullName,
		AlertType:    alertType,
		AlertDetails: details,
		Timestamp:    s.now().UTC(),
		IPAddress:    ipAddress,
		Location:     formatLocation(city, country),
	})
}

func formatLocation(city, country string) string {
	switch {
	case city != "" && country != "":
		return city + ", " + country
	case country != "":
		return country
	default:
		return "Unknown"
	}
}
