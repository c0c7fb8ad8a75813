package models

import (
	"time"

	"github.com/google/uuid"
)

// JSONMap is a simple type for JSON data
type JSONMap map[string]interface{}

// Audit event types written to security_audit_log.
const (
	EventLogin                = "login"
	EventLoginFailed          = "login_failed"
	EventLoginBlockedGeofence = "login_blocked_geofencing"
	EventLogout               = "logout"
	EventSignup               = "signup"
	EventPasswordChange       = "password_change"
	EventTwoFASetup           = "2fa_setup"
	EventTwoFAEnabled         = "2fa_enabled"
	EventTwoFADisabled        = "2fa_disabled"
	EventTwoFAVerified        = "2fa_verified"
	EventTwoFAVerifyFailed    = "2fa_verification_failed"
)

// GeolocationResult is the coarse location derived from a network address.
// All fields except IsHighRisk are nil when the address could not be resolved;
// an unresolved result is never an error condition for callers.
type GeolocationResult struct {
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	City        *string  `json:"city"`
	Country     *string  `json:"country"`
	CountryCode *string  `json:"countryCode"`
	Region      *string  `json:"region"`
	IsHighRisk  bool     `json:"isHighRisk"`
}

// DeviceInfo describes a browser/device combination. Fingerprint is a stable
// SHA-256 hex digest over the underlying environment signals.
type DeviceInfo struct {
	Fingerprint      string `json:"fingerprint"`
	Browser          string `json:"browser"`
	BrowserVersion   string `json:"browserVersion"`
	OS               string `json:"os"`
	OSVersion        string `json:"osVersion"`
	DeviceType       string `json:"deviceType"` // Desktop, Mobile, Tablet
	ScreenResolution string `json:"screenResolution"`
	Timezone         string `json:"timezone"`
}

// SecurityAuditLogEntry is one append-only row in security_audit_log,
// enriched with the geolocation resolved at write time. Rows are never
// updated or deleted by this service.
type SecurityAuditLogEntry struct {
	ID           uuid.UUID  `db:"id"`
	UserID       *uuid.UUID `db:"user_id"` // nil for pre-auth events
	EventType    string     `db:"event_type"`
	EventDetails JSONMap    `db:"event_details"`
	IPAddress    string     `db:"ip_address"`
	UserAgent    string     `db:"user_agent"`
	Success      bool       `db:"success"`
	Latitude     *float64   `db:"latitude"`
	Longitude    *float64   `db:"longitude"`
	City         *string    `db:"city"`
	Country      *string    `db:"country"`
	CountryCode  *string    `db:"country_code"`
	Region       *string    `db:"region"`
	IsHighRisk   bool       `db:"is_high_risk"`
	CreatedAt    time.Time  `db:"created_at"`
}

// SetGeolocation embeds a resolved location into the entry.
func (e *SecurityAuditLogEntry) SetGeolocation(geo GeolocationResult) {
	e.Latitude = geo.Latitude
	e.Longitude = geo.Longitude
	e.City = geo.City
	e.Country = geo.Country
	e.CountryCode = geo.CountryCode
	e.Region = geo.Region
	e.IsHighRisk = geo.IsHighRisk
}

// UserDevice is a known device for a user. (user_id, device_fingerprint) is
// unique; an insert hitting an existing pair falls back to a last_used_at touch.
type UserDevice struct {
	ID                uuid.UUID `db:"id"`
	UserID            uuid.UUID `db:"user_id"`
	DeviceFingerprint string    `db:"device_fingerprint"`
	DeviceName        string    `db:"device_name"`
	Browser           string    `db:"browser"`
	BrowserVersion    string    `db:"browser_version"`
	OS                string    `db:"os"`
	OSVersion         string    `db:"os_version"`
	DeviceType        string    `db:"device_type"`
	ScreenResolution  string    `db:"screen_resolution"`
	Timezone          string    `db:"timezone"`
	IsTrusted         bool      `db:"is_trusted"`
	FirstSeenAt       time.Time `db:"first_seen_at"`
	LastUsedAt        time.Time `db:"last_used_at"`
}

// UserSession is one row per authentication token, refreshed on every
// device-track call.
type UserSession struct {
	ID           uuid.UUID `db:"id"`
	UserID       uuid.UUID `db:"user_id"`
	DeviceID     uuid.UUID `db:"device_id"`
	SessionToken string    `db:"session_token"`
	IsRevoked    bool      `db:"is_revoked"`
	LastActiveAt time.Time `db:"last_active_at"`
	CreatedAt    time.Time `db:"created_at"`
}

// Geofencing rule types.
const (
	RuleAllow = "allow"
	RuleBlock = "block"
)

// GeofencingRule restricts or permits logins by country of origin. Rules are
// evaluated newest-first, first match wins.
type GeofencingRule struct {
	ID           uuid.UUID `db:"id"`
	RuleName     string    `db:"rule_name"`
	RuleType     string    `db:"rule_type"` // allow | block
	CountryCodes []string  `db:"country_codes"`
	IsActive     bool      `db:"is_active"`
	CreatedAt    time.Time `db:"created_at"`
}

// Contains reports whether the rule covers the given ISO country code.
func (r GeofencingRule) Contains(countryCode string) bool {
	for _, c := range r.CountryCodes {
		if c == countryCode {
			return true
		}
	}
	return false
}

// GeofencingException is a per-user override checked before any rule.
// A nil ExpiresAt means the exception is permanent.
type GeofencingException struct {
	ID           uuid.UUID  `db:"id"`
	UserID       uuid.UUID  `db:"user_id"`
	CountryCodes []string   `db:"country_codes"`
	ExpiresAt    *time.Time `db:"expires_at"`
	CreatedAt    time.Time  `db:"created_at"`
}

// Contains reports whether the exception covers the given ISO country code.
func (e GeofencingException) Contains(countryCode string) bool {
	for _, c := range e.CountryCodes {
		if c == countryCode {
			return true
		}
	}
	return false
}

// Profile is the read-only slice of the profiles table this service consumes.
type Profile struct {
	UserID            uuid.UUID  `db:"user_id"`
	Email             string     `db:"email"`
	FullName          string     `db:"full_name"`
	PasswordChangedAt *time.Time `db:"password_changed_at"`
}

// TwoFactor mirrors the enabled flag of a user_2fa row.
type TwoFactor struct {
	UserID  uuid.UUID `db:"user_id"`
	Enabled bool      `db:"enabled"`
}

// Risk tiers for the composite security score.
const (
	RiskLow    = "low"    // total >= 80
	RiskMedium = "medium" // total >= 50
	RiskHigh   = "high"   // total < 50
)

// CategoryScore is one weighted sub-score of the security score breakdown.
type CategoryScore struct {
	Score int `json:"score"`
	Max   int `json:"maxScore"`
}

// PasswordAgeScore carries the days-old figure alongside the sub-score.
// DaysOld is nil when the profile has no password_changed_at on record.
type PasswordAgeScore struct {
	Score   int  `json:"score"`
	Max     int  `json:"maxScore"`
	DaysOld *int `json:"daysOld,omitempty"`
}

// ScoreBreakdown holds the four weighted sub-scores.
type ScoreBreakdown struct {
	TwoFactor      CategoryScore    `json:"twoFactor"`
	PasswordAge    PasswordAgeScore `json:"passwordAge"`
	TrustedDevices CategoryScore    `json:"trustedDevices"`
	ActiveSessions CategoryScore    `json:"activeSessions"`
}

// SecurityScore is the composite 0-100 account security score. Computed on
// demand, never persisted.
type SecurityScore struct {
	TotalScore      int            `json:"totalScore"`
	MaxScore        int            `json:"maxScore"`
	Breakdown       ScoreBreakdown `json:"breakdown"`
	RiskLevel       string         `json:"riskLevel"`
	Recommendations []string       `json:"recommendations"`
}
