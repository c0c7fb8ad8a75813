// Package fingerprint derives a stable device identity from browser
// environment signals. The fingerprint is a non-reversible identity key for a
// browser/device configuration, not a unique hardware ID: identical signals
// reproduce the same digest, any changed signal produces a new one.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"

	"github.com/sentryops/account-security/internal/models"
)

// Signals are the raw environment inputs collected client-side. TimezoneOffset
// is minutes from UTC as reported by the client clock. DeviceMemory is the
// coarse gigabyte estimate browsers expose, 0 when unavailable.
type Signals struct {
	UserAgent           string  `json:"userAgent"`
	Language            string  `json:"language"`
	ScreenResolution    string  `json:"screenResolution"`
	ColorDepth          int     `json:"colorDepth"`
	Timezone            string  `json:"timezone"`
	TimezoneOffset      int     `json:"timezoneOffset"`
	SessionStorage      bool    `json:"sessionStorage"`
	LocalStorage        bool    `json:"localStorage"`
	HardwareConcurrency int     `json:"hardwareConcurrency"`
	DeviceMemory        float64 `json:"deviceMemory"`
}

const unknown = "Unknown"

// browserMatchers are checked in order; several UA strings carry multiple
// vendor tokens (Edge and Opera both contain "Chrome", Chrome contains
// "Safari"), so first match wins.
var browserMatchers = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"Firefox", regexp.MustCompile(`Firefox/([\d.]+)`)},
	{"Samsung Internet", regexp.MustCompile(`SamsungBrowser/([\d.]+)`)},
	{"Opera", regexp.MustCompile(`(?:Opera|OPR)/([\d.]+)`)},
	{"Internet Explorer", regexp.MustCompile(`(?:MSIE |rv:)([\d.]+)`)},
	{"Edge (Legacy)", regexp.MustCompile(`Edge/([\d.]+)`)},
	{"Edge", regexp.MustCompile(`Edg/([\d.]+)`)},
	{"Chrome", regexp.MustCompile(`Chrome/([\d.]+)`)},
	{"Safari", regexp.MustCompile(`Version/([\d.]+).*Safari`)},
}

var windowsVersions = map[string]string{
	"10.0": "10",
	"6.3":  "8.1",
	"6.2":  "8",
	"6.1":  "7",
	"6.0":  "Vista",
	"5.1":  "XP",
}

var (
	windowsRe = regexp.MustCompile(`Windows NT ([\d.]+)`)
	macRe     = regexp.MustCompile(`Mac OS X ([\d_.]+)`)
	androidRe = regexp.MustCompile(`Android ([\d.]+)`)
	iosRe     = regexp.MustCompile(`OS ([\d_]+) like Mac OS X`)

	mobileRe = regexp.MustCompile(`(?i)mobile|iphone|ipod|android|blackberry|opera mini|iemobile|wpdesktop`)
)

// Compute derives the DeviceInfo for the given signals. It never fails;
// unrecognized user agents degrade to "Unknown" fields, and the fingerprint is
// still stable because it hashes the raw signals, not the parsed report.
func Compute(sig Signals) models.DeviceInfo {
	browser, browserVersion := parseBrowser(sig.UserAgent)
	os, osVersion := parseOS(sig.UserAgent)

	return models.DeviceInfo{
		Fingerprint:      digest(sig),
		Browser:          browser,
		BrowserVersion:   browserVersion,
		OS:               os,
		OSVersion:        osVersion,
		DeviceType:       classifyDeviceType(sig.UserAgent),
		ScreenResolution: sig.ScreenResolution,
		Timezone:         sig.Timezone,
	}
}

func digest(sig Signals) string {
	parts := []string{
		sig.UserAgent,
		sig.Language,
		sig.ScreenResolution,
		strconv.Itoa(sig.ColorDepth),
		sig.Timezone,
		strconv.Itoa(sig.TimezoneOffset),
		strconv.FormatBool(sig.SessionStorage),
		strconv.FormatBool(sig.LocalStorage),
		strconv.Itoa(sig.HardwareConcurrency),
		strconv.FormatFloat(sig.DeviceMemory, 'g', -1, 64),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func parseBrowser(ua string) (name, version string) {
	for _, m := range browserMatchers {
		if sub := m.pattern.FindStringSubmatch(ua); sub != nil {
			return m.name, sub[1]
		}
	}
	return unknown, unknown
}

func parseOS(ua string) (name, version string) {
	if sub := windowsRe.FindStringSubmatch(ua); sub != nil {
		if v, ok := windowsVersions[sub[1]]; ok {
			return "Windows", v
		}
		return "Windows", sub[1]
	}
	// iOS before macOS: an iPhone UA also carries "like Mac OS X".
	if sub := iosRe.FindStringSubmatch(ua); sub != nil {
		return "iOS", strings.ReplaceAll(sub[1], "_", ".")
	}
	if sub := macRe.FindStringSubmatch(ua); sub != nil {
		return "macOS", strings.ReplaceAll(sub[1], "_", ".")
	}
	if sub := androidRe.FindStringSubmatch(ua); sub != nil {
		return "Android", sub[1]
	}
	if strings.Contains(ua, "Linux") {
		return "Linux", unknown
	}
	return unknown, unknown
}

func classifyDeviceType(ua string) string {
	if isTablet(ua) {
		return "Tablet"
	}
	if mobileRe.MatchString(ua) {
		return "Mobile"
	}
	return "Desktop"
}

// isTablet avoids lookahead (unsupported by RE2): Android UAs without the
// "Mobi" token are tablets.
func isTablet(ua string) bool {
	lower := strings.ToLower(ua)
	if strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet") ||
		strings.Contains(lower, "playbook") || strings.Contains(lower, "silk") {
		return true
	}
	return strings.Contains(lower, "android") && !strings.Contains(lower, "mobi")
}
