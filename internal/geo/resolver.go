// Package geo resolves network addresses to coarse locations and classifies
// high-risk origins. Resolution is always fail-open: provider outages and
// unparseable addresses degrade to an unknown location, never an error.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sentryops/account-security/internal/models"
	"github.com/sentryops/account-security/internal/util/logger"
)

// highRiskCountries is fixed business policy, not configuration: country codes
// flagged as elevated threat sources for login monitoring.
var highRiskCountries = map[string]struct{}{
	"KP": {}, "IR": {}, "SY": {}, "CU": {},
	"SD": {}, "RU": {}, "BY": {}, "VE": {},
}

// IsHighRiskCountry reports whether the ISO 3166-1 alpha-2 code is in the
// fixed high-risk set.
func IsHighRiskCountry(countryCode string) bool {
	_, ok := highRiskCountries[countryCode]
	return ok
}

// jsonCache is the minimal Redis surface the resolver needs.
type jsonCache interface {
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest interface{}) error
}

// Config for the Resolver.
type Config struct {
	BaseURL  string        `yaml:"base_url"`  // e.g. http://ip-api.com
	APIKey   string        `yaml:"api_key"`   // optional provider key
	Timeout  time.Duration `yaml:"timeout"`   // per-lookup HTTP timeout
	CacheTTL time.Duration `yaml:"cache_ttl"` // 0 disables caching
}

// Resolver maps an IP address to a GeolocationResult via an external provider,
// with an optional Redis cache in front of it.
type Resolver struct {
	cfg        Config
	httpClient *http.Client
	cache      jsonCache
}

const geoCachePrefix = "geo:"

func NewResolver(cfg Config, cache jsonCache) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Resolver{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      cache,
	}
}

// providerResponse is the ip-api.com JSON shape.
type providerResponse struct {
	Status      string  `json:"status"` // "success" or "fail"
	Message     string  `json:"message"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	RegionName  string  `json:"regionName"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

// Resolve returns the location for ip. Empty, "unknown", private, and loopback
// addresses return the zero result without a provider call. Provider errors
// degrade to the zero result and are logged, never surfaced.
func (r *Resolver) Resolve(ctx context.Context, ip string) models.GeolocationResult {
	if ip == "" || ip == "unknown" {
		return models.GeolocationResult{}
	}
	if parsed := net.ParseIP(ip); parsed != nil {
		if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsLinkLocalUnicast() {
			return models.GeolocationResult{}
		}
	}

	if r.cache != nil && r.cfg.CacheTTL > 0 {
		var cached models.GeolocationResult
		if err := r.cache.GetJSON(ctx, geoCachePrefix+ip, &cached); err == nil && cached.CountryCode != nil {
			return cached
		}
	}

	result, err := r.lookup(ctx, ip)
	if err != nil {
		logger.Warnf("geolocation lookup failed for %s: %v", ip, err)
		return models.GeolocationResult{}
	}

	if r.cache != nil && r.cfg.CacheTTL > 0 {
		_ = r.cache.SetJSON(ctx, geoCachePrefix+ip, result, r.cfg.CacheTTL)
	}
	return result
}

func (r *Resolver) lookup(ctx context.Context, ip string) (models.GeolocationResult, error) {
	url := fmt.Sprintf("%s/json/%s?fields=status,message,country,countryCode,regionName,city,lat,lon", r.cfg.BaseURL, ip)
	if r.cfg.APIKey != "" {
		url += "&key=" + r.cfg.APIKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.GeolocationResult{}, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return models.GeolocationResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.GeolocationResult{}, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	var pr providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return models.GeolocationResult{}, err
	}
	if pr.Status != "success" {
		return models.GeolocationResult{}, fmt.Errorf("provider error: %s", pr.Message)
	}

	result := models.GeolocationResult{
		Latitude:   &pr.Lat,
		Longitude:  &pr.Lon,
		IsHighRisk: IsHighRiskCountry(pr.CountryCode),
	}
	if pr.City != "" {
		result.City = &pr.City
	}
	if pr.Country != "" {
		result.Country = &pr.Country
	}
	if pr.CountryCode != "" {
		result.CountryCode = &pr.CountryCode
	}
	if pr.RegionName != "" {
		result.Region = &pr.RegionName
	}
	return result, nil
}
