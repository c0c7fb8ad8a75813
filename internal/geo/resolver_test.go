package geo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentryops/account-security/internal/models"
)

// mapCache is an in-memory jsonCache for tests.
type mapCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{m: make(map[string][]byte)} }

func (c *mapCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.m[key] = b
	c.mu.Unlock()
	return nil
}

func (c *mapCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	b, ok := c.m[key]
	c.mu.Unlock()
	if !ok {
		return context.Canceled
	}
	return json.Unmarshal(b, dest)
}

func newProvider(t *testing.T, calls *int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func TestResolveSuccess(t *testing.T) {
	calls := 0
	srv := newProvider(t, &calls, `{"status":"success","country":"France","countryCode":"FR","regionName":"Ile-de-France","city":"Paris","lat":48.85,"lon":2.35}`)
	defer srv.Close()

	r := NewResolver(Config{BaseURL: srv.URL}, nil)
	got := r.Resolve(context.Background(), "203.0.113.7")

	require.NotNil(t, got.CountryCode)
	assert.Equal(t, "FR", *got.CountryCode)
	assert.Equal(t, "Paris", *got.City)
	assert.InDelta(t, 48.85, *got.Latitude, 0.001)
	assert.False(t, got.IsHighRisk)
}

func TestResolveFlagsHighRiskCountry(t *testing.T) {
	calls := 0
	srv := newProvider(t, &calls, `{"status":"success","country":"Russia","countryCode":"RU","city":"Moscow","lat":55.75,"lon":37.61}`)
	defer srv.Close()

	r := NewResolver(Config{BaseURL: srv.URL}, nil)
	got := r.Resolve(context.Background(), "203.0.113.7")

	assert.True(t, got.IsHighRisk)
}

func TestResolveSkipsUnresolvableAddresses(t *testing.T) {
	calls := 0
	srv := newProvider(t, &calls, `{"status":"success","countryCode":"FR"}`)
	defer srv.Close()
	r := NewResolver(Config{BaseURL: srv.URL}, nil)

	for _, ip := range []string{"", "unknown", "127.0.0.1", "10.1.2.3", "192.168.1.1", "169.254.0.5"} {
		got := r.Resolve(context.Background(), ip)
		assert.Equal(t, models.GeolocationResult{}, got, "ip %q", ip)
	}
	assert.Zero(t, calls, "no provider call for unresolvable addresses")
}

func TestResolveProviderFailureFailsOpen(t *testing.T) {
	calls := 0
	srv := newProvider(t, &calls, `{"status":"fail","message":"reserved range"}`)
	defer srv.Close()

	r := NewResolver(Config{BaseURL: srv.URL}, nil)
	got := r.Resolve(context.Background(), "203.0.113.7")

	assert.Equal(t, models.GeolocationResult{}, got)
}

func TestResolveProviderDownFailsOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewResolver(Config{BaseURL: srv.URL, Timeout: time.Second}, nil)
	got := r.Resolve(context.Background(), "203.0.113.7")

	assert.Equal(t, models.GeolocationResult{}, got)
}

func TestResolveUsesCache(t *testing.T) {
	calls := 0
	srv := newProvider(t, &calls, `{"status":"success","country":"France","countryCode":"FR","city":"Paris","lat":48.85,"lon":2.35}`)
	defer srv.Close()

	r := NewResolver(Config{BaseURL: srv.URL, CacheTTL: time.Hour}, newMapCache())

	first := r.Resolve(context.Background(), "203.0.113.7")
	second := r.Resolve(context.Background(), "203.0.113.7")

	assert.Equal(t, 1, calls, "second lookup served from cache")
	assert.Equal(t, first, second)
}

func TestIsHighRiskCountry(t *testing.T) {
	for _, code := range []string{"KP", "IR", "SY", "CU", "SD", "RU", "BY", "VE"} {
		assert.True(t, IsHighRiskCountry(code), code)
	}
	assert.False(t, IsHighRiskCountry("US"))
	assert.False(t, IsHighRiskCountry(""))
}
