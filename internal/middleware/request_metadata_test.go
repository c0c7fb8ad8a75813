package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentryops/account-security/internal/config"
)

func captureMeta(t *testing.T, cfg config.ProxyConfig, remoteAddr string, headers map[string]string) ClientMeta {
	t.Helper()
	var got ClientMeta
	h := RequestMetadata(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta, ok := MetaFromContext(r.Context())
		require.True(t, ok)
		got = meta
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	req.Header.Set("User-Agent", "test-agent")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestRequestMetadataUsesRemoteAddr(t *testing.T) {
	meta := captureMeta(t, config.ProxyConfig{}, "203.0.113.7:4455", nil)
	assert.Equal(t, "203.0.113.7", meta.IP)
	assert.Equal(t, "test-agent", meta.UserAgent)
}

func TestRequestMetadataTrustsProxyHeaders(t *testing.T) {
	cfg := config.ProxyConfig{
		TrustedIPHeaders: []string{"X-Forwarded-For"},
		TrustedCIDRs:     []string{"10.0.0.0/8"},
	}

	meta := captureMeta(t, cfg, "10.0.0.5:4455", map[string]string{
		"X-Forwarded-For": "203.0.113.7, 10.0.0.5",
	})
	assert.Equal(t, "203.0.113.7", meta.IP)
}

func TestRequestMetadataIgnoresHeadersFromUntrustedPeer(t *testing.T) {
	cfg := config.ProxyConfig{
		TrustedIPHeaders: []string{"X-Forwarded-For"},
		TrustedCIDRs:     []string{"10.0.0.0/8"},
	}

	meta := captureMeta(t, cfg, "198.51.100.9:4455", map[string]string{
		"X-Forwarded-For": "203.0.113.7",
	})
	assert.Equal(t, "198.51.100.9", meta.IP)
}

func TestRequestMetadataFallsThroughEmptyHeaders(t *testing.T) {
	cfg := config.ProxyConfig{
		TrustedIPHeaders: []string{"X-Real-IP", "X-Forwarded-For"},
		TrustedCIDRs:     []string{"10.0.0.0/8"},
	}

	meta := captureMeta(t, cfg, "10.0.0.5:4455", map[string]string{
		"X-Forwarded-For": "203.0.113.7",
	})
	assert.Equal(t, "203.0.113.7", meta.IP, "skips the unset X-Real-IP header")
}
