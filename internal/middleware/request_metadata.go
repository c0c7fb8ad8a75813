package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/sentryops/account-security/internal/config"
)

type ctxKey int

const ctxClientMetaKey ctxKey = iota + 1

// ClientMeta carries the resolved caller identity for a request.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// MetaFromContext returns the request metadata attached by RequestMetadata.
func MetaFromContext(ctx context.Context) (ClientMeta, bool) {
	meta, ok := ctx.Value(ctxClientMetaKey).(ClientMeta)
	return meta, ok
}

// RequestMetadata resolves the true client IP behind trusted proxies and
// attaches it, with the user agent, to the request context. Proxy headers
// are consulted only when the immediate peer falls inside a trusted CIDR.
func RequestMetadata(cfg config.ProxyConfig) func(next http.Handler) http.Handler {
	trusted := parseCIDRs(cfg.TrustedCIDRs)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			meta := ClientMeta{
				IP:        clientIP(r, cfg.TrustedIPHeaders, trusted).String(),
				UserAgent: r.UserAgent(),
			}
			ctx := context.WithValue(r.Context(), ctxClientMetaKey, meta)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func clientIP(r *http.Request, hdrs []string, trusted []*net.IPNet) net.IP {
	remoteIP := remoteAddrIP(r.RemoteAddr)

	if len(hdrs) == 0 {
		return remoteIP
	}
	if !ipInCIDRs(remoteIP, trusted) {
		return remoteIP
	}

	for _, h := range hdrs {
		v := strings.TrimSpace(r.Header.Get(h))
		if v == "" {
			continue
		}
		if strings.EqualFold(h, "X-Forwarded-For") {
			// Left-most entry is the originating client.
			for _, part := range strings.Split(v, ",") {
				if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
					return ip
				}
			}
			continue
		}
		if ip := net.ParseIP(v); ip != nil {
			return ip
		}
	}
	return remoteIP
}

func remoteAddrIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		if ip := net.ParseIP(remoteAddr); ip != nil {
			return ip
		}
		return net.IPv4zero
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip
	}
	return net.IPv4zero
}

func ipInCIDRs(ip net.IP, nets []*net.IPNet) bool {
	if ip == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func parseCIDRs(cidrs []string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		if _, n, err := net.ParseCIDR(strings.TrimSpace(c)); err == nil {
			out = append(out, n)
		}
	}
	return out
}
