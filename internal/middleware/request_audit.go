package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sentryops/account-security/internal/telemetry"
)

// auditPublisher accepts request audit events without blocking.
type auditPublisher interface {
	Publish(ev telemetry.RequestAuditEvent)
}

// RequestAudit publishes one audit event per completed request. Publishing
// is non-blocking; a saturated shipper drops events rather than slowing
// request handling.
func RequestAudit(publisher auditPublisher) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(ww, r)

			meta, _ := MetaFromContext(r.Context())
			publisher.Publish(telemetry.RequestAuditEvent{
				Timestamp:  start.UTC(),
				Method:     r.Method,
				Path:       r.URL.Path,
				Status:     ww.status,
				DurationMs: time.Since(start).Milliseconds(),
				IPAddress:  meta.IP,
				UserAgent:  meta.UserAgent,
				RequestID:  chimw.GetReqID(r.Context()),
			})
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
