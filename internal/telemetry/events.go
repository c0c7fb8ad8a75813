package telemetry

import "time"

// RequestAuditEvent is the per-request telemetry record shipped to Kafka.
// It carries transport-level facts only; the security_audit_log table is the
// system of record for auth semantics.
type RequestAuditEvent struct {
	Timestamp  time.Time `json:"@timestamp"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Status     int       `json:"status"`
	DurationMs int64     `json:"duration_ms"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
}
