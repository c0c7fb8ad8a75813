package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/sentryops/account-security/internal/middleware"
	"github.com/sentryops/account-security/internal/models"
	"github.com/sentryops/account-security/internal/service"
)

// geoResolver resolves an IP address to a coarse location.
type geoResolver interface {
	Resolve(ctx context.Context, ip string) models.GeolocationResult
}

// GeofencingHandler checks login locations against geofencing policy.
type GeofencingHandler struct {
	geofence *service.GeofenceService
	resolver geoResolver
}

func NewGeofencingHandler(geofence *service.GeofenceService, resolver geoResolver) *GeofencingHandler {
	return &GeofencingHandler{geofence: geofence, resolver: resolver}
}

type geofencingCheckRequest struct {
	UserID    uuid.UUID `json:"userId"`
	IPAddress string    `json:"ipAddress"`
}

type geofencingCheckResponse struct {
	service.Decision
	Location models.GeolocationResult `json:"location"`
}

// Check evaluates whether a login from the caller's location is permitted.
// The IP may be supplied in the body; otherwise the connection's resolved
// client IP is used.
func (h *GeofencingHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req geofencingCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == uuid.Nil {
		writeJSONError(w, http.StatusBadRequest, "userId is required")
		return
	}

	ip := req.IPAddress
	if ip == "" {
		if meta, ok := middleware.MetaFromContext(r.Context()); ok {
			ip = meta.IP
		}
	}

	location := h.resolver.Resolve(r.Context(), ip)
	decision := h.geofence.Evaluate(r.Context(), req.UserID, location.CountryCode,
		deref(location.City), deref(location.Country), ip)

	writeJSON(w, http.StatusOK, geofencingCheckResponse{
		Decision: decision,
		Location: location,
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
