package handler

import (
	"encoding/json"
	"net/http"

	"github.com/sentryops/account-security/internal/middleware"
)

// GeolocationHandler exposes IP geolocation lookups.
type GeolocationHandler struct {
	resolver geoResolver
}

func NewGeolocationHandler(resolver geoResolver) *GeolocationHandler {
	return &GeolocationHandler{resolver: resolver}
}

type geolocationRequest struct {
	IPAddress string `json:"ipAddress"`
}

// Resolve returns the coarse location of the given IP. Unresolvable
// addresses yield a result with null fields, not an error.
func (h *GeolocationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req geolocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.IPAddress == "" {
		if meta, ok := middleware.MetaFromContext(r.Context()); ok {
			req.IPAddress = meta.IP
		}
	}

	writeJSON(w, http.StatusOK, h.resolver.Resolve(r.Context(), req.IPAddress))
}
