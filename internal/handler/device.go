package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/sentryops/account-security/internal/fingerprint"
	"github.com/sentryops/account-security/internal/middleware"
	"github.com/sentryops/account-security/internal/service"
	"github.com/sentryops/account-security/internal/util/logger"
)

// DeviceHandler registers fingerprinted devices and their sessions.
type DeviceHandler struct {
	tracker *service.DeviceTracker
}

func NewDeviceHandler(tracker *service.DeviceTracker) *DeviceHandler {
	return &DeviceHandler{tracker: tracker}
}

type trackDeviceRequest struct {
	UserID       uuid.UUID          `json:"userId"`
	SessionToken string             `json:"sessionToken"`
	Signals      fingerprint.Signals `json:"signals"`
}

// Track fingerprints the submitted environment signals and records the
// device for the user. The signals' user agent falls back to the request's
// own User-Agent header when absent.
func (h *DeviceHandler) Track(w http.ResponseWriter, r *http.Request) {
	var req trackDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == uuid.Nil {
		writeJSONError(w, http.StatusBadRequest, "userId is required")
		return
	}

	meta, _ := middleware.MetaFromContext(r.Context())
	if req.Signals.UserAgent == "" {
		req.Signals.UserAgent = meta.UserAgent
	}

	result, err := h.tracker.Track(r.Context(), service.TrackRequest{
		UserID:       req.UserID,
		SessionToken: req.SessionToken,
		IPAddress:    meta.IP,
		Device:       fingerprint.Compute(req.Signals),
	})
	if err != nil {
		logger.Errorf("Device tracking failed for user %s: %v", req.UserID, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to track device")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
