package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/sentryops/account-security/internal/middleware"
	"github.com/sentryops/account-security/internal/models"
	"github.com/sentryops/account-security/internal/service"
	"github.com/sentryops/account-security/internal/util/logger"
)

// SecurityEventHandler records security events in the audit log.
type SecurityEventHandler struct {
	events *service.EventLogger
}

func NewSecurityEventHandler(events *service.EventLogger) *SecurityEventHandler {
	return &SecurityEventHandler{events: events}
}

type securityEventRequest struct {
	UserID       *uuid.UUID     `json:"userId"`
	EventType    string         `json:"eventType"`
	EventDetails models.JSONMap `json:"eventDetails"`
	IPAddress    string         `json:"ipAddress"`
	Success      *bool          `json:"success"`
}

// Log persists the event and reports how many alerts it triggered.
func (h *SecurityEventHandler) Log(w http.ResponseWriter, r *http.Request) {
	var req securityEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EventType == "" {
		writeJSONError(w, http.StatusBadRequest, "eventType is required")
		return
	}

	meta, _ := middleware.MetaFromContext(r.Context())
	ip := req.IPAddress
	if ip == "" {
		ip = meta.IP
	}
	success := true
	if req.Success != nil {
		success = *req.Success
	}

	result, err := h.events.Log(r.Context(), service.LogRequest{
		UserID:       req.UserID,
		EventType:    req.EventType,
		EventDetails: req.EventDetails,
		IPAddress:    ip,
		UserAgent:    meta.UserAgent,
		Success:      success,
	})
	if err != nil {
		logger.Errorf("Recording %s event failed: %v", req.EventType, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to record event")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
