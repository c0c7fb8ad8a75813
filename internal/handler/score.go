package handler

import (
	"errors"
	"net/http"

	"github.com/sentryops/account-security/internal/repository"
	"github.com/sentryops/account-security/internal/service"
	"github.com/sentryops/account-security/internal/util/logger"
)

const headerSessionToken = "X-Session-Token"

// ScoreHandler serves the composite security posture score. Callers
// authenticate with a session token previously registered through
// device tracking.
type ScoreHandler struct {
	score    *service.ScoreService
	sessions repository.SessionRepository
}

func NewScoreHandler(score *service.ScoreService, sessions repository.SessionRepository) *ScoreHandler {
	return &ScoreHandler{score: score, sessions: sessions}
}

func (h *ScoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(headerSessionToken)
	if token == "" {
		writeJSONError(w, http.StatusUnauthorized, "missing session token")
		return
	}

	session, err := h.sessions.GetByToken(r.Context(), token)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeJSONError(w, http.StatusUnauthorized, "invalid session token")
		return
	case err != nil:
		logger.Errorf("Session lookup failed: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	case session.IsRevoked:
		writeJSONError(w, http.StatusUnauthorized, "session revoked")
		return
	}

	score, err := h.score.Calculate(r.Context(), session.UserID)
	if err != nil {
		logger.Errorf("Security score failed for user %s: %v", session.UserID, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to compute security score")
		return
	}
	writeJSON(w, http.StatusOK, score)
}
