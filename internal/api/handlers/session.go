package handlers

import (
	"net/http"

	"github.com/amaumene/towatch/internal/auth"
	"github.com/sirupsen/logrus"
)

// SessionHandler exchanges a completed sign-in for a session cookie
type SessionHandler struct {
	sessions *auth.Manager
	logger   *logrus.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *auth.Manager, logger *logrus.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   logger,
	}
}

type createSessionRequest struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Create issues the session cookie for the posted identity.
// The caller is trusted: nothing here checks the identity with a provider, so the
// signature only proves this server issued the cookie. Expose it only behind a
// front end that completes sign-in.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	_ = decodeJSON(w, r, &req)

	if req.UserID == "" || req.Username == "" {
		writeError(w, http.StatusBadRequest, "userId and username are required")
		return
	}

	if err := h.sessions.Issue(w, req.UserID, req.Username); err != nil {
		h.logger.WithError(err).Error("Failed to issue session")
		writeJSON(w, http.StatusInternalServerError, map[string]bool{"success": false})
		return
	}

	h.logger.WithField("user_id", req.UserID).Info("Session started")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Get returns the caller's session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, auth.FromContext(r.Context()))
}

// SignOut clears the session cookie
func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
