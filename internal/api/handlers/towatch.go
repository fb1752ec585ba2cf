package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/amaumene/towatch/internal/auth"
	"github.com/amaumene/towatch/internal/controllers"
	"github.com/amaumene/towatch/internal/models"
	"github.com/amaumene/towatch/internal/store"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

// ToWatchHandler serves /to-watch-items. Routes must be wrapped with auth.RequireAuth.
type ToWatchHandler struct {
	ctrl   *controllers.ToWatchController
	logger *logrus.Logger
}

// NewToWatchHandler creates a new to-watch handler
func NewToWatchHandler(ctrl *controllers.ToWatchController, logger *logrus.Logger) *ToWatchHandler {
	return &ToWatchHandler{
		ctrl:   ctrl,
		logger: logger,
	}
}

type listResponse struct {
	Items []models.ToWatchItem `json:"items"`
}

type removeRequest struct {
	MediaID interface{} `json:"mediaId"`
}

// mediaID returns the requested id as a string. Empty, null, false and 0 count as absent.
func (r removeRequest) mediaID() string {
	switch id := r.MediaID.(type) {
	case nil:
		return ""
	case string:
		return id
	case bool:
		if !id {
			return ""
		}
		return strconv.FormatBool(id)
	case float64:
		if id == 0 {
			return ""
		}
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		b, err := json.Marshal(id)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// List returns the caller's items
func (h *ToWatchHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.FromContext(r.Context()).UserID

	items, err := h.ctrl.List(r.Context(), userID)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to list to-watch items")
		writeError(w, http.StatusInternalServerError, "Failed to load items")
		return
	}
	if items == nil {
		items = []models.ToWatchItem{}
	}

	writeJSON(w, http.StatusOK, listResponse{Items: items})
}

// Create saves an item for the caller
func (h *ToWatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.FromContext(r.Context()).UserID

	var payload models.ToWatchPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	err := h.ctrl.Save(r.Context(), userID, payload)
	var vErr *controllers.ValidationError
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, map[string]bool{"success": true})
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Message)
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "Item already saved")
	default:
		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to save to-watch item")
		writeError(w, http.StatusInternalServerError, "Failed to save item")
	}
}

// Delete removes an item from the caller's list. Removing an unknown item still returns 204.
func (h *ToWatchHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.FromContext(r.Context()).UserID

	// An unreadable body is treated as a missing mediaId
	var req removeRequest
	_ = decodeJSON(w, r, &req)

	err := h.ctrl.Remove(r.Context(), userID, req.mediaID())
	var vErr *controllers.ValidationError
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Message)
	default:
		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to remove to-watch item")
		writeError(w, http.StatusInternalServerError, "Failed to remove item")
	}
}
