package handlers

import (
	"net/http"
	"strconv"

	"github.com/amaumene/towatch/internal/auth"
	"github.com/amaumene/towatch/internal/controllers"
	"github.com/amaumene/towatch/internal/models"
	"github.com/amaumene/towatch/internal/services/tmdb"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// CatalogHandler serves catalog lists and the dashboard
type CatalogHandler struct {
	ctrl   *controllers.CatalogController
	logger *logrus.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(ctrl *controllers.CatalogController, logger *logrus.Logger) *CatalogHandler {
	return &CatalogHandler{
		ctrl:   ctrl,
		logger: logger,
	}
}

// Lists handles GET /api/tmdb?type=movies|shows|trending (trending by default)
func (h *CatalogHandler) Lists(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("type") {
	case "movies":
		writeJSON(w, http.StatusOK, map[string][]tmdb.Movie{"movies": h.ctrl.PopularMovies(r.Context())})
	case "shows":
		writeJSON(w, http.StatusOK, map[string][]tmdb.TVShow{"shows": h.ctrl.PopularTVShows(r.Context())})
	default:
		writeJSON(w, http.StatusOK, h.ctrl.Trending(r.Context()))
	}
}

// Recommendations handles GET /api/tmdb/recommendations/{type}/{id}
func (h *CatalogHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	mediaType, err := models.ParseMediaType(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, `type must be "movie" or "tv"`)
		return
	}

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "id must be a positive integer")
		return
	}

	if mediaType == models.MediaTypeMovie {
		writeJSON(w, http.StatusOK, map[string][]tmdb.Movie{"results": h.ctrl.MovieRecommendations(r.Context(), id)})
		return
	}
	writeJSON(w, http.StatusOK, map[string][]tmdb.TVShow{"results": h.ctrl.TVShowRecommendations(r.Context(), id)})
}

// Dashboard handles GET /api/dashboard for a signed-in user
func (h *CatalogHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	session := auth.FromContext(r.Context())
	writeJSON(w, http.StatusOK, h.ctrl.Dashboard(r.Context(), session.Username))
}
