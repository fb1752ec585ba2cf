package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"
)

// CatalogCache reports the catalog cache fill level
type CatalogCache interface {
	CachedLists() int
}

// CatalogUpstream reports the state of the catalog API client
type CatalogUpstream interface {
	Enabled() bool
	BreakerState() string
}

// StatusHandler handles status requests
type StatusHandler struct {
	backend  string
	cache    CatalogCache
	upstream CatalogUpstream
	logger   *logrus.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(backend string, cache CatalogCache, upstream CatalogUpstream, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		backend:  backend,
		cache:    cache,
		upstream: upstream,
		logger:   logger,
	}
}

// StatusResponse represents the status response
type StatusResponse struct {
	StoreBackend       string `json:"store_backend"`
	CatalogEnabled     bool   `json:"catalog_enabled"`
	CatalogCachedLists int    `json:"catalog_cached_lists"`
	CatalogBreaker     string `json:"catalog_breaker"`
}

// ServeHTTP handles the status endpoint
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		StoreBackend:       h.backend,
		CatalogEnabled:     h.upstream.Enabled(),
		CatalogCachedLists: h.cache.CachedLists(),
		CatalogBreaker:     h.upstream.BreakerState(),
	})
}
