package handlers

import "net/http"

// Health reports that the process is up. It does not touch the store or TMDB.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
