package api

import "net/http"

// HandleHealth handles GET /health.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]interface{}{"message": "knndb is running"})
}
