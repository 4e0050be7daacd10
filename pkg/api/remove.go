package api

import (
	"log"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/kvindex/knndb/pkg/domain"
)

// removeRequest is the remove body: a query selecting which
// documents to delete.
type removeRequest struct {
	Query      map[string]interface{} `json:"query"`
	Collection string                 `json:"collection"`
}

// HandleRemove handles POST /remove ->
// {"status":"ok","effectedDocuments":N}.
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	var req removeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("ERROR: api: remove: decode body: %v", err)
		writeFailed(w, domain.WrapError(domain.JsonParseError, "invalid request body", err))
		return
	}
	if req.Collection == "" {
		writeFailed(w, domain.NewError(domain.MissingKeys, "remove requires a collection"))
		return
	}

	n, err := h.db.Remove(req.Collection, req.Query)
	if err != nil {
		writeFailed(w, err)
		return
	}
	writeOK(w, map[string]interface{}{"effectedDocuments": n})
}
