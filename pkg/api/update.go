package api

import (
	"log"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/kvindex/knndb/pkg/domain"
)

// updateRequest is the update body: a query selecting which
// documents to touch, plus the update document to apply to each.
type updateRequest struct {
	Query      map[string]interface{} `json:"query"`
	Collection string                 `json:"collection"`
	Update     domain.Document        `json:"update"`
}

// HandleUpdate handles POST /update ->
// {"status":"ok","effectedDocuments":N}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("ERROR: api: update: decode body: %v", err)
		writeFailed(w, domain.WrapError(domain.JsonParseError, "invalid request body", err))
		return
	}
	if req.Collection == "" {
		writeFailed(w, domain.NewError(domain.MissingKeys, "update requires a collection"))
		return
	}

	n, err := h.db.Update(req.Collection, req.Query, req.Update)
	if err != nil {
		writeFailed(w, err)
		return
	}
	writeOK(w, map[string]interface{}{"effectedDocuments": n})
}
