package api

import (
	"log"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/kvindex/knndb/pkg/domain"
)

// createRequest is the client-facing create body: a map from
// collection name to the documents to insert into it.
type createRequest map[string][]domain.Document

// HandleCreate handles POST /create: {"<collection>": [doc, ...], ...}
// -> {"status":"ok","newIds":{"<collection>":[id,...]}}.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("ERROR: api: create: decode body: %v", err)
		writeFailed(w, domain.WrapError(domain.JsonParseError, "invalid request body", err))
		return
	}

	newIDs := make(map[string][]uint64, len(req))
	for collName, docs := range req {
		if _, ok := h.db.Collection(collName); !ok {
			if _, err := h.db.CreateCollection(collName); err != nil {
				writeFailed(w, err)
				return
			}
		}
		ids, err := h.db.Insert(collName, docs)
		if err != nil {
			writeFailed(w, err)
			return
		}
		newIDs[collName] = ids
	}

	writeOK(w, map[string]interface{}{"newIds": newIDs})
}
