package api

import (
	"log"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/kvindex/knndb/pkg/domain"
	"github.com/kvindex/knndb/pkg/index"
)

// HandleCreateIndex handles POST /collections/{coll}/indexes. The body
// is the wire shape of collection.metadata's per-index entry:
// {"name":"...","type":<int>, ...variant-specific fields}.
func (h *Handler) HandleCreateIndex(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]

	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		log.Printf("ERROR: api: create index: decode body: %v", err)
		writeFailed(w, domain.WrapError(domain.JsonParseError, "invalid request body", err))
		return
	}

	spec := index.FromWire(raw)
	if spec.Name == "" {
		writeFailed(w, domain.NewError(domain.MissingKeys, "index spec requires a name"))
		return
	}

	if err := h.db.CreateIndex(collName, spec); err != nil {
		writeFailed(w, err)
		return
	}
	writeOK(w, map[string]interface{}{"name": spec.Name})
}

// HandleGetIndexes handles GET /collections/{coll}/indexes ->
// {"status":"ok","indexes":["name", ...]}.
func (h *Handler) HandleGetIndexes(w http.ResponseWriter, r *http.Request) {
	collName := mux.Vars(r)["coll"]
	c, ok := h.db.Collection(collName)
	if !ok {
		writeFailed(w, domain.NewError(domain.MissingKeys, "collection "+collName+" not found"))
		return
	}
	writeOK(w, map[string]interface{}{"indexes": c.Catalog().Names()})
}
