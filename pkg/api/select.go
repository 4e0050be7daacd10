package api

import (
	"log"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/kvindex/knndb/pkg/cursor"
	"github.com/kvindex/knndb/pkg/domain"
)

// selectRequest is the wire shape of a select query.
type selectRequest struct {
	Query      map[string]interface{} `json:"query"`
	Collection string                 `json:"collection"`
	Projection map[string]interface{} `json:"projection"`
	Cursor     bool                   `json:"cursor"`
	BatchSize  int                    `json:"batchSize"`
}

// HandleSelect handles POST /select. Without "cursor":true it
// eagerly fetches and returns every matching document as
// {"result":[[rank,score,doc],...],"count":N}; with it, it opens a
// cursor and returns {"cursor_uuid":"...","count":N}.
func (h *Handler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("ERROR: api: select: decode body: %v", err)
		writeFailed(w, domain.WrapError(domain.JsonParseError, "invalid request body", err))
		return
	}
	if req.Collection == "" {
		writeFailed(w, domain.NewError(domain.MissingKeys, "select requires a collection"))
		return
	}

	results, err := h.db.Select(req.Collection, req.Query)
	if err != nil {
		writeFailed(w, err)
		return
	}

	ids := make([]uint64, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}

	if req.Cursor {
		var opts []cursor.Option
		if req.BatchSize > 0 {
			opts = append(opts, cursor.WithBatchSize(req.BatchSize))
		}
		c, err := h.db.OpenCursor(req.Collection, ids, req.Projection, opts...)
		if err != nil {
			writeFailed(w, err)
			return
		}
		writeOK(w, map[string]interface{}{"cursor_uuid": c.ID(), "count": len(results)})
		return
	}

	docs, err := h.db.GetDocuments(req.Collection, ids, req.Projection)
	if err != nil {
		writeFailed(w, err)
		return
	}
	byID := make(map[uint64]domain.Document, len(docs))
	for _, d := range docs {
		if id, ok := d.ID(); ok {
			byID[id] = d
		}
	}

	out := make([][]interface{}, 0, len(results))
	for i, r := range results {
		doc, ok := byID[r.ID]
		if !ok {
			continue
		}
		out = append(out, []interface{}{i, r.Score, doc})
	}

	writeOK(w, map[string]interface{}{"result": out, "count": len(out)})
}
