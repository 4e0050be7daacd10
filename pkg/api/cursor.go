package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// HandleCursorBatch handles GET /cursors/{id} -> the next batch of
// documents from an open cursor: {"status":"ok","result":[doc,...],
// "finished":bool}.
func (h *Handler) HandleCursorBatch(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	docs, finished, err := h.db.Cursors().Retrieve(id)
	if err != nil {
		writeFailed(w, err)
		return
	}
	writeOK(w, map[string]interface{}{"result": docs, "finished": finished})
}
