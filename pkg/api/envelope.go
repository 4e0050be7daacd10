// Package api implements the HTTP dispatch layer: one handler per
// operation, each a thin decode/call/encode wrapper around
// pkg/database, routed with gorilla/mux. It holds no
// query/index/storage logic of its own.
package api

import (
	"log"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/kvindex/knndb/pkg/domain"
)

// writeOK writes a {"status":"ok", ...fields} envelope.
func writeOK(w http.ResponseWriter, fields map[string]interface{}) {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["status"] = "ok"
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(fields); err != nil {
		log.Printf("ERROR: api: encode response: %v", err)
	}
}

// writeFailed writes a {"status":"failed","error": <details>}
// envelope. The HTTP status code is derived from the error's
// domain.ErrorKind when it carries one.
func writeFailed(w http.ResponseWriter, err error) {
	status := statusForKind(domain.KindOf(err))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]interface{}{
		"status": "failed",
		"error":  err.Error(),
	}
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		log.Printf("ERROR: api: encode error response: %v", encErr)
	}
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.MissingKeys, domain.WrongType, domain.OperatorError, domain.ZeroItems, domain.JsonParseError:
		return http.StatusBadRequest
	case domain.IndexMissing:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
