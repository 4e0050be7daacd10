package api

import "github.com/kvindex/knndb/pkg/database"

// Handler provides HTTP handlers for the database API. It is a thin
// dispatch layer: every handler decodes a request body, calls into
// db, and renders the result as a JSON envelope.
type Handler struct {
	db *database.Database
}

// NewHandler creates a new API handler bound to db.
func NewHandler(db *database.Database) *Handler {
	return &Handler{db: db}
}
