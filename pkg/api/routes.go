package api

import "github.com/gorilla/mux"

// RegisterRoutes registers every API route with router.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HandleHealth).Methods("GET")

	router.HandleFunc("/create", h.HandleCreate).Methods("POST")
	router.HandleFunc("/select", h.HandleSelect).Methods("POST")
	router.HandleFunc("/update", h.HandleUpdate).Methods("POST")
	router.HandleFunc("/remove", h.HandleRemove).Methods("POST")

	router.HandleFunc("/cursors/{id}", h.HandleCursorBatch).Methods("GET")

	router.HandleFunc("/collections/{coll}/indexes", h.HandleCreateIndex).Methods("POST")
	router.HandleFunc("/collections/{coll}/indexes", h.HandleGetIndexes).Methods("GET")
}
