// Package server wires the HTTP dispatch layer (pkg/api) to a
// pkg/database.Database behind a gorilla/mux router: request-logging
// middleware and a 404 handler that still logs.
package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/kvindex/knndb/pkg/api"
	"github.com/kvindex/knndb/pkg/database"
)

// Server holds the router and the database root it dispatches to.
type Server struct {
	router *mux.Router
	db     *database.Database
}

// New creates a Server bound to db and registers every API route.
func New(db *database.Database) *Server {
	s := &Server{
		router: mux.NewRouter(),
		db:     db,
	}

	h := api.NewHandler(db)
	h.RegisterRoutes(s.router)

	s.router.Use(requestLoggerMiddleware)
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("WARN: no route found for %s %s", r.Method, r.URL.Path)
		http.NotFound(w, r)
	})

	return s
}

// Router exposes the underlying http.Handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// Database exposes the bound database root.
func (s *Server) Database() *database.Database {
	return s.db
}

func requestLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("INFO: %s %s took %s", r.Method, r.URL.Path, time.Since(start))
	})
}
