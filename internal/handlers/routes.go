package handlers

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes attaches every API route. Middleware is layered on by
// the caller.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	// Health and operational endpoints
	r.HandleFunc("/health", h.Health).Methods("GET", "HEAD")
	r.HandleFunc("/healthz", h.Health).Methods("GET", "HEAD")
	r.HandleFunc("/livez", h.Liveness).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.Readiness).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")
	r.HandleFunc("/stats", h.GetStats).Methods("GET")

	// Ingest and artifact endpoints
	r.HandleFunc("/analyze", h.Analyze).Methods("POST")
	r.HandleFunc("/video/{id}/metadata", h.GetMetadata).Methods("GET")
	r.HandleFunc("/video/{id}/poster", h.GetPoster).Methods("GET")
	r.HandleFunc("/video/{id}/download", h.Download).Methods("GET")
	r.HandleFunc("/video/{id}", h.FetchVideo).Methods("GET", "HEAD")
}
