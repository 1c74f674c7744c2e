package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"video-ingest/internal/database"
	"video-ingest/internal/logging"
	"video-ingest/internal/memory"
	"video-ingest/internal/pipeline"
	"video-ingest/internal/poster"
	"video-ingest/internal/store"
)

// stageFetch labels retrieval failures in error bodies. Fetching is not
// a pipeline stage, so the label lives here rather than in the pipeline
// taxonomy.
const stageFetch = "fetch"

// Ingester runs one upload through the ingest pipeline.
type Ingester interface {
	Process(ctx context.Context, upload io.Reader, contentType, filename string) (pipeline.Result, error)
}

// Index reads the artifact index.
type Index interface {
	GetArtifact(ctx context.Context, id string) (*database.Artifact, error)
	Stats(ctx context.Context) (database.IndexStats, error)
}

type Handlers struct {
	ingester Ingester
	store    store.Store
	index    Index
	poster   *poster.Generator
	monitor  *memory.Monitor
	ready    bool
	started  time.Time
}

// New binds the API handlers to their collaborators. ready reflects the
// startup checks and is what /readyz reports; monitor may be nil.
func New(ing Ingester, st store.Store, idx Index, pg *poster.Generator, mon *memory.Monitor, ready bool) *Handlers {
	return &Handlers{
		ingester: ing,
		store:    st,
		index:    idx,
		poster:   pg,
		monitor:  mon,
		ready:    ready,
		started:  time.Now(),
	}
}

// errorResponse is the wire shape of every error body.
type errorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage"`
}

// writeJSON encodes v to the response writer. Encoding errors are
// logged; at this point the status line is already on the wire.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeError writes the standard error body with the given status.
func writeError(w http.ResponseWriter, status int, message, stage string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSON(w, errorResponse{Error: message, Stage: stage})
}
