package handlers

import (
	"net/http"
	"time"

	"video-ingest/internal/database"
	"video-ingest/internal/logging"
	"video-ingest/internal/store"
)

// StatsResponse aggregates store, index, and runtime state for
// operators. The store and index counts can disagree briefly while an
// ingest is between its store write and its index write.
type StatsResponse struct {
	Store         store.Stats         `json:"store"`
	Index         database.IndexStats `json:"index"`
	Memory        *MemoryStats        `json:"memory,omitempty"`
	UptimeSeconds float64             `json:"uptimeSeconds"`
}

// MemoryStats mirrors the memory monitor's view of the heap.
type MemoryStats struct {
	CurrentBytes int64   `json:"currentBytes"`
	LimitBytes   int64   `json:"limitBytes"`
	UsageRatio   float64 `json:"usageRatio"`
	Paused       bool    `json:"paused"`
}

// GetStats reports artifact counts and sizes from both the store and
// the index, plus memory monitor state when one is running.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.store.Stats(r.Context())
	if err != nil {
		logging.Error("Stats: store scan failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Storage failure.", stageFetch)
		return
	}

	idx, err := h.index.Stats(r.Context())
	if err != nil {
		logging.Error("Stats: index query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Storage failure.", stageFetch)
		return
	}

	resp := StatsResponse{
		Store:         st,
		Index:         idx,
		UptimeSeconds: time.Since(h.started).Seconds(),
	}
	if h.monitor != nil {
		current, limit, usage := h.monitor.GetStats()
		resp.Memory = &MemoryStats{
			CurrentBytes: current,
			LimitBytes:   limit,
			UsageRatio:   usage,
			Paused:       h.monitor.IsPaused(),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp)
}
