package handlers

import (
	"net/http"

	"video-ingest/internal/startup"
)

// statusBody writes the fixed status JSON unless the request was HEAD.
func statusBody(w http.ResponseWriter, r *http.Request, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": status})
	}
}

// Health answers liveness polls. The body is fixed and no dependency is
// touched, so collaborators can poll it tightly without observing
// pipeline load.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	statusBody(w, r, http.StatusOK, "ok")
}

// Liveness reports that the process is up.
func (h *Handlers) Liveness(w http.ResponseWriter, r *http.Request) {
	statusBody(w, r, http.StatusOK, "alive")
}

// Readiness reports whether startup checks (ffmpeg present, store
// writable) passed. The result is computed once at startup.
func (h *Handlers) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.ready {
		statusBody(w, r, http.StatusOK, "ready")
		return
	}
	statusBody(w, r, http.StatusServiceUnavailable, "not_ready")
}

// GetVersion reports build identity for deploy verification. Never
// cached so rollouts are visible immediately.
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, startup.GetBuildInfo())
}
