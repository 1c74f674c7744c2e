package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"video-ingest/internal/database"
	"video-ingest/internal/logging"
	"video-ingest/internal/poster"
	"video-ingest/internal/store"
	"video-ingest/internal/streaming"
)

const msgNotFound = "video not found"

// FetchVideo streams an artifact with full range support for playback
// seeking. ServeContent handles Range, If-Range, and HEAD.
func (h *Handlers) FetchVideo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rc, info, err := h.store.Open(r.Context(), id)
	if err != nil {
		h.writeFetchError(w, id, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "video/mp4")
	http.ServeContent(w, r, id+".mp4", info.ModTime, rc)
}

// GetMetadata returns the index record captured when the artifact was
// ingested.
func (h *Handlers) GetMetadata(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !store.ValidID(id) {
		writeError(w, http.StatusNotFound, msgNotFound, stageFetch)
		return
	}

	a, err := h.index.GetArtifact(r.Context(), id)
	if err != nil {
		h.writeFetchError(w, id, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, a)
}

// GetPoster serves the artifact's poster frame, generating it on first
// request.
func (h *Handlers) GetPoster(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	data, err := h.poster.Poster(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, poster.ErrDisabled):
			writeError(w, http.StatusServiceUnavailable, "Posters are disabled.", stageFetch)
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, msgNotFound, stageFetch)
		case errors.Is(err, context.Canceled):
			logging.Debug("Poster request canceled for %s", id)
		default:
			logging.Error("Poster failed for %s: %v", id, err)
			writeError(w, http.StatusInternalServerError, "Poster generation failed.", stageFetch)
		}
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := w.Write(data); err != nil {
		logging.Debug("Poster write failed for %s: %v", id, err)
	}
}

// Download streams the artifact as an attachment through the timeout
// writer, so a stalled client is cut off instead of holding the
// connection open.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rc, info, err := h.store.Open(r.Context(), id)
	if err != nil {
		h.writeFetchError(w, id, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".mp4"))

	if err := streaming.Stream(r.Context(), w, rc, streaming.DefaultConfig()); err != nil {
		// the status line is long gone; log and let the connection die
		logging.Warn("Download aborted for %s: %v", id, err)
	}
}

func (h *Handlers) writeFetchError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgNotFound, stageFetch)
		return
	}
	logging.Error("Fetch failed for %s: %v", id, err)
	writeError(w, http.StatusInternalServerError, "Storage failure.", stageFetch)
}
