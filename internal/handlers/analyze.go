package handlers

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"

	"video-ingest/internal/logging"
	"video-ingest/internal/pipeline"
	"video-ingest/internal/probe"
	"video-ingest/internal/validate"
)

// multipartOverhead is extra body allowance beyond the payload cap for
// multipart boundaries and part headers.
const multipartOverhead = 1 << 20

const msgBadMultipart = "Request must be multipart/form-data with a file field."

// Client-visible messages per failure kind. Internal detail (paths,
// ffmpeg stderr) stays in the logs.
var kindMessages = map[pipeline.Kind]string{
	pipeline.KindTooLarge:          "File exceeds 10MB limit.",
	pipeline.KindUnsupportedType:   "Only video uploads are supported.",
	pipeline.KindUnsupportedFormat: "No video stream found in upload.",
	pipeline.KindCorruptStream:     "Video metadata could not be extracted.",
	pipeline.KindUnsupportedCodec:  "Source codec is not supported.",
	pipeline.KindEncodeFailure:     "Video could not be converted.",
	pipeline.KindTimeout:           "Transcode timed out.",
	pipeline.KindStorage:           "Storage failure.",
}

var kindStatus = map[pipeline.Kind]int{
	pipeline.KindTooLarge:          http.StatusRequestEntityTooLarge,
	pipeline.KindUnsupportedType:   http.StatusBadRequest,
	pipeline.KindUnsupportedFormat: http.StatusUnprocessableEntity,
	pipeline.KindCorruptStream:     http.StatusUnprocessableEntity,
	pipeline.KindUnsupportedCodec:  http.StatusUnprocessableEntity,
	pipeline.KindEncodeFailure:     http.StatusUnprocessableEntity,
	pipeline.KindTimeout:           http.StatusUnprocessableEntity,
	pipeline.KindStorage:           http.StatusInternalServerError,
}

type analyzeResponse struct {
	ID       string         `json:"id"`
	Metadata probe.Metadata `json:"metadata"`
}

// Analyze ingests one uploaded video: validate, probe, transcode,
// store. The upload is streamed from the multipart body straight into
// the pipeline's spool, so the payload is never buffered in memory.
func (h *Handlers) Analyze(w http.ResponseWriter, r *http.Request) {
	// belt cap on the whole body; the exact payload cap is enforced
	// while spooling
	r.Body = http.MaxBytesReader(w, r.Body, validate.MaxUploadBytes+multipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, msgBadMultipart, string(pipeline.StageValidate))
		return
	}

	part, err := filePart(mr)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				kindMessages[pipeline.KindTooLarge], string(pipeline.StageValidate))
			return
		}
		writeError(w, http.StatusBadRequest, msgBadMultipart, string(pipeline.StageValidate))
		return
	}
	defer part.Close()

	res, err := h.ingester.Process(r.Context(), part, part.Header.Get("Content-Type"), part.FileName())
	if err != nil {
		h.writeProcessError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, analyzeResponse{ID: res.ID, Metadata: res.Metadata})
}

// filePart advances the multipart stream to the field named "file".
// Preceding fields are drained and discarded.
func filePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" {
			return part, nil
		}
		if err := part.Close(); err != nil {
			return nil, err
		}
	}
}

func (h *Handlers) writeProcessError(w http.ResponseWriter, err error) {
	var perr *pipeline.Error
	switch {
	case errors.As(err, &perr):
		writeError(w, kindStatus[perr.Kind], kindMessages[perr.Kind], string(perr.Stage))
	case errors.Is(err, context.Canceled):
		// the client disconnected mid-pipeline; there is nobody left
		// to answer
		logging.Debug("Analyze canceled by client: %v", err)
	default:
		logging.Error("Analyze failed unclassified: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal error.", "internal")
	}
}
