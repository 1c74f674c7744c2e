package pipeline

import "fmt"

// Stage names the pipeline phase a failure belongs to. Values are the
// metric stage labels and the "stage" field of error responses.
type Stage string

const (
	StageValidate  Stage = "validate"
	StageProbe     Stage = "probe"
	StageTranscode Stage = "transcode"
	StageStore     Stage = "store"
)

// Kind classifies a failure. Values are the metric reason labels;
// handlers map them to HTTP statuses and client messages.
type Kind string

const (
	// Validation: the upload itself is unacceptable.
	KindTooLarge        Kind = "too_large"
	KindUnsupportedType Kind = "unsupported_type"

	// Extraction: the payload is not a readable video.
	KindUnsupportedFormat Kind = "unsupported_format"
	KindCorruptStream     Kind = "corrupt_stream"

	// Transcoding: the source was read but could not be converted.
	KindUnsupportedCodec Kind = "unsupported_codec"
	KindEncodeFailure    Kind = "encode_failure"
	KindTimeout          Kind = "timeout"

	// Infrastructure: spool, store, or index I/O failed. Never the
	// client's fault; detail is logged, not returned.
	KindStorage Kind = "storage"
)

// Error is a classified pipeline failure.
type Error struct {
	Stage Stage
	Kind  Kind
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s stage failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func fail(stage Stage, kind Kind, err error) *Error {
	return &Error{Stage: stage, Kind: kind, Err: err}
}
