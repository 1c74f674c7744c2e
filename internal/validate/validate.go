package validate

import (
	"errors"
	"io"

	"video-ingest/internal/mediatypes"
)

// MaxUploadBytes is the exact upload size cap. Not configurable.
const MaxUploadBytes = 10 << 20

var (
	// ErrTooLarge indicates an upload whose transferred bytes exceed MaxUploadBytes.
	ErrTooLarge = errors.New("upload exceeds size limit")

	// ErrUnsupportedType indicates an upload that declares neither a video
	// content type nor a recognized video filename extension.
	ErrUnsupportedType = errors.New("upload is not a recognized video type")
)

// CheckType accepts an upload whose declared Content-Type is video/* or
// whose filename carries a recognized video extension.
func CheckType(contentType, filename string) error {
	if mediatypes.IsVideoContentType(contentType) {
		return nil
	}
	if mediatypes.IsVideoExtension(mediatypes.Ext(filename)) {
		return nil
	}
	return ErrUnsupportedType
}

// CheckSize rejects a byte count above MaxUploadBytes. Callers pass counts
// of bytes actually received, not declared lengths.
func CheckSize(size int64) error {
	if size > MaxUploadBytes {
		return ErrTooLarge
	}
	return nil
}

// CopyCapped copies src to dst, stopping with ErrTooLarge as soon as the
// transfer exceeds MaxUploadBytes. At most MaxUploadBytes+1 bytes are read
// from src. The returned count is the number of bytes written to dst.
func CopyCapped(dst io.Writer, src io.Reader) (int64, error) {
	n, err := io.Copy(dst, io.LimitReader(src, MaxUploadBytes+1))
	if err != nil {
		return n, err
	}
	return n, CheckSize(n)
}
