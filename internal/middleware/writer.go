package middleware

import (
	"net/http"
	"slices"
	"strings"
)

// responseWriter captures the status code and byte count of a response on
// behalf of the logging and metrics middlewares.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

// WriteHeader records the first status code; later calls are ignored so the
// recorded status matches what actually went on the wire.
func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// hasSkipPrefix reports whether path starts with any of the prefixes.
func hasSkipPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// probePaths are the liveness and readiness endpoints that the logging and
// metrics middlewares treat as background noise.
var probePaths = []string{"/health", "/healthz", "/livez", "/readyz"}

// isProbePath matches the health endpoints that LogHealthChecks gates.
func isProbePath(path string) bool {
	return slices.Contains(probePaths, path)
}
