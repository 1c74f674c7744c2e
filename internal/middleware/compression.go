package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

// CompressionConfig controls when responses are gzipped.
type CompressionConfig struct {
	// MinSize is the byte threshold below which responses go out as is.
	MinSize int
	// Level is handed to gzip.NewWriterLevel.
	Level int
	// CompressibleTypes lists the media types worth compressing.
	CompressibleTypes []string
}

// DefaultCompressionConfig returns defaults for the ingest API. Video and
// poster bytes are already compressed formats, so only the JSON surfaces
// (metadata, stats, errors) and text responses are candidates.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize:           1024,
		Level:             gzip.DefaultCompression,
		CompressibleTypes: []string{"application/json", "text/plain"},
	}
}

// Pool holds default-level writers only; Reset cannot change a writer's level.
var gzipWriterPool = sync.Pool{
	New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.DefaultCompression)
		return w
	},
}

// gzipResponseWriter defers the compress-or-not decision until either
// MinSize bytes have been buffered or the response ends. The status code is
// held back with the buffer because Content-Encoding must be settled before
// the header goes out.
type gzipResponseWriter struct {
	http.ResponseWriter
	config      CompressionConfig
	status      int
	buffer      []byte
	gz          *gzip.Writer
	pooled      bool
	decided     bool
	compressing bool
}

func newGzipResponseWriter(w http.ResponseWriter, config CompressionConfig) *gzipResponseWriter {
	g := &gzipResponseWriter{ResponseWriter: w, config: config, status: http.StatusOK}
	g.buffer = make([]byte, 0, config.MinSize+1)
	return g
}

func (g *gzipResponseWriter) WriteHeader(code int) {
	if !g.decided {
		g.status = code
	}
}

func (g *gzipResponseWriter) Write(data []byte) (int, error) {
	if g.decided {
		if g.compressing {
			return g.gz.Write(data)
		}
		return g.ResponseWriter.Write(data)
	}

	g.buffer = append(g.buffer, data...)
	if len(g.buffer) <= g.config.MinSize {
		return len(data), nil
	}
	if err := g.decide(); err != nil {
		return 0, err
	}
	return len(data), nil
}

// decide settles the encoding, sends the deferred header, and drains the
// buffer through the chosen path.
func (g *gzipResponseWriter) decide() error {
	if g.decided {
		return nil
	}
	g.decided = true
	g.compressing = len(g.buffer) >= g.config.MinSize && g.compressible()

	if g.compressing {
		h := g.Header()
		h.Set("Content-Encoding", "gzip")
		h.Add("Vary", "Accept-Encoding")
		h.Del("Content-Length")
		g.gz = g.newGzipWriter()
		g.ResponseWriter.WriteHeader(g.status)
		_, err := g.gz.Write(g.buffer)
		g.buffer = nil
		return err
	}

	g.ResponseWriter.WriteHeader(g.status)
	_, err := g.ResponseWriter.Write(g.buffer)
	g.buffer = nil
	return err
}

func (g *gzipResponseWriter) newGzipWriter() *gzip.Writer {
	if g.config.Level != gzip.DefaultCompression {
		if w, err := gzip.NewWriterLevel(g.ResponseWriter, g.config.Level); err == nil {
			return w
		}
		// Invalid level, fall back to the pool
	}
	g.pooled = true
	w := gzipWriterPool.Get().(*gzip.Writer)
	w.Reset(g.ResponseWriter)
	return w
}

// compressible reports whether the response Content-Type is in the
// configured allow list, ignoring parameters like charset.
func (g *gzipResponseWriter) compressible() bool {
	mediaType, _, _ := strings.Cut(g.Header().Get("Content-Type"), ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if mediaType == "" {
		return false
	}
	for _, t := range g.config.CompressibleTypes {
		if mediaType == t {
			return true
		}
	}
	return false
}

// Close flushes whatever the handler produced. Responses shorter than
// MinSize land here still undecided and go out uncompressed.
func (g *gzipResponseWriter) Close() error {
	if err := g.decide(); err != nil {
		return err
	}
	if g.gz == nil {
		return nil
	}
	err := g.gz.Close()
	if g.pooled {
		gzipWriterPool.Put(g.gz)
	}
	g.gz = nil
	return err
}

func (g *gzipResponseWriter) Flush() {
	g.decide()
	if g.gz != nil {
		g.gz.Flush()
	}
	if f, ok := g.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Compression wraps handlers with opt-in gzip encoding. Range responses
// must stay byte-exact, so they bypass the writer entirely, as do clients
// that never asked for gzip.
func Compression(config CompressionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Range") != "" || !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
				next.ServeHTTP(w, r)
				return
			}

			gzw := newGzipResponseWriter(w, config)
			defer gzw.Close()
			next.ServeHTTP(gzw, r)
		})
	}
}
