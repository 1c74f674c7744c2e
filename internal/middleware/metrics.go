package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"video-ingest/internal/metrics"
)

// MetricsConfig controls which requests produce Prometheus samples.
type MetricsConfig struct {
	// SkipPaths are path prefixes that are never recorded.
	SkipPaths []string
}

// DefaultMetricsConfig skips the scrape endpoint and the health probes.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		SkipPaths: append([]string{"/metrics"}, probePaths...),
	}
}

// Metrics returns middleware recording request totals, latency, and the
// in-flight gauge, with paths normalized to route patterns.
func Metrics(config MetricsConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hasSkipPrefix(r.URL.Path, config.SkipPaths) {
				next.ServeHTTP(w, r)
				return
			}

			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			start := time.Now()
			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)
			elapsed := time.Since(start).Seconds()

			path := normalizePath(r.URL.Path)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(elapsed)
		})
	}
}

// fixedRoutes are the API paths recorded verbatim.
var fixedRoutes = map[string]bool{
	"/analyze": true,
	"/version": true,
	"/stats":   true,
}

// videoSubresources are the routes nested under /video/{id}.
var videoSubresources = map[string]bool{
	"metadata": true,
	"poster":   true,
	"download": true,
}

// normalizePath maps request paths onto the route set so artifact ids and
// probe scans cannot inflate label cardinality.
func normalizePath(path string) string {
	if fixedRoutes[path] {
		return path
	}

	parts := strings.Split(path, "/")
	if len(parts) >= 3 && parts[1] == "video" && parts[2] != "" {
		switch {
		case len(parts) == 3:
			return "/video/{id}"
		case len(parts) == 4 && videoSubresources[parts[3]]:
			return "/video/{id}/" + parts[3]
		}
	}

	return "{other}"
}
