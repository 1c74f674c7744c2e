package middleware

import (
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig controls which requests the access log records.
type LoggingConfig struct {
	// SkipPaths are path prefixes that are never logged
	SkipPaths []string
	// LogHealthChecks controls whether probe endpoints appear in the log
	LogHealthChecks bool
}

// DefaultLoggingConfig logs everything, probes included.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{LogHealthChecks: true}
}

func shouldSkip(path string, config LoggingConfig) bool {
	if !config.LogHealthChecks && isProbePath(path) {
		return true
	}
	return hasSkipPrefix(path, config.SkipPaths)
}

// Logger returns access logging middleware. Lines follow the W3C extended
// log format so standard tooling can parse them.
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldSkip(r.URL.Path, config) {
				next.ServeHTTP(w, r)
				return
			}

			wrapped := newResponseWriter(w)
			start := time.Now()
			next.ServeHTTP(wrapped, r)
			logRequest(r, wrapped, time.Since(start))
		})
	}
}

// logRequest emits one line per request:
//
//	date time c-ip cs-method cs-uri-stem cs-uri-query sc-status sc-bytes
//	time-taken cs(Content-Encoding) cs(User-Agent) cs(Referer)
//
// Every client-controlled value passes through sanitizeLogField first, so a
// crafted filename or header cannot forge additional log lines.
func logRequest(r *http.Request, rw *responseWriter, duration time.Duration) {
	ts := time.Now().UTC()

	agent := sanitizeLogField(r.Header.Get("User-Agent"))
	if agent != "" {
		agent = escapeW3CField(agent)
	}

	fields := []string{
		ts.Format("2006-01-02"),
		ts.Format("15:04:05"),
		sanitizeLogField(getClientIP(r)),
		sanitizeLogField(r.Method),
		sanitizeLogField(r.URL.Path),
		orDash(sanitizeLogField(r.URL.RawQuery)),
		strconv.Itoa(rw.statusCode),
		strconv.FormatInt(rw.bytesWritten, 10),
		strconv.FormatInt(duration.Milliseconds(), 10),
		orDash(rw.Header().Get("Content-Encoding")),
		orDash(agent),
		orDash(sanitizeLogField(r.Header.Get("Referer"))),
	}

	log.Println(strings.Join(fields, " "))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// sanitizeLogField strips control characters that could be used for log
// injection. Newlines become spaces so surrounding context survives; null
// bytes, ANSI escapes, and other control characters vanish. Tabs stay.
// Upload filenames are client-controlled and reach the log through the
// query string.
func sanitizeLogField(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case r == '\t':
			return r
		case r < 0x20:
			return -1
		default:
			return r
		}
	}, s)
}

// escapeW3CField quotes a value containing whitespace or quotes, doubling
// embedded quotes per the W3C extended log format.
func escapeW3CField(s string) string {
	if !strings.ContainsAny(s, " \t\"") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// getClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// the connection's remote address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
