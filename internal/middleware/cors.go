package middleware

import (
	"net/http"
	"strings"
)

// allowedMethods covers every route the API registers.
const allowedMethods = "GET, HEAD, POST, OPTIONS"

// corsMaxAge is how long browsers may cache a preflight response, in seconds.
const corsMaxAge = "600"

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	// AllowedOrigins lists origins permitted to call the API. A single "*"
	// entry allows any origin.
	AllowedOrigins []string
}

// CORS returns a middleware implementing cross-origin resource sharing
// with credentials support. Allowed origins are echoed back rather than
// wildcarded whenever the request carries credentials, since browsers
// reject "*" on credentialed responses.
func CORS(config CORSConfig) func(http.Handler) http.Handler {
	allowAll := false
	allow := make(map[string]struct{}, len(config.AllowedOrigins))
	for _, origin := range config.AllowedOrigins {
		if origin == "*" {
			allowAll = true
			continue
		}
		allow[origin] = struct{}{}
	}

	allowed := func(origin string) bool {
		if allowAll {
			return true
		}
		_, ok := allow[origin]
		return ok
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Not a cross-origin request
				next.ServeHTTP(w, r)
				return
			}

			if isPreflight(r) {
				handlePreflight(w, r, origin, allowed(origin), allowAll)
				return
			}

			headers := w.Header()
			headers.Add("Vary", "Origin")
			if allowed(origin) {
				if allowAll && r.Header.Get("Cookie") == "" {
					headers.Set("Access-Control-Allow-Origin", "*")
				} else {
					headers.Set("Access-Control-Allow-Origin", origin)
				}
				headers.Set("Access-Control-Allow-Credentials", "true")
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
}

func handlePreflight(w http.ResponseWriter, r *http.Request, origin string, originAllowed, allowAll bool) {
	headers := w.Header()
	headers.Add("Vary", "Origin")

	if !originAllowed {
		http.Error(w, "Disallowed CORS origin", http.StatusBadRequest)
		return
	}

	method := r.Header.Get("Access-Control-Request-Method")
	if !strings.Contains(allowedMethods, method) {
		http.Error(w, "Disallowed CORS method", http.StatusBadRequest)
		return
	}

	if allowAll && r.Header.Get("Cookie") == "" {
		headers.Set("Access-Control-Allow-Origin", "*")
	} else {
		headers.Set("Access-Control-Allow-Origin", origin)
	}
	headers.Set("Access-Control-Allow-Credentials", "true")
	headers.Set("Access-Control-Allow-Methods", allowedMethods)
	if requested := r.Header.Get("Access-Control-Request-Headers"); requested != "" {
		headers.Set("Access-Control-Allow-Headers", requested)
	}
	headers.Set("Access-Control-Max-Age", corsMaxAge)

	w.WriteHeader(http.StatusOK)
}
