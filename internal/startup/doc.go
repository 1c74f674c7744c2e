// Package startup loads configuration and owns the lifecycle log: the
// banner, section-by-section initialization reporting, and shutdown
// steps. Everything the operator sees between process start and "SERVER
// STARTED" comes from here.
//
// # Configuration
//
// [LoadConfig] reads the environment, applying a .env file from the
// working directory first when one exists. Recognized variables:
//
//   - STORE_DIR: artifact store path for the filesystem backend (default: /video-store)
//   - STORE_BACKEND: "fs" or "s3" (default: fs)
//   - S3_BUCKET: bucket name, required when STORE_BACKEND=s3
//   - CACHE_DIR: poster cache and upload spool parent (default: /cache)
//   - DATABASE_DIR: artifact index directory (default: /database)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics port (default: 9090)
//   - METRICS_ENABLED: serve /metrics (default: true)
//   - PROBE_TIMEOUT: ffprobe deadline, Go duration syntax (default: 10s)
//   - TRANSCODE_TIMEOUT: ffmpeg deadline (default: 2m)
//   - TRANSCODE_WORKERS: concurrent encode cap (default: derived from CPU count)
//   - ALLOWED_ORIGINS: comma-separated CORS origins (default: *)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: log health probe requests (default: false)
//   - MEMORY_LIMIT: container memory limit for GOMEMLIMIT derivation
//   - MEMORY_RATIO: fraction of MEMORY_LIMIT given to the Go heap (default: 0.75)
//   - GOMEMLIMIT: direct runtime memory limit, overrides MEMORY_LIMIT
//
// Invalid durations and integers fall back to their defaults with a
// warning rather than failing startup. An unknown STORE_BACKEND or a
// missing S3_BUCKET is a hard error.
//
// LoadConfig also prepares the directory tree. The store (filesystem
// backend only) and database directories must exist and accept writes or
// startup fails. The poster cache is optional and merely disables poster
// generation when unavailable. The upload spool falls back to the system
// temp directory.
//
// # Build information
//
// Version, Commit, and BuildTime are injected with -ldflags and exposed
// through [GetBuildInfo] for the /version endpoint and the app_info
// metric.
//
// # Lifecycle logging
//
// The LogXxx functions bracket each initialization phase so the startup
// log reads as a sequence of titled sections. [LogTranscoderInit]
// additionally verifies that ffmpeg and ffprobe answer -version and
// reports whether the encode path is usable. The shutdown functions
// mirror the same style for teardown:
//
//	startup.LogShutdownInitiated("SIGTERM")
//	startup.LogShutdownStep("Shutting down HTTP server")
//	startup.LogShutdownStepComplete("HTTP server stopped")
//	startup.LogShutdownComplete()
package startup
