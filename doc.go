// Package main provides the entry point for the video ingest service.
//
// Video Ingest is a self-hosted HTTP service that accepts video uploads,
// probes them with ffprobe, normalizes them to H.264/AAC MP4 with FFmpeg,
// and serves the stored renditions back with range support, poster frames,
// and per-artifact metadata.
//
// # Application Lifecycle
//
// The application follows a structured initialization sequence:
//
//  1. Configuration Loading: Reads environment variables and validates directories
//  2. Memory Configuration: Sets GOMEMLIMIT from the container memory limit
//  3. Database Initialization: Opens the SQLite artifact index
//  4. Component Initialization:
//     - Memory Monitor: Tracks system memory usage
//     - Artifact Store: Filesystem or S3 backend for stored renditions
//     - Transcoder: FFmpeg worker gate for upload conversion
//     - Poster Generator: Initializes libvips for memory-efficient frame rendering
//     - Metrics Collector: Gathers Prometheus metrics
//  5. HTTP Server Setup: Configures routes, middleware, and starts server
//  6. Graceful Shutdown: Handles SIGINT/SIGTERM, stops all components cleanly
//
// # HTTP Server
//
// The application runs two HTTP servers:
//
//  1. Main Server (default port 8080):
//     - POST /analyze for multipart video uploads
//     - GET /video/{id} playback with HTTP range support
//     - GET /video/{id}/metadata, /poster, /download
//     - Health, readiness, version, and stats endpoints
//
//  2. Metrics Server (default port 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//     - Health check endpoint (/health)
//
// # Environment Variables
//
// Configuration is primarily through environment variables, with a .env
// file in the working directory applied first when present:
//
//   - STORE_DIR: Directory for stored renditions (default: /video-store)
//   - STORE_BACKEND: Artifact store backend, "fs" or "s3" (default: fs)
//   - S3_BUCKET: Bucket name, required when STORE_BACKEND=s3
//   - CACHE_DIR: Directory for poster cache and upload spool
//   - DATABASE_DIR: Directory for the SQLite artifact index
//   - PORT: Main HTTP server port (default: 8080)
//   - METRICS_PORT: Metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable metrics server (default: true)
//   - PROBE_TIMEOUT: ffprobe deadline per upload (default: 10s)
//   - TRANSCODE_TIMEOUT: FFmpeg deadline per upload (default: 2m)
//   - TRANSCODE_WORKERS: Concurrent FFmpeg processes (default: CPU-derived)
//   - ALLOWED_ORIGINS: CORS origins, comma-separated (default: *)
//   - LOG_HEALTH_CHECKS: Log health probe requests (default: false)
//   - LOG_LEVEL: Logging level (debug/info/warn/error)
//   - GOMEMLIMIT: Go heap limit; takes precedence when set
//   - MEMORY_LIMIT: Container memory limit in bytes (Kubernetes Downward API)
//   - MEMORY_RATIO: Share of MEMORY_LIMIT given to the Go heap (default: 0.75)
//
// # Graceful Shutdown
//
// The application handles SIGINT and SIGTERM signals gracefully:
//
//  1. Stop metrics collector
//  2. Stop memory monitor
//  3. Kill in-flight FFmpeg processes
//  4. Shutdown metrics server (if running)
//  5. Shutdown main HTTP server (30s timeout)
//  6. Shut down libvips (if posters are enabled)
//  7. Close database connections
//
// # Build Requirements
//
// The application requires CGO for SQLite and libvips, and ffmpeg/ffprobe
// on PATH at runtime. Uploads are rejected with 503 on /readyz when the
// transcoder toolchain is missing.
//
// # Related Packages
//
//   - [video-ingest/internal/pipeline]: Upload orchestration (validate, probe, transcode, store)
//   - [video-ingest/internal/probe]: ffprobe metadata extraction
//   - [video-ingest/internal/transcode]: FFmpeg conversion with a worker gate
//   - [video-ingest/internal/store]: Filesystem and S3 artifact storage
//   - [video-ingest/internal/database]: SQLite artifact index
//   - [video-ingest/internal/poster]: Poster frame extraction and caching
//   - [video-ingest/internal/handlers]: HTTP request handlers
//   - [video-ingest/internal/middleware]: HTTP middleware (logging, metrics, CORS, compression)
//   - [video-ingest/internal/startup]: Configuration and initialization
package main
