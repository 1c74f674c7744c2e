package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"video-ingest/internal/database"
	"video-ingest/internal/filesystem"
	"video-ingest/internal/handlers"
	"video-ingest/internal/logging"
	"video-ingest/internal/memory"
	"video-ingest/internal/metrics"
	"video-ingest/internal/middleware"
	"video-ingest/internal/pipeline"
	"video-ingest/internal/poster"
	"video-ingest/internal/probe"
	"video-ingest/internal/startup"
	"video-ingest/internal/store"
	"video-ingest/internal/transcode"
)

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Memory limits before anything allocates in earnest
	memory.ConfigureFromEnv()
	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	// Filesystem operations report per-volume metrics
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"store":    config.StoreDir,
		"cache":    config.CacheDir,
		"database": config.DatabaseDir,
	}))
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	metrics.InitializeMetrics()
	buildInfo := startup.GetBuildInfo()
	metrics.SetAppInfo(buildInfo.Version, buildInfo.Commit, buildInfo.GoVersion)

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Initialize artifact store
	st, location, err := buildStore(config)
	if err != nil {
		startup.LogFatal("Failed to initialize store: %v", err)
	}
	startup.LogStoreInit(config.StoreBackend, location)

	// Initialize transcoder and prober
	ready := startup.LogTranscoderInit(config.TranscodeWorkers)
	prober := probe.New(config.ProbeTimeout)
	encoder := transcode.New(config.TranscodeTimeout, config.TranscodeWorkers)

	// Initialize poster generation
	startup.LogPosterInit(config.PostersEnabled)
	if config.PostersEnabled {
		poster.InitVips()
	}
	posters := poster.New(st, config.PosterDir, config.SpoolDir, monitor, config.PostersEnabled)

	// Assemble the pipeline
	pipe := pipeline.New(prober, encoder, st, db, config.SpoolDir)

	// Periodic metrics collection
	collector := metrics.NewCollector(indexStatsAdapter{db}, config.DatabasePath, time.Minute)
	collector.SetStorageHealthChecker(db)
	collector.SetPosterCacheDir(config.PosterDir)
	collector.Start()

	// Setup router
	h := handlers.New(pipe, st, db, posters, monitor, ready)
	router := mux.NewRouter()
	h.RegisterRoutes(router)

	// Log routes dynamically
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	// Middleware chain: compression wraps logging wraps metrics wraps
	// CORS wraps the router. CORS sits innermost so preflights are
	// answered before route matching can 405 them.
	var handler http.Handler = router
	handler = middleware.CORS(middleware.CORSConfig{AllowedOrigins: config.AllowedOrigins})(handler)
	handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler = middleware.Logger(loggingConfig)(handler)
	handler = middleware.Compression(middleware.DefaultCompressionConfig())(handler)

	// Metrics server on its own port keeps scrapes off the API path
	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = startMetricsServer(config.MetricsPort)
	}

	// Create server
	srv := &http.Server{
		Addr:        ":" + config.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// Downloads are bounded by the streaming writer and ranged
		// playback by the requested range; a server-wide write
		// deadline would sever long plays
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, metricsSrv, collector, monitor, encoder, config.PostersEnabled)

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

// buildStore selects the artifact store backend from configuration and
// returns it with a printable location.
func buildStore(config *startup.Config) (store.Store, string, error) {
	switch config.StoreBackend {
	case startup.BackendS3:
		sess, err := session.NewSession()
		if err != nil {
			return nil, "", fmt.Errorf("creating AWS session: %w", err)
		}
		return store.NewS3(sess, config.S3Bucket), "s3://" + config.S3Bucket, nil
	default:
		fs, err := store.NewFS(config.StoreDir)
		if err != nil {
			return nil, "", err
		}
		return fs, config.StoreDir, nil
	}
}

// indexStatsAdapter exposes the artifact index as the metrics
// collector's StatsProvider.
type indexStatsAdapter struct {
	db *database.Database
}

func (a indexStatsAdapter) GetStats(ctx context.Context) (metrics.Stats, error) {
	s, err := a.db.Stats(ctx)
	if err != nil {
		return metrics.Stats{}, err
	}
	return metrics.Stats{
		TotalArtifacts:       s.TotalArtifacts,
		TotalBytes:           s.TotalBytes,
		TotalSourceBytes:     s.TotalSourceBytes,
		TotalDurationSeconds: s.TotalDurationSeconds,
	}, nil
}

// startMetricsServer serves Prometheus scrapes and a health probe on
// the operations port.
func startMetricsServer(port string) *http.Server {
	m := mux.NewRouter()
	m.Handle("/metrics", promhttp.Handler()).Methods("GET")
	m.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
			logging.Debug("Metrics health write failed: %v", err)
		}
	}).Methods("GET")

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      m,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("Metrics server error: %v", err)
		}
	}()
	return srv
}

func handleShutdown(srv, metricsSrv *http.Server, collector *metrics.Collector, monitor *memory.Monitor, encoder *transcode.FFmpeg, vipsStarted bool) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping metrics collector")
	collector.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	startup.LogShutdownStep("Stopping memory monitor")
	monitor.Stop()
	startup.LogShutdownStepComplete("Memory monitor stopped")

	startup.LogShutdownStep("Killing in-flight transcodes")
	encoder.Shutdown()
	startup.LogShutdownStepComplete("Transcoder stopped")

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if vipsStarted {
		poster.ShutdownVips()
	}

	startup.LogShutdownComplete()
}
