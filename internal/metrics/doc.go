// Package metrics provides Prometheus instrumentation for the video
// ingest service.
//
// Every metric is registered with the default registry via promauto under
// the "video_ingest" namespace. The exported variables group into the
// subsystems of the service: HTTP traffic, the artifact index (SQLite),
// the ingest pipeline and its stages, ffprobe and transcoder activity,
// the artifact store backends, poster generation and caching, memory
// pressure, and per-volume filesystem health including NFS retry
// outcomes. Individual metrics are documented by their Help strings in
// metrics.go.
//
// Call [InitializeMetrics] once at startup. It pre-populates the label
// combinations the service emits so that rate() queries have a zero
// sample to start from instead of appearing only after the first event.
//
// # Recording
//
// Packages record by importing this package and touching the exported
// variables directly:
//
//	metrics.HTTPRequestsTotal.WithLabelValues("POST", "/analyze", "200").Inc()
//	metrics.PipelineStageDuration.WithLabelValues("transcode").Observe(12.3)
//	metrics.DBConnectionsOpen.Set(5)
//
// The filesystem package is the exception. It cannot import this package
// without creating a cycle, so it defines an Observer interface and
// [NewFilesystemObserver] bridges it onto the Prometheus counters here.
//
// # Collector
//
// Gauges that reflect external state (library totals, SQLite file sizes,
// poster cache size, runtime memory) are refreshed by a [Collector]:
//
//	collector := metrics.NewCollector(statsProvider, dbPath, time.Minute)
//	collector.SetStorageHealthChecker(db)
//	collector.SetPosterCacheDir(config.PosterDir)
//	collector.Start()
//	defer collector.Stop()
//
// The collector runs one cycle immediately on Start and then once per
// interval until Stop.
//
// # Example queries
//
// Ingest throughput and failure breakdown:
//
//	sum(rate(video_ingest_pipeline_jobs_total[5m])) by (status)
//	sum(rate(video_ingest_pipeline_failures_total[1h])) by (stage, reason)
//
// P95 transcode time:
//
//	histogram_quantile(0.95, sum(rate(video_ingest_transcoder_job_duration_seconds_bucket[5m])) by (le))
//
// Storage amplification (rendition bytes per source byte):
//
//	rate(video_ingest_pipeline_bytes_out_total[1h]) /
//	rate(video_ingest_pipeline_bytes_in_total[1h])
package metrics
