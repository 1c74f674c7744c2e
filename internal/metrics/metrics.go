package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// namespace prefixes every metric exported by this package.
const namespace = "video_ingest"

func counter(name, help string) prometheus.Counter {
	return promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
}

func counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
}

func gauge(name, help string) prometheus.Gauge {
	return promauto.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
}

func gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help}, labels)
}

func histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: name, Help: help, Buckets: buckets})
}

func histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: name, Help: help, Buckets: buckets}, labels)
}

// Bucket presets tuned per subsystem. Index and store operations are
// local disk speed, probes fork ffprobe, encodes run for minutes.
var (
	indexBuckets  = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	fsOpBuckets   = []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}
	retryBuckets  = []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5}
	stageBuckets  = []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120}
	probeBuckets  = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	encodeBuckets = []float64{1, 5, 10, 30, 60, 120, 300, 600}
	gateBuckets   = []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60}
	posterBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
)

// HTTP metrics
var (
	HTTPRequestsTotal    = counterVec("http_requests_total", "Total number of HTTP requests", "method", "path", "status")
	HTTPRequestDuration  = histogramVec("http_request_duration_seconds", "HTTP request duration in seconds", prometheus.DefBuckets, "method", "path")
	HTTPRequestsInFlight = gauge("http_requests_in_flight", "Number of HTTP requests currently being processed")
)

// Artifact index metrics
var (
	DBQueryTotal      = counterVec("db_queries_total", "Total number of artifact index queries", "operation", "status")
	DBQueryDuration   = histogramVec("db_query_duration_seconds", "Artifact index query duration in seconds", indexBuckets, "operation")
	DBConnectionsOpen = gauge("db_connections_open", "Number of open database connections")
	DBSizeBytes       = gaugeVec("db_size_bytes", "Size of SQLite database files in bytes", "file")
	DBStorageErrors   = counterVec("db_storage_errors_total", "Database file permission and storage problems detected", "file")
)

// Ingest pipeline metrics
var (
	PipelineJobsTotal     = counterVec("pipeline_jobs_total", "Total number of ingest pipeline jobs", "status")
	PipelineFailuresTotal = counterVec("pipeline_failures_total", "Pipeline failures by stage and reason", "stage", "reason")
	PipelineStageDuration = histogramVec("pipeline_stage_duration_seconds", "Duration of each pipeline stage in seconds", stageBuckets, "stage")
	PipelineJobsInFlight  = gauge("pipeline_jobs_in_flight", "Number of ingest jobs currently being processed")
	PipelineBytesInTotal  = counter("pipeline_bytes_in_total", "Total source bytes accepted by the pipeline")
	PipelineBytesOutTotal = counter("pipeline_bytes_out_total", "Total rendition bytes written to the artifact store")
)

// Probe and transcoder metrics
var (
	ProbeOperationsTotal = counterVec("probe_operations_total", "Total number of ffprobe invocations", "status")
	ProbeDuration        = histogram("probe_duration_seconds", "ffprobe invocation duration in seconds", probeBuckets)

	TranscoderJobsTotal      = counterVec("transcoder_jobs_total", "Total number of transcoding jobs", "status")
	TranscoderJobDuration    = histogram("transcoder_job_duration_seconds", "Transcoding job duration in seconds", encodeBuckets)
	TranscoderJobsInProgress = gauge("transcoder_jobs_in_progress", "Number of transcoding jobs currently in progress")
	TranscoderGateWait       = histogram("transcoder_gate_wait_seconds", "Time jobs spend queued for an encode slot", gateBuckets)
)

// Artifact store metrics
var (
	StoreOperationsTotal   = counterVec("store_operations_total", "Total number of artifact store operations", "backend", "operation", "status")
	StoreOperationDuration = histogramVec("store_operation_duration_seconds", "Artifact store operation duration in seconds", indexBuckets, "backend", "operation")
)

// Artifact library gauges, refreshed by the collector.
var (
	ArtifactsTotal       = gauge("artifacts", "Total number of indexed artifacts")
	ArtifactBytesTotal   = gauge("artifact_bytes", "Total size of stored renditions in bytes")
	SourceBytesTotal     = gauge("source_bytes", "Total size of accepted source uploads in bytes")
	ArtifactSecondsTotal = gauge("artifact_duration_seconds_sum", "Total playable duration of indexed artifacts in seconds")
)

// Poster metrics
var (
	PosterGenerationsTotal   = counterVec("poster_generations_total", "Total number of poster frame generations", "status")
	PosterGenerationDuration = histogram("poster_generation_duration_seconds", "Poster frame generation duration in seconds", posterBuckets)
	PosterCacheHits          = counter("poster_cache_hits_total", "Total number of poster cache hits")
	PosterCacheMisses        = counter("poster_cache_misses_total", "Total number of poster cache misses")
	PosterCacheSize          = gauge("poster_cache_size_bytes", "Total size of the poster cache in bytes")
	PosterCacheCount         = gauge("poster_cache_count", "Number of posters in the cache")
)

// Memory pressure metrics
var (
	MemoryUsageRatio = gauge("memory_usage_ratio", "Memory usage as a ratio of the configured limit (0.0-1.0)")
	MemoryPaused     = gauge("memory_paused", "Whether processing is paused due to memory pressure (1 = paused)")
	MemoryGCPauses   = counter("memory_gc_pauses_total", "Times processing was paused for memory pressure")
	GoMemLimit       = gauge("go_mem_limit_bytes", "Configured GOMEMLIMIT in bytes (0 when unset)")
	GoMemAllocBytes  = gauge("go_mem_alloc_bytes", "Current heap allocation in bytes")
	GoMemSysBytes    = gauge("go_mem_sys_bytes", "Total memory obtained from the OS in bytes")
	GoGCRuns         = gauge("go_gc_cycles", "Completed GC cycles since process start")
)

// Filesystem metrics. Operation metrics are labeled volume-first, retry
// metrics operation-first.
var (
	FilesystemOperationDuration = histogramVec("fs_operation_duration_seconds", "Filesystem operation duration in seconds", fsOpBuckets, "volume", "operation")
	FilesystemOperationErrors   = counterVec("fs_operation_errors_total", "Total number of filesystem operation errors", "volume", "operation")

	FilesystemRetryAttempts = counterVec("fs_retry_attempts_total", "Total number of filesystem retry attempts", "operation", "volume")
	FilesystemRetrySuccess  = counterVec("fs_retry_success_total", "Filesystem operations that succeeded after retrying", "operation", "volume")
	FilesystemRetryFailures = counterVec("fs_retry_failures_total", "Filesystem operations that failed after exhausting retries", "operation", "volume")
	FilesystemRetryDuration = histogramVec("fs_retry_duration_seconds", "Total duration of filesystem operations including retries", retryBuckets, "operation", "volume")
	FilesystemStaleErrors   = counterVec("fs_stale_errors_total", "Total number of NFS stale file handle errors", "operation", "volume")
)

// AppInfo carries the build identity as constant labels on a gauge of 1.
var AppInfo = gaugeVec("app_info", "Application information", "version", "commit", "go_version")

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
