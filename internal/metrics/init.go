package metrics

// InitializeMetrics touches every expected label combination so series
// report zero from the first scrape instead of appearing on first use.
// Call once at startup, after registration.
func InitializeMetrics() {
	initIndexSeries()
	initStoreSeries()
	initFilesystemSeries()
	initPipelineSeries()
}

// initIndexSeries covers the artifact index: query counters per operation
// and the storage health counter per index file.
func initIndexSeries() {
	for _, file := range []string{"main", "wal", "shm"} {
		DBStorageErrors.WithLabelValues(file)
	}

	for _, op := range []string{"insert_artifact", "get_artifact", "list_recent", "index_stats"} {
		DBQueryDuration.WithLabelValues(op)
		for _, status := range []string{"success", "error"} {
			DBQueryTotal.WithLabelValues(op, status)
		}
	}
}

// initStoreSeries covers both artifact store backends across their
// operation and status grids.
func initStoreSeries() {
	for _, backend := range []string{"fs", "s3"} {
		for _, op := range []string{"put", "open", "stat"} {
			StoreOperationDuration.WithLabelValues(backend, op)
			for _, status := range []string{"success", "error"} {
				StoreOperationsTotal.WithLabelValues(backend, op, status)
			}
		}
	}
}

// initFilesystemSeries covers the per-volume operation and stale handle
// retry grids.
func initFilesystemSeries() {
	vols := []string{"store", "cache", "database", "unknown"}

	for _, vol := range vols {
		for _, op := range []string{"read", "write", "stat", "readdir"} {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
		}
		for _, op := range []string{"stat", "open"} {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}
}

// initPipelineSeries covers ingest jobs end to end: per-stage failures
// with their known reasons, plus the probe, transcoder, and poster
// status counters.
func initPipelineSeries() {
	stageReasons := map[string][]string{
		"validate":  {"too_large", "unsupported_type", "storage"},
		"probe":     {"unsupported_format", "corrupt_stream"},
		"transcode": {"unsupported_codec", "encode_failure", "timeout"},
		"store":     {"storage"},
	}
	for stage, reasons := range stageReasons {
		PipelineStageDuration.WithLabelValues(stage)
		for _, reason := range reasons {
			PipelineFailuresTotal.WithLabelValues(stage, reason)
		}
	}

	for _, status := range []string{"completed", "failed"} {
		PipelineJobsTotal.WithLabelValues(status)
	}
	for _, status := range []string{"success", "error"} {
		ProbeOperationsTotal.WithLabelValues(status)
	}
	for _, status := range []string{"success", "error", "timeout", "canceled"} {
		TranscoderJobsTotal.WithLabelValues(status)
	}
	for _, status := range []string{"success", "error", "error_not_found"} {
		PosterGenerationsTotal.WithLabelValues(status)
	}
}
