package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, name := range []string{"ffmpeg", "ffprobe"} {
		ProcessSpawnsTotal.WithLabelValues(name, "success")
		ProcessSpawnsTotal.WithLabelValues(name, "error")
		for _, mode := range []string{"graceful", "forced", "already_exited"} {
			ProcessTerminationsTotal.WithLabelValues(name, mode)
		}
		ProcessesActive.WithLabelValues(name)
	}

	for _, q := range []string{"basic", "duration", "extended", "fps"} {
		ProbeDuration.WithLabelValues(q)
		ProbeFailuresTotal.WithLabelValues(q)
	}

	for _, r := range []string{"hit", "miss", "error"} {
		MetadataCacheTotal.WithLabelValues(r)
	}

	for _, op := range []string{"initialize_schema", "get_metadata", "put_metadata", "delete_metadata", "count_metadata"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, s := range []string{"success", "fallback", "error"} {
		ThumbnailGenerationsTotal.WithLabelValues(s)
	}

	for _, reason := range []string{"stopped", "ended", "error", "idle"} {
		PlaybackSessionEndsTotal.WithLabelValues(reason)
	}

	for _, op := range []string{"stat", "open"} {
		for _, vol := range []string{"media", "cache", "unknown"} {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
		}
	}
}
