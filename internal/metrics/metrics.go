package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_preview_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_preview_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_preview_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Process supervisor metrics
var (
	ProcessSpawnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_preview_process_spawns_total",
			Help: "Total number of external processes spawned",
		},
		[]string{"name", "status"},
	)

	ProcessTerminationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_preview_process_terminations_total",
			Help: "Total number of process terminations by outcome",
		},
		[]string{"name", "mode"}, // "graceful", "forced", "already_exited"
	)

	ProcessesActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_preview_processes_active",
			Help: "Number of external processes that have not been reaped yet",
		},
		[]string{"name"},
	)
)

// Probe metrics
var (
	ProbeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_preview_probe_duration_seconds",
			Help:    "Duration of a single ffprobe query",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"query"},
	)

	ProbeFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_preview_probe_failures_total",
			Help: "Total number of probe queries that produced no data",
		},
		[]string{"query"},
	)

	MetadataCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_preview_metadata_cache_total",
			Help: "Metadata store lookups by result",
		},
		[]string{"result"}, // "hit", "miss", "error"
	)

	MetadataStoreRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_preview_metadata_store_rows",
			Help: "Number of probe results persisted in the metadata store",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_preview_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_preview_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)
)

// Thumbnail metrics
var (
	ThumbnailCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_preview_thumbnail_cache_hits_total",
			Help: "Thumbnail requests served from an existing cache file",
		},
	)

	ThumbnailCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_preview_thumbnail_cache_misses_total",
			Help: "Thumbnail requests that required generation",
		},
	)

	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_preview_thumbnail_generations_total",
			Help: "Thumbnail generation attempts by outcome",
		},
		[]string{"status"}, // "success", "fallback", "error"
	)

	ThumbnailGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_preview_thumbnail_generation_duration_seconds",
			Help:    "Time spent generating a thumbnail, including the fallback attempt",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	ThumbnailCacheCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_preview_thumbnail_cache_count",
			Help: "Number of cached thumbnail files",
		},
	)

	ThumbnailCacheSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_preview_thumbnail_cache_size_bytes",
			Help: "Total size of cached thumbnail files in bytes",
		},
	)
)

// Playback metrics
var (
	PlaybackSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_preview_playback_sessions_active",
			Help: "Number of playback sessions with a running decoder",
		},
	)

	PlaybackSessionEndsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_preview_playback_session_ends_total",
			Help: "Playback runs ended, by reason",
		},
		[]string{"reason"}, // "stopped", "ended", "error", "idle"
	)

	PlaybackFramesDecoded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_preview_playback_frames_decoded_total",
			Help: "Frames read from decoder pipes",
		},
	)

	PlaybackFramesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_preview_playback_frames_dropped_total",
			Help: "Decoded frames overwritten before the renderer acquired them",
		},
	)

	PlaybackFramesPresented = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_preview_playback_frames_presented_total",
			Help: "Frames acquired by a renderer",
		},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_preview_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the memory limit",
		},
	)

	MemoryPressure = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_preview_memory_pressure",
			Help: "1 while new previews are refused because memory is critical",
		},
	)

	MemoryAdmissionsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_preview_memory_admissions_rejected_total",
			Help: "Preview starts refused under memory pressure",
		},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_preview_filesystem_retry_attempts_total",
			Help: "Retries performed after a stale file handle",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_preview_filesystem_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_preview_filesystem_retry_failures_total",
			Help: "Operations that exhausted all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_preview_filesystem_stale_errors_total",
			Help: "ESTALE errors observed",
		},
		[]string{"operation", "volume"},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_preview_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
