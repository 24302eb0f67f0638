// Package metrics provides Prometheus instrumentation for the preview engine.
//
// All metrics are prefixed with "media_preview_" and registered through
// promauto at package init, so importing the package is enough to expose
// them on the default registry.
//
// # Metric Categories
//
// ## Process Metrics
//
// Track ffmpeg and ffprobe subprocess lifecycles:
//   - ProcessSpawnsTotal: spawns by executable name and status
//   - ProcessTerminationsTotal: terminations by mode (graceful, forced)
//   - ProcessesActive: processes not yet reaped
//
// ## Probe Metrics
//
//   - ProbeDuration / ProbeFailuresTotal: per ffprobe query
//   - MetadataCacheTotal: metadata store hits and misses
//
// ## Thumbnail Metrics
//
//   - ThumbnailCacheHits / ThumbnailCacheMisses
//   - ThumbnailGenerationsTotal: success, fallback (second attempt at 0s), error
//   - ThumbnailCacheCount / ThumbnailCacheSizeBytes: refreshed by [Collector]
//
// ## Playback Metrics
//
//   - PlaybackSessionsActive
//   - PlaybackFramesDecoded / PlaybackFramesDropped / PlaybackFramesPresented
//   - PlaybackSessionEndsTotal: by reason
//
// # Usage
//
// Call [InitializeMetrics] once at startup so that labelled series appear
// on the first scrape, then serve promhttp.Handler() on /metrics.
package metrics
