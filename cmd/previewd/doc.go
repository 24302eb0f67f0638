// Command previewd serves video thumbnails, metadata and live previews over
// HTTP for a media directory.
//
// # Application Lifecycle
//
//  1. Memory Configuration: Sets GOMEMLIMIT from MEMORY_LIMIT when not set
//  2. Configuration Loading: Defaults, then a YAML file, then environment
//  3. Tool Check: Runs ffmpeg and ffprobe once; missing tools only degrade
//  4. Component Initialization:
//     - Process Supervisor: owns every ffmpeg and ffprobe child
//     - Metadata Cache: SQLite store of probe results (optional)
//     - Thumbnail Cache: one still per video under CACHE_DIR/thumbnails
//     - Preview Sessions: bounded set of decoding sessions with idle expiry
//     - Memory Monitor: refuses new previews while the heap is critical
//     - Metrics Collector: refreshes cache gauges every minute
//  5. HTTP Server Setup: Routes, request logging and Prometheus middleware
//  6. Graceful Shutdown: On SIGINT/SIGTERM, stops sessions, drains the
//     server, reaps child processes and closes the cache
//
// # Endpoints
//
//	GET    /api/thumbnail/{path}        cached still (w, h to scale)
//	GET    /api/metadata/{path}         probe result
//	GET    /api/sessions                open sessions
//	POST   /api/sessions                {"path", "startAt", "fps"}
//	GET    /api/sessions/{id}           session state and counters
//	POST   /api/sessions/{id}/pause
//	POST   /api/sessions/{id}/resume
//	POST   /api/sessions/{id}/restart   same body as POST /api/sessions
//	DELETE /api/sessions/{id}
//	GET    /api/sessions/{id}/frame     newest frame as JPEG
//	GET    /api/sessions/{id}/mjpeg     multipart JPEG stream
//	GET    /healthz, /livez, /readyz, /version, /metrics
//
// # Environment Variables
//
//   - MEDIA_DIR: Root directory containing videos (required)
//   - CACHE_DIR: Directory for thumbnails and the metadata cache
//   - PORT: HTTP port (default: 8080)
//   - CONFIG_FILE: YAML configuration file
//   - FFMPEG_PATH, FFPROBE_PATH: external tools (default: on PATH)
//   - THUMBNAIL_WIDTH, THUMBNAIL_OFFSET, THUMBNAIL_FORMAT
//   - PREVIEW_MAX_WIDTH, MAX_SESSIONS, SESSION_IDLE_TIMEOUT
//   - VIPS_ENABLED: decode-time shrinking of thumbnails with libvips
//   - TERMINATE_TIMEOUT: grace period before a child is killed
//   - METRICS_ENABLED, LOG_HEALTH_CHECKS, LOG_LEVEL
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT
package main
