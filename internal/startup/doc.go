// Package startup handles configuration loading and the startup and shutdown
// logging of the preview server.
//
// # Configuration
//
// Defaults are overlaid first by an optional YAML file and then by
// environment variables. The file is CONFIG_FILE if set, otherwise the first
// of ./previewd.yaml, ./previewd.yml, ~/.config/media-preview/config.yaml and
// /etc/media-preview/config.yaml that exists.
//
//   - MEDIA_DIR: directory videos are served from (default: /media)
//   - CACHE_DIR: thumbnails and the metadata database (default: /cache)
//   - PORT: HTTP port (default: 8080)
//   - METRICS_ENABLED: expose /metrics (default: true)
//   - LOG_HEALTH_CHECKS: log health check requests (default: true)
//   - FFMPEG_PATH, FFPROBE_PATH: helper binaries (default: found on PATH)
//   - THUMBNAIL_WIDTH: maximum thumbnail width (default: 320)
//   - THUMBNAIL_OFFSET: seek offset for thumbnails; negative grabs the first frame (default: 1s)
//   - THUMBNAIL_FORMAT: jpg, png or webp (default: jpg)
//   - PREVIEW_MAX_WIDTH: cap on decoded preview frame width (default: 640)
//   - TERMINATE_TIMEOUT: grace period before a decoder is killed (default: 2s)
//   - SESSION_IDLE_TIMEOUT: close previews nobody has polled (default: 2m)
//   - MAX_SESSIONS: concurrent previews (default: 4)
//   - VIPS_ENABLED: use libvips for thumbnail loading (default: true)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//
// Invalid values are logged and replaced by their defaults rather than
// failing startup. A malformed YAML file is an error.
//
// # Directory Setup
//
// MEDIA_DIR is created if missing. CACHE_DIR/thumbnails and CACHE_DIR are
// tested for write access; when not writable the thumbnail cache or the
// metadata database is disabled and the server runs without it.
package startup
