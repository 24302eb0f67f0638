// Package handlers exposes the preview engine over HTTP.
//
// It includes handlers for:
//   - Cached video thumbnails, optionally scaled to a box
//   - Video metadata from ffprobe, served through the metadata cache
//   - Live preview sessions: open, pause, resume, restart and close
//   - Latest-frame snapshots as JPEG and MJPEG streams
//   - Health, readiness, version and Prometheus metrics
//
// Every media path is resolved under the configured media directory and
// requests that escape it are rejected.
package handlers
