package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"media-preview/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	// External tools
	FFmpeg  bool `json:"ffmpeg"`
	FFprobe bool `json:"ffprobe"`

	// Engine state
	Sessions       int    `json:"sessions"`
	ThumbnailCount int    `json:"thumbnailCount"`
	ThumbnailBytes int64  `json:"thumbnailBytes"`
	MetadataRows   int    `json:"metadataRows"`
	MemoryPressure bool   `json:"memoryPressure"`
	Error          string `json:"error,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck reports tool availability and engine counters. A missing
// tool degrades the service but never fails the check.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:       statusHealthy,
		Ready:        true,
		Version:      startup.Version,
		Uptime:       time.Since(h.started).Round(time.Second).String(),
		FFmpeg:       h.tools.FFmpeg,
		FFprobe:      h.tools.FFprobe,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if h.sessions != nil {
		response.Sessions = h.sessions.Count()
	}
	if h.thumbs != nil {
		response.ThumbnailCount, response.ThumbnailBytes = h.thumbs.Stats()
	}
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		rows, err := h.store.Count(ctx)
		cancel()
		if err != nil {
			response.Error = "metadata cache: " + err.Error()
		} else {
			response.MetadataRows = rows
		}
	}
	if h.memory != nil && h.memory.UnderPressure() {
		response.MemoryPressure = true
		response.Ready = false
	}

	if !h.tools.FFmpeg || !h.tools.FFprobe || response.Error != "" || response.MemoryPressure {
		response.Status = statusDegraded
	}

	writeJSONStatus(w, http.StatusOK, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 503 while memory pressure refuses new previews.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.memory != nil && h.memory.UnderPressure() {
		writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "memory pressure",
		})
		return
	}
	writeJSONStatus(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
