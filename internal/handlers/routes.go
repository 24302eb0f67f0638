package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Router registers every endpoint on a new router. Middleware is applied
// by the caller.
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()

	// Health and info
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)
	r.Handle("/metrics", h.MetricsHandler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/thumbnail/{path:.*}", h.GetThumbnail).Methods(http.MethodGet)
	api.HandleFunc("/metadata/{path:.*}", h.GetMetadata).Methods(http.MethodGet)

	// Live previews
	api.HandleFunc("/sessions", h.ListSessions).Methods(http.MethodGet)
	api.HandleFunc("/sessions", h.OpenSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", h.GetSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", h.CloseSession).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/pause", h.PauseSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/resume", h.ResumeSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/restart", h.RestartSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/frame", h.GetFrame).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/mjpeg", h.StreamSession).Methods(http.MethodGet)

	return r
}
