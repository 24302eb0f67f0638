package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"media-preview/internal/imageio"
	"media-preview/internal/mediatypes"
	"media-preview/internal/memory"
	"media-preview/internal/playback"
	"media-preview/internal/streaming"
)

// maxStartAt caps the requested start offset so it always fits a time.Duration.
const maxStartAt = 24 * time.Hour

// OpenRequest is the body of POST /api/sessions and .../restart.
type OpenRequest struct {
	Path string `json:"path"`
	// StartAt is an approximate start offset in seconds.
	StartAt float64 `json:"startAt,omitempty"`
	// FPS overrides the probed frame rate.
	FPS float64 `json:"fps,omitempty"`
}

// ListSessions returns every open session.
func (h *Handlers) ListSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSONStatus(w, http.StatusOK, h.sessions.List())
}

// OpenSession starts a preview and returns its info.
func (h *Handlers) OpenSession(w http.ResponseWriter, r *http.Request) {
	opts, ok := h.decodeOpenRequest(w, r)
	if !ok {
		return
	}

	id, err := h.sessions.Open(r.Context(), opts)
	if err != nil {
		h.sessionStartError(w, opts.Path, err)
		return
	}

	info, err := h.sessions.Info(id)
	if err != nil {
		h.sessionError(w, err)
		return
	}
	w.Header().Set("Location", "/api/sessions/"+id)
	writeJSONStatus(w, http.StatusCreated, info)
}

// RestartSession starts a new run in an existing session.
func (h *Handlers) RestartSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	opts, ok := h.decodeOpenRequest(w, r)
	if !ok {
		return
	}

	if err := h.sessions.Restart(r.Context(), id, opts); err != nil {
		if errors.Is(err, playback.ErrSessionNotFound) {
			h.sessionError(w, err)
			return
		}
		h.sessionStartError(w, opts.Path, err)
		return
	}
	h.writeSessionInfo(w, id)
}

func (h *Handlers) decodeOpenRequest(w http.ResponseWriter, r *http.Request) (playback.StartOptions, bool) {
	var req OpenRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSONErrorDetail(w, "invalid request body", http.StatusBadRequest, err)
		return playback.StartOptions{}, false
	}
	if req.StartAt < 0 || req.FPS < 0 {
		writeJSONError(w, "startAt and fps must not be negative", http.StatusBadRequest)
		return playback.StartOptions{}, false
	}
	if req.StartAt > maxStartAt.Seconds() {
		writeJSONError(w, "startAt out of range", http.StatusBadRequest)
		return playback.StartOptions{}, false
	}

	fullPath, ok := h.statMediaFile(w, req.Path)
	if !ok {
		return playback.StartOptions{}, false
	}
	if !mediatypes.IsVideo(fullPath) {
		writeJSONError(w, "preview not supported", http.StatusUnsupportedMediaType)
		return playback.StartOptions{}, false
	}

	return playback.StartOptions{
		Path:    fullPath,
		FPS:     req.FPS,
		StartAt: time.Duration(req.StartAt * float64(time.Second)),
	}, true
}

func (h *Handlers) sessionStartError(w http.ResponseWriter, path string, err error) {
	switch {
	case errors.Is(err, playback.ErrTooManySessions), errors.Is(err, memory.ErrMemoryPressure):
		w.Header().Set("Retry-After", "5")
		writeJSONErrorDetail(w, "too busy", http.StatusServiceUnavailable, err)
	default:
		log.Warn("preview of %s failed to start: %v", path, err)
		writeJSONErrorDetail(w, "preview not supported", http.StatusUnprocessableEntity, err)
	}
}

func (h *Handlers) sessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, playback.ErrSessionNotFound) {
		writeJSONError(w, "session not found", http.StatusNotFound)
		return
	}
	log.Error("session request failed: %v", err)
	writeJSONErrorDetail(w, "internal error", http.StatusInternalServerError, err)
}

func (h *Handlers) writeSessionInfo(w http.ResponseWriter, id string) {
	info, err := h.sessions.Info(id)
	if err != nil {
		h.sessionError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, info)
}

// GetSession returns the state of one session.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	h.writeSessionInfo(w, mux.Vars(r)["id"])
}

// PauseSession stops reading frames from the decoder until resumed.
func (h *Handlers) PauseSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s, err := h.sessions.Get(id)
	if err != nil {
		h.sessionError(w, err)
		return
	}
	s.Pause()
	h.writeSessionInfo(w, id)
}

// ResumeSession starts reading frames from the decoder again.
func (h *Handlers) ResumeSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s, err := h.sessions.Get(id)
	if err != nil {
		h.sessionError(w, err)
		return
	}
	s.Resume()
	h.writeSessionInfo(w, id)
}

// CloseSession stops a session and forgets it.
func (h *Handlers) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(mux.Vars(r)["id"]); err != nil {
		h.sessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetFrame returns the newest frame of a session as JPEG, or 204 before the
// first frame has been decoded.
func (h *Handlers) GetFrame(w http.ResponseWriter, r *http.Request) {
	frame, ok, err := h.sessions.Latest(mux.Vars(r)["id"])
	if err != nil {
		h.sessionError(w, err)
		return
	}
	if !ok {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var buf bytes.Buffer
	if err := encodeFrame(&buf, frame); err != nil {
		log.Error("failed to encode frame: %v", err)
		writeJSONErrorDetail(w, "failed to encode frame", http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Seq", strconv.FormatUint(frame.Seq, 10))
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Debug("frame write failed: %v", err)
	}
}

// StreamSession sends the session's frames as a multipart MJPEG stream
// until the run finishes or the client goes away.
func (h *Handlers) StreamSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.sessions.Info(id); err != nil {
		h.sessionError(w, err)
		return
	}

	var lastSeq uint64
	next := func(_ context.Context) ([]byte, bool, error) {
		frame, ok, err := h.sessions.Latest(id)
		if err != nil {
			// Closed while streaming.
			return nil, false, io.EOF
		}
		if ok && frame.Seq != lastSeq {
			lastSeq = frame.Seq
			var buf bytes.Buffer
			if err := encodeFrame(&buf, frame); err != nil {
				return nil, false, err
			}
			return buf.Bytes(), true, nil
		}

		info, err := h.sessions.Info(id)
		if err != nil {
			return nil, false, io.EOF
		}
		switch info.State {
		case playback.Ended.String(), playback.Error.String(), playback.Stopped.String():
			return nil, false, io.EOF
		}
		return nil, false, nil
	}

	if err := streaming.StreamMJPEG(r.Context(), w, h.stream, h.streamInterval, next); err != nil {
		log.Warn("mjpeg stream for session %s ended: %v", id, err)
	}
}

func encodeFrame(w io.Writer, frame playback.Frame) error {
	img, err := imageio.FrameImage(frame.Pix, frame.Width, frame.Height)
	if err != nil {
		return err
	}
	return imageio.EncodeJPEG(w, img, imageio.DefaultJPEGQuality)
}
