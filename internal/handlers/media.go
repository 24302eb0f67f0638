package handlers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"

	"media-preview/internal/imageio"
	"media-preview/internal/mediatypes"
	"media-preview/internal/probe"
	"media-preview/internal/thumbnail"
)

const maxThumbnailBox = 4096

// GetThumbnail serves the cached still for a video, extracting it on first
// request. With w and h query parameters the still is scaled to fit and
// re-encoded as JPEG.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	if h.thumbs == nil {
		writeJSONError(w, "thumbnails disabled", http.StatusServiceUnavailable)
		return
	}

	fullPath, ok := h.statMediaFile(w, mux.Vars(r)["path"])
	if !ok {
		return
	}
	if !mediatypes.IsVideo(fullPath) {
		writeJSONError(w, "unsupported file type", http.StatusUnsupportedMediaType)
		return
	}

	width, height, err := boxParams(r)
	if err != nil {
		writeJSONErrorDetail(w, "invalid size", http.StatusBadRequest, err)
		return
	}

	if width > 0 && height > 0 {
		img, err := h.thumbs.Load(r.Context(), fullPath, width, height)
		if err != nil {
			h.thumbnailError(w, fullPath, err)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		if err := imageio.EncodeJPEG(w, img, imageio.DefaultJPEGQuality); err != nil {
			log.Warn("failed to write scaled thumbnail for %s: %v", fullPath, err)
		}
		return
	}

	cachePath, err := h.thumbs.GetOrCreate(r.Context(), fullPath)
	if err != nil {
		h.thumbnailError(w, fullPath, err)
		return
	}

	f, err := os.Open(cachePath)
	if err != nil {
		h.thumbnailError(w, fullPath, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		h.thumbnailError(w, fullPath, err)
		return
	}

	w.Header().Set("Content-Type", mediatypes.GetMimeType(filepath.Ext(cachePath)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(w, r, filepath.Base(cachePath), info.ModTime(), f)
}

func (h *Handlers) thumbnailError(w http.ResponseWriter, path string, err error) {
	if errors.Is(err, thumbnail.ErrThumbnailUnavailable) {
		log.Debug("thumbnail unavailable for %s: %v", path, err)
		writeJSONErrorDetail(w, "thumbnail unavailable", http.StatusUnprocessableEntity, err)
		return
	}
	log.Error("thumbnail for %s: %v", path, err)
	writeJSONErrorDetail(w, "thumbnail unavailable", http.StatusInternalServerError, err)
}

// boxParams reads the optional w and h query parameters.
func boxParams(r *http.Request) (width, height int, err error) {
	q := r.URL.Query()
	if v := q.Get("w"); v != "" {
		if width, err = strconv.Atoi(v); err != nil || width <= 0 || width > maxThumbnailBox {
			return 0, 0, errors.New("w must be between 1 and 4096")
		}
	}
	if v := q.Get("h"); v != "" {
		if height, err = strconv.Atoi(v); err != nil || height <= 0 || height > maxThumbnailBox {
			return 0, 0, errors.New("h must be between 1 and 4096")
		}
	}
	return width, height, nil
}

// GetMetadata probes a video and returns whatever fields could be read.
func (h *Handlers) GetMetadata(w http.ResponseWriter, r *http.Request) {
	fullPath, ok := h.statMediaFile(w, mux.Vars(r)["path"])
	if !ok {
		return
	}
	if !mediatypes.IsVideo(fullPath) {
		writeJSONError(w, "unsupported file type", http.StatusUnsupportedMediaType)
		return
	}

	md, err := h.probe.Metadata(r.Context(), fullPath)
	if err != nil {
		if errors.Is(err, probe.ErrNoData) {
			writeJSONErrorDetail(w, "metadata unavailable", http.StatusUnprocessableEntity, err)
			return
		}
		log.Error("metadata for %s: %v", fullPath, err)
		writeJSONErrorDetail(w, "metadata unavailable", http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	writeJSONStatus(w, http.StatusOK, md)
}
