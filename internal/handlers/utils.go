package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

var errOutsideMediaDir = errors.New("path outside media directory")

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// writeJSON encodes v as JSON and writes it to the response writer.
// Encoding errors are only logged; the status line is already sent.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONStatus writes v as JSON with the given status code.
func writeJSONStatus(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, v)
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONStatus(w, statusCode, ErrorResponse{Error: message})
}

// writeJSONErrorDetail is writeJSONError with the underlying cause attached.
func writeJSONErrorDetail(w http.ResponseWriter, message string, statusCode int, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Detail = err.Error()
	}
	writeJSONStatus(w, statusCode, resp)
}

// resolveMediaPath joins rel onto the media directory and rejects anything
// that escapes it.
func (h *Handlers) resolveMediaPath(rel string) (string, error) {
	if rel == "" {
		return "", errors.New("path is required")
	}
	abs, err := filepath.Abs(filepath.Join(h.mediaDir, filepath.FromSlash(rel)))
	if err != nil {
		return "", err
	}
	if !isSubPath(h.mediaDir, abs) {
		return "", errOutsideMediaDir
	}
	return abs, nil
}

// isSubPath reports whether child is parent or lies beneath it.
func isSubPath(parent, child string) bool {
	parent, err := filepath.Abs(parent)
	if err != nil {
		return false
	}
	child, err = filepath.Abs(child)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// statMediaFile resolves rel and checks that it names a regular file,
// writing the error response itself when it does not.
func (h *Handlers) statMediaFile(w http.ResponseWriter, rel string) (string, bool) {
	fullPath, err := h.resolveMediaPath(rel)
	if err != nil {
		log.Warn("rejected path %q: %v", rel, err)
		writeJSONError(w, "invalid path", http.StatusBadRequest)
		return "", false
	}

	info, err := os.Stat(fullPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		writeJSONError(w, "file not found", http.StatusNotFound)
		return "", false
	case err != nil:
		log.Error("failed to stat %s: %v", fullPath, err)
		writeJSONError(w, "failed to access file", http.StatusInternalServerError)
		return "", false
	case info.IsDir():
		writeJSONError(w, "path is a directory", http.StatusBadRequest)
		return "", false
	}
	return fullPath, true
}
