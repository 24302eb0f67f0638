package mediatypes

import (
	"path/filepath"
	"strings"
)

// VideoExtensions lists container extensions handed to ffmpeg for previews.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
	".ts":   true,
	".m2ts": true,
	".ogv":  true,
}

// ThumbnailFormats maps a configured thumbnail format to its file extension.
var ThumbnailFormats = map[string]string{
	"jpg":  ".jpg",
	"jpeg": ".jpg",
	"png":  ".png",
	"webp": ".webp",
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",

	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",
	".m2ts": "video/mp2t",
	".ogv":  "video/ogg",
}

// IsVideo reports whether path has a known video extension (case-insensitive).
func IsVideo(path string) bool {
	return VideoExtensions[strings.ToLower(filepath.Ext(path))]
}

// ThumbnailExt returns the extension for a thumbnail format name, or ""
// if the format is not supported.
func ThumbnailExt(format string) string {
	return ThumbnailFormats[strings.ToLower(strings.TrimPrefix(format, "."))]
}

// GetMimeType returns the MIME type for a lowercase extension with leading
// dot, or "application/octet-stream".
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}
