package imageio

import (
	"bytes"
	"fmt"
	"image"
	"path/filepath"
	"sync"

	"media-preview/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
)

var log = logging.Component("imageio")

var (
	vipsMu        sync.Mutex
	vipsAvailable bool
)

// vipsLevel maps the application log level to the most verbose libvips
// level worth forwarding.
func vipsLevel(level logging.LogLevel) vips.LogLevel {
	switch level {
	case logging.LevelDebug:
		return vips.LogLevelInfo
	case logging.LevelWarn:
		return vips.LogLevelError
	case logging.LevelError:
		return vips.LogLevelCritical
	default:
		return vips.LogLevelWarning
	}
}

func forwardVipsLog(domain string, level vips.LogLevel, msg string) {
	switch level {
	case vips.LogLevelError, vips.LogLevelCritical:
		logging.Error("[%s] %s", domain, msg)
	case vips.LogLevelWarning:
		logging.Warn("[%s] %s", domain, msg)
	default:
		logging.Debug("[%s] %s", domain, msg)
	}
}

// InitVips starts libvips for thumbnail loading. Call once at startup when
// VIPS_ENABLED is set; without it Load uses the pure-Go path.
func InitVips() {
	vipsMu.Lock()
	defer vipsMu.Unlock()

	if vipsAvailable {
		return
	}

	// Logging must be configured before Startup.
	vips.LoggingSettings(forwardVipsLog, vipsLevel(logging.GetLevel()))
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      32 * 1024 * 1024,
		MaxCacheSize:     50,
	})

	vipsAvailable = true
	log.Info("libvips initialized (version: %s)", vips.Version)
}

// ShutdownVips releases libvips resources.
func ShutdownVips() {
	vipsMu.Lock()
	defer vipsMu.Unlock()

	if vipsAvailable {
		vips.Shutdown()
		vipsAvailable = false
		log.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized.
func IsVipsAvailable() bool {
	vipsMu.Lock()
	defer vipsMu.Unlock()
	return vipsAvailable
}

// loadWithVips lets libvips shrink while decoding (JPEG and WebP shrink-on-load),
// so a large still is never held at full size. Smaller images are not enlarged.
func loadWithVips(path string, width, height int) (image.Image, error) {
	if !IsVipsAvailable() {
		return nil, fmt.Errorf("libvips not available")
	}

	ref, err := vips.NewThumbnailWithSizeFromFile(path, width, height, vips.InterestingNone, vips.SizeDown)
	if err != nil {
		return nil, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	log.Debug("vips loaded %s at %dx%d, target %dx%d",
		filepath.Base(path), ref.Width(), ref.Height(), width, height)

	buf, _, err := ref.ExportJpeg(&vips.JpegExportParams{Quality: 90})
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}
	return imaging.Decode(bytes.NewReader(buf))
}
