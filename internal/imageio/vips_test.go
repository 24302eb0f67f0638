package imageio

import (
	"testing"

	"github.com/davidbyttow/govips/v2/vips"

	"media-preview/internal/logging"
)

func TestVipsLevel(t *testing.T) {
	tests := []struct {
		level logging.LogLevel
		want  vips.LogLevel
	}{
		{logging.LevelDebug, vips.LogLevelInfo},
		{logging.LevelInfo, vips.LogLevelWarning},
		{logging.LevelWarn, vips.LogLevelError},
		{logging.LevelError, vips.LogLevelCritical},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			if got := vipsLevel(tt.level); got != tt.want {
				t.Errorf("vipsLevel(%v) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestLoadWithVipsUnavailable(t *testing.T) {
	if IsVipsAvailable() {
		t.Skip("libvips initialized by another test")
	}
	if _, err := loadWithVips("/tmp/x.jpg", 10, 10); err == nil {
		t.Error("expected error when libvips is not initialized")
	}
}

func TestForwardVipsLogDoesNotPanic(_ *testing.T) {
	for _, lvl := range []vips.LogLevel{
		vips.LogLevelDebug, vips.LogLevelInfo, vips.LogLevelMessage,
		vips.LogLevelWarning, vips.LogLevelError, vips.LogLevelCritical,
	} {
		forwardVipsLog("VIPS", lvl, "test message")
	}
}

func TestLoadWithVipsShrinksOnly(t *testing.T) {
	if testing.Short() {
		t.Skip("starts libvips")
	}
	InitVips()
	path := writePNG(t, 200, 100)

	img, err := loadWithVips(path, 50, 50)
	if err != nil {
		t.Fatalf("loadWithVips() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 50 || b.Dy() != 25 {
		t.Errorf("shrunk size = %dx%d, want 50x25", b.Dx(), b.Dy())
	}

	img, err = loadWithVips(path, 400, 400)
	if err != nil {
		t.Fatalf("loadWithVips() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 100 {
		t.Errorf("size = %dx%d, want 200x100 (no enlarging)", b.Dx(), b.Dy())
	}
}
