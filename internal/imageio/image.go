package imageio

import (
	"fmt"
	"image"
	"io"
	"os"

	// Thumbnail formats
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // THUMBNAIL_FORMAT=webp
)

// DefaultJPEGQuality is used for frame snapshots and MJPEG parts.
const DefaultJPEGQuality = 80

// FrameImage wraps a tightly packed RGB24 buffer (row-major, top to bottom)
// in a new NRGBA image. pix is copied; the caller may reuse it.
func FrameImage(pix []byte, width, height int) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	if len(pix) < width*height*3 {
		return nil, fmt.Errorf("frame buffer too small: %d bytes for %dx%d", len(pix), width, height)
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	dst := img.Pix
	for i, j := 0, 0; i < width*height*3; i, j = i+3, j+4 {
		dst[j] = pix[i]
		dst[j+1] = pix[i+1]
		dst[j+2] = pix[i+2]
		dst[j+3] = 0xff
	}
	return img, nil
}

// EncodeJPEG writes img as JPEG.
func EncodeJPEG(w io.Writer, img image.Image, quality int) error {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	if err := imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return nil
}

// Fit scales img down to fit within width x height, keeping aspect ratio.
// Images already inside the box are returned unchanged.
func Fit(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if width <= 0 || height <= 0 || (b.Dx() <= width && b.Dy() <= height) {
		return img
	}
	return imaging.Fit(img, width, height, imaging.Linear)
}

// Dimensions reads an image's size without decoding the pixels.
func Dimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read image header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// Load decodes the image at path scaled to fit within width x height.
// libvips is used when initialized, since it can shrink during decode;
// otherwise the image is decoded in full and resized with imaging.
func Load(path string, width, height int) (image.Image, error) {
	if IsVipsAvailable() && width > 0 && height > 0 {
		img, err := loadWithVips(path, width, height)
		if err == nil {
			return img, nil
		}
		log.Debug("vips load of %s failed, falling back: %v", path, err)
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return Fit(img, width, height), nil
}
