package playback

import (
	"errors"
	"io"
	"syscall"
)

// BytesPerPixel is the size of one packed RGB24 pixel.
const BytesPerPixel = 3

// Frame is a copy of one decoded picture: packed RGB24, row-major, top to
// bottom, len(Pix) == Width*Height*3.
type Frame struct {
	Width  int
	Height int
	// Seq numbers frames in decode order, starting at 1 for each run.
	Seq uint64
	Pix []byte
}

// Clone returns a deep copy of f.
func (f *Frame) Clone() Frame {
	c := *f
	c.Pix = append([]byte(nil), f.Pix...)
	return c
}

// FitSize scales srcW x srcH so the width does not exceed maxW, keeping the
// aspect ratio. Both results are even and at least 2, as yuv-to-rgb scalers
// prefer.
func FitSize(srcW, srcH, maxW int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return 0, 0
	}
	w, h := srcW, srcH
	if maxW > 0 && w > maxW {
		h = (srcH*maxW + srcW/2) / srcW
		w = maxW
	}
	return even(w), even(h)
}

func even(n int) int {
	n &^= 1
	if n < 2 {
		return 2
	}
	return n
}

// readFrame fills buf completely from r. Short reads are accumulated and
// interrupted reads retried. It returns io.EOF when the stream ends on a
// frame boundary and io.ErrUnexpectedEOF when it ends inside a frame.
func readFrame(r io.Reader, buf []byte) error {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err == nil {
			continue
		}
		switch {
		case errors.Is(err, syscall.EINTR):
			continue
		case errors.Is(err, io.EOF):
			if n == 0 {
				return io.EOF
			}
			if n < len(buf) {
				return io.ErrUnexpectedEOF
			}
			return nil
		default:
			return err
		}
	}
	return nil
}
