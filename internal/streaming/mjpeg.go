package streaming

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"
)

// FrameSource returns the next JPEG to send. ok is false when there is
// nothing new yet. Returning io.EOF ends the stream cleanly.
type FrameSource func(ctx context.Context) (jpeg []byte, ok bool, err error)

// MJPEGWriter writes a multipart/x-mixed-replace stream of JPEG parts, the
// format browsers render natively in an <img> element.
type MJPEGWriter struct {
	tw     *TimeoutWriter
	mw     *multipart.Writer
	frames int
}

// NewMJPEGWriter sets the response headers and returns a writer for parts.
func NewMJPEGWriter(ctx context.Context, w http.ResponseWriter, config Config) *MJPEGWriter {
	tw := NewTimeoutWriter(ctx, w, config)
	mw := multipart.NewWriter(tw)

	h := w.Header()
	h.Set("Content-Type", "multipart/x-mixed-replace; boundary="+mw.Boundary())
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("X-Content-Type-Options", "nosniff")

	return &MJPEGWriter{tw: tw, mw: mw}
}

// Context is done once the stream can no longer be written.
func (m *MJPEGWriter) Context() context.Context { return m.tw.Context() }

// WriteFrame sends one JPEG part.
func (m *MJPEGWriter) WriteFrame(jpeg []byte) error {
	part, err := m.mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":   {"image/jpeg"},
		"Content-Length": {strconv.Itoa(len(jpeg))},
	})
	if err != nil {
		return err
	}
	if _, err := part.Write(jpeg); err != nil {
		return err
	}
	m.frames++
	return nil
}

// Frames returns the number of parts written.
func (m *MJPEGWriter) Frames() int { return m.frames }

// Close writes the closing boundary if the client is still there and stops
// the underlying writer.
func (m *MJPEGWriter) Close() error {
	var err error
	if m.tw.Context().Err() == nil {
		err = m.mw.Close()
	}
	if cerr := m.tw.Close(); err == nil {
		err = cerr
	}
	return err
}

// StreamMJPEG polls next every interval and writes each new frame until the
// source returns io.EOF, a write fails or ctx is done. A clean end of the
// source and a client disconnect both return nil.
func StreamMJPEG(ctx context.Context, w http.ResponseWriter, config Config, interval time.Duration, next FrameSource) error {
	m := NewMJPEGWriter(ctx, w, config)
	defer func() {
		if err := m.Close(); err != nil {
			log.Debug("closing mjpeg stream: %v", err)
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		jpeg, ok, err := next(m.Context())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if ok {
			if err := m.WriteFrame(jpeg); err != nil {
				if errors.Is(err, ErrClientGone) {
					break
				}
				return err
			}
		}

		select {
		case <-m.Context().Done():
			if err := m.tw.contextError(); !errors.Is(err, ErrClientGone) {
				return err
			}
			return nil
		case <-ticker.C:
		}
	}

	written, elapsed := m.tw.Stats()
	log.Debug("mjpeg stream finished: %d frames, %d bytes in %v", m.frames, written, elapsed)
	return nil
}
