/*
Package streaming writes live preview frames to HTTP clients.

TimeoutWriter wraps an http.ResponseWriter so that a client which stops
reading cannot hold a decoder and a goroutine forever: each write is bounded
by WriteTimeout, the stream is canceled after IdleTimeout without a
successful write, and MaxDuration optionally caps the whole response. Every
write is flushed.

MJPEGWriter builds on it to emit multipart/x-mixed-replace, one image/jpeg
part per frame, which browsers display in a plain <img> tag:

	err := streaming.StreamMJPEG(r.Context(), w, streaming.DefaultConfig(), 40*time.Millisecond,
		func(ctx context.Context) ([]byte, bool, error) {
			frame, ok := nextFrame()
			if !ok {
				return nil, false, nil
			}
			return encode(frame), true, nil
		})

A client disconnect is not an error. ErrWriteTimeout and ErrStreamCanceled
report limits being hit.
*/
package streaming
