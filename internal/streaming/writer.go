package streaming

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"media-preview/internal/logging"
)

var (
	// ErrWriteTimeout indicates a single write or the whole stream ran too long.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone indicates that the client disconnected.
	ErrClientGone = errors.New("client disconnected")

	// ErrStreamCanceled indicates the stream was closed or hit its idle limit.
	ErrStreamCanceled = errors.New("stream canceled")
)

var log = logging.Component("streaming")

// Config bounds how long a stream may stall.
type Config struct {
	// WriteTimeout is the maximum time a single write may block.
	WriteTimeout time.Duration
	// IdleTimeout is the maximum time between successful writes.
	IdleTimeout time.Duration
	// MaxDuration caps the whole stream (0 = unlimited).
	MaxDuration time.Duration
}

// DefaultConfig returns limits suited to a live preview: writes are small and
// frequent, so a client that stops reading for a few seconds is dropped.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
		MaxDuration:  0,
	}
}

// TimeoutWriter wraps an http.ResponseWriter so that a slow or vanished
// client cannot hold a stream open. Every write is flushed.
type TimeoutWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	ctx     context.Context
	cancel  context.CancelCauseFunc
	config  Config

	mu        sync.Mutex
	startTime time.Time
	lastWrite time.Time
	written   int64
	closed    bool
}

// NewTimeoutWriter creates a writer bound to ctx, usually the request context.
func NewTimeoutWriter(ctx context.Context, w http.ResponseWriter, config Config) *TimeoutWriter {
	writerCtx, cancel := context.WithCancelCause(ctx)

	now := time.Now()
	tw := &TimeoutWriter{
		w:         w,
		ctx:       writerCtx,
		cancel:    cancel,
		config:    config,
		startTime: now,
		lastWrite: now,
	}
	if f, ok := w.(http.Flusher); ok {
		tw.flusher = f
	}

	go tw.idleChecker()

	return tw
}

// Context is canceled when the client leaves, a limit is hit or the writer
// is closed. Producers select on it to stop early.
func (tw *TimeoutWriter) Context() context.Context { return tw.ctx }

// Write implements io.Writer.
func (tw *TimeoutWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	closed := tw.closed
	tw.mu.Unlock()
	if closed {
		return 0, ErrStreamCanceled
	}

	select {
	case <-tw.ctx.Done():
		return 0, tw.contextError()
	default:
	}

	if tw.config.MaxDuration > 0 && time.Since(tw.startTime) > tw.config.MaxDuration {
		return 0, ErrWriteTimeout
	}

	return tw.writeWithTimeout(p)
}

func (tw *TimeoutWriter) writeWithTimeout(p []byte) (int, error) {
	type writeResult struct {
		n   int
		err error
	}
	resultCh := make(chan writeResult, 1)

	go func() {
		n, err := tw.w.Write(p)
		if err == nil && tw.flusher != nil {
			tw.flusher.Flush()
		}
		resultCh <- writeResult{n, err}
	}()

	timeout := tw.config.WriteTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().WriteTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-resultCh:
		if result.err == nil {
			tw.mu.Lock()
			tw.lastWrite = time.Now()
			tw.written += int64(result.n)
			tw.mu.Unlock()
		}
		return result.n, result.err

	case <-timer.C:
		tw.cancel(ErrWriteTimeout)
		return 0, ErrWriteTimeout

	case <-tw.ctx.Done():
		return 0, tw.contextError()
	}
}

func (tw *TimeoutWriter) idleChecker() {
	if tw.config.IdleTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(tw.config.IdleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tw.mu.Lock()
			idle := time.Since(tw.lastWrite)
			closed := tw.closed
			tw.mu.Unlock()

			if closed {
				return
			}
			if idle > tw.config.IdleTimeout {
				log.Warn("stream idle for %v, canceling", idle)
				tw.cancel(ErrStreamCanceled)
				return
			}

		case <-tw.ctx.Done():
			return
		}
	}
}

// contextError maps the writer's cancellation cause to one of the package
// errors. A canceled parent context means the client went away.
func (tw *TimeoutWriter) contextError() error {
	cause := context.Cause(tw.ctx)
	switch {
	case errors.Is(cause, ErrWriteTimeout), errors.Is(cause, ErrStreamCanceled):
		return cause
	case errors.Is(cause, context.DeadlineExceeded):
		return ErrWriteTimeout
	default:
		return ErrClientGone
	}
}

// Close stops the writer. It is safe to call more than once.
func (tw *TimeoutWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.closed {
		return nil
	}
	tw.closed = true
	tw.cancel(ErrStreamCanceled)
	return nil
}

// Stats returns bytes written and time since the writer was created.
func (tw *TimeoutWriter) Stats() (int64, time.Duration) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.written, time.Since(tw.startTime)
}
