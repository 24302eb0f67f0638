package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"media-preview/internal/ffcmd"
	"media-preview/internal/logging"
	"media-preview/internal/metrics"
	"media-preview/internal/probe"
	"media-preview/internal/process"
)

var (
	// ErrStreamEnded reports that the decoder reached the end of the video.
	// It describes why a run finished and is not a failure.
	ErrStreamEnded = errors.New("playback: stream ended")

	// ErrDecodeRead wraps an unexpected error reading the decoder pipe.
	ErrDecodeRead = errors.New("playback: decoder read failed")

	// ErrNoFrames means the decoder exited without producing a single frame,
	// usually because the codec is not supported.
	ErrNoFrames = errors.New("playback: decoder produced no frames")

	// ErrUnknownSize means the source dimensions were neither given nor probed.
	ErrUnknownSize = errors.New("playback: unknown source dimensions")

	// ErrFrameTooLarge means the chosen frame exceeds the configured memory bound.
	ErrFrameTooLarge = errors.New("playback: frame too large")
)

const (
	// DefaultMaxWidth caps the decoded frame width.
	DefaultMaxWidth = 640
	// DefaultMaxFrameBytes bounds a single frame buffer (two per session).
	DefaultMaxFrameBytes = 32 << 20
	// DefaultTerminateTimeout is how long the decoder gets to exit after SIGTERM.
	DefaultTerminateTimeout = 2 * time.Second

	// pauseIdle is how often a paused decode loop rechecks its flags.
	pauseIdle = 20 * time.Millisecond
)

var log = logging.Component("playback")

// State is the lifecycle state of a Session.
type State int32

const (
	Stopped State = iota
	Starting
	Playing
	Paused
	Stopping
	Ended
	Error
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Stopping:
		return "stopping"
	case Ended:
		return "ended"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Prober supplies the source dimensions and frame rate when StartOptions
// leaves them unset. *probe.Service implements it.
type Prober interface {
	Basic(ctx context.Context, path string) (*probe.BasicInfo, error)
	FPS(ctx context.Context, path string) (float64, error)
}

// Config configures a Session.
type Config struct {
	FFmpegPath       string
	MaxWidth         int
	MaxFrameBytes    int
	TerminateTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.MaxWidth <= 0 {
		c.MaxWidth = DefaultMaxWidth
	}
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = DefaultMaxFrameBytes
	}
	if c.TerminateTimeout <= 0 {
		c.TerminateTimeout = DefaultTerminateTimeout
	}
	return c
}

// StartOptions describes what to play.
type StartOptions struct {
	Path string
	// SourceWidth and SourceHeight are probed when zero.
	SourceWidth  int
	SourceHeight int
	// FPS is probed when zero; probe.DefaultFPS is used if that fails.
	FPS float64
	// StartAt seeks the decoder before the first frame. Not frame accurate.
	StartAt time.Duration
}

// Stats counts frames for the current or most recent run.
type Stats struct {
	Decoded   uint64 `json:"decoded"`
	Dropped   uint64 `json:"dropped"`
	Presented uint64 `json:"presented"`
}

// run is the state owned by one decoder process and its goroutine.
type run struct {
	handle   *process.Handle
	stdout   io.Reader
	decode   []byte
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// Session plays one video at a time by reading raw frames from an ffmpeg
// decoder on a background goroutine. The renderer calls AcquireLatestFrame
// and Poll from its own loop; neither blocks on the decoder.
type Session struct {
	spawner process.Spawner
	prober  Prober
	cfg     Config

	// ctl serialises Start, Stop, Poll, Pause and Resume.
	ctl sync.Mutex
	cur *run

	state   atomic.Int32
	running atomic.Bool
	paused  atomic.Bool

	// mu guards the frame exchange and everything below it.
	mu         sync.Mutex
	path       string
	width      int
	height     int
	present    []byte
	frameReady bool
	seq        uint64
	eof        bool
	readErr    error
	lastErr    error
	stats      Stats
}

// NewSession creates a stopped session. prober may be nil if callers
// always pass source dimensions.
func NewSession(spawner process.Spawner, prober Prober, cfg Config) *Session {
	return &Session{
		spawner: spawner,
		prober:  prober,
		cfg:     cfg.withDefaults(),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

// IsPlaying reports whether frames are being decoded (Playing, not Paused).
func (s *Session) IsPlaying() bool { return s.State() == Playing }

// FrameSize returns the dimensions of the frames of the active run, or 0, 0.
func (s *Session) FrameSize() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// FrameReady reports whether a frame is waiting to be acquired.
func (s *Session) FrameReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameReady
}

// Path returns the video of the current or most recent run.
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// LastError returns why the most recent run failed to start or ended in Error.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Stats returns frame counters for the current or most recent run.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// AcquireLatestFrame copies the newest unread frame into dst, reusing
// dst.Pix when it has capacity, and returns true. It returns false without
// blocking when no new frame has been decoded since the last call.
func (s *Session) AcquireLatestFrame(dst *Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.frameReady || s.present == nil {
		return false
	}
	dst.Width, dst.Height, dst.Seq = s.width, s.height, s.seq
	dst.Pix = append(dst.Pix[:0], s.present...)
	s.frameReady = false
	s.stats.Presented++
	metrics.PlaybackFramesPresented.Inc()
	return true
}

// Start begins playing opts.Path, stopping any active run first. ctx bounds
// probing only; the decoder runs until Stop or the end of the stream. On
// failure nothing is left running, the session is in Error and may be
// started again.
func (s *Session) Start(ctx context.Context, opts StartOptions) error {
	s.ctl.Lock()
	defer s.ctl.Unlock()

	if s.cur != nil {
		s.stopLocked(Stopped, "stopped", nil)
	}

	s.setState(Starting)
	if err := s.startLocked(ctx, opts); err != nil {
		s.mu.Lock()
		s.path = opts.Path
		s.lastErr = err
		s.mu.Unlock()
		s.setState(Error)
		log.Warn("failed to start %s: %v", opts.Path, err)
		return err
	}
	s.setState(Playing)
	return nil
}

func (s *Session) startLocked(ctx context.Context, opts StartOptions) error {
	if opts.Path == "" {
		return fmt.Errorf("playback: no path")
	}

	srcW, srcH := opts.SourceWidth, opts.SourceHeight
	if (srcW <= 0 || srcH <= 0) && s.prober != nil {
		if info, err := s.prober.Basic(ctx, opts.Path); err == nil && info.Width != nil && info.Height != nil {
			srcW, srcH = *info.Width, *info.Height
		}
	}
	if srcW <= 0 || srcH <= 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSize, opts.Path)
	}

	fps := opts.FPS
	if fps <= 0 && s.prober != nil {
		var err error
		if fps, err = s.prober.FPS(ctx, opts.Path); err != nil {
			log.Debug("pacing %s at default rate: %v", opts.Path, err)
		}
	}
	if fps <= 0 {
		fps = probe.DefaultFPS
	}

	w, h := FitSize(srcW, srcH, s.cfg.MaxWidth)
	frameBytes := w * h * BytesPerPixel
	if frameBytes > s.cfg.MaxFrameBytes {
		return fmt.Errorf("%w: %dx%d needs %d bytes, limit %d", ErrFrameTooLarge, w, h, frameBytes, s.cfg.MaxFrameBytes)
	}

	// The decoder outlives the request that started it.
	handle, err := s.spawner.Spawn(context.WithoutCancel(ctx), process.Spec{
		Name:          "ffmpeg",
		Path:          s.cfg.FFmpegPath,
		Args:          ffcmd.Decoder(opts.Path, w, h, opts.StartAt),
		CaptureStdout: true,
	})
	if err != nil {
		return err
	}

	r := &run{
		handle:   handle,
		stdout:   handle.Stdout(),
		decode:   make([]byte, frameBytes),
		interval: time.Duration(float64(time.Second) / fps),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	s.path = opts.Path
	s.width, s.height = w, h
	s.present = make([]byte, frameBytes)
	s.frameReady = false
	s.seq = 0
	s.eof = false
	s.readErr = nil
	s.lastErr = nil
	s.stats = Stats{}
	s.mu.Unlock()

	s.cur = r
	s.paused.Store(false)
	s.running.Store(true)
	metrics.PlaybackSessionsActive.Inc()

	go s.decodeLoop(r)

	log.Info("playing %s at %dx%d, %.3g fps (pid %d)", opts.Path, w, h, fps, handle.Pid())
	return nil
}

// decodeLoop reads frames until the stream ends, a read fails or the run
// is stopped.
func (s *Session) decodeLoop(r *run) {
	defer close(r.done)

	timer := time.NewTimer(0)
	<-timer.C
	defer timer.Stop()

	wait := func(d time.Duration) bool {
		timer.Reset(d)
		select {
		case <-r.stop:
			return false
		case <-timer.C:
			return true
		}
	}

	for s.running.Load() {
		if s.paused.Load() {
			if !wait(pauseIdle) {
				return
			}
			continue
		}

		if err := readFrame(r.stdout, r.decode); err != nil {
			s.finish(err)
			return
		}
		s.publish(r.decode)

		if !wait(r.interval) {
			return
		}
	}
}

// publish copies a complete frame into the presentation buffer. An unread
// previous frame is overwritten and counted as dropped.
func (s *Session) publish(frame []byte) {
	s.mu.Lock()
	copy(s.present, frame)
	if s.frameReady {
		s.stats.Dropped++
		metrics.PlaybackFramesDropped.Inc()
	}
	s.frameReady = true
	s.seq++
	s.stats.Decoded++
	s.mu.Unlock()

	metrics.PlaybackFramesDecoded.Inc()
}

// finish records why the decode loop stopped reading. Errors caused by Stop
// closing the pipe are not recorded.
func (s *Session) finish(err error) {
	if !s.running.Load() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eof {
		return
	}
	s.eof = true

	switch {
	case errors.Is(err, io.EOF):
		log.Debug("%s: %v after %d frames", s.path, ErrStreamEnded, s.stats.Decoded)
	case errors.Is(err, io.ErrUnexpectedEOF):
		log.Debug("%s: %v inside a frame after %d frames", s.path, ErrStreamEnded, s.stats.Decoded)
	default:
		s.readErr = fmt.Errorf("%w: %w", ErrDecodeRead, err)
		log.Error("%s: %v", s.path, s.readErr)
	}
}

// Pause stops consuming frames without stopping the decoder.
func (s *Session) Pause() {
	s.ctl.Lock()
	defer s.ctl.Unlock()
	if s.State() == Playing {
		s.paused.Store(true)
		s.setState(Paused)
	}
}

// Resume continues a paused run.
func (s *Session) Resume() {
	s.ctl.Lock()
	defer s.ctl.Unlock()
	if s.State() == Paused {
		s.paused.Store(false)
		s.setState(Playing)
	}
}

// Stop tears down the active run: the decode goroutine has exited and the
// decoder has been reaped by the time it returns. It never fails and may be
// called at any time.
func (s *Session) Stop() { s.stop("stopped") }

func (s *Session) stop(reason string) {
	s.ctl.Lock()
	defer s.ctl.Unlock()

	if s.cur == nil {
		s.setState(Stopped)
		return
	}
	s.stopLocked(Stopped, reason, nil)
}

// Poll is called from the owner's loop. When the decode goroutine has hit
// the end of the stream or a read error, it performs the Stop teardown and
// moves the session to Ended or Error. It returns the resulting state.
func (s *Session) Poll() State {
	s.ctl.Lock()
	defer s.ctl.Unlock()

	if s.cur == nil {
		return s.State()
	}

	s.mu.Lock()
	eof, readErr, decoded := s.eof, s.readErr, s.stats.Decoded
	s.mu.Unlock()
	if !eof {
		return s.State()
	}

	if readErr == nil && decoded > 0 {
		s.stopLocked(Ended, "ended", nil)
		return Ended
	}
	s.stopLocked(Error, "error", readErr)
	return Error
}

// noFrames describes a decoder that exited before its first frame, which
// usually means the file could not be decoded.
func noFrames(h *process.Handle) error {
	if tail := strings.TrimSpace(h.Stderr()); tail != "" {
		return fmt.Errorf("%w: %s", ErrNoFrames, tail)
	}
	return ErrNoFrames
}

// stopLocked performs the teardown. Closing our end of the pipe comes first:
// it unblocks a pending read and makes a decoder blocked on write fail with
// EPIPE, so the join and the termination below cannot stall.
func (s *Session) stopLocked(final State, reason string, cause error) {
	r := s.cur
	s.setState(Stopping)

	s.running.Store(false)
	close(r.stop)
	r.handle.Close()
	<-r.done

	state := r.handle.Terminate(s.cfg.TerminateTimeout)
	log.Debug("decoder for %s %s (%s)", s.path, state, reason)

	s.mu.Lock()
	s.present = nil
	s.frameReady = false
	s.width, s.height = 0, 0
	if final == Error {
		if cause == nil {
			cause = noFrames(r.handle)
		}
		s.lastErr = cause
	}
	s.mu.Unlock()

	r.decode = nil
	s.cur = nil
	s.paused.Store(false)

	metrics.PlaybackSessionsActive.Dec()
	metrics.PlaybackSessionEndsTotal.WithLabelValues(reason).Inc()
	s.setState(final)
}
