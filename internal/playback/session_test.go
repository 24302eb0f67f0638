package playback

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"media-preview/internal/probe"
	"media-preview/internal/process"
)

// 4x2 source frames are 24 bytes.
const (
	tinyW     = 4
	tinyH     = 2
	tinyBytes = tinyW * tinyH * BytesPerPixel
)

type spySpawner struct {
	inner *process.Supervisor
	count atomic.Int32
}

func (s *spySpawner) Spawn(ctx context.Context, spec process.Spec) (*process.Handle, error) {
	s.count.Add(1)
	return s.inner.Spawn(ctx, spec)
}

func newSpy() *spySpawner {
	return &spySpawner{inner: process.NewSupervisor(0)}
}

// writeDecoder installs a fake ffmpeg that ignores its arguments and runs body.
func writeDecoder(t *testing.T, body string) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("failed to write fake decoder: %v", err)
	}
	return bin
}

// Frames numbered 1..5, every byte of frame n set to n.
const fiveFrames = `for o in 001 002 003 004 005; do head -c 24 /dev/zero | tr '\000' "\\$o"; done`

func tinyOpts() StartOptions {
	return StartOptions{Path: "clip.mp4", SourceWidth: tinyW, SourceHeight: tinyH, FPS: 240}
}

func newTestSession(t *testing.T, spawner process.Spawner, body string) *Session {
	t.Helper()
	s := NewSession(spawner, nil, Config{
		FFmpegPath:       writeDecoder(t, body),
		TerminateTimeout: 200 * time.Millisecond,
	})
	t.Cleanup(s.Stop)
	return s
}

// pollUntil calls Poll until the session reaches want or the deadline passes.
func pollUntil(t *testing.T, s *Session, want State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s.Poll() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %s, want %s", s.State(), want)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		Stopped:   "stopped",
		Starting:  "starting",
		Playing:   "playing",
		Paused:    "paused",
		Stopping:  "stopping",
		Ended:     "ended",
		Error:     "error",
		State(42): "unknown(42)",
	}
	for st, want := range tests {
		if got := st.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int32(st), got, want)
		}
	}
}

func TestSession_PlaysToEnd(t *testing.T) {
	s := newTestSession(t, newSpy(), fiveFrames)

	if err := s.Start(context.Background(), tinyOpts()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if w, h := s.FrameSize(); w != tinyW || h != tinyH {
		t.Errorf("FrameSize() = %dx%d, want %dx%d", w, h, tinyW, tinyH)
	}

	var (
		frame   Frame
		lastSeq uint64
	)
	deadline := time.Now().Add(5 * time.Second)
	for s.Poll() != Ended {
		if time.Now().After(deadline) {
			t.Fatalf("state = %s, want ended", s.State())
		}
		if !s.AcquireLatestFrame(&frame) {
			time.Sleep(time.Millisecond)
			continue
		}
		if len(frame.Pix) != tinyBytes {
			t.Fatalf("len(Pix) = %d, want %d", len(frame.Pix), tinyBytes)
		}
		if frame.Seq <= lastSeq {
			t.Errorf("Seq %d after %d, frames out of order", frame.Seq, lastSeq)
		}
		lastSeq = frame.Seq
		for i, b := range frame.Pix {
			if b != byte(frame.Seq) {
				t.Fatalf("frame %d byte %d = %d, torn frame", frame.Seq, i, b)
			}
		}
	}

	if lastSeq == 0 {
		t.Error("no frame was acquired")
	}
	if got := s.Stats().Decoded; got != 5 {
		t.Errorf("Decoded = %d, want 5", got)
	}
	if err := s.LastError(); err != nil {
		t.Errorf("LastError() = %v, want nil after natural end", err)
	}
	if w, h := s.FrameSize(); w != 0 || h != 0 {
		t.Errorf("FrameSize() after end = %dx%d, want 0x0", w, h)
	}
	if s.AcquireLatestFrame(&frame) {
		t.Error("AcquireLatestFrame() returned a frame after teardown")
	}
}

func TestSession_PartialFinalFrameIsEnd(t *testing.T) {
	s := newTestSession(t, newSpy(), `head -c 24 /dev/zero; head -c 10 /dev/zero`)

	if err := s.Start(context.Background(), tinyOpts()); err != nil {
		t.Fatal(err)
	}
	pollUntil(t, s, Ended)

	if got := s.Stats().Decoded; got != 1 {
		t.Errorf("Decoded = %d, want 1", got)
	}
}

func TestSession_NoFramesIsError(t *testing.T) {
	s := newTestSession(t, newSpy(), `echo "Decoder not found for codec" >&2; exit 1`)

	if err := s.Start(context.Background(), tinyOpts()); err != nil {
		t.Fatal(err)
	}
	pollUntil(t, s, Error)

	err := s.LastError()
	if !errors.Is(err, ErrNoFrames) {
		t.Fatalf("LastError() = %v, want ErrNoFrames", err)
	}
	if !strings.Contains(err.Error(), "Decoder not found") {
		t.Errorf("LastError() = %q, want decoder stderr", err)
	}
}

func TestSession_BufferSizing(t *testing.T) {
	s := newTestSession(t, newSpy(), `exec sleep 30`)

	opts := StartOptions{Path: "hd.mp4", SourceWidth: 1280, SourceHeight: 960, FPS: 25}
	if err := s.Start(context.Background(), opts); err != nil {
		t.Fatal(err)
	}

	if w, h := s.FrameSize(); w != 640 || h != 480 {
		t.Errorf("FrameSize() = %dx%d, want 640x480", w, h)
	}
	s.mu.Lock()
	got := len(s.present)
	s.mu.Unlock()
	if got != 640*480*3 {
		t.Errorf("presentation buffer = %d bytes, want %d", got, 640*480*3)
	}
	if len(s.cur.decode) != 640*480*3 {
		t.Errorf("decode buffer = %d bytes, want %d", len(s.cur.decode), 640*480*3)
	}
	if s.FrameReady() {
		t.Error("FrameReady() before any frame was decoded")
	}
}

func TestSession_StopReapsDecoder(t *testing.T) {
	spy := newSpy()
	s := newTestSession(t, spy, `exec sleep 30`)

	if err := s.Start(context.Background(), tinyOpts()); err != nil {
		t.Fatal(err)
	}
	if !s.IsPlaying() {
		t.Errorf("IsPlaying() = false in state %s", s.State())
	}

	s.Stop()

	if s.State() != Stopped {
		t.Errorf("State() = %s, want stopped", s.State())
	}
	if n := spy.inner.Count(); n != 0 {
		t.Errorf("supervisor still tracks %d processes", n)
	}
	if s.IsPlaying() {
		t.Error("IsPlaying() after Stop")
	}
}

func TestSession_StopKillsStubbornDecoder(t *testing.T) {
	spy := newSpy()
	s := newTestSession(t, spy, `trap "" TERM; head -c 24 /dev/zero; exec sleep 30`)

	if err := s.Start(context.Background(), tinyOpts()); err != nil {
		t.Fatal(err)
	}
	// The first frame arrives after the trap is installed.
	waitFor(t, "first frame", func() bool { return s.Stats().Decoded > 0 })

	start := time.Now()
	s.Stop()
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Stop() took %v", elapsed)
	}
	if s.State() != Stopped {
		t.Errorf("State() = %s, want stopped", s.State())
	}
	if n := spy.inner.Count(); n != 0 {
		t.Errorf("supervisor still tracks %d processes", n)
	}
}

func TestSession_StopWithoutRun(t *testing.T) {
	s := NewSession(newSpy(), nil, Config{})
	s.Stop()
	s.Stop()
	if s.State() != Stopped {
		t.Errorf("State() = %s, want stopped", s.State())
	}
	if got := s.Poll(); got != Stopped {
		t.Errorf("Poll() = %s, want stopped", got)
	}
}

func TestSession_PauseResume(t *testing.T) {
	s := newTestSession(t, newSpy(), `exec cat /dev/zero`)

	if err := s.Start(context.Background(), tinyOpts()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "several frames", func() bool { return s.Stats().Decoded >= 3 })

	s.Pause()
	if s.State() != Paused || s.IsPlaying() {
		t.Fatalf("State() = %s after Pause", s.State())
	}

	// Let an in-flight frame land, then the counters must hold still.
	time.Sleep(50 * time.Millisecond)
	paused := s.Stats()
	time.Sleep(100 * time.Millisecond)
	if got := s.Stats(); got.Decoded != paused.Decoded {
		t.Errorf("Decoded moved from %d to %d while paused", paused.Decoded, got.Decoded)
	}

	// Nothing was acquired, so every frame but the newest was overwritten.
	if paused.Dropped != paused.Decoded-1 {
		t.Errorf("Dropped = %d, want %d", paused.Dropped, paused.Decoded-1)
	}
	if paused.Presented != 0 {
		t.Errorf("Presented = %d, want 0", paused.Presented)
	}

	s.Resume()
	if !s.IsPlaying() {
		t.Fatalf("State() = %s after Resume", s.State())
	}
	waitFor(t, "decoding to resume", func() bool { return s.Stats().Decoded > paused.Decoded })

	var frame Frame
	if !s.AcquireLatestFrame(&frame) {
		waitFor(t, "a frame", func() bool { return s.AcquireLatestFrame(&frame) })
	}
	if s.Stats().Presented == 0 {
		t.Error("Presented = 0 after acquiring a frame")
	}
}

func TestSession_PauseResumeIgnoredWhenNotPlaying(t *testing.T) {
	s := NewSession(newSpy(), nil, Config{})
	s.Pause()
	if s.State() != Stopped {
		t.Errorf("Pause() on stopped session moved to %s", s.State())
	}
	s.Resume()
	if s.State() != Stopped {
		t.Errorf("Resume() on stopped session moved to %s", s.State())
	}
}

func TestSession_SpawnFailureIsRecoverable(t *testing.T) {
	s := NewSession(newSpy(), nil, Config{FFmpegPath: filepath.Join(t.TempDir(), "missing")})

	err := s.Start(context.Background(), tinyOpts())
	if !errors.Is(err, process.ErrSpawn) {
		t.Fatalf("Start() error = %v, want ErrSpawn", err)
	}
	if s.State() != Error {
		t.Errorf("State() = %s, want error", s.State())
	}
	if s.LastError() == nil {
		t.Error("LastError() = nil after failed start")
	}

	s.cfg.FFmpegPath = writeDecoder(t, `exec sleep 30`)
	defer s.Stop()
	if err := s.Start(context.Background(), tinyOpts()); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if s.State() != Playing {
		t.Errorf("State() = %s, want playing", s.State())
	}
	if s.LastError() != nil {
		t.Errorf("LastError() = %v after successful start", s.LastError())
	}
}

func TestSession_RejectsBeforeSpawning(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		opts    StartOptions
		wantErr error
	}{
		{
			name:    "unknown size",
			opts:    StartOptions{Path: "clip.mp4"},
			wantErr: ErrUnknownSize,
		},
		{
			name:    "frame over limit",
			cfg:     Config{MaxFrameBytes: 1000},
			opts:    StartOptions{Path: "clip.mp4", SourceWidth: 640, SourceHeight: 480},
			wantErr: ErrFrameTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := newSpy()
			s := NewSession(spy, nil, tt.cfg)

			err := s.Start(context.Background(), tt.opts)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Start() error = %v, want %v", err, tt.wantErr)
			}
			if n := spy.count.Load(); n != 0 {
				t.Errorf("spawned %d processes", n)
			}
			if s.State() != Error {
				t.Errorf("State() = %s, want error", s.State())
			}
		})
	}
}

type fakeProber struct {
	width, height int
	fps           float64
}

func (p *fakeProber) Basic(ctx context.Context, path string) (*probe.BasicInfo, error) {
	return &probe.BasicInfo{Width: &p.width, Height: &p.height}, nil
}

func (p *fakeProber) FPS(ctx context.Context, path string) (float64, error) {
	if p.fps == 0 {
		return 0, probe.ErrFPSUnavailable
	}
	return p.fps, nil
}

func TestSession_ProbesMissingDimensions(t *testing.T) {
	s := NewSession(newSpy(), &fakeProber{width: 1920, height: 1080}, Config{
		FFmpegPath: writeDecoder(t, `exec sleep 30`),
	})
	defer s.Stop()

	if err := s.Start(context.Background(), StartOptions{Path: "movie.mkv"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if w, h := s.FrameSize(); w != 640 || h != 360 {
		t.Errorf("FrameSize() = %dx%d, want 640x360", w, h)
	}
	fps := probe.DefaultFPS
	want := time.Duration(float64(time.Second) / fps)
	if s.cur.interval != want {
		t.Errorf("frame interval = %v, want %v at the default rate", s.cur.interval, want)
	}
}

func TestSession_StartReplacesActiveRun(t *testing.T) {
	spy := newSpy()
	s := newTestSession(t, spy, `exec sleep 30`)

	for i := 0; i < 3; i++ {
		if err := s.Start(context.Background(), tinyOpts()); err != nil {
			t.Fatalf("Start() #%d error = %v", i+1, err)
		}
		if n := spy.inner.Count(); n != 1 {
			t.Errorf("after Start() #%d: %d decoders running, want 1", i+1, n)
		}
	}
	if n := spy.count.Load(); n != 3 {
		t.Errorf("spawned %d decoders, want 3", n)
	}
}

func TestSession_FinishRecordsReadError(t *testing.T) {
	s := NewSession(newSpy(), nil, Config{})
	s.running.Store(true)

	s.finish(errors.New("bad file descriptor"))

	if !errors.Is(s.readErr, ErrDecodeRead) {
		t.Errorf("readErr = %v, want ErrDecodeRead", s.readErr)
	}
	if !s.eof {
		t.Error("eof not set")
	}
}

func TestSession_FinishIgnoredAfterStop(t *testing.T) {
	s := NewSession(newSpy(), nil, Config{})
	s.running.Store(false)

	s.finish(errors.New("file already closed"))

	if s.eof || s.readErr != nil {
		t.Errorf("finish after stop recorded eof=%v readErr=%v", s.eof, s.readErr)
	}
}
