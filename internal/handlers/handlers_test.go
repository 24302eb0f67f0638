package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"media-preview/internal/playback"
	"media-preview/internal/probe"
	"media-preview/internal/process"
	"media-preview/internal/startup"
	"media-preview/internal/thumbnail"
)

// fakeProber reports every video as tiny so decoded frames stay small.
type fakeProber struct {
	md  *probe.VideoMetadata
	err error
}

func (p *fakeProber) Metadata(_ context.Context, _ string) (*probe.VideoMetadata, error) {
	return p.md, p.err
}

func (p *fakeProber) Basic(_ context.Context, _ string) (*probe.BasicInfo, error) {
	w, h := 4, 2
	return &probe.BasicInfo{Width: &w, Height: &h}, nil
}

func (p *fakeProber) FPS(_ context.Context, _ string) (float64, error) {
	return 240, nil
}

// Frames numbered 1..5 of a 4x2 RGB24 stream.
const fiveFrames = `for o in 001 002 003 004 005; do head -c 24 /dev/zero | tr '\000' "\\$o"; done`

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return bin
}

type testEnv struct {
	h        *Handlers
	router   http.Handler
	mediaDir string
	thumbs   *thumbnail.Manager
	sessions *playback.Manager
	prober   *fakeProber
}

type envOptions struct {
	decoder     string // fake ffmpeg body for preview runs
	extractor   string // fake ffmpeg body for thumbnail extraction
	maxSessions int
	tools       startup.ToolStatus
	memory      PressureGauge
}

func newTestEnv(t *testing.T, o envOptions) *testEnv {
	t.Helper()

	if o.decoder == "" {
		o.decoder = fiveFrames
	}
	if o.extractor == "" {
		o.extractor = "exit 1"
	}

	mediaDir := t.TempDir()
	for _, name := range []string{"clip.mp4", "notes.txt", "sub/deep.mkv"} {
		p := filepath.Join(mediaDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("not really a video"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	sup := process.NewSupervisor(200 * time.Millisecond)
	t.Cleanup(func() { sup.Shutdown(time.Second) })

	thumbs, err := thumbnail.NewManager(sup, thumbnail.Config{
		CacheDir:   t.TempDir(),
		FFmpegPath: writeScript(t, "ffmpeg", o.extractor),
	})
	if err != nil {
		t.Fatalf("thumbnail.NewManager() error = %v", err)
	}

	prober := &fakeProber{}
	sessions := playback.NewManager(sup, prober, playback.ManagerConfig{
		Session: playback.Config{
			FFmpegPath:       writeScript(t, "ffmpeg", o.decoder),
			TerminateTimeout: 200 * time.Millisecond,
		},
		MaxSessions:  o.maxSessions,
		PollInterval: 10 * time.Millisecond,
	})
	t.Cleanup(sessions.Shutdown)

	h := New(Options{
		MediaDir:       mediaDir,
		Thumbnails:     thumbs,
		Probe:          prober,
		Sessions:       sessions,
		Memory:         o.memory,
		Tools:          o.tools,
		StreamInterval: 5 * time.Millisecond,
	})
	return &testEnv{h: h, router: h.Router(), mediaDir: mediaDir, thumbs: thumbs, sessions: sessions, prober: prober}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return resp
}

func seedThumbnail(t *testing.T, m *thumbnail.Manager, videoPath string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 16))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(m.CacheDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(m.CachePath(videoPath), buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

// =============================================================================
// Path confinement
// =============================================================================

func TestIsSubPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		parent string
		child  string
		want   bool
	}{
		{"same directory", "/media", "/media", true},
		{"direct child", "/media", "/media/a.mp4", true},
		{"nested child", "/media", "/media/x/y/z.mp4", true},
		{"parent escape", "/media", "/media/../etc/passwd", false},
		{"sibling with shared prefix", "/media", "/media2/a.mp4", false},
		{"dotted file name", "/media", "/media/..hidden.mp4", true},
		{"unrelated", "/media", "/tmp/a.mp4", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isSubPath(tt.parent, tt.child); got != tt.want {
				t.Errorf("isSubPath(%q, %q) = %v, want %v", tt.parent, tt.child, got, tt.want)
			}
		})
	}
}

func TestResolveMediaPath(t *testing.T) {
	t.Parallel()

	h := &Handlers{mediaDir: "/media"}

	if _, err := h.resolveMediaPath(""); err == nil {
		t.Error("empty path accepted")
	}
	if _, err := h.resolveMediaPath("../secret.mp4"); !errors.Is(err, errOutsideMediaDir) {
		t.Errorf("traversal error = %v, want errOutsideMediaDir", err)
	}
	got, err := h.resolveMediaPath("shows/a.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.FromSlash("/media/shows/a.mp4") {
		t.Errorf("resolveMediaPath() = %q", got)
	}
}

// =============================================================================
// Thumbnails and metadata
// =============================================================================

func TestGetThumbnailServesCachedStill(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	seedThumbnail(t, env.thumbs, filepath.Join(env.mediaDir, "clip.mp4"))

	w := env.do(t, http.MethodGet, "/api/thumbnail/clip.mp4", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	if _, err := jpeg.DecodeConfig(w.Body); err != nil {
		t.Errorf("body is not a JPEG: %v", err)
	}
}

func TestGetThumbnailScalesToBox(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	seedThumbnail(t, env.thumbs, filepath.Join(env.mediaDir, "clip.mp4"))

	w := env.do(t, http.MethodGet, "/api/thumbnail/clip.mp4?w=8&h=8", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	cfg, err := jpeg.DecodeConfig(w.Body)
	if err != nil {
		t.Fatalf("body is not a JPEG: %v", err)
	}
	if cfg.Width != 8 || cfg.Height != 4 {
		t.Errorf("scaled to %dx%d, want 8x4", cfg.Width, cfg.Height)
	}
}

func TestGetThumbnailGeneratesOnMiss(t *testing.T) {
	env := newTestEnv(t, envOptions{
		// Writes a placeholder to the output image argument.
		extractor: `for a in "$@"; do case "$a" in *.jpg) out="$a" ;; esac; done; printf 'JPEGDATA' > "$out"`,
	})

	w := env.do(t, http.MethodGet, "/api/thumbnail/sub/deep.mkv", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	if w.Body.String() != "JPEGDATA" {
		t.Errorf("body = %q", w.Body.String())
	}
	if !env.thumbs.Entry(filepath.Join(env.mediaDir, "sub", "deep.mkv")).Exists {
		t.Error("thumbnail was not cached")
	}
}

func TestGetThumbnailErrors(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantError  string
	}{
		{"extraction fails", "/api/thumbnail/clip.mp4", http.StatusUnprocessableEntity, "thumbnail unavailable"},
		{"not a video", "/api/thumbnail/notes.txt", http.StatusUnsupportedMediaType, "unsupported file type"},
		{"missing file", "/api/thumbnail/gone.mp4", http.StatusNotFound, "file not found"},
		{"directory", "/api/thumbnail/sub", http.StatusBadRequest, "path is a directory"},
		{"bad size", "/api/thumbnail/clip.mp4?w=0&h=10", http.StatusBadRequest, "invalid size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.target, "")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body)
			}
			if got := decodeError(t, w).Error; got != tt.wantError {
				t.Errorf("error = %q, want %q", got, tt.wantError)
			}
		})
	}
}

func TestGetThumbnailDisabled(t *testing.T) {
	t.Parallel()

	h := New(Options{MediaDir: t.TempDir()})
	w := httptest.NewRecorder()
	h.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/thumbnail/a.mp4", http.NoBody))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestGetMetadata(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	width, dur := 1920, 12.5
	env.prober.md = &probe.VideoMetadata{Width: &width, DurationSeconds: &dur}

	w := env.do(t, http.MethodGet, "/api/metadata/clip.mp4", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	var md probe.VideoMetadata
	if err := json.NewDecoder(w.Body).Decode(&md); err != nil {
		t.Fatal(err)
	}
	if md.Width == nil || *md.Width != 1920 || md.Height != nil {
		t.Errorf("metadata = %+v", md)
	}

	env.prober.md, env.prober.err = nil, probe.ErrNoData
	w = env.do(t, http.MethodGet, "/api/metadata/clip.mp4", "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	if got := decodeError(t, w).Error; got != "metadata unavailable" {
		t.Errorf("error = %q", got)
	}
}

// =============================================================================
// Sessions
// =============================================================================

func openSession(t *testing.T, env *testEnv, body string) playback.Info {
	t.Helper()
	w := env.do(t, http.MethodPost, "/api/sessions", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("open status = %d, body %s", w.Code, w.Body)
	}
	var info playback.Info
	if err := json.NewDecoder(w.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if loc := w.Header().Get("Location"); loc != "/api/sessions/"+info.ID {
		t.Errorf("Location = %q", loc)
	}
	return info
}

func waitForState(t *testing.T, env *testEnv, id, want string) playback.Info {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var info playback.Info
	for time.Now().Before(deadline) {
		w := env.do(t, http.MethodGet, "/api/sessions/"+id, "")
		if w.Code != http.StatusOK {
			t.Fatalf("get status = %d", w.Code)
		}
		info = playback.Info{}
		if err := json.NewDecoder(w.Body).Decode(&info); err != nil {
			t.Fatal(err)
		}
		if info.State == want {
			return info
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session %s state = %s, want %s", id, info.State, want)
	return info
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	info := openSession(t, env, `{"path":"clip.mp4"}`)
	if info.Width != 4 || info.Height != 2 {
		t.Errorf("frame size = %dx%d, want 4x2", info.Width, info.Height)
	}

	info = waitForState(t, env, info.ID, playback.Ended.String())
	if info.Stats.Decoded != 5 {
		t.Errorf("Decoded = %d, want 5", info.Stats.Decoded)
	}

	w := env.do(t, http.MethodGet, "/api/sessions/"+info.ID+"/frame", "")
	if w.Code != http.StatusOK {
		t.Fatalf("frame status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("frame is not a JPEG: %v", err)
	}
	if cfg.Width != 4 || cfg.Height != 2 {
		t.Errorf("frame JPEG = %dx%d", cfg.Width, cfg.Height)
	}

	w = env.do(t, http.MethodGet, "/api/sessions", "")
	var list []playback.Info
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != info.ID {
		t.Errorf("List = %+v", list)
	}

	if w := env.do(t, http.MethodDelete, "/api/sessions/"+info.ID, ""); w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/sessions/"+info.ID, ""); w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", w.Code)
	}
}

func TestSessionPauseResume(t *testing.T) {
	// Emits one frame, then idles until stopped.
	env := newTestEnv(t, envOptions{decoder: `head -c 24 /dev/zero; exec sleep 30`})
	info := openSession(t, env, `{"path":"clip.mp4"}`)

	w := env.do(t, http.MethodPost, "/api/sessions/"+info.ID+"/pause", "")
	if w.Code != http.StatusOK {
		t.Fatalf("pause status = %d", w.Code)
	}
	waitForState(t, env, info.ID, playback.Paused.String())

	w = env.do(t, http.MethodPost, "/api/sessions/"+info.ID+"/resume", "")
	if w.Code != http.StatusOK {
		t.Fatalf("resume status = %d", w.Code)
	}
	waitForState(t, env, info.ID, playback.Playing.String())
}

func TestSessionRestart(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	info := openSession(t, env, `{"path":"clip.mp4"}`)
	waitForState(t, env, info.ID, playback.Ended.String())

	w := env.do(t, http.MethodPost, "/api/sessions/"+info.ID+"/restart", `{"path":"sub/deep.mkv","startAt":1.5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("restart status = %d, body %s", w.Code, w.Body)
	}
	info = waitForState(t, env, info.ID, playback.Ended.String())
	if filepath.Base(info.Path) != "deep.mkv" {
		t.Errorf("Path = %q", info.Path)
	}

	w = env.do(t, http.MethodPost, "/api/sessions/missing/restart", `{"path":"clip.mp4"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("restart of unknown session status = %d, want 404", w.Code)
	}
}

func TestOpenSessionErrors(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"malformed body", `{"path":`, http.StatusBadRequest, "invalid request body"},
		{"negative offset", `{"path":"clip.mp4","startAt":-1}`, http.StatusBadRequest, "startAt and fps must not be negative"},
		{"offset past a day", `{"path":"clip.mp4","startAt":86401}`, http.StatusBadRequest, "startAt out of range"},
		{"offset overflowing a duration", `{"path":"clip.mp4","startAt":1e300}`, http.StatusBadRequest, "startAt out of range"},
		{"not a video", `{"path":"notes.txt"}`, http.StatusUnsupportedMediaType, "preview not supported"},
		{"missing file", `{"path":"nope.mp4"}`, http.StatusNotFound, "file not found"},
		{"traversal", `{"path":"../../etc/passwd"}`, http.StatusBadRequest, "invalid path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/sessions", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body)
			}
			if got := decodeError(t, w).Error; got != tt.wantError {
				t.Errorf("error = %q, want %q", got, tt.wantError)
			}
		})
	}

	if n := env.sessions.Count(); n != 0 {
		t.Errorf("Count() = %d after failed opens", n)
	}
}

func TestOpenSessionLimit(t *testing.T) {
	env := newTestEnv(t, envOptions{decoder: `exec sleep 30`, maxSessions: 1})
	openSession(t, env, `{"path":"clip.mp4"}`)

	w := env.do(t, http.MethodPost, "/api/sessions", `{"path":"clip.mp4"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After not set")
	}
	if got := decodeError(t, w).Error; got != "too busy" {
		t.Errorf("error = %q", got)
	}
}

func TestOpenSessionSpawnFailure(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	sup := process.NewSupervisor(time.Second)
	t.Cleanup(func() { sup.Shutdown(time.Second) })
	env.sessions = playback.NewManager(sup, env.prober, playback.ManagerConfig{
		Session: playback.Config{FFmpegPath: filepath.Join(t.TempDir(), "no-such-ffmpeg")},
	})
	t.Cleanup(env.sessions.Shutdown)
	env.h.sessions = env.sessions

	w := env.do(t, http.MethodPost, "/api/sessions", `{"path":"clip.mp4"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	resp := decodeError(t, w)
	if resp.Error != "preview not supported" || resp.Detail == "" {
		t.Errorf("error = %+v", resp)
	}
}

func TestSessionNotFound(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	for _, tc := range []struct{ method, target string }{
		{http.MethodGet, "/api/sessions/nope"},
		{http.MethodDelete, "/api/sessions/nope"},
		{http.MethodPost, "/api/sessions/nope/pause"},
		{http.MethodPost, "/api/sessions/nope/resume"},
		{http.MethodGet, "/api/sessions/nope/frame"},
		{http.MethodGet, "/api/sessions/nope/mjpeg"},
	} {
		w := env.do(t, tc.method, tc.target, "")
		if w.Code != http.StatusNotFound {
			t.Errorf("%s %s status = %d, want 404", tc.method, tc.target, w.Code)
		}
	}
}

func TestGetFrameBeforeFirstFrame(t *testing.T) {
	env := newTestEnv(t, envOptions{decoder: `exec sleep 30`})
	info := openSession(t, env, `{"path":"clip.mp4"}`)

	w := env.do(t, http.MethodGet, "/api/sessions/"+info.ID+"/frame", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
}

func TestStreamSession(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	info := openSession(t, env, `{"path":"clip.mp4"}`)

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/sessions/"+info.ID+"/mjpeg", http.NoBody)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace; boundary=") {
		t.Fatalf("Content-Type = %q", ct)
	}

	// The stream ends by itself once the run has ended.
	var body bytes.Buffer
	if _, err := body.ReadFrom(resp.Body); err != nil {
		t.Fatalf("reading stream: %v", err)
	}
	if n := strings.Count(body.String(), "Content-Type: image/jpeg"); n < 1 {
		t.Errorf("stream carried %d JPEG parts", n)
	}
}

// =============================================================================
// Health, version, metrics
// =============================================================================

type fixedGauge bool

func (g fixedGauge) UnderPressure() bool { return bool(g) }

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		opts       envOptions
		wantStatus string
		wantReady  bool
	}{
		{"all tools", envOptions{tools: startup.ToolStatus{FFmpeg: true, FFprobe: true}}, statusHealthy, true},
		{"no ffprobe", envOptions{tools: startup.ToolStatus{FFmpeg: true}}, statusDegraded, true},
		{"memory pressure", envOptions{tools: startup.ToolStatus{FFmpeg: true, FFprobe: true}, memory: fixedGauge(true)}, statusDegraded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.opts)
			w := env.do(t, http.MethodGet, "/healthz", "")
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != tt.wantStatus || resp.Ready != tt.wantReady {
				t.Errorf("status = %q ready = %v, want %q %v", resp.Status, resp.Ready, tt.wantStatus, tt.wantReady)
			}
			if resp.GoVersion == "" || resp.NumCPU == 0 {
				t.Errorf("system info missing: %+v", resp)
			}
		})
	}
}

func TestReadinessCheck(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		gauge PressureGauge
		want  int
	}{
		{nil, http.StatusOK},
		{fixedGauge(false), http.StatusOK},
		{fixedGauge(true), http.StatusServiceUnavailable},
	} {
		h := New(Options{Memory: tc.gauge})
		w := httptest.NewRecorder()
		h.ReadinessCheck(w, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))
		if w.Code != tc.want {
			t.Errorf("gauge %v: status = %d, want %d", tc.gauge, w.Code, tc.want)
		}
	}
}

func TestLivenessCheckHead(t *testing.T) {
	t.Parallel()

	h := New(Options{})
	w := httptest.NewRecorder()
	h.LivenessCheck(w, httptest.NewRequest(http.MethodHead, "/livez", http.NoBody))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("HEAD response has body %q", w.Body.String())
	}
}

func TestGetVersion(t *testing.T) {
	t.Parallel()

	h := New(Options{})
	w := httptest.NewRecorder()
	h.GetVersion(w, httptest.NewRequest(http.MethodGet, "/version", http.NoBody))

	if cc := w.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q", cc)
	}
	var info startup.BuildInfo
	if err := json.NewDecoder(w.Body).Decode(&info); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if info.GoVersion == "" {
		t.Error("GoVersion missing")
	}
}

func TestMetricsHandler(t *testing.T) {
	t.Parallel()

	h := New(Options{})
	w := httptest.NewRecorder()
	h.MetricsHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "# TYPE") {
		t.Error("response is not in Prometheus text format")
	}
}

func TestWriteJSONError(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	writeJSONErrorDetail(w, "thumbnail unavailable", http.StatusUnprocessableEntity, errors.New("no frame"))

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"error":"thumbnail unavailable","detail":"no frame"}` {
		t.Errorf("body = %s", got)
	}
}
