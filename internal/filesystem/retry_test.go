package filesystem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("Expected MaxRetries=3, got %d", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("Expected InitialBackoff=50ms, got %v", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("Expected MaxBackoff=500ms, got %v", config.MaxBackoff)
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"ESTALE", syscall.ESTALE, true},
		{"wrapped ESTALE", &os.PathError{Op: "stat", Path: "/x", Err: syscall.ESTALE}, true},
		{"fmt wrapped ESTALE", fmt.Errorf("outer: %w", syscall.ESTALE), true},
		{"ENOENT", syscall.ENOENT, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.expected {
				t.Errorf("isNFSStaleError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestVolumeResolver_Resolve(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"media": "/media",
		"cache": "/media/cache",
		"empty": "",
	})

	tests := []struct {
		path     string
		expected string
	}{
		{"/media/movies/a.mp4", "media"},
		{"/media", "media"},
		{"/media/cache/thumbnails/x.jpg", "cache"},
		{"/mediaother/a.mp4", "unknown"},
		{"/tmp/x", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := vr.Resolve(tt.path); got != tt.expected {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.expected)
			}
		})
	}
}

func TestVolumeResolver_NilResolver(t *testing.T) {
	var vr *VolumeResolver
	if got := vr.Resolve("/anything"); got != "unknown" {
		t.Errorf("nil resolver returned %q", got)
	}
}

type countingObserver struct {
	stale, attempts, success, failures int
}

func (o *countingObserver) ObserveRetryAttempt(string, string) { o.attempts++ }
func (o *countingObserver) ObserveRetrySuccess(string, string) { o.success++ }
func (o *countingObserver) ObserveRetryFailure(string, string) { o.failures++ }
func (o *countingObserver) ObserveStaleError(string, string)   { o.stale++ }

func TestWithRetry_RetriesOnlyStale(t *testing.T) {
	obs := &countingObserver{}
	SetObserver(obs)
	defer SetObserver(nil)

	config := RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}

	calls := 0
	v, err := withRetry("stat", "/x", config, func(string) (int, error) {
		calls++
		if calls < 3 {
			return 0, syscall.ESTALE
		}
		return 42, nil
	})
	if err != nil || v != 42 {
		t.Fatalf("withRetry = %d, %v; want 42, nil", v, err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if obs.stale != 2 || obs.attempts != 2 || obs.success != 1 {
		t.Errorf("observer counts = %+v", *obs)
	}

	calls = 0
	_, err = withRetry("stat", "/x", config, func(string) (int, error) {
		calls++
		return 0, os.ErrNotExist
	})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
	if calls != 1 {
		t.Errorf("non-stale error retried: calls = %d", calls)
	}
}

func TestWithRetry_ExhaustsRetries(t *testing.T) {
	obs := &countingObserver{}
	SetObserver(obs)
	defer SetObserver(nil)

	config := RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	calls := 0
	_, err := withRetry("open", "/x", config, func(string) (struct{}, error) {
		calls++
		return struct{}{}, syscall.ESTALE
	})
	if !errors.Is(err, syscall.ESTALE) {
		t.Errorf("expected ESTALE, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if obs.failures != 1 {
		t.Errorf("failures = %d, want 1", obs.failures)
	}
}

func TestStatAndOpenWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := StatWithRetry(path, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("StatWithRetry: %v", err)
	}
	if info.Size() != 4 {
		t.Errorf("size = %d, want 4", info.Size())
	}

	f, err := OpenWithRetry(path, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry: %v", err)
	}
	f.Close()

	if _, err := StatWithRetry(filepath.Join(dir, "missing"), DefaultRetryConfig()); !os.IsNotExist(err) {
		t.Errorf("expected not-exist, got %v", err)
	}
}

func TestNonEmptyFile(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "full.jpg")
	empty := filepath.Join(dir, "empty.jpg")
	os.WriteFile(full, []byte{0xff, 0xd8}, 0o644)
	os.WriteFile(empty, nil, 0o644)

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"non-empty file", full, true},
		{"empty file", empty, false},
		{"missing file", filepath.Join(dir, "none.jpg"), false},
		{"directory", dir, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NonEmptyFile(tt.path); got != tt.want {
				t.Errorf("NonEmptyFile(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
