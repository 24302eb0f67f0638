package metastore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"media-preview/internal/probe"
)

var _ probe.Cache = (*Store)(nil)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "sub", "metadata.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

func TestPutGetRoundTrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	mod := time.Unix(1700000000, 123456789)

	md := &probe.VideoMetadata{
		DurationSeconds: ptr(12.5),
		Width:           ptr(1920),
		Height:          ptr(1080),
		CodecName:       ptr("H264"),
		FPS:             ptr(29.97),
	}
	if err := s.Put(ctx, "/media/a.mp4", 1000, mod, md); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := s.Get(ctx, "/media/a.mp4", 1000, mod)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if *got.Width != 1920 || *got.Height != 1080 || *got.CodecName != "H264" {
		t.Errorf("unexpected metadata %+v", got)
	}
	if got.BitDepth != nil {
		t.Errorf("BitDepth = %d, want nil", *got.BitDepth)
	}
	if *got.DurationSeconds != 12.5 || *got.FPS != 29.97 {
		t.Errorf("duration/fps = %v/%v", *got.DurationSeconds, *got.FPS)
	}
}

func TestGetInvalidatedByChange(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	mod := time.Unix(1700000000, 0)

	if err := s.Put(ctx, "/media/a.mp4", 1000, mod, &probe.VideoMetadata{Width: ptr(640)}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	tests := []struct {
		name string
		size int64
		mod  time.Time
	}{
		{"size changed", 2000, mod},
		{"mtime changed", 1000, mod.Add(time.Second)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok, err := s.Get(ctx, "/media/a.mp4", tt.size, tt.mod)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if ok {
				t.Error("stale entry returned")
			}
		})
	}
}

func TestPutReplacesAndCount(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	mod := time.Unix(1700000000, 0)

	s.Put(ctx, "/a.mp4", 1, mod, &probe.VideoMetadata{Width: ptr(320)})
	s.Put(ctx, "/a.mp4", 2, mod, &probe.VideoMetadata{Width: ptr(640)})
	s.Put(ctx, "/b.mp4", 1, mod, &probe.VideoMetadata{Height: ptr(480)})

	n, err := s.Count(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Count = %d, %v; want 2", n, err)
	}

	got, ok, _ := s.Get(ctx, "/a.mp4", 2, mod)
	if !ok || *got.Width != 640 {
		t.Errorf("replacement not stored: %+v", got)
	}

	if err := s.Delete(ctx, "/a.mp4"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("Count after delete = %d, want 1", n)
	}
}

func TestGetMissing(t *testing.T) {
	s := setupStore(t)

	md, ok, err := s.Get(context.Background(), "/never.mp4", 1, time.Now())
	if err != nil || ok || md != nil {
		t.Errorf("Get missing = %v, %v, %v", md, ok, err)
	}
}

func TestPutNil(t *testing.T) {
	s := setupStore(t)
	if err := s.Put(context.Background(), "/a.mp4", 1, time.Now(), nil); err != nil {
		t.Errorf("Put(nil) = %v", err)
	}
}
