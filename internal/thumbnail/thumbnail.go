package thumbnail

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"media-preview/internal/ffcmd"
	"media-preview/internal/filesystem"
	"media-preview/internal/imageio"
	"media-preview/internal/logging"
	"media-preview/internal/mediatypes"
	"media-preview/internal/metrics"
	"media-preview/internal/process"
	"media-preview/internal/workers"
)

// ErrThumbnailUnavailable means no still could be extracted from the video.
var ErrThumbnailUnavailable = errors.New("thumbnail unavailable")

const (
	// DefaultOffset is the nominal position of the extracted still.
	DefaultOffset = time.Second
	// DefaultMaxWidth caps the still's width; height follows the aspect ratio.
	DefaultMaxWidth = 320
	// DefaultFormat is the cached image format.
	DefaultFormat = "jpg"

	defaultTimeout = 30 * time.Second
)

var log = logging.Component("thumbnail")

// Config configures a Manager.
type Config struct {
	CacheDir   string
	FFmpegPath string
	// Offset of the extracted still; zero selects DefaultOffset and a
	// negative value always uses the first frame.
	Offset   time.Duration
	MaxWidth int
	Format   string // "jpg", "png" or "webp"
	// Timeout bounds a single ffmpeg attempt.
	Timeout time.Duration
	// Throttle, when set, is called by Prewarm before each item and may
	// block; an error counts the item as failed.
	Throttle func(ctx context.Context) error
}

// Entry describes the cache slot for a source video.
type Entry struct {
	SourcePath    string `json:"sourcePath"`
	CacheFilePath string `json:"cacheFilePath"`
	Exists        bool   `json:"exists"`
}

// Manager extracts one still per video into a content-addressed cache
// directory. A cached file is never regenerated.
type Manager struct {
	spawner process.Spawner
	cfg     Config
	ext     string
	locks   keyedMutex
}

// NewManager creates a manager. The cache directory is created lazily.
func NewManager(spawner process.Spawner, cfg Config) (*Manager, error) {
	if cfg.CacheDir == "" {
		return nil, fmt.Errorf("thumbnail cache directory not set")
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.Offset < 0 {
		cfg.Offset = 0
	} else if cfg.Offset == 0 {
		cfg.Offset = DefaultOffset
	}
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = DefaultMaxWidth
	}
	if cfg.Format == "" {
		cfg.Format = DefaultFormat
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	ext := mediatypes.ThumbnailExt(cfg.Format)
	if ext == "" {
		return nil, fmt.Errorf("unsupported thumbnail format %q", cfg.Format)
	}

	return &Manager{
		spawner: spawner,
		cfg:     cfg,
		ext:     ext,
		locks:   keyedMutex{locks: make(map[string]*keyLock)},
	}, nil
}

// CacheKey returns the hex MD5 of the absolute form of path. It depends only
// on the path string, never on file contents.
func CacheKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return fmt.Sprintf("%x", md5.Sum([]byte(path)))
}

// CacheDir returns the cache root.
func (m *Manager) CacheDir() string { return m.cfg.CacheDir }

// Ext returns the cached file extension, including the dot.
func (m *Manager) Ext() string { return m.ext }

// CachePath returns where the still for videoPath is (or will be) stored.
func (m *Manager) CachePath(videoPath string) string {
	return filepath.Join(m.cfg.CacheDir, CacheKey(videoPath)+m.ext)
}

// Entry reports the cache slot for videoPath without generating anything.
func (m *Manager) Entry(videoPath string) Entry {
	p := m.CachePath(videoPath)
	return Entry{SourcePath: videoPath, CacheFilePath: p, Exists: filesystem.NonEmptyFile(p)}
}

// GetOrCreate returns the cached still for videoPath, extracting it with
// ffmpeg if needed. A non-empty file at the cache path is a hit and spawns
// nothing. Extraction is tried at the configured offset and, if that yields
// no frame (short videos), once more at the start of the stream.
func (m *Manager) GetOrCreate(ctx context.Context, videoPath string) (string, error) {
	key := CacheKey(videoPath)
	cachePath := filepath.Join(m.cfg.CacheDir, key+m.ext)

	if filesystem.NonEmptyFile(cachePath) {
		metrics.ThumbnailCacheHits.Inc()
		log.Debug("cache hit: %s", videoPath)
		return cachePath, nil
	}

	unlock := m.locks.lock(key)
	defer unlock()

	// Another request may have produced it while we waited.
	if filesystem.NonEmptyFile(cachePath) {
		metrics.ThumbnailCacheHits.Inc()
		return cachePath, nil
	}
	metrics.ThumbnailCacheMisses.Inc()

	if _, err := os.Stat(videoPath); err != nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: source not accessible: %w", ErrThumbnailUnavailable, err)
	}
	if err := os.MkdirAll(m.cfg.CacheDir, 0o755); err != nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("failed to create thumbnail cache dir: %w", err)
	}

	start := time.Now()
	defer func() {
		metrics.ThumbnailGenerationDuration.Observe(time.Since(start).Seconds())
	}()

	tmpPath := filepath.Join(m.cfg.CacheDir, key+".partial"+m.ext)
	defer os.Remove(tmpPath)

	status := "success"
	err := m.extract(ctx, videoPath, tmpPath, m.cfg.Offset)
	if err != nil && !errors.Is(err, process.ErrSpawn) && m.cfg.Offset > 0 && ctx.Err() == nil {
		log.Debug("no frame at %v for %s, retrying at 0: %v", m.cfg.Offset, videoPath, err)
		status = "fallback"
		err = m.extract(ctx, videoPath, tmpPath, 0)
	}
	if err != nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues("error").Inc()
		log.Warn("failed to extract still from %s: %v", videoPath, err)
		return "", fmt.Errorf("%w: %s: %w", ErrThumbnailUnavailable, filepath.Base(videoPath), err)
	}

	if err := os.Rename(tmpPath, cachePath); err != nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("failed to store thumbnail: %w", err)
	}

	metrics.ThumbnailGenerationsTotal.WithLabelValues(status).Inc()
	log.Debug("cached %s -> %s (%v)", videoPath, cachePath, time.Since(start))
	return cachePath, nil
}

// extract runs ffmpeg once and succeeds only if it left a non-empty file.
func (m *Manager) extract(ctx context.Context, videoPath, outPath string, offset time.Duration) error {
	_ = os.Remove(outPath)

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	h, err := m.spawner.Spawn(ctx, process.Spec{
		Name: "ffmpeg",
		Path: m.cfg.FFmpegPath,
		Args: ffcmd.Thumbnail(videoPath, outPath, offset, m.cfg.MaxWidth),
	})
	if err != nil {
		return err
	}
	waitErr := h.Reap()

	if filesystem.NonEmptyFile(outPath) {
		return nil
	}
	if waitErr != nil {
		if tail := strings.TrimSpace(h.Stderr()); tail != "" {
			return fmt.Errorf("ffmpeg at %ss: %w: %s", ffcmd.Seconds(offset), waitErr, tail)
		}
		return fmt.Errorf("ffmpeg at %ss: %w", ffcmd.Seconds(offset), waitErr)
	}
	return fmt.Errorf("ffmpeg at %ss produced no image", ffcmd.Seconds(offset))
}

// Load returns the still for videoPath decoded and scaled to fit width x height.
func (m *Manager) Load(ctx context.Context, videoPath string, width, height int) (image.Image, error) {
	p, err := m.GetOrCreate(ctx, videoPath)
	if err != nil {
		return nil, err
	}
	return imageio.Load(p, width, height)
}

// PrewarmResult summarises a Prewarm run.
type PrewarmResult struct {
	Generated int
	Cached    int
	Failed    int
}

// Prewarm ensures a still exists for every path, running up to concurrency
// extractions at once (0 picks a default from the CPU count).
func (m *Manager) Prewarm(ctx context.Context, paths []string, concurrency int) PrewarmResult {
	if concurrency <= 0 {
		concurrency = workers.ForIO(8)
	}

	var mu sync.Mutex
	var res PrewarmResult
	workers.Run(ctx, concurrency, paths, func(ctx context.Context, p string) {
		var err error
		if m.cfg.Throttle != nil {
			err = m.cfg.Throttle(ctx)
		}
		existed := m.Entry(p).Exists
		if err == nil {
			_, err = m.GetOrCreate(ctx, p)
		}

		mu.Lock()
		defer mu.Unlock()
		switch {
		case err != nil:
			res.Failed++
		case existed:
			res.Cached++
		default:
			res.Generated++
		}
	})
	log.Info("prewarm: %d generated, %d cached, %d failed", res.Generated, res.Cached, res.Failed)
	return res
}

// Stats counts cached stills and their total size.
func (m *Manager) Stats() (count int, size int64) {
	entries, err := os.ReadDir(m.cfg.CacheDir)
	if err != nil {
		return 0, 0
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, m.ext) || strings.Contains(name, ".partial") {
			continue
		}
		if info, err := e.Info(); err == nil {
			count++
			size += info.Size()
		}
	}
	return count, size
}

// keyedMutex serialises work per cache key. Entries are removed when the
// last holder unlocks.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
