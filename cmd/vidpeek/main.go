package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"media-preview/internal/logging"
	"media-preview/internal/memory"
	"media-preview/internal/mediatypes"
	"media-preview/internal/probe"
	"media-preview/internal/process"
	"media-preview/internal/termview"
	"media-preview/internal/thumbnail"
	"media-preview/internal/workers"
)

const (
	// Default timeout for probe and single thumbnail commands
	defaultTimeout = 30 * time.Second
	killDelay      = 2 * time.Second
)

// env holds the settings shared by every command.
type env struct {
	ffmpeg   string
	ffprobe  string
	cacheDir string
}

func loadEnv() env {
	e := env{
		ffmpeg:   getEnv("FFMPEG_PATH", "ffmpeg"),
		ffprobe:  getEnv("FFPROBE_PATH", "ffprobe"),
		cacheDir: os.Getenv("CACHE_DIR"),
	}
	if e.cacheDir == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			e.cacheDir = filepath.Join(dir, "media-preview")
		} else {
			e.cacheDir = filepath.Join(os.TempDir(), "media-preview")
		}
	}
	return e
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if len(os.Args) < 3 {
		printUsage()
		os.Exit(1)
	}
	command, arg := os.Args[1], os.Args[2]

	// Create a context that cancels on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if os.Getenv("LOG_LEVEL") == "" {
		logging.SetLevel(logging.LevelWarn)
	}

	sup := process.NewSupervisor(killDelay)
	defer sup.Shutdown(killDelay)

	e := loadEnv()
	var err error
	switch command {
	case "probe":
		err = runProbe(ctx, os.Stdout, sup, e, arg)
	case "thumb":
		err = runThumb(ctx, os.Stdout, sup, e, arg)
	case "warm":
		err = runWarm(ctx, os.Stdout, sup, e, arg)
	case "play":
		err = runPlay(ctx, sup, e, arg)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		sup.Shutdown(killDelay)
		os.Exit(1)
	}
}

// sanitizeCommand replaces anything outside [a-zA-Z0-9_-] with '_' so
// arbitrary input is never echoed to the terminal.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage() {
	fmt.Println("Video preview tool")
	fmt.Println("")
	fmt.Println("Usage: vidpeek <command> <path>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  probe <file>  - Print video metadata as JSON")
	fmt.Println("  thumb <file>  - Extract (or reuse) the cached still and show it")
	fmt.Println("  warm  <dir>   - Extract stills for every video under dir")
	fmt.Println("  play  <file>  - Play in the terminal ([space] pause, [q] quit)")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Println("  FFMPEG_PATH, FFPROBE_PATH - external tools (default: on PATH)")
	fmt.Println("  CACHE_DIR                 - thumbnail cache root (default: user cache dir)")
	fmt.Println("  PREVIEW_WORKERS           - parallel extractions for warm")
}

func newThumbnails(sup *process.Supervisor, e env, throttle func(context.Context) error) (*thumbnail.Manager, error) {
	return thumbnail.NewManager(sup, thumbnail.Config{
		CacheDir:   filepath.Join(e.cacheDir, "thumbnails"),
		FFmpegPath: e.ffmpeg,
		Throttle:   throttle,
	})
}

func runProbe(ctx context.Context, out io.Writer, sup *process.Supervisor, e env, path string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	svc := probe.NewService(sup, probe.Config{FFprobePath: e.ffprobe})
	md, err := svc.Metadata(ctx, path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(md)
}

func runThumb(ctx context.Context, out io.Writer, sup *process.Supervisor, e env, path string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	thumbs, err := newThumbnails(sup, e, nil)
	if err != nil {
		return err
	}
	cachePath, err := thumbs.GetOrCreate(ctx, path)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, cachePath)

	cols, rows, err := termview.Size(os.Stdout)
	if errors.Is(err, termview.ErrNotTerminal) {
		return nil
	}
	if err != nil {
		return err
	}

	r := termview.NewRenderer(out, cols, rows)
	w, h := r.PixelBox()
	img, err := thumbs.Load(ctx, path, w, h)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	termview.Encode(&buf, img)
	_, err = out.Write(buf.Bytes())
	return err
}

// findVideos lists every video file under root.
func findVideos(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			logging.Warn("skipping %s: %v", p, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() && mediatypes.IsVideo(p) {
			paths = append(paths, p)
		}
		return nil
	})
	return paths, err
}

func runWarm(ctx context.Context, out io.Writer, sup *process.Supervisor, e env, root string) error {
	paths, err := findVideos(root)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Fprintf(out, "No videos under %s\n", root)
		return nil
	}

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()
	defer monitor.Stop()

	thumbs, err := newThumbnails(sup, e, monitor.Wait)
	if err != nil {
		return err
	}

	n := workers.ForIO(8)
	fmt.Fprintf(out, "Warming %d videos with %d workers...\n", len(paths), n)
	start := time.Now()
	res := thumbs.Prewarm(ctx, paths, n)
	count, size := thumbs.Stats()

	fmt.Fprintf(out, "Generated: %d\nCached:    %d\nFailed:    %d\n", res.Generated, res.Cached, res.Failed)
	fmt.Fprintf(out, "Cache:     %d stills, %s in %s\n", count, memory.FormatBytes(size), thumbs.CacheDir())
	fmt.Fprintf(out, "Took:      %v\n", time.Since(start).Round(time.Millisecond))

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if res.Failed > 0 {
		return fmt.Errorf("%d of %d videos failed", res.Failed, len(paths))
	}
	return nil
}
