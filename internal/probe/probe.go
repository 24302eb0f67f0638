package probe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"media-preview/internal/ffcmd"
	"media-preview/internal/logging"
	"media-preview/internal/metrics"
	"media-preview/internal/process"
)

var (
	// ErrNoData means a probe query produced no usable field.
	ErrNoData = errors.New("probe: no data")

	// ErrFPSUnavailable accompanies DefaultFPS when the frame rate could not be read.
	ErrFPSUnavailable = errors.New("probe: frame rate unavailable")
)

const (
	// DefaultFPS is used for pacing when the frame rate is unknown.
	DefaultFPS = 30.0

	// MaxFPS rejects nonsensical rates such as a 90000/1 timebase.
	MaxFPS = 240.0

	defaultTimeout = 10 * time.Second
	outputLimit    = 4096
)

var log = logging.Component("probe")

// Runner runs a process to completion and returns a bounded amount of its
// stdout. *process.Supervisor implements it.
type Runner interface {
	Output(ctx context.Context, spec process.Spec, limit int64) ([]byte, error)
}

// Cache persists probe results keyed by path, size and modification time.
type Cache interface {
	Get(ctx context.Context, path string, size int64, modTime time.Time) (*VideoMetadata, bool, error)
	Put(ctx context.Context, path string, size int64, modTime time.Time, md *VideoMetadata) error
}

// Config configures a Service.
type Config struct {
	// FFprobePath is the ffprobe executable; defaults to "ffprobe" on PATH.
	FFprobePath string
	// Timeout bounds each ffprobe invocation.
	Timeout time.Duration
	// Cache is optional.
	Cache Cache
}

// Service extracts metadata with one ffprobe run per query.
type Service struct {
	runner  Runner
	ffprobe string
	timeout time.Duration
	cache   Cache
}

// NewService creates a probe service.
func NewService(runner Runner, cfg Config) *Service {
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Service{
		runner:  runner,
		ffprobe: cfg.FFprobePath,
		timeout: cfg.Timeout,
		cache:   cfg.Cache,
	}
}

// query runs ffprobe and returns the fields of its first output line.
// A failed run yields no fields rather than an error, so one bad query
// never aborts the others.
func (s *Service) query(ctx context.Context, name string, args []string) []string {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.runner.Output(ctx, process.Spec{
		Name: "ffprobe",
		Path: s.ffprobe,
		Args: args,
	}, outputLimit)
	metrics.ProbeDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err != nil {
		log.Debug("%s query failed: %v", name, err)
		metrics.ProbeFailuresTotal.WithLabelValues(name).Inc()
		return nil
	}
	fields := firstLine(out)
	if len(fields) == 0 {
		metrics.ProbeFailuresTotal.WithLabelValues(name).Inc()
	}
	return fields
}

// Basic returns width, height and duration. Duration comes from the
// container, since many streams do not carry their own.
func (s *Service) Basic(ctx context.Context, path string) (*BasicInfo, error) {
	dims := s.query(ctx, "basic", ffcmd.ProbeStream(path, "width", "height"))
	dur := s.query(ctx, "duration", ffcmd.ProbeFormat(path, "duration"))

	info := &BasicInfo{
		Width:           parsePositiveInt(field(dims, 0)),
		Height:          parsePositiveInt(field(dims, 1)),
		DurationSeconds: parseNonNegativeFloat(field(dur, 0)),
	}
	if info.Width == nil && info.Height == nil && info.DurationSeconds == nil {
		return nil, fmt.Errorf("basic metadata for %s: %w", path, ErrNoData)
	}
	return info, nil
}

// Extended returns the codec name (upper-cased) and bit depth.
func (s *Service) Extended(ctx context.Context, path string) (*ExtendedInfo, error) {
	// ffprobe prints stream entries in its own order: codec_name, pix_fmt, bits_per_raw_sample.
	f := s.query(ctx, "extended", ffcmd.ProbeStream(path, "codec_name", "pix_fmt", "bits_per_raw_sample"))

	info := &ExtendedInfo{}
	if codec := field(f, 0); !missing(codec) {
		upper := strings.ToUpper(codec)
		info.CodecName = &upper
	}
	if pf := field(f, 1); !missing(pf) {
		info.PixelFormat = pf
	}
	info.BitDepth = bitDepth(field(f, 2), info.PixelFormat)

	if info.CodecName == nil && info.BitDepth == nil {
		return nil, fmt.Errorf("extended metadata for %s: %w", path, ErrNoData)
	}
	return info, nil
}

// FPS returns the first video stream's frame rate. When it cannot be
// determined it returns DefaultFPS together with ErrFPSUnavailable, so
// callers that only need a pacing interval can ignore the error.
func (s *Service) FPS(ctx context.Context, path string) (float64, error) {
	f := s.query(ctx, "fps", ffcmd.ProbeStream(path, "r_frame_rate"))

	rate, ok := parseRate(field(f, 0))
	if !ok || rate > MaxFPS {
		return DefaultFPS, fmt.Errorf("fps for %s: %w", path, ErrFPSUnavailable)
	}
	return rate, nil
}

// Metadata runs every probe and merges the results. It fails only when no
// probe produced any field. Results are served from and stored in the
// cache when one is configured.
func (s *Service) Metadata(ctx context.Context, path string) (*VideoMetadata, error) {
	var (
		size    int64
		modTime time.Time
		cached  bool
	)
	if s.cache != nil {
		if st, err := os.Stat(path); err == nil {
			size, modTime, cached = st.Size(), st.ModTime(), true
			md, ok, err := s.cache.Get(ctx, path, size, modTime)
			switch {
			case err != nil:
				metrics.MetadataCacheTotal.WithLabelValues("error").Inc()
				log.Warn("metadata cache lookup for %s: %v", path, err)
			case ok:
				metrics.MetadataCacheTotal.WithLabelValues("hit").Inc()
				return md, nil
			default:
				metrics.MetadataCacheTotal.WithLabelValues("miss").Inc()
			}
		}
	}

	md := &VideoMetadata{}
	if b, err := s.Basic(ctx, path); err == nil {
		md.Width, md.Height, md.DurationSeconds = b.Width, b.Height, b.DurationSeconds
	}
	if e, err := s.Extended(ctx, path); err == nil {
		md.CodecName, md.BitDepth = e.CodecName, e.BitDepth
	}
	if fps, err := s.FPS(ctx, path); err == nil {
		md.FPS = &fps
	}

	if md.Empty() {
		return nil, fmt.Errorf("metadata for %s: %w", path, ErrNoData)
	}

	if cached {
		if err := s.cache.Put(ctx, path, size, modTime, md); err != nil {
			log.Warn("failed to store metadata for %s: %v", path, err)
		}
	}
	return md, nil
}
