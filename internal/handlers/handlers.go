package handlers

import (
	"context"
	"time"

	"media-preview/internal/logging"
	"media-preview/internal/metastore"
	"media-preview/internal/playback"
	"media-preview/internal/probe"
	"media-preview/internal/startup"
	"media-preview/internal/streaming"
	"media-preview/internal/thumbnail"
)

// DefaultStreamInterval paces MJPEG parts (25 per second).
const DefaultStreamInterval = 40 * time.Millisecond

var log = logging.Component("handlers")

// MetadataProber is the part of probe.Service the handlers use.
type MetadataProber interface {
	Metadata(ctx context.Context, path string) (*probe.VideoMetadata, error)
}

// PressureGauge reports memory pressure. *memory.Monitor implements it.
type PressureGauge interface {
	UnderPressure() bool
}

// Options wires the engine components into Handlers. Thumbnails, Store and
// Memory may be nil.
type Options struct {
	MediaDir   string
	Thumbnails *thumbnail.Manager
	Probe      MetadataProber
	Sessions   *playback.Manager
	Store      *metastore.Store
	Memory     PressureGauge
	Tools      startup.ToolStatus
	Stream     streaming.Config
	// StreamInterval paces MJPEG parts; zero selects DefaultStreamInterval.
	StreamInterval time.Duration
}

// Handlers serves thumbnails, metadata and live previews over HTTP.
type Handlers struct {
	mediaDir       string
	thumbs         *thumbnail.Manager
	probe          MetadataProber
	sessions       *playback.Manager
	store          *metastore.Store
	memory         PressureGauge
	tools          startup.ToolStatus
	stream         streaming.Config
	streamInterval time.Duration
	started        time.Time
}

// New creates Handlers from opts.
func New(opts Options) *Handlers {
	if opts.StreamInterval <= 0 {
		opts.StreamInterval = DefaultStreamInterval
	}
	if opts.Stream == (streaming.Config{}) {
		opts.Stream = streaming.DefaultConfig()
	}
	return &Handlers{
		mediaDir:       opts.MediaDir,
		thumbs:         opts.Thumbnails,
		probe:          opts.Probe,
		sessions:       opts.Sessions,
		store:          opts.Store,
		memory:         opts.Memory,
		tools:          opts.Tools,
		stream:         opts.Stream,
		streamInterval: opts.StreamInterval,
		started:        time.Now(),
	}
}
