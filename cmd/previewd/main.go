package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"media-preview/internal/filesystem"
	"media-preview/internal/handlers"
	"media-preview/internal/imageio"
	"media-preview/internal/logging"
	"media-preview/internal/memory"
	"media-preview/internal/metastore"
	"media-preview/internal/metrics"
	"media-preview/internal/middleware"
	"media-preview/internal/playback"
	"media-preview/internal/probe"
	"media-preview/internal/process"
	"media-preview/internal/startup"
	"media-preview/internal/thumbnail"
)

const (
	shutdownTimeout   = 30 * time.Second
	collectorInterval = time.Minute
)

func main() {
	startTime := time.Now()

	memResult := memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	if memResult.Configured {
		logging.Info("Memory limit: %s (source %s)", memory.FormatBytes(memResult.GoMemLimit), memResult.Source)
	}

	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	metrics.InitializeMetrics()
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"media": config.MediaDir,
		"cache": config.CacheDir,
	}))

	ctx := context.Background()
	sup := process.NewSupervisor(config.TerminateTimeout)
	tools := startup.LogEngineInit(ctx, sup, config)

	if config.VipsEnabled {
		imageio.InitVips()
		defer imageio.ShutdownVips()
	}

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	store := openMetadataStore(ctx, config)
	probeCfg := probe.Config{FFprobePath: config.FFprobePath}
	if store != nil {
		probeCfg.Cache = store
	}
	prober := probe.NewService(sup, probeCfg)

	var thumbs *thumbnail.Manager
	if config.ThumbnailsEnabled {
		thumbs, err = thumbnail.NewManager(sup, thumbnail.Config{
			CacheDir:   config.ThumbnailDir,
			FFmpegPath: config.FFmpegPath,
			Offset:     config.ThumbnailOffset,
			MaxWidth:   config.ThumbnailWidth,
			Format:     config.ThumbnailFormat,
			Throttle:   monitor.Wait,
		})
		if err != nil {
			startup.LogFatal("Failed to initialize thumbnails: %v", err)
		}
	}

	sessions := playback.NewManager(sup, prober, playback.ManagerConfig{
		Session: playback.Config{
			FFmpegPath:       config.FFmpegPath,
			MaxWidth:         config.PreviewMaxWidth,
			TerminateTimeout: config.TerminateTimeout,
		},
		MaxSessions: config.MaxSessions,
		IdleTimeout: config.SessionIdleTimeout,
		Admit:       monitor.Admit,
	})

	collector := metrics.NewCollector(&statsAdapter{thumbs: thumbs, store: store}, collectorInterval)
	collector.Start()

	h := handlers.New(handlers.Options{
		MediaDir:   config.MediaDir,
		Thumbnails: thumbs,
		Probe:      prober,
		Sessions:   sessions,
		Store:      store,
		Memory:     monitor,
		Tools:      tools,
	})

	router := setupRouter(h, config)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// MJPEG streams are long-lived; per-write deadlines live in the
		// streaming package.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		handleShutdown(srv, components{
			sessions:  sessions,
			sup:       sup,
			collector: collector,
			monitor:   monitor,
			store:     store,
		})
		close(done)
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

func setupRouter(h *handlers.Handlers, config *startup.Config) *mux.Router {
	r := h.Router()
	if config.MetricsEnabled {
		r.Use(mux.MiddlewareFunc(middleware.Metrics(middleware.DefaultMetricsConfig())))
	}
	return r
}

// openMetadataStore opens the probe cache. A failure only disables caching.
func openMetadataStore(ctx context.Context, config *startup.Config) *metastore.Store {
	if !config.MetadataCacheEnabled {
		logging.Info("Metadata cache disabled")
		return nil
	}
	store, err := metastore.Open(ctx, config.DatabasePath)
	if err != nil {
		logging.Warn("Metadata cache unavailable, probing every request: %v", err)
		return nil
	}
	logging.Info("Metadata cache: %s", store.Path())
	return store
}

// statsAdapter feeds the metrics collector from the thumbnail cache and the
// metadata store. Either may be nil.
type statsAdapter struct {
	thumbs *thumbnail.Manager
	store  *metastore.Store
}

// GetStats implements metrics.StatsProvider.
func (a *statsAdapter) GetStats() metrics.Stats {
	var stats metrics.Stats
	if a.thumbs != nil {
		stats.ThumbnailCount, stats.ThumbnailBytes = a.thumbs.Stats()
	}
	if a.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rows, err := a.store.Count(ctx)
		if err != nil {
			logging.Warn("failed to count metadata rows: %v", err)
		}
		stats.MetadataRows = rows
	}
	return stats
}

type components struct {
	sessions  *playback.Manager
	sup       *process.Supervisor
	collector *metrics.Collector
	monitor   *memory.Monitor
	store     *metastore.Store
}

func handleShutdown(srv *http.Server, c components) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Closing sessions first ends open MJPEG streams so the server can drain.
	startup.LogShutdownStep("Stopping preview sessions")
	c.sessions.Shutdown()
	startup.LogShutdownStepComplete("Preview sessions stopped")

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Terminating child processes")
	c.sup.Shutdown(5 * time.Second)
	startup.LogShutdownStepComplete("Child processes terminated")

	c.collector.Stop()
	c.monitor.Stop()

	if c.store != nil {
		startup.LogShutdownStep("Closing metadata cache")
		if err := c.store.Close(); err != nil {
			logging.Warn("Metadata cache close error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metadata cache closed")
		}
	}

	startup.LogShutdownComplete()
}
