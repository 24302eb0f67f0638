package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"media-preview/internal/logging"
	"media-preview/internal/process"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// LoadConfig resolves configuration from the optional YAML file and the
// environment, logs it, and prepares the cache directories.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	config, err := resolve()
	if err != nil {
		return nil, err
	}

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	if config.ConfigFile != "" {
		logging.Info("  Config file:           %s", config.ConfigFile)
	}
	logging.Info("  MEDIA_DIR:             %s", config.MediaDir)
	logging.Info("  CACHE_DIR:             %s", config.CacheDir)
	logging.Info("  PORT:                  %s", config.Port)
	logging.Info("  METRICS_ENABLED:       %v", config.MetricsEnabled)
	logging.Info("  FFMPEG_PATH:           %s", config.FFmpegPath)
	logging.Info("  FFPROBE_PATH:          %s", config.FFprobePath)
	logging.Info("  THUMBNAIL_WIDTH:       %d", config.ThumbnailWidth)
	logging.Info("  THUMBNAIL_OFFSET:      %v", config.ThumbnailOffset)
	logging.Info("  THUMBNAIL_FORMAT:      %s", config.ThumbnailFormat)
	logging.Info("  PREVIEW_MAX_WIDTH:     %d", config.PreviewMaxWidth)
	logging.Info("  TERMINATE_TIMEOUT:     %v", config.TerminateTimeout)
	logging.Info("  SESSION_IDLE_TIMEOUT:  %v", config.SessionIdleTimeout)
	logging.Info("  MAX_SESSIONS:          %d", config.MaxSessions)
	logging.Info("  VIPS_ENABLED:          %v", config.VipsEnabled)
	logging.Info("  LOG_LEVEL:             %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	config.MediaDir, err = filepath.Abs(config.MediaDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve media directory path: %w", err)
	}
	logging.Info("  Media directory (absolute): %s", config.MediaDir)

	config.CacheDir, err = filepath.Abs(config.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory path: %w", err)
	}
	logging.Info("  Cache directory (absolute): %s", config.CacheDir)

	if err := ensureDirectory(config.MediaDir, "media"); err != nil {
		logging.Warn("  Media directory issue: %v", err)
	}

	config.ThumbnailDir = filepath.Join(config.CacheDir, "thumbnails")
	config.DatabasePath = filepath.Join(config.CacheDir, "metadata.db")

	config.ThumbnailsEnabled = setupOptionalDir(config.ThumbnailDir, "thumbnails")
	config.MetadataCacheEnabled = setupOptionalDir(config.CacheDir, "metadata cache")

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Thumbnails:     %s", enabledString(config.ThumbnailsEnabled))
	logging.Info("    Metadata cache: %s", enabledString(config.MetadataCacheEnabled))
	logging.Info("    Metrics:        %s", enabledString(config.MetricsEnabled))

	return config, nil
}

func setupOptionalDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)
	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}
	if err := testWriteAccess(path); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	logging.Debug("    [OK] %s directory ready", name)
	return true
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// ToolStatus reports whether ffmpeg and ffprobe could be run.
type ToolStatus struct {
	FFmpeg  bool
	FFprobe bool
}

// LogEngineInit checks the external tools and logs what the preview engine
// will be able to do without them. Missing tools are not fatal: thumbnails
// and previews degrade to "unavailable".
func LogEngineInit(ctx context.Context, runner Runner, config *Config) ToolStatus {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("PREVIEW ENGINE INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	var status ToolStatus
	if version, err := CheckTool(ctx, runner, config.FFmpegPath); err != nil {
		logging.Warn("  FFmpeg check failed: %v", err)
		logging.Warn("  Thumbnails and live previews will be unavailable")
	} else {
		status.FFmpeg = true
		logging.Info("  [OK] %s", version)
	}

	if version, err := CheckTool(ctx, runner, config.FFprobePath); err != nil {
		logging.Warn("  FFprobe check failed: %v", err)
		logging.Warn("  Video metadata will be reported as unknown")
	} else {
		status.FFprobe = true
		logging.Info("  [OK] %s", version)
	}

	if !config.ThumbnailsEnabled {
		logging.Info("  Thumbnails disabled (cache directory not writable)")
		logging.Info("  Static placeholders will be shown instead")
	}
	logging.Info("  Preview frame width cap: %d", config.PreviewMaxWidth)
	logging.Info("  Max concurrent previews: %d", config.MaxSessions)

	return status
}

// Runner runs a short-lived command and returns its stdout.
// *process.Supervisor implements it.
type Runner interface {
	Output(ctx context.Context, spec process.Spec, limit int64) ([]byte, error)
}

// CheckTool resolves bin on PATH, runs "bin -version" and returns the first
// line of its output.
func CheckTool(ctx context.Context, runner Runner, bin string) (string, error) {
	path, err := exec.LookPath(bin)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH", bin)
	}
	logging.Debug("  %s path: %s", filepath.Base(bin), path)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	output, err := runner.Output(ctx, process.Spec{
		Name: filepath.Base(bin),
		Path: path,
		Args: []string{"-version"},
	}, 4096)
	if err != nil {
		return "", fmt.Errorf("failed to get %s version: %w", bin, err)
	}

	line, _, _ := strings.Cut(string(output), "\n")
	line = strings.TrimSpace(line)
	if line == "" {
		line = filepath.Base(bin) + " (unknown version)"
	}
	return line, nil
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not have methods specified (e.g., static file server)
			methods = []string{"*"}
		}

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs the registered routes at debug level and the request
// logging settings.
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			groupRoutes := groups[group]
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}

			for _, route := range groupRoutes {
				methodPadded := fmt.Sprintf("%-6s", route.Method)
				logging.Debug("    %s %s", methodPadded, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	logging.Info("    Frame poll logging: OFF")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	// Remove leading slash
	path = strings.TrimPrefix(path, "/")

	// Get first segment
	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 0 {
		return ""
	}

	first := parts[0]

	// Special handling for API routes
	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    API:           http://0.0.0.0:%s/api", config.Port)
	logging.Info("    Health:        http://0.0.0.0:%s/healthz", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.Port)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
   m e d i a - p r e v i e w
   thumbnails, metadata and live previews for video files
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}

		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")

	if name == "media" && logging.IsDebugEnabled() {
		entries, err := os.ReadDir(path)
		if err == nil {
			fileCount := 0
			dirCount := 0
			for _, e := range entries {
				if e.IsDir() {
					dirCount++
				} else {
					fileCount++
				}
			}
			logging.Debug("    Contents: %d files, %d directories (top level)", fileCount, dirCount)
		}
	}

	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
		// Don't return error since write access was confirmed
	}
	return nil
}
