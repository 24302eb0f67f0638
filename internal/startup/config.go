package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"media-preview/internal/logging"
	"media-preview/internal/mediatypes"
	"media-preview/internal/playback"
	"media-preview/internal/thumbnail"
)

// Config holds all application configuration.
type Config struct {
	MediaDir        string
	CacheDir        string
	Port            string
	MetricsEnabled  bool
	LogHealthChecks bool

	FFmpegPath  string
	FFprobePath string

	ThumbnailWidth  int
	ThumbnailOffset time.Duration
	ThumbnailFormat string

	PreviewMaxWidth    int
	TerminateTimeout   time.Duration
	SessionIdleTimeout time.Duration
	MaxSessions        int
	VipsEnabled        bool

	// Derived paths
	ThumbnailDir string
	DatabasePath string

	// Feature flags based on directory availability
	ThumbnailsEnabled    bool
	MetadataCacheEnabled bool

	// ConfigFile is the YAML file that was applied, if any.
	ConfigFile string
}

// FileConfig is the optional YAML configuration. Environment variables
// override anything set here.
type FileConfig struct {
	MediaDir        string `yaml:"mediaDir"`
	CacheDir        string `yaml:"cacheDir"`
	Port            string `yaml:"port"`
	MetricsEnabled  *bool  `yaml:"metricsEnabled"`
	LogHealthChecks *bool  `yaml:"logHealthChecks"`
	FFmpegPath      string `yaml:"ffmpegPath"`
	FFprobePath     string `yaml:"ffprobePath"`
	VipsEnabled     *bool  `yaml:"vipsEnabled"`

	Thumbnail struct {
		Width  int    `yaml:"width"`
		Offset string `yaml:"offset"`
		Format string `yaml:"format"`
	} `yaml:"thumbnail"`

	Preview struct {
		MaxWidth         int    `yaml:"maxWidth"`
		TerminateTimeout string `yaml:"terminateTimeout"`
		IdleTimeout      string `yaml:"idleTimeout"`
		MaxSessions      int    `yaml:"maxSessions"`
	} `yaml:"preview"`
}

// DefaultConfig returns the built-in defaults before any file or
// environment is applied.
func DefaultConfig() *Config {
	return &Config{
		MediaDir:           "/media",
		CacheDir:           "/cache",
		Port:               "8080",
		MetricsEnabled:     true,
		LogHealthChecks:    true,
		FFmpegPath:         "ffmpeg",
		FFprobePath:        "ffprobe",
		ThumbnailWidth:     thumbnail.DefaultMaxWidth,
		ThumbnailOffset:    thumbnail.DefaultOffset,
		ThumbnailFormat:    thumbnail.DefaultFormat,
		PreviewMaxWidth:    playback.DefaultMaxWidth,
		TerminateTimeout:   playback.DefaultTerminateTimeout,
		SessionIdleTimeout: playback.DefaultIdleTimeout,
		MaxSessions:        playback.DefaultMaxSessions,
		VipsEnabled:        true,
	}
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &fc, nil
}

// FindConfigFile returns CONFIG_FILE if set, otherwise the first file found
// in the standard locations, or "" when there is none.
func FindConfigFile() string {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		return path
	}

	locations := []string{
		"./previewd.yaml",
		"./previewd.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "media-preview", "config.yaml"),
		"/etc/media-preview/config.yaml",
	}
	for _, path := range locations {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// apply copies every field set in the file over c.
func (fc *FileConfig) apply(c *Config) {
	setString(&c.MediaDir, fc.MediaDir)
	setString(&c.CacheDir, fc.CacheDir)
	setString(&c.Port, fc.Port)
	setBool(&c.MetricsEnabled, fc.MetricsEnabled)
	setBool(&c.LogHealthChecks, fc.LogHealthChecks)
	setString(&c.FFmpegPath, fc.FFmpegPath)
	setString(&c.FFprobePath, fc.FFprobePath)
	setBool(&c.VipsEnabled, fc.VipsEnabled)

	setInt(&c.ThumbnailWidth, fc.Thumbnail.Width)
	setDuration(&c.ThumbnailOffset, "thumbnail.offset", fc.Thumbnail.Offset)
	setString(&c.ThumbnailFormat, fc.Thumbnail.Format)

	setInt(&c.PreviewMaxWidth, fc.Preview.MaxWidth)
	setDuration(&c.TerminateTimeout, "preview.terminateTimeout", fc.Preview.TerminateTimeout)
	setDuration(&c.SessionIdleTimeout, "preview.idleTimeout", fc.Preview.IdleTimeout)
	setInt(&c.MaxSessions, fc.Preview.MaxSessions)
}

// applyEnv overrides c from environment variables.
func (c *Config) applyEnv() {
	c.MediaDir = getEnv("MEDIA_DIR", c.MediaDir)
	c.CacheDir = getEnv("CACHE_DIR", c.CacheDir)
	c.Port = getEnv("PORT", c.Port)
	c.MetricsEnabled = getEnvBool("METRICS_ENABLED", c.MetricsEnabled)
	c.LogHealthChecks = getEnvBool("LOG_HEALTH_CHECKS", c.LogHealthChecks)
	c.FFmpegPath = getEnv("FFMPEG_PATH", c.FFmpegPath)
	c.FFprobePath = getEnv("FFPROBE_PATH", c.FFprobePath)
	c.VipsEnabled = getEnvBool("VIPS_ENABLED", c.VipsEnabled)

	c.ThumbnailWidth = getEnvInt("THUMBNAIL_WIDTH", c.ThumbnailWidth)
	c.ThumbnailOffset = getEnvDuration("THUMBNAIL_OFFSET", c.ThumbnailOffset)
	c.ThumbnailFormat = getEnv("THUMBNAIL_FORMAT", c.ThumbnailFormat)

	c.PreviewMaxWidth = getEnvInt("PREVIEW_MAX_WIDTH", c.PreviewMaxWidth)
	c.TerminateTimeout = getEnvDuration("TERMINATE_TIMEOUT", c.TerminateTimeout)
	c.SessionIdleTimeout = getEnvDuration("SESSION_IDLE_TIMEOUT", c.SessionIdleTimeout)
	c.MaxSessions = getEnvInt("MAX_SESSIONS", c.MaxSessions)
}

// validate replaces values that cannot work with defaults.
func (c *Config) validate() {
	defaults := DefaultConfig()

	c.ThumbnailFormat = strings.ToLower(strings.TrimPrefix(c.ThumbnailFormat, "."))
	if mediatypes.ThumbnailExt(c.ThumbnailFormat) == "" {
		logging.Warn("  Unsupported THUMBNAIL_FORMAT %q, using default: %s", c.ThumbnailFormat, defaults.ThumbnailFormat)
		c.ThumbnailFormat = defaults.ThumbnailFormat
	}
	if c.ThumbnailWidth <= 0 {
		logging.Warn("  Invalid THUMBNAIL_WIDTH %d, using default: %d", c.ThumbnailWidth, defaults.ThumbnailWidth)
		c.ThumbnailWidth = defaults.ThumbnailWidth
	}
	if c.PreviewMaxWidth <= 0 {
		logging.Warn("  Invalid PREVIEW_MAX_WIDTH %d, using default: %d", c.PreviewMaxWidth, defaults.PreviewMaxWidth)
		c.PreviewMaxWidth = defaults.PreviewMaxWidth
	}
	if c.MaxSessions <= 0 {
		logging.Warn("  Invalid MAX_SESSIONS %d, using default: %d", c.MaxSessions, defaults.MaxSessions)
		c.MaxSessions = defaults.MaxSessions
	}
	if c.TerminateTimeout <= 0 {
		c.TerminateTimeout = defaults.TerminateTimeout
	}
	if c.SessionIdleTimeout <= 0 {
		c.SessionIdleTimeout = defaults.SessionIdleTimeout
	}
}

// resolve builds the effective configuration: defaults, then the YAML
// file, then the environment.
func resolve() (*Config, error) {
	config := DefaultConfig()

	if path := FindConfigFile(); path != "" {
		fc, err := LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		fc.apply(config)
		config.ConfigFile = path
	}

	config.applyEnv()
	config.validate()
	return config, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key, v string) {
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logging.Warn("  Invalid %s %q in config file, using: %v", key, v, *dst)
		return
	}
	*dst = d
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid duration value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
