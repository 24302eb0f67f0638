package metrics

import (
	"sync"
	"time"

	"media-preview/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current statistics
type Stats struct {
	ThumbnailCount int
	ThumbnailBytes int64
	MetadataRows   int
}

// StatsFunc adapts a plain function to StatsProvider.
type StatsFunc func() Stats

// GetStats calls f.
func (f StatsFunc) GetStats() Stats { return f() }

// Collector periodically collects and updates gauge metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection. Safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	ThumbnailCacheCount.Set(float64(stats.ThumbnailCount))
	ThumbnailCacheSizeBytes.Set(float64(stats.ThumbnailBytes))
	MetadataStoreRows.Set(float64(stats.MetadataRows))

	logging.Debug("Metrics collected: thumbnails=%d (%d bytes), metadata rows=%d",
		stats.ThumbnailCount, stats.ThumbnailBytes, stats.MetadataRows)
}
