package memory

import (
	"context"
	"errors"
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"media-preview/internal/logging"
	"media-preview/internal/metrics"
)

// ErrMemoryPressure is returned by Admit while memory use is critical.
var ErrMemoryPressure = errors.New("memory pressure: try again later")

// Config holds monitor thresholds as fractions of the limit.
type Config struct {
	// LimitBytes is the limit to measure against; 0 uses GOMEMLIMIT.
	LimitBytes int64
	// CriticalWaterMark starts refusing new work.
	CriticalWaterMark float64
	// HighWaterMark is where refusing stops again once usage falls below it.
	HighWaterMark float64
	CheckInterval time.Duration
}

// DefaultConfig returns the thresholds used by the server.
func DefaultConfig() Config {
	return Config{
		CriticalWaterMark: 0.9,
		HighWaterMark:     0.75,
		CheckInterval:     5 * time.Second,
	}
}

// Monitor samples heap usage and gates new memory-hungry work, such as a
// preview that will hold two frame buffers, while usage is critical.
type Monitor struct {
	config Config
	limit  int64

	mu       sync.RWMutex
	current  uint64
	pressure bool
	relief   chan struct{}

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewMonitor creates a monitor. Without any limit it never refuses work.
func NewMonitor(config Config) *Monitor {
	limit := config.LimitBytes
	if limit == 0 {
		if l := debug.SetMemoryLimit(-1); l > 0 && l < math.MaxInt64 {
			limit = l
		}
	}
	if limit == 0 {
		logging.Debug("Memory monitor: no memory limit configured, admission control disabled")
	} else {
		logging.Info("Memory monitor: limit %s, refusing previews above %.0f%%", FormatBytes(limit), config.CriticalWaterMark*100)
	}

	return &Monitor{
		config:   config,
		limit:    limit,
		relief:   make(chan struct{}),
		stopChan: make(chan struct{}),
	}
}

// Start samples every CheckInterval until Stop.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(m.config.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				var stats runtime.MemStats
				runtime.ReadMemStats(&stats)
				m.observe(stats.Alloc)
			case <-m.stopChan:
				return
			}
		}
	}()
}

// Stop ends sampling and releases any Wait callers.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

// observe records a heap sample and flips the pressure state with
// hysteresis between the two water marks.
func (m *Monitor) observe(alloc uint64) {
	if m.limit == 0 {
		return
	}
	usage := float64(alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = alloc

	switch {
	case !m.pressure && usage >= m.config.CriticalWaterMark:
		logging.Warn("Memory critical (%.1f%% of limit), refusing new previews", usage*100)
		m.pressure = true
		metrics.MemoryPressure.Set(1)
		go runtime.GC()
	case m.pressure && usage < m.config.HighWaterMark:
		logging.Info("Memory recovered (%.1f%% of limit), accepting previews", usage*100)
		m.pressure = false
		metrics.MemoryPressure.Set(0)
		close(m.relief)
		m.relief = make(chan struct{})
	}
}

// UnderPressure reports whether usage is currently critical.
func (m *Monitor) UnderPressure() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pressure
}

// Admit returns ErrMemoryPressure while usage is critical.
func (m *Monitor) Admit() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.pressure {
		metrics.MemoryAdmissionsRejected.Inc()
		return ErrMemoryPressure
	}
	return nil
}

// Wait blocks while usage is critical. It returns ctx.Err() if ctx ends
// first and ErrMemoryPressure if the monitor is stopped.
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.RLock()
	if !m.pressure {
		m.mu.RUnlock()
		return nil
	}
	relief := m.relief
	m.mu.RUnlock()

	select {
	case <-relief:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.stopChan:
		return ErrMemoryPressure
	}
}

// Usage returns the last sampled heap size, the limit and their ratio.
func (m *Monitor) Usage() (current, limit int64, ratio float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	current = math.MaxInt64
	if m.current <= math.MaxInt64 {
		current = int64(m.current)
	}
	if m.limit > 0 {
		ratio = float64(m.current) / float64(m.limit)
	}
	return current, m.limit, ratio
}
