package playback

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"media-preview/internal/process"
)

var (
	// ErrSessionNotFound is returned for an unknown or closed session id.
	ErrSessionNotFound = errors.New("playback: session not found")
	// ErrTooManySessions is returned by Open when every slot is taken.
	ErrTooManySessions = errors.New("playback: too many sessions")
)

const (
	DefaultMaxSessions  = 4
	DefaultIdleTimeout  = 2 * time.Minute
	DefaultPollInterval = 250 * time.Millisecond
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Session      Config
	MaxSessions  int
	IdleTimeout  time.Duration
	PollInterval time.Duration
	// Admit, when set, is consulted before each Open; an error refuses
	// the new session.
	Admit func() error
}

// Info is a snapshot of one session slot.
type Info struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	State      string    `json:"state"`
	Width      int       `json:"width,omitempty"`
	Height     int       `json:"height,omitempty"`
	Stats      Stats     `json:"stats"`
	Error      string    `json:"error,omitempty"`
	LastAccess time.Time `json:"lastAccess"`
}

type slot struct {
	id      string
	session *Session

	mu         sync.Mutex
	latest     Frame
	lastAccess time.Time
}

func (sl *slot) touch() {
	sl.mu.Lock()
	sl.lastAccess = time.Now()
	sl.mu.Unlock()
}

// Manager owns a bounded set of sessions keyed by id, for callers such as
// HTTP clients that have no render loop of their own. A background poller
// tears down finished runs and closes idle sessions.
type Manager struct {
	spawner process.Spawner
	prober  Prober
	cfg     ManagerConfig

	mu    sync.RWMutex
	slots map[string]*slot

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewManager creates a Manager and starts its poller.
func NewManager(spawner process.Spawner, prober Prober, cfg ManagerConfig) *Manager {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	m := &Manager{
		spawner:  spawner,
		prober:   prober,
		cfg:      cfg,
		slots:    make(map[string]*slot),
		stopChan: make(chan struct{}),
	}

	m.wg.Add(1)
	go m.pollLoop()

	return m
}

// Open creates a session, starts it and returns its id. A session that
// fails to start is not kept.
func (m *Manager) Open(ctx context.Context, opts StartOptions) (string, error) {
	if m.cfg.Admit != nil {
		if err := m.cfg.Admit(); err != nil {
			return "", err
		}
	}

	sl := &slot{
		id:         uuid.NewString(),
		session:    NewSession(m.spawner, m.prober, m.cfg.Session),
		lastAccess: time.Now(),
	}

	m.mu.Lock()
	if len(m.slots) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		return "", fmt.Errorf("%w (limit %d)", ErrTooManySessions, m.cfg.MaxSessions)
	}
	m.slots[sl.id] = sl
	m.mu.Unlock()

	if err := sl.session.Start(ctx, opts); err != nil {
		m.remove(sl.id)
		return "", err
	}

	log.Debug("opened session %s for %s", sl.id, opts.Path)
	return sl.id, nil
}

// Restart starts a new run in an existing slot, replacing the active one.
func (m *Manager) Restart(ctx context.Context, id string, opts StartOptions) error {
	sl, err := m.slot(id)
	if err != nil {
		return err
	}
	sl.mu.Lock()
	sl.latest = Frame{}
	sl.mu.Unlock()
	return sl.session.Start(ctx, opts)
}

// Get returns the session for id.
func (m *Manager) Get(id string) (*Session, error) {
	sl, err := m.slot(id)
	if err != nil {
		return nil, err
	}
	return sl.session, nil
}

// Latest returns a copy of the newest frame of session id. The last frame
// acquired is retained, so a caller polling faster than the decoder, or
// after the run has ended, still gets a picture. ok is false until the
// first frame arrives.
func (m *Manager) Latest(id string) (frame Frame, ok bool, err error) {
	sl, err := m.slot(id)
	if err != nil {
		return Frame{}, false, err
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.session.AcquireLatestFrame(&sl.latest)
	if sl.latest.Pix == nil {
		return Frame{}, false, nil
	}
	return sl.latest.Clone(), true, nil
}

// Info returns a snapshot of session id.
func (m *Manager) Info(id string) (Info, error) {
	sl, err := m.slot(id)
	if err != nil {
		return Info{}, err
	}
	return sl.info(), nil
}

func (sl *slot) info() Info {
	s := sl.session
	w, h := s.FrameSize()
	info := Info{
		ID:     sl.id,
		Path:   s.Path(),
		State:  s.State().String(),
		Width:  w,
		Height: h,
		Stats:  s.Stats(),
	}
	if err := s.LastError(); err != nil {
		info.Error = err.Error()
	}
	sl.mu.Lock()
	info.LastAccess = sl.lastAccess
	sl.mu.Unlock()
	return info
}

// List returns snapshots of all sessions ordered by id.
func (m *Manager) List() []Info {
	m.mu.RLock()
	slots := make([]*slot, 0, len(m.slots))
	for _, sl := range m.slots {
		slots = append(slots, sl)
	}
	m.mu.RUnlock()

	infos := make([]Info, 0, len(slots))
	for _, sl := range slots {
		infos = append(infos, sl.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.slots)
}

// Close stops session id and frees its slot.
func (m *Manager) Close(id string) error {
	sl := m.remove(id)
	if sl == nil {
		return ErrSessionNotFound
	}
	sl.session.Stop()
	log.Debug("closed session %s", id)
	return nil
}

// Shutdown stops the poller and every session.
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() { close(m.stopChan) })
	m.wg.Wait()

	m.mu.Lock()
	slots := m.slots
	m.slots = make(map[string]*slot)
	m.mu.Unlock()

	for _, sl := range slots {
		sl.session.Stop()
	}
	if len(slots) > 0 {
		log.Info("stopped %d playback sessions", len(slots))
	}
}

func (m *Manager) slot(id string) (*slot, error) {
	m.mu.RLock()
	sl, ok := m.slots[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sl.touch()
	return sl, nil
}

func (m *Manager) remove(id string) *slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	sl, ok := m.slots[id]
	if !ok {
		return nil
	}
	delete(m.slots, id)
	return sl
}

func (m *Manager) pollLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.pollOnce(time.Now())
		}
	}
}

// pollOnce advances every session and closes those idle since before
// now minus the idle timeout.
func (m *Manager) pollOnce(now time.Time) {
	m.mu.RLock()
	slots := make([]*slot, 0, len(m.slots))
	for _, sl := range m.slots {
		slots = append(slots, sl)
	}
	m.mu.RUnlock()

	for _, sl := range slots {
		sl.session.Poll()

		sl.mu.Lock()
		idle := now.Sub(sl.lastAccess)
		sl.mu.Unlock()
		if idle > m.cfg.IdleTimeout {
			if m.remove(sl.id) != nil {
				log.Info("closing session %s after %s idle", sl.id, idle.Round(time.Second))
				sl.session.stop("idle")
			}
		}
	}
}
