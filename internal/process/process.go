package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"media-preview/internal/logging"
	"media-preview/internal/metrics"
)

var (
	// ErrSpawn indicates the executable could not be started.
	ErrSpawn = errors.New("process: spawn failed")

	// ErrPipe indicates the stdout pipe could not be created.
	ErrPipe = errors.New("process: pipe creation failed")
)

// DefaultKillDelay is how long a cancelled context waits after SIGTERM
// before the process is killed.
const DefaultKillDelay = 2 * time.Second

const stderrTailSize = 4096

// minDrainGrace is the least time Output keeps reading after the process
// has exited.
const minDrainGrace = 250 * time.Millisecond

var log = logging.Component("process")

// State is the lifecycle state of a spawned process.
type State int

const (
	// Running means the process has not been reaped yet.
	Running State = iota
	// Exited means the process ended on its own or after SIGTERM.
	Exited
	// Killed means the process was force-killed.
	Killed
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Exited:
		return "exited"
	case Killed:
		return "killed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Spec describes a process to spawn.
type Spec struct {
	// Name labels logs and metrics. Defaults to the base name of Path.
	Name string
	Path string
	Args []string
	// CaptureStdout connects the child's stdout to a pipe readable via Handle.Stdout.
	CaptureStdout bool
	// SilenceStderr discards stderr instead of keeping a tail for diagnostics.
	SilenceStderr bool
}

func (s Spec) name() string {
	if s.Name != "" {
		return s.Name
	}
	return filepath.Base(s.Path)
}

// Spawner starts processes. *Supervisor is the production implementation.
type Spawner interface {
	Spawn(ctx context.Context, spec Spec) (*Handle, error)
}

// Supervisor spawns external processes and tracks every handle until it
// has been reaped.
type Supervisor struct {
	killDelay time.Duration

	mu   sync.Mutex
	live map[*Handle]struct{}
}

// NewSupervisor creates a supervisor. killDelay bounds how long a process
// whose context was cancelled may ignore SIGTERM; zero selects DefaultKillDelay.
func NewSupervisor(killDelay time.Duration) *Supervisor {
	if killDelay <= 0 {
		killDelay = DefaultKillDelay
	}
	return &Supervisor{
		killDelay: killDelay,
		live:      make(map[*Handle]struct{}),
	}
}

// Spawn starts the process described by spec. On failure no handle is
// returned and every descriptor opened along the way has been closed.
func (s *Supervisor) Spawn(ctx context.Context, spec Spec) (*Handle, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	name := spec.name()

	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = s.killDelay

	h := &Handle{
		name: name,
		cmd:  cmd,
		done: make(chan struct{}),
	}

	var childStdout *os.File
	if spec.CaptureStdout {
		r, w, err := os.Pipe()
		if err != nil {
			metrics.ProcessSpawnsTotal.WithLabelValues(name, "error").Inc()
			return nil, fmt.Errorf("%w: %s: %w", ErrPipe, name, err)
		}
		h.stdout = r
		childStdout = w
		cmd.Stdout = w
	}
	if !spec.SilenceStderr {
		h.stderr = &tailBuffer{limit: stderrTailSize}
		cmd.Stderr = h.stderr
	}

	if err := cmd.Start(); err != nil {
		if childStdout != nil {
			childStdout.Close()
			h.stdout.Close()
		}
		metrics.ProcessSpawnsTotal.WithLabelValues(name, "error").Inc()
		log.Warn("failed to start %s: %v", name, err)
		return nil, fmt.Errorf("%w: %s: %w", ErrSpawn, name, err)
	}

	// The child owns the write end now; EOF on our read end must follow its exit.
	if childStdout != nil {
		childStdout.Close()
	}

	metrics.ProcessSpawnsTotal.WithLabelValues(name, "success").Inc()
	metrics.ProcessesActive.WithLabelValues(name).Inc()

	s.mu.Lock()
	s.live[h] = struct{}{}
	s.mu.Unlock()

	log.Debug("started %s (pid %d)", name, cmd.Process.Pid)

	go func() {
		h.waitErr = cmd.Wait()

		s.mu.Lock()
		delete(s.live, h)
		s.mu.Unlock()
		metrics.ProcessesActive.WithLabelValues(name).Dec()
		log.Debug("reaped %s (pid %d): %v", name, cmd.Process.Pid, h.waitErr)

		close(h.done)
	}()

	return h, nil
}

// Output spawns spec, reads at most limit bytes of stdout, then closes the
// pipe and reaps the process. A non-zero exit is reported as an error that
// includes the tail of stderr; any bytes read are still returned.
func (s *Supervisor) Output(ctx context.Context, spec Spec, limit int64) ([]byte, error) {
	spec.CaptureStdout = true
	h, err := s.Spawn(ctx, spec)
	if err != nil {
		return nil, err
	}

	orphaned := make(chan struct{})
	stop := make(chan struct{})
	go s.closeWhenAbandoned(ctx, h, stop, orphaned)

	data, readErr := io.ReadAll(io.LimitReader(h.Stdout(), limit))
	close(stop)
	h.Close()
	waitErr := h.Reap()

	select {
	case <-orphaned:
		// A descendant kept the pipe open after the process exited.
		if errors.Is(readErr, os.ErrClosed) {
			readErr = nil
		}
	default:
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return data, fmt.Errorf("%s: %w", h.name, ctxErr)
	}
	if readErr != nil {
		return data, fmt.Errorf("failed to read %s output: %w", h.name, readErr)
	}
	// Exceeding the limit closes the pipe under the child, which may then
	// die of SIGPIPE; the bytes we wanted are already in hand.
	if waitErr != nil && int64(len(data)) < limit {
		if tail := h.Stderr(); tail != "" {
			return data, fmt.Errorf("%s failed: %w: %s", h.name, waitErr, tail)
		}
		return data, fmt.Errorf("%s failed: %w", h.name, waitErr)
	}
	return data, nil
}

// closeWhenAbandoned closes the read end of h's stdout once ctx is done, or
// a grace period after h exits. Descendants that inherited the write end
// would otherwise keep the reader blocked past both. orphaned is closed when
// the exit path fired.
func (s *Supervisor) closeWhenAbandoned(ctx context.Context, h *Handle, stop <-chan struct{}, orphaned chan<- struct{}) {
	select {
	case <-stop:
		return
	case <-ctx.Done():
	case <-h.Done():
		timer := time.NewTimer(max(s.killDelay, minDrainGrace))
		defer timer.Stop()
		select {
		case <-stop:
			return
		case <-ctx.Done():
		case <-timer.C:
			log.Warn("%s (pid %d) exited but its output pipe is still open, closing", h.name, h.Pid())
			close(orphaned)
		}
	}
	h.Close()
}

// Count returns the number of spawned processes that have not been reaped.
func (s *Supervisor) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Shutdown terminates every live process, waiting up to timeout for each
// to exit before killing it.
func (s *Supervisor) Shutdown(timeout time.Duration) {
	s.mu.Lock()
	handles := make([]*Handle, 0, len(s.live))
	for h := range s.live {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	if len(handles) == 0 {
		return
	}
	log.Info("terminating %d running process(es)", len(handles))

	var wg sync.WaitGroup
	for _, h := range handles {
		wg.Add(1)
		go func(h *Handle) {
			defer wg.Done()
			h.Terminate(timeout)
			h.Close()
		}(h)
	}
	wg.Wait()
}

// Handle is a spawned process. It is reaped exactly once, by a waiter
// goroutine started at spawn; Reap and Terminate observe that result.
type Handle struct {
	name   string
	cmd    *exec.Cmd
	stdout *os.File
	stderr *tailBuffer

	done    chan struct{}
	waitErr error
	killed  atomic.Bool

	closeOnce sync.Once
}

// Name returns the label used for logs and metrics.
func (h *Handle) Name() string { return h.name }

// Pid returns the OS process id.
func (h *Handle) Pid() int { return h.cmd.Process.Pid }

// Stdout returns the read end of the stdout pipe, or nil when stdout was
// not captured.
func (h *Handle) Stdout() io.Reader {
	if h.stdout == nil {
		return nil
	}
	return h.stdout
}

// Stderr returns the last few kilobytes the process wrote to stderr.
func (h *Handle) Stderr() string {
	if h.stderr == nil {
		return ""
	}
	return h.stderr.String()
}

// Done is closed once the process has been reaped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// State reports the lifecycle state.
func (h *Handle) State() State {
	select {
	case <-h.done:
		if h.killed.Load() {
			return Killed
		}
		return Exited
	default:
		return Running
	}
}

// Reap blocks until the process has exited and returns its exit error.
// It may be called any number of times.
func (h *Handle) Reap() error {
	<-h.done
	return h.waitErr
}

// Terminate asks the process to exit with SIGTERM, waits up to hardTimeout,
// then sends SIGKILL. It returns once the process has been reaped.
func (h *Handle) Terminate(hardTimeout time.Duration) State {
	select {
	case <-h.done:
		metrics.ProcessTerminationsTotal.WithLabelValues(h.name, "already_exited").Inc()
		return h.State()
	default:
	}

	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		log.Debug("SIGTERM to %s (pid %d) failed: %v", h.name, h.Pid(), err)
	}

	timer := time.NewTimer(hardTimeout)
	defer timer.Stop()

	select {
	case <-h.done:
		metrics.ProcessTerminationsTotal.WithLabelValues(h.name, "graceful").Inc()
		return h.State()
	case <-timer.C:
	}

	log.Warn("%s (pid %d) ignored SIGTERM for %v, killing", h.name, h.Pid(), hardTimeout)
	h.killed.Store(true)
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		log.Warn("failed to kill %s (pid %d): %v", h.name, h.Pid(), err)
	}
	<-h.done
	metrics.ProcessTerminationsTotal.WithLabelValues(h.name, "forced").Inc()
	return h.State()
}

// Close closes the parent's end of the stdout pipe. A reader blocked in
// Read returns with an error. Safe to call more than once.
func (h *Handle) Close() {
	h.closeOnce.Do(func() {
		if h.stdout != nil {
			h.stdout.Close()
		}
	})
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	if n >= b.limit {
		b.buf = append(b.buf[:0], p[n-b.limit:]...)
		return n, nil
	}
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return n, nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
