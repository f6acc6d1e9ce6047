package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// Status is the lifecycle state reported by Manager.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
)

const (
	// defaultMaxLineSize bounds one stdout line. Scan results are well under 1KB.
	defaultMaxLineSize = 64 * 1024

	// killWaitTimeout is how long to wait for exit after SIGKILL.
	killWaitTimeout = 5 * time.Second

	// minStallCheck is the floor for the watchdog tick.
	minStallCheck = 10 * time.Millisecond
)

// Config describes the scanner process and how it is supervised.
type Config struct {
	Name   string // log label
	Binary string
	Args   []string

	// Env is appended to the gateway's own environment.
	Env     []string
	WorkDir string

	// RestartOnFailure restarts the process after an exit not requested by Stop.
	RestartOnFailure bool

	// RestartDelay is the first backoff delay. It doubles per consecutive
	// failure up to MaxRestartDelay.
	RestartDelay    time.Duration
	MaxRestartDelay time.Duration

	// StableThreshold is how long a run must last for the backoff and the
	// attempt counter to reset.
	StableThreshold time.Duration

	// MaxRestartAttempts limits consecutive restart attempts. 0 means unlimited.
	MaxRestartAttempts int

	// GracefulTimeout is how long to wait after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration

	// StallAfter kills the process when stdout is silent for this long.
	// 0 disables the watchdog.
	StallAfter time.Duration

	// MaxLineSize bounds one stdout line. Longer lines stop line delivery
	// until the next restart.
	MaxLineSize int

	// OnLine receives every non-empty stdout line, trimmed. The slice is
	// owned by the callee.
	OnLine func(line []byte)

	// OnStart runs after every successful start, restarts included.
	OnStart func()

	// OnStop runs after every exit with the Wait error, nil after Stop.
	OnStop func(err error)
}

// DefaultConfig returns a restarting Config with the standard backoff.
func DefaultConfig(name, binary string, args []string) Config {
	return Config{
		Name:               name,
		Binary:             binary,
		Args:               args,
		RestartOnFailure:   true,
		RestartDelay:       5 * time.Second,
		MaxRestartDelay:    5 * time.Minute,
		StableThreshold:    2 * time.Minute,
		MaxRestartAttempts: 10,
		GracefulTimeout:    10 * time.Second,
	}
}

// Logger is satisfied by *logging.Logger and *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards everything.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// child is one run of the process.
type child struct {
	cmd  *exec.Cmd
	exit chan error // receives the Wait result once
}

// Manager runs one subprocess, streams its stdout lines and restarts it
// with backoff when it exits or stalls.
type Manager struct {
	config Config
	logger Logger

	mu            sync.RWMutex
	cmd           *exec.Cmd
	status        Status
	active        bool // monitor goroutine running
	restartCount  int
	lastError     error
	startTime     time.Time
	stopRequested bool

	lines        atomic.Uint64
	lastActivity atomic.Int64 // unix nanos of the last stdout line or start

	stop chan struct{}
	done chan struct{}
}

// NewManager returns a stopped Manager; zero durations take defaults.
func NewManager(cfg Config) *Manager {
	if cfg.RestartDelay == 0 {
		cfg.RestartDelay = 5 * time.Second
	}
	if cfg.MaxRestartDelay == 0 {
		cfg.MaxRestartDelay = 5 * time.Minute
	}
	if cfg.MaxRestartDelay < cfg.RestartDelay {
		cfg.MaxRestartDelay = cfg.RestartDelay
	}
	if cfg.StableThreshold == 0 {
		cfg.StableThreshold = 2 * time.Minute
	}
	if cfg.GracefulTimeout == 0 {
		cfg.GracefulTimeout = 10 * time.Second
	}
	if cfg.MaxLineSize <= 0 {
		cfg.MaxLineSize = defaultMaxLineSize
	}

	return &Manager{
		config: cfg,
		logger: noopLogger{},
		status: StatusStopped,
	}
}

// SetLogger replaces the logger. nil silences the manager.
func (m *Manager) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	m.logger = logger
}

// Start launches the process and its monitor goroutine. Only the first
// launch is reported; later failures go through the restart policy.
// Cancelling ctx stops the process like Stop.
func (m *Manager) Start(ctx context.Context) error {
	if m.config.Binary == "" {
		return ErrNoBinary
	}

	m.mu.Lock()
	if m.active {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, m.config.Name)
	}
	m.status = StatusStarting
	m.stopRequested = false
	m.active = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	m.mu.Unlock()

	c, err := m.startProcess(ctx)
	if err != nil {
		m.mu.Lock()
		m.status = StatusFailed
		m.lastError = err
		m.active = false
		close(m.done)
		m.mu.Unlock()
		return err
	}

	go m.monitor(ctx, c)

	return nil
}

// startProcess launches one run and the goroutines that drain its pipes.
func (m *Manager) startProcess(ctx context.Context) (*child, error) {
	m.logger.Debug("launching process", "name", m.config.Name, "binary", m.config.Binary, "args", m.config.Args)

	cmd := exec.CommandContext(ctx, m.config.Binary, m.config.Args...) //nolint:gosec // binary comes from operator config

	// Own process group: scanner wrappers often fork helpers (hcitool, btmon).
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return signalGroup(cmd, syscall.SIGTERM)
	}
	cmd.WaitDelay = m.config.GracefulTimeout

	if m.config.Env != nil {
		cmd.Env = append(os.Environ(), m.config.Env...)
	}
	if m.config.WorkDir != "" {
		cmd.Dir = m.config.WorkDir
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", m.config.Name, err)
	}

	now := time.Now()
	m.lastActivity.Store(now.UnixNano())

	m.mu.Lock()
	m.cmd = cmd
	m.status = StatusRunning
	m.startTime = now
	m.mu.Unlock()

	// Pipes must be drained before Wait closes them.
	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		m.readLines(stdout)
	}()
	go func() {
		defer readers.Done()
		m.captureStderr(stderr)
	}()

	c := &child{cmd: cmd, exit: make(chan error, 1)}
	go func() {
		readers.Wait()
		c.exit <- cmd.Wait()
	}()

	m.logger.Info("process running", "name", m.config.Name, "pid", cmd.Process.Pid)

	if m.config.OnStart != nil {
		m.config.OnStart()
	}

	return c, nil
}

// readLines delivers stdout lines to OnLine.
func (m *Manager) readLines(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), m.config.MaxLineSize)

	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		m.lines.Add(1)
		m.lastActivity.Store(time.Now().UnixNano())

		if m.config.OnLine != nil {
			m.config.OnLine(bytes.Clone(line))
		}
	}

	if err := sc.Err(); err != nil {
		m.logger.Warn("stdout line delivery stopped",
			"name", m.config.Name,
			"error", err,
		)
		// Keep the pipe drained so the child never blocks on write.
		_, _ = io.Copy(io.Discard, r)
	}
}

// captureStderr logs each stderr line.
func (m *Manager) captureStderr(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), m.config.MaxLineSize)
	for sc.Scan() {
		m.logger.Debug("process output",
			"name", m.config.Name,
			"stream", "stderr",
			"output", sc.Text(),
		)
	}
	_, _ = io.Copy(io.Discard, r)
}

// waitForExitOrStall waits for the process to exit or for its stdout to go
// silent for longer than StallAfter, in which case the process group is
// killed.
func (m *Manager) waitForExitOrStall(c *child) error {
	if m.config.StallAfter <= 0 {
		return <-c.exit
	}

	tick := m.config.StallAfter / 4
	if tick < minStallCheck {
		tick = minStallCheck
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case err := <-c.exit:
			return err

		case <-ticker.C:
			idle := time.Since(time.Unix(0, m.lastActivity.Load()))
			if idle < m.config.StallAfter {
				continue
			}

			m.logger.Error("process stalled, killing",
				"name", m.config.Name,
				"idle", idle,
			)
			if err := signalGroup(c.cmd, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
				m.logger.Warn("failed to kill stalled process", "name", m.config.Name, "error", err)
			}

			select {
			case <-c.exit:
			case <-time.After(killWaitTimeout):
				m.logger.Error("stalled process did not exit after kill", "name", m.config.Name)
			}
			return fmt.Errorf("%w (%s)", ErrStalled, m.config.StallAfter)
		}
	}
}

// monitor owns the process after Start: it waits for each run to end and
// applies the restart policy until Stop, ctx or the policy ends it.
func (m *Manager) monitor(ctx context.Context, c *child) {
	defer func() {
		m.mu.Lock()
		m.active = false
		m.mu.Unlock()
		close(m.done)
	}()

	failures := 0
	for {
		started := m.StartTime()
		err := m.waitForExitOrStall(c)

		if m.isStopRequested() || ctx.Err() != nil {
			m.logger.Info("process stopped", "name", m.config.Name)
			m.setStatus(StatusStopped)
			if m.config.OnStop != nil {
				m.config.OnStop(nil)
			}
			return
		}

		if err == nil {
			err = errors.New("exited with status 0")
		}
		m.logger.Warn("process exited", "name", m.config.Name, "error", err)

		m.mu.Lock()
		m.lastError = err
		m.status = StatusFailed
		m.mu.Unlock()

		if m.config.OnStop != nil {
			m.config.OnStop(err)
		}

		if !m.config.RestartOnFailure {
			m.logger.Info("not restarting process", "name", m.config.Name, "reason", "restart disabled")
			return
		}

		if time.Since(started) >= m.config.StableThreshold {
			failures = 0
		}

		next, ok := m.restart(ctx, &failures)
		if !ok {
			return
		}
		c = next
	}
}

// restart waits out the backoff and starts the process again, retrying
// failed starts. It reports false when supervision should end.
func (m *Manager) restart(ctx context.Context, failures *int) (*child, bool) {
	for {
		*failures++
		if m.config.MaxRestartAttempts > 0 && *failures > m.config.MaxRestartAttempts {
			m.logger.Error("giving up on process", "name", m.config.Name, "attempts", *failures-1)
			return nil, false
		}

		delay := m.calculateBackoffDelay(*failures)
		m.logger.Info("process restart scheduled", "name", m.config.Name, "attempt", *failures, "delay", delay)

		select {
		case <-ctx.Done():
			m.logger.Info("not restarting process", "name", m.config.Name, "reason", ctx.Err())
			m.setStatus(StatusStopped)
			return nil, false
		case <-m.stop:
			m.setStatus(StatusStopped)
			return nil, false
		case <-time.After(delay):
		}

		m.mu.Lock()
		m.restartCount++
		m.mu.Unlock()

		c, err := m.startProcess(ctx)
		if err == nil {
			return c, true
		}

		m.logger.Error("process restart failed", "name", m.config.Name, "error", err)
		m.mu.Lock()
		m.lastError = err
		m.mu.Unlock()
	}
}

// calculateBackoffDelay returns RestartDelay doubled per consecutive failure, capped.
func (m *Manager) calculateBackoffDelay(failures int) time.Duration {
	delay := m.config.RestartDelay
	for i := 1; i < failures && delay < m.config.MaxRestartDelay; i++ {
		delay *= 2
	}
	return min(delay, m.config.MaxRestartDelay)
}

// Stop ends supervision. A running process group gets SIGTERM, then SIGKILL
// after GracefulTimeout. Stop returns once the monitor has exited and may be
// called more than once.
func (m *Manager) Stop() error {
	m.mu.Lock()
	done := m.done
	if done == nil {
		m.mu.Unlock()
		return nil
	}
	if m.stopRequested {
		m.mu.Unlock()
		<-done
		return nil
	}
	m.stopRequested = true
	close(m.stop)
	cmd := m.cmd
	running := m.status == StatusRunning
	m.mu.Unlock()

	if !running || cmd == nil || cmd.Process == nil {
		<-done
		return nil
	}

	m.logger.Info("stopping process", "name", m.config.Name, "pid", cmd.Process.Pid)

	if err := signalGroup(cmd, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		m.logger.Warn("SIGTERM failed", "name", m.config.Name, "error", err)
	}

	select {
	case <-done:
		m.logger.Debug("process exited after SIGTERM", "name", m.config.Name)
		return nil
	case <-time.After(m.config.GracefulTimeout):
		m.logger.Warn("process ignored SIGTERM, killing", "name", m.config.Name, "waited", m.config.GracefulTimeout)
	}

	if err := signalGroup(cmd, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("SIGKILL %s: %w", m.config.Name, err)
	}

	<-done
	m.logger.Warn("process killed", "name", m.config.Name)

	return nil
}

// signalGroup signals the process group created via Setpgid.
func signalGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, sig)
}

func (m *Manager) isStopRequested() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stopRequested
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

// Status returns the lifecycle state.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// IsRunning reports whether a run is in progress.
func (m *Manager) IsRunning() bool {
	return m.Status() == StatusRunning
}

// Done is closed when supervision ends. Nil before the first Start.
func (m *Manager) Done() <-chan struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.done
}

// LastError is the most recent exit or start error.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

// RestartCount counts restart attempts since Start.
func (m *Manager) RestartCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.restartCount
}

// StartTime returns when the current run started, or zero if not running.
func (m *Manager) StartTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status != StatusRunning {
		return time.Time{}
	}
	return m.startTime
}

// Uptime is the age of the current run, 0 when not running.
func (m *Manager) Uptime() time.Duration {
	start := m.StartTime()
	if start.IsZero() {
		return 0
	}
	return time.Since(start)
}

// PID of the current run, 0 when not running.
func (m *Manager) PID() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status == StatusRunning && m.cmd != nil && m.cmd.Process != nil {
		return m.cmd.Process.Pid
	}
	return 0
}

// Lines returns how many stdout lines were delivered.
func (m *Manager) Lines() uint64 {
	return m.lines.Load()
}

// Stats is a snapshot of the manager.
type Stats struct {
	Name         string        `json:"name"`
	Status       Status        `json:"status"`
	PID          int           `json:"pid,omitempty"`
	Uptime       time.Duration `json:"uptime,omitempty"`
	RestartCount int           `json:"restart_count"`
	Lines        uint64        `json:"lines"`
	LastError    string        `json:"last_error,omitempty"`
}

// Stats returns a consistent snapshot.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		Name:         m.config.Name,
		Status:       m.status,
		RestartCount: m.restartCount,
		Lines:        m.lines.Load(),
	}

	if m.status == StatusRunning {
		if m.cmd != nil && m.cmd.Process != nil {
			stats.PID = m.cmd.Process.Pid
		}
		stats.Uptime = time.Since(m.startTime)
	}

	if m.lastError != nil {
		stats.LastError = m.lastError.Error()
	}

	return stats
}
