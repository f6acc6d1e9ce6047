package ble

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-radio/internal/process"
)

// CommandSource runs a local scanner process and reads one scan message per
// stdout line. The process is restarted with backoff when it exits and, with
// a stall timeout set, when it goes quiet.
type CommandSource struct {
	cfg process.Config

	mu     sync.Mutex
	mgr    *process.Manager
	closed bool

	logger Logger
}

// CommandOptions configures a CommandSource.
type CommandOptions struct {
	// Command is the binary followed by its arguments.
	Command []string

	// StallAfter restarts a silent scanner. 0 disables the watchdog.
	StallAfter time.Duration

	// RestartDelay is the first restart backoff delay. Default 5s.
	RestartDelay time.Duration
}

// NewCommandSource creates a source for opts.Command. It does not start the
// process.
func NewCommandSource(opts CommandOptions) *CommandSource {
	var binary string
	var args []string
	if len(opts.Command) > 0 {
		binary, args = opts.Command[0], opts.Command[1:]
	}

	cfg := process.DefaultConfig("ble-scanner", binary, args)
	// A scanner is the only BLE input on such hosts; keep retrying.
	cfg.MaxRestartAttempts = 0
	cfg.StallAfter = opts.StallAfter
	if opts.RestartDelay > 0 {
		cfg.RestartDelay = opts.RestartDelay
	}

	return &CommandSource{cfg: cfg}
}

// SetLogger sets the logger for the source and its process manager.
func (s *CommandSource) SetLogger(logger Logger) {
	s.mu.Lock()
	s.logger = logger
	s.mu.Unlock()
}

// Start launches the scanner and hands every stdout line to handler.
func (s *CommandSource) Start(ctx context.Context, handler func(payload []byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSourceClosed
	}

	cfg := s.cfg
	cfg.OnLine = handler
	mgr := process.NewManager(cfg)
	if s.logger != nil {
		mgr.SetLogger(s.logger)
	}

	if err := mgr.Start(ctx); err != nil {
		return err
	}
	s.mgr = mgr
	return nil
}

// IsConnected reports whether the scanner process is running.
func (s *CommandSource) IsConnected() bool {
	if mgr := s.manager(); mgr != nil {
		return mgr.IsRunning()
	}
	return false
}

// ConnectedSince returns when the current scanner run started.
func (s *CommandSource) ConnectedSince() time.Time {
	if mgr := s.manager(); mgr != nil {
		return mgr.StartTime()
	}
	return time.Time{}
}

// Address returns the scanner command line prefixed with "exec:".
func (s *CommandSource) Address() string {
	return "exec:" + strings.TrimSpace(s.cfg.Binary+" "+strings.Join(s.cfg.Args, " "))
}

// Stats returns the scanner process statistics.
func (s *CommandSource) Stats() process.Stats {
	if mgr := s.manager(); mgr != nil {
		return mgr.Stats()
	}
	return process.Stats{Name: s.cfg.Name, Status: process.StatusStopped}
}

// Close stops the scanner process. Safe to call more than once.
func (s *CommandSource) Close() error {
	s.mu.Lock()
	s.closed = true
	mgr := s.mgr
	s.mu.Unlock()

	if mgr == nil {
		return nil
	}
	return mgr.Stop()
}

func (s *CommandSource) manager() *process.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mgr
}
