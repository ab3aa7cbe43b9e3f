package processes

import (
	"log/slog"
	"sync"
)

// ProcessSlot holds at most one tracked backend. All reads go through the lock
// as well as writes: TryWait reaps an exited child, so probing is not
// side-effect free.
type ProcessSlot struct {
	mu       sync.Mutex
	current  *trackedChild
	logger   *slog.Logger
	recorder EventRecorder
}

// NewProcessSlot creates an empty slot.
func NewProcessSlot(logger *slog.Logger, recorder EventRecorder) *ProcessSlot {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &ProcessSlot{
		logger:   logger.With("component", "ProcessSlot"),
		recorder: recorder,
	}
}

// AcquireIfAbsent succeeds when no live backend is tracked. An exited child is
// cleared here; a child whose liveness check fails is cleared too, so a broken
// handle can never block future launches.
//
// The caller installs the new handle with Install in a separate critical
// section. Launches are serialized by the host, so nothing can slip in between;
// concurrent callers would need a single critical section spanning both.
func (s *ProcessSlot) AcquireIfAbsent() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}

	tc := s.current
	exited, err := tc.child.TryWait()
	switch {
	case err != nil:
		s.logger.Warn("Failed to check backend process status", "pid", tc.info.PID, "error", err)
		s.current = nil
	case exited:
		status := tc.child.ExitStatus()
		s.logger.Info("Backend process exited", "pid", tc.info.PID, "port", tc.info.Port, "status", status)
		if err := s.recorder.LogExited(tc.info.LaunchID, tc.info.PID, status); err != nil {
			s.logger.Warn("Failed to record backend exit", "error", err)
		}
		s.current = nil
	default:
		return newLaunchError(ErrAlreadyRunning, "Backend is already running", nil)
	}
	return nil
}

// Install records a freshly spawned backend, replacing whatever cleared state
// the slot had.
func (s *ProcessSlot) Install(tc *trackedChild) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = tc
}

// Drain runs fn on the tracked backend while holding the lock, then empties the
// slot. It reports whether a backend was present.
func (s *ProcessSlot) Drain(fn func(tc *trackedChild)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return false
	}
	defer func() { s.current = nil }()
	fn(s.current)
	return true
}

// Snapshot returns the tracked launch without probing the process.
func (s *ProcessSlot) Snapshot() (LaunchInfo, ProcessState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return LaunchInfo{}, StateAbsent, false
	}
	return s.current.info, s.current.state, true
}
