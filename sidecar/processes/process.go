package processes

import (
	"time"
)

// ProcessState represents the supervised backend's lifecycle state as seen by
// the Supervisor.
type ProcessState int

const (
	// StateAbsent means no backend is tracked.
	StateAbsent ProcessState = iota
	// StateRunning means a backend was spawned and has not been seen to exit.
	StateRunning
	// StateTerminating means the lifecycle guard is killing and reaping the backend.
	StateTerminating
)

// String returns a string representation of the ProcessState.
func (ps ProcessState) String() string {
	switch ps {
	case StateAbsent:
		return "Absent"
	case StateRunning:
		return "Running"
	case StateTerminating:
		return "Terminating"
	default:
		return "InvalidState"
	}
}

// Child is a handle to a spawned backend process. Implementations are not
// required to be safe for concurrent use; the ProcessSlot serializes access.
type Child interface {
	// Pid returns the OS process id.
	Pid() int
	// TryWait reaps the process if it has exited, without blocking.
	TryWait() (exited bool, err error)
	// Kill requests immediate termination.
	Kill() error
	// Wait blocks until the process has exited and been reaped.
	Wait() error
	// ExitStatus describes how the process ended, once reaped.
	ExitStatus() string
}

// LaunchInfo describes the currently tracked backend launch.
type LaunchInfo struct {
	LaunchID   string
	PID        int
	Port       int
	EntryPoint string
	LogPath    string
	StartedAt  time.Time
	Token      string // Empty unless launch tokens are enabled.
}

// trackedChild is what the ProcessSlot holds: the handle plus its launch metadata.
type trackedChild struct {
	child Child
	info  LaunchInfo
	state ProcessState
}

func newTrackedChild(child Child, info LaunchInfo) *trackedChild {
	info.PID = child.Pid()
	return &trackedChild{
		child: child,
		info:  info,
		state: StateRunning,
	}
}
