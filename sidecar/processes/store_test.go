package processes

import (
	"errors"
	"testing"
)

// fakeChild simulates a backend process without touching the OS.
type fakeChild struct {
	pid       int
	exited    bool
	waitErr   error
	waitCalls int
	kills     int
	waits     int
}

func (c *fakeChild) Pid() int { return c.pid }

func (c *fakeChild) TryWait() (bool, error) {
	c.waitCalls++
	if c.waitErr != nil {
		return false, c.waitErr
	}
	return c.exited, nil
}

func (c *fakeChild) Kill() error {
	c.kills++
	return nil
}

func (c *fakeChild) Wait() error {
	c.waits++
	c.exited = true
	return nil
}

func (c *fakeChild) ExitStatus() string {
	if c.exited {
		return "exit status 0"
	}
	return "running"
}

// recordedEvent is one call captured by fakeRecorder.
type recordedEvent struct {
	kind     string
	launchID string
	pid      int
	port     int
	detail   string
}

type fakeRecorder struct {
	events []recordedEvent
}

func (r *fakeRecorder) LogLaunch(launchID string, pid, port int, entryPoint string) error {
	r.events = append(r.events, recordedEvent{kind: "launch", launchID: launchID, pid: pid, port: port, detail: entryPoint})
	return nil
}

func (r *fakeRecorder) LogLaunchFailed(reason string) error {
	r.events = append(r.events, recordedEvent{kind: "launch_failed", detail: reason})
	return nil
}

func (r *fakeRecorder) LogExited(launchID string, pid int, status string) error {
	r.events = append(r.events, recordedEvent{kind: "exited", launchID: launchID, pid: pid, detail: status})
	return nil
}

func (r *fakeRecorder) LogTerminated(launchID string, pid int) error {
	r.events = append(r.events, recordedEvent{kind: "terminated", launchID: launchID, pid: pid})
	return nil
}

func (r *fakeRecorder) kinds() []string {
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.kind)
	}
	return out
}

func TestAcquireIfAbsentEmptySlot(t *testing.T) {
	slot := NewProcessSlot(nil, nil)
	if err := slot.AcquireIfAbsent(); err != nil {
		t.Fatalf("AcquireIfAbsent on empty slot returned error: %v", err)
	}
	if _, state, ok := slot.Snapshot(); ok || state != StateAbsent {
		t.Errorf("expected empty slot, got state %s", state)
	}
}

func TestAcquireIfAbsentRunningChild(t *testing.T) {
	slot := NewProcessSlot(nil, nil)
	child := &fakeChild{pid: 101}
	slot.Install(newTrackedChild(child, LaunchInfo{LaunchID: "a", Port: 3001}))

	for i := 0; i < 3; i++ {
		err := slot.AcquireIfAbsent()
		if !errors.Is(err, ErrAlreadyRunning) {
			t.Fatalf("attempt %d: expected ErrAlreadyRunning, got %v", i, err)
		}
		if err.Error() != "Backend is already running" {
			t.Errorf("unexpected message %q", err.Error())
		}
	}

	info, state, ok := slot.Snapshot()
	if !ok || state != StateRunning || info.PID != 101 {
		t.Errorf("running child should stay tracked, got ok=%v state=%s pid=%d", ok, state, info.PID)
	}
	if child.waitCalls != 3 {
		t.Errorf("expected 3 liveness checks, got %d", child.waitCalls)
	}
}

func TestAcquireIfAbsentClearsExitedChild(t *testing.T) {
	rec := &fakeRecorder{}
	slot := NewProcessSlot(nil, rec)
	slot.Install(newTrackedChild(&fakeChild{pid: 102, exited: true}, LaunchInfo{LaunchID: "gone"}))

	if err := slot.AcquireIfAbsent(); err != nil {
		t.Fatalf("AcquireIfAbsent returned error for exited child: %v", err)
	}
	if _, _, ok := slot.Snapshot(); ok {
		t.Error("exited child should have been cleared")
	}
	if len(rec.events) != 1 || rec.events[0].kind != "exited" || rec.events[0].launchID != "gone" {
		t.Errorf("expected one exited event for launch 'gone', got %+v", rec.events)
	}
}

func TestAcquireIfAbsentResetsOnWaitError(t *testing.T) {
	slot := NewProcessSlot(nil, nil)
	slot.Install(newTrackedChild(&fakeChild{pid: 103, waitErr: errors.New("no child processes")}, LaunchInfo{}))

	if err := slot.AcquireIfAbsent(); err != nil {
		t.Fatalf("wait error should reset the slot, got %v", err)
	}
	if _, _, ok := slot.Snapshot(); ok {
		t.Error("slot should be empty after a failed liveness check")
	}
}

func TestDrain(t *testing.T) {
	slot := NewProcessSlot(nil, nil)

	if slot.Drain(func(*trackedChild) { t.Fatal("callback must not run on empty slot") }) {
		t.Error("Drain on empty slot reported a child")
	}

	child := &fakeChild{pid: 104}
	slot.Install(newTrackedChild(child, LaunchInfo{}))
	var seen ProcessState
	present := slot.Drain(func(tc *trackedChild) {
		tc.state = StateTerminating
		seen = tc.state
		tc.child.Kill()
		tc.child.Wait()
	})
	if !present {
		t.Fatal("Drain did not report the tracked child")
	}
	if seen != StateTerminating {
		t.Errorf("callback saw state %s", seen)
	}
	if _, state, ok := slot.Snapshot(); ok || state != StateAbsent {
		t.Errorf("slot should be Absent after Drain, got %s", state)
	}
}

func TestDrainClearsSlotWhenCallbackPanics(t *testing.T) {
	slot := NewProcessSlot(nil, nil)
	slot.Install(newTrackedChild(&fakeChild{pid: 105}, LaunchInfo{}))

	func() {
		defer func() { recover() }()
		slot.Drain(func(*trackedChild) { panic("boom") })
	}()

	if _, _, ok := slot.Snapshot(); ok {
		t.Error("slot should be cleared even if the drain callback panics")
	}
	// The lock must have been released.
	if err := slot.AcquireIfAbsent(); err != nil {
		t.Errorf("AcquireIfAbsent after panic: %v", err)
	}
}

func TestProcessStateString(t *testing.T) {
	tests := map[ProcessState]string{
		StateAbsent:      "Absent",
		StateRunning:     "Running",
		StateTerminating: "Terminating",
		ProcessState(42): "InvalidState",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("ProcessState(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}
