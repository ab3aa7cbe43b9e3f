//go:build unix

package processes

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// osChild is a backend started with os/exec and reaped directly with wait4, so
// that liveness can be checked without blocking.
type osChild struct {
	cmd    *exec.Cmd
	pid    int
	reaped bool
	status unix.WaitStatus
}

// configureCommand puts the backend in its own process group so Kill reaches
// anything the runtime forks.
func configureCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func newOSChild(cmd *exec.Cmd) Child {
	return &osChild{cmd: cmd, pid: cmd.Process.Pid}
}

func (c *osChild) Pid() int {
	return c.pid
}

func (c *osChild) TryWait() (bool, error) {
	if c.reaped {
		return true, nil
	}
	var ws unix.WaitStatus
	for {
		wpid, err := unix.Wait4(c.pid, &ws, unix.WNOHANG, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("wait4 pid %d: %w", c.pid, err)
		}
		if wpid == 0 {
			return false, nil
		}
		c.markReaped(ws)
		return true, nil
	}
}

func (c *osChild) Kill() error {
	if c.reaped {
		return nil
	}
	// Negative pid signals the whole process group.
	if err := unix.Kill(-c.pid, unix.SIGKILL); err == nil {
		return nil
	}
	return c.cmd.Process.Kill()
}

func (c *osChild) Wait() error {
	if c.reaped {
		return nil
	}
	var ws unix.WaitStatus
	for {
		_, err := unix.Wait4(c.pid, &ws, 0, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if errors.Is(err, unix.ECHILD) {
			// Already reaped elsewhere; nothing left to collect.
			c.reaped = true
			c.cmd.Process.Release()
			return nil
		}
		if err != nil {
			return fmt.Errorf("wait4 pid %d: %w", c.pid, err)
		}
		c.markReaped(ws)
		return nil
	}
}

func (c *osChild) ExitStatus() string {
	if !c.reaped {
		return "running"
	}
	switch {
	case c.status.Exited():
		return fmt.Sprintf("exit status %d", c.status.ExitStatus())
	case c.status.Signaled():
		return fmt.Sprintf("signal: %s", c.status.Signal())
	default:
		return "unknown"
	}
}

func (c *osChild) markReaped(ws unix.WaitStatus) {
	c.reaped = true
	c.status = ws
	c.cmd.Process.Release()
}
