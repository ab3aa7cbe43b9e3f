//go:build windows

package processes

import (
	"os/exec"
)

// osChild on Windows has no non-blocking wait, so a goroutine owns cmd.Wait and
// TryWait checks whether it has returned.
type osChild struct {
	cmd     *exec.Cmd
	pid     int
	done    chan struct{}
	waitErr error
}

func configureCommand(cmd *exec.Cmd) {}

func newOSChild(cmd *exec.Cmd) Child {
	c := &osChild{
		cmd:  cmd,
		pid:  cmd.Process.Pid,
		done: make(chan struct{}),
	}
	go func() {
		c.waitErr = cmd.Wait()
		close(c.done)
	}()
	return c
}

func (c *osChild) Pid() int {
	return c.pid
}

func (c *osChild) TryWait() (bool, error) {
	select {
	case <-c.done:
		return true, nil
	default:
		return false, nil
	}
}

func (c *osChild) Kill() error {
	select {
	case <-c.done:
		return nil
	default:
	}
	return c.cmd.Process.Kill()
}

func (c *osChild) Wait() error {
	<-c.done
	return nil
}

func (c *osChild) ExitStatus() string {
	select {
	case <-c.done:
	default:
		return "running"
	}
	if c.waitErr != nil {
		return c.waitErr.Error()
	}
	return "exit status 0"
}
