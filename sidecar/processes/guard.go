package processes

// Shutdown is the lifecycle guard. It kills the tracked backend, blocks until
// it has been reaped and empties the slot. Call it once as the host exits; a
// second call finds the slot empty and does nothing. It never panics.
func (s *Supervisor) Shutdown() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Backend shutdown panicked", "panic", r)
		}
	}()

	present := s.slot.Drain(func(tc *trackedChild) {
		tc.state = StateTerminating
		pid := tc.info.PID
		s.logger.Info("Killing backend process", "pid", pid, "port", tc.info.Port)

		if err := tc.child.Kill(); err != nil {
			s.logger.Warn("Failed to kill backend process", "pid", pid, "error", err)
		}
		if err := tc.child.Wait(); err != nil {
			s.logger.Warn("Failed to reap backend process", "pid", pid, "error", err)
		}

		if err := s.recorder.LogTerminated(tc.info.LaunchID, pid); err != nil {
			s.logger.Warn("Failed to record backend termination", "error", err)
		}
	})
	if !present {
		s.logger.Debug("No backend to stop")
	}
}
