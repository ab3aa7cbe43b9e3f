package processes

import (
	"fmt"
	"os"
	"path/filepath"
)

const DefaultLogFileName = "backend.log"

// logSink is the pair of handles the backend writes to. Both refer to the same
// open file description, so appends from stdout and stderr interleave without
// clobbering each other.
type logSink struct {
	path   string
	stdout *os.File
	stderr *os.File
}

// openLogSink creates dataDir if needed and opens dataDir/name for appending.
// The file is never truncated.
func openLogSink(dataDir, name string) (*logSink, error) {
	if dataDir == "" {
		return nil, newLaunchError(ErrLogSetupFailed, "Failed to resolve app data dir", nil)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, newLaunchError(ErrLogSetupFailed, "Failed to create app data dir", err)
	}

	path := filepath.Join(dataDir, name)
	stdout, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, newLaunchError(ErrLogSetupFailed, fmt.Sprintf("Failed to open %s", name), err)
	}

	stderr, err := duplicateFile(stdout)
	if err != nil {
		stdout.Close()
		return nil, newLaunchError(ErrLogSetupFailed, "Failed to clone log file handle", err)
	}

	return &logSink{
		path:   path,
		stdout: stdout,
		stderr: stderr,
	}, nil
}

// Close releases this process's copies of the handles. The backend keeps its
// own inherited descriptors.
func (ls *logSink) Close() error {
	errOut := ls.stdout.Close()
	var errErr error
	if ls.stderr != ls.stdout {
		errErr = ls.stderr.Close()
	}
	if errOut != nil {
		return errOut
	}
	return errErr
}
