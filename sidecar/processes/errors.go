package processes

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyRunning     = errors.New("backend already running")
	ErrNoPortAvailable    = errors.New("no port available")
	ErrEntryPointNotFound = errors.New("entry point not found")
	ErrLogSetupFailed     = errors.New("log setup failed")
	ErrSpawnFailed        = errors.New("spawn failed")
)

// LaunchError is returned by every failed StartBackend call. Kind is one of the
// sentinel errors above; Err carries the underlying cause, if any.
type LaunchError struct {
	Kind    error
	Message string
	Err     error
}

// Error implements the error interface
func (e *LaunchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *LaunchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newLaunchError(kind error, message string, cause error) *LaunchError {
	return &LaunchError{
		Kind:    kind,
		Message: message,
		Err:     cause,
	}
}
