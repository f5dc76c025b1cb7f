package session

import (
	"errors"
	"fmt"

	"github.com/goodtune/wellcore/internal/device"
)

var (
	// ErrAlreadyActive is returned by Start when the orchestrator is not idle
	ErrAlreadyActive = errors.New("a session is already active")

	// ErrAborted is returned by Start when End arrived while it was in flight
	ErrAborted = errors.New("session start aborted")

	// ErrUnknownSession is returned when a session id does not match the current session
	ErrUnknownSession = errors.New("unknown session")
)

// MediaUnavailableError reports that capture devices could not be acquired
type MediaUnavailableError struct {
	Reason device.Reason
	Err    error
}

func (e *MediaUnavailableError) Error() string {
	return fmt.Sprintf("media unavailable (%s): %v", e.Reason, e.Err)
}

func (e *MediaUnavailableError) Unwrap() error {
	return e.Err
}

// ProviderConflictError reports that the provider already has an active
// conversation for this replica
type ProviderConflictError struct {
	Err error
}

func (e *ProviderConflictError) Error() string {
	return fmt.Sprintf("provider conflict: %v", e.Err)
}

func (e *ProviderConflictError) Unwrap() error {
	return e.Err
}

// SessionCreateFailedError reports that the provider session could not be
// created within the retry budget
type SessionCreateFailedError struct {
	Message string
	Err     error
}

func (e *SessionCreateFailedError) Error() string {
	return "session create failed: " + e.Message
}

func (e *SessionCreateFailedError) Unwrap() error {
	return e.Err
}
