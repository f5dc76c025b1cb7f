// Package device guards local capture devices (camera and microphone).
//
// A Guard hands out Handles; a Handle must be released on every exit path
// of the session that acquired it. Release is idempotent.
package device

import (
	"fmt"
)

// Kind identifies a capture device.
type Kind string

const (
	KindCamera     Kind = "camera"
	KindMicrophone Kind = "microphone"
)

// Reason classifies why a device could not be opened.
type Reason string

const (
	ReasonDenied      Reason = "denied"
	ReasonNotFound    Reason = "not_found"
	ReasonInUse       Reason = "in_use"
	ReasonUnsupported Reason = "unsupported"
)

// Error is returned by Acquire when a device is unavailable.
type Error struct {
	Reason Reason
	Device Kind
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Device, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s", e.Device, e.Reason)
}

// Unwrap returns the backend error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// EventType describes a change on a live handle.
type EventType string

const (
	EventTrackEnded        EventType = "track_ended"
	EventPermissionRevoked EventType = "permission_revoked"
)

// Event is delivered to Handle subscribers.
type Event struct {
	Type   EventType
	Device Kind
}

// Track is one open capture stream.
type Track interface {
	Kind() Kind
	Stop()
}

// eventSource is implemented by tracks that can report events after opening.
type eventSource interface {
	OnEvent(func(Event))
}
