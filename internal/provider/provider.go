package provider

import (
	"context"
	"errors"
	"fmt"
)

// Client is the remote conversational video provider
type Client interface {
	CreateSession(ctx context.Context, req CreateRequest) (*Conversation, error)
	EndSession(ctx context.Context, id string) error
}

// CreateRequest describes a conversation to open upstream
type CreateRequest struct {
	ReplicaID      string
	Personality    string
	CeilingSeconds int
}

// Conversation is a session created by the provider
type Conversation struct {
	ID     string
	URL    string
	Status string
}

// ErrorKind classifies provider failures
type ErrorKind string

const (
	KindUnauthorized    ErrorKind = "unauthorized"
	KindRateLimited     ErrorKind = "rate_limited"
	KindConflict        ErrorKind = "conflict"
	KindServerError     ErrorKind = "server_error"
	KindInvalidResponse ErrorKind = "invalid_response"
	KindNetwork         ErrorKind = "network"
)

// Error is a classified provider failure
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider %s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("provider %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a provider error, or "" for anything else
func KindOf(err error) ErrorKind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return ""
}

// IsConflict reports whether the provider refused because a conversation
// is already active for the replica
func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}

// IsRetryable classifies provider errors for session creation retries.
// Unauthorized, Conflict and rejected requests are surfaced immediately.
func IsRetryable(err error) bool {
	var perr *Error
	if !errors.As(err, &perr) {
		return false
	}

	switch perr.Kind {
	case KindRateLimited, KindServerError, KindNetwork:
		return true
	case KindInvalidResponse:
		// A 4xx rejection will not change on retry; a garbled 2xx body might
		return perr.Status < 400 || perr.Status >= 500
	default:
		return false
	}
}
