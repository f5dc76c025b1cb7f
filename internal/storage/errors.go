package storage

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

// IsTransient classifies storage errors for retry. Missing or duplicate
// records and cancelled contexts are permanent; network trouble, timeouts
// and errors wrapping ErrUnavailable are transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAlreadyExists):
		return false
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, ErrUnavailable):
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
