package notify

import "errors"

// ErrClosed is returned when arming a stopped sink
var ErrClosed = errors.New("notify: sink closed")
