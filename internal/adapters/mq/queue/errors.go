package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrFull   = errors.New("audio queue full")
	ErrClosed = errors.New("audio queue closed")
)
