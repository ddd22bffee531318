package repository

import "errors"

// Sentinel kinds for high-score store errors.
var (
	ErrNotFound     = errors.New("key not found")
	ErrUnknownBoard = errors.New("unknown high-score board")
	ErrEmptyName    = errors.New("player name is empty")
	ErrClosed       = errors.New("store is closed")
)
