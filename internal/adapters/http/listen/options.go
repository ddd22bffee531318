package listen

import (
	"net/http"

	"github.com/dazdaz/chirp-demo-enhanced/pkg/logger"
)

// Option configures a Handler.
type Option func(*Handler)

// WithQueueSize bounds the number of PCM frames buffered per session.
func WithQueueSize(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

// WithReadLimit caps the size of a single client message in bytes.
func WithReadLimit(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.readLimit = n
		}
	}
}

// WithCheckOrigin replaces the origin check used during the upgrade.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(h *Handler) {
		h.upgrader.CheckOrigin = fn
	}
}

// WithLogger sets the handler's logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}
