package repository

import "github.com/dazdaz/chirp-demo-enhanced/pkg/logger"

// Option applies a configuration option to HighScores.
type Option func(*HighScores)

// WithLimit sets how many entries a board keeps.
func WithLimit(limit int) Option {
	return func(h *HighScores) {
		if limit > 0 {
			h.limit = limit
		}
	}
}

// WithLogger sets the logger used for storage warnings.
func WithLogger(l logger.Logger) Option {
	return func(h *HighScores) {
		if l != nil {
			h.log = l
		}
	}
}
