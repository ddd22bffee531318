package worker

import (
	"github.com/dazdaz/chirp-demo-enhanced/pkg/logger"
)

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithName sets the pool name used in worker log names.
func WithName(name string) Option {
	return func(p *Pool) {
		if name != "" {
			p.name = name
		}
	}
}

// WithBacklog bounds the number of submitted jobs waiting for a worker.
func WithBacklog(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.backlog = n
		}
	}
}

// WithLogger sets a custom logger for the pool.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}
