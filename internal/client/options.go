package client

import (
	"net/http"
	"time"

	"github.com/dazdaz/chirp-demo-enhanced/pkg/logger"
)

const defaultTimeout = 30 * time.Second

// Option configures an API client.
type Option func(*API)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(a *API) {
		if c != nil {
			a.http = c
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(a *API) {
		if d > 0 {
			a.http.Timeout = d
		}
	}
}

// SessionOption configures a listen session.
type SessionOption func(*Session)

// WithEventHandler registers a callback run for every event the server sends,
// interim results included. It runs on the session's reader goroutine.
func WithEventHandler(fn func(Event)) SessionOption {
	return func(s *Session) { s.onEvent = fn }
}

// WithSessionLogger sets the session logger.
func WithSessionLogger(l logger.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}
