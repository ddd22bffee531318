package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrSessionClosed is returned when sending on a session that is no longer open.
	ErrSessionClosed = errors.New("session closed")
	// ErrInvalidWAV is returned for input that is not a decodable PCM WAV file.
	ErrInvalidWAV = errors.New("invalid wav input")
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chirp api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("chirp api: %d %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// newAPIError reads the server's {code, message} or {error} body.
func newAPIError(status int, body []byte) *APIError {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil {
		switch {
		case payload.Message != "":
			msg = payload.Message
		case payload.Error != "":
			msg = payload.Error
		}
	}
	return &APIError{Status: status, Message: msg}
}
