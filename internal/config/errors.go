package config

import "errors"

var (
	// ErrInvalidConfig wraps every Validate failure.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrLoadConfig wraps failures reading .env, the config file or the environment.
	ErrLoadConfig = errors.New("loading configuration")
)
