package config

import "errors"

// Sentinel errors for configuration validation.
var (
	// ErrInvalidBackend indicates an unknown or unusable media backend.
	ErrInvalidBackend = errors.New("invalid backend")

	// ErrInvalidWorkers indicates a worker count outside the valid range.
	ErrInvalidWorkers = errors.New("worker count out of range")

	// ErrInvalidLimit indicates a negative scan limit.
	ErrInvalidLimit = errors.New("scan limit invalid")

	// ErrInvalidOutput indicates an unknown output mode.
	ErrInvalidOutput = errors.New("invalid output mode")

	// ErrInvalidServe indicates invalid HTTP service settings.
	ErrInvalidServe = errors.New("serve configuration invalid")
)
