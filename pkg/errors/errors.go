package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions
var (
	ErrNoSource        = errors.New("no media source loaded")
	ErrInvalidFormat   = errors.New("unsupported audio format")
	ErrInvalidVolume   = errors.New("volume must be between 0.0 and 1.0")
	ErrInvalidPosition = errors.New("position must not be negative")
	ErrEngineClosed    = errors.New("engine closed")
)

// PlayerError wraps errors with additional context
type PlayerError struct {
	Op     string // Operation that failed
	Source string // Media source if applicable
	Err    error  // Underlying error
}

func (e *PlayerError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s failed for %s: %v", e.Op, e.Source, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *PlayerError) Unwrap() error {
	return e.Err
}

// NewPlayerError creates a new PlayerError
func NewPlayerError(op, source string, err error) *PlayerError {
	return &PlayerError{Op: op, Source: source, Err: err}
}
