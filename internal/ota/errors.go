// internal/ota/errors.go
package ota

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionActive is returned when an upload is already being written.
	ErrSessionActive = errors.New("ota: update session already active")

	// ErrDelimiterNotFound means the multipart part headers never ended
	// within the header window; nothing was written.
	ErrDelimiterNotFound = errors.New("ota: multipart header delimiter not found")

	// ErrTooManyTimeouts means the body stalled past the retry budget.
	ErrTooManyTimeouts = errors.New("ota: too many read timeouts")
)

// ReadError is a fatal body read failure.
type ReadError struct {
	Offset int64
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("ota: read failed at byte %d: %v", e.Offset, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// ValidationError is returned by Finish when the image is unusable.
type ValidationError struct {
	Region string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ota: image in region %s rejected: %s", e.Region, e.Reason)
}
