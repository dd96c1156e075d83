package core

import (
	"errors"
	"fmt"
)

// Error codes for the hard-failure cases surfaced to callers.
const (
	ErrCodeAuthFailed  = "auth_failed"
	ErrCodeCheckpoint  = "checkpoint"
	ErrCodeNavigation  = "navigation"
	ErrCodeBrowser     = "browser"
	ErrCodeBudget      = "budget"
	ErrCodeQueueClosed = "queue_closed"
	ErrCodeBadRequest  = "bad_request"
)

// ScrapeError carries a stable code alongside the underlying cause so the
// API layer can map failures to responses without string matching.
type ScrapeError struct {
	Code    string
	Message string
	Err     error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a coded error wrapping an optional cause.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// ErrorCode returns the code carried by err, or an empty string when err
// carries none.
func ErrorCode(err error) string {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
