package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors shared by the connectors and the pipeline
var (
	ErrAuth        = errors.New("authentication failed")
	ErrWithdrawn   = errors.New("posting withdrawn")
	ErrRateLimited = errors.New("rate limited")
	ErrCircuitOpen = errors.New("circuit open")
	ErrBlocked     = errors.New("blocked by an anti-bot challenge")
	ErrNoSources   = errors.New("no source produced output")
	ErrEmptyTable  = errors.New("refusing to write an empty table")
)

// CustomError represents a custom application error
type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Err     error  `json:"-"`
}

func (e *CustomError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}
	return e.Message
}

func (e *CustomError) Unwrap() error {
	return e.Err
}

// Common error constructors
func NewValidationError(detail string) *CustomError {
	return &CustomError{
		Code:    http.StatusBadRequest,
		Message: "Validation failed",
		Detail:  detail,
	}
}

func NewTimeoutError(message string) *CustomError {
	return &CustomError{
		Code:    http.StatusRequestTimeout,
		Message: message,
	}
}

// Scraping specific errors
func NewScrapingError(detail string) *CustomError {
	return &CustomError{
		Code:    http.StatusUnprocessableEntity,
		Message: "Scraping failed",
		Detail:  detail,
	}
}

// NewAuthError wraps ErrAuth so chain runners can stop on it
func NewAuthError(detail string) *CustomError {
	return &CustomError{
		Code:    http.StatusUnauthorized,
		Message: "Authentication failed",
		Detail:  detail,
		Err:     ErrAuth,
	}
}

// NewWithdrawnError returns an error when the detail page says the posting is gone
func NewWithdrawnError(detail string) *CustomError {
	return &CustomError{
		Code:    http.StatusGone,
		Message: "Posting withdrawn",
		Detail:  detail,
		Err:     ErrWithdrawn,
	}
}

// NewBlockedError reports a challenge page served instead of the content
func NewBlockedError(host string) *CustomError {
	return &CustomError{
		Code:    http.StatusForbidden,
		Message: "Blocked by anti-bot challenge",
		Detail:  host,
		Err:     ErrBlocked,
	}
}

func NewStorageError(detail string, err error) *CustomError {
	return &CustomError{
		Code:    http.StatusInternalServerError,
		Message: "Storage failed",
		Detail:  detail,
		Err:     err,
	}
}

// IsChainFatal reports whether err must stop the chain instead of skipping one record
func IsChainFatal(err error) bool {
	return errors.Is(err, ErrAuth)
}
