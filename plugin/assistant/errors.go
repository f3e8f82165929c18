package assistant

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// FailureClass categorizes a client-layer failure for retry decisions.
// Classification happens once, in the client, so that the poller's retry
// policy is a pure decision over a value.
type FailureClass int

const (
	// FailureClassTransient indicates a temporary error that may be retried
	// within the run's retry budget. Examples: rate limits, 5xx, network.
	FailureClassTransient FailureClass = iota

	// FailureClassFatal indicates a non-retryable error.
	// Examples: bad request, auth failure, thread or run not found.
	FailureClassFatal
)

// String returns the string representation of FailureClass.
func (c FailureClass) String() string {
	switch c {
	case FailureClassTransient:
		return "transient"
	case FailureClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ClassifiedError wraps a client-layer error with its failure class.
type ClassifiedError struct {
	Class    FailureClass
	Original error
}

// Error returns a formatted error message.
func (c *ClassifiedError) Error() string {
	if c.Original == nil {
		return fmt.Sprintf("classified error: class=%s", c.Class)
	}
	return fmt.Sprintf("%s: %v", c.Class, c.Original)
}

// Unwrap returns the original error for errors.Is/As.
func (c *ClassifiedError) Unwrap() error {
	return c.Original
}

// IsTransient reports whether err carries a transient classification.
func IsTransient(err error) bool {
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Class == FailureClassTransient
	}
	return false
}

// transientErr wraps err as retryable.
func transientErr(err error) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Class: FailureClassTransient, Original: err}
}

// fatalErr wraps err as non-retryable.
func fatalErr(err error) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Class: FailureClassFatal, Original: err}
}

// isNetworkError checks if an error is network-related (transient).
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errMsg := strings.ToLower(err.Error())
	networkPatterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"network is unreachable",
		"no such host",
		"temporary failure",
		"dial tcp",
		"eof",
		"i/o timeout",
	}
	for _, pattern := range networkPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}

// TurnErrorCategory names the terminal failure category of one turn.
type TurnErrorCategory int

const (
	// TurnErrorTimeout means the run's retry budget or wall-clock ceiling
	// was exhausted, or the caller's deadline expired.
	TurnErrorTimeout TurnErrorCategory = iota

	// TurnErrorRemoteFatal means the remote service failed the turn in a
	// non-retryable way (auth, bad request, remote run failed/expired).
	TurnErrorRemoteFatal

	// TurnErrorToolFailure means a critical tool handler aborted the
	// action round.
	TurnErrorToolFailure

	// TurnErrorBusy means a turn was attempted while another run for the
	// same session is active. Caller error, not a system fault.
	TurnErrorBusy
)

// String returns the string representation of TurnErrorCategory.
func (c TurnErrorCategory) String() string {
	switch c {
	case TurnErrorTimeout:
		return "timeout"
	case TurnErrorRemoteFatal:
		return "remote_fatal"
	case TurnErrorToolFailure:
		return "tool_failure"
	case TurnErrorBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// TurnError is the typed failure returned to the inbound transport.
// The orchestrator never retries at this level.
type TurnError struct {
	Category TurnErrorCategory
	Err      error
}

// Error returns a formatted error message.
func (e *TurnError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("turn failed: %s", e.Category)
	}
	return fmt.Sprintf("turn failed (%s): %v", e.Category, e.Err)
}

// Unwrap returns the underlying error.
func (e *TurnError) Unwrap() error {
	return e.Err
}

func turnErr(category TurnErrorCategory, err error) *TurnError {
	return &TurnError{Category: category, Err: err}
}

// AsTurnError extracts a TurnError from an error chain.
func AsTurnError(err error) (*TurnError, bool) {
	var turnError *TurnError
	if errors.As(err, &turnError) {
		return turnError, true
	}
	return nil, false
}

// mapClientError converts a classified client error observed outside the
// polling loop into a turn error: transient failures become timeouts (the
// turn's budget is spent), everything else is a remote fatal.
func mapClientError(err error) *TurnError {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return turnErr(TurnErrorTimeout, err)
	}
	if IsTransient(err) {
		return turnErr(TurnErrorTimeout, err)
	}
	return turnErr(TurnErrorRemoteFatal, err)
}
