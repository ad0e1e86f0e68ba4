// Package sinkerrors contains generic errors shared by the sheet sink and its remote clients.
// Callers should inspect these with errors.As rather than comparing error strings, since most of
// them reach the caller wrapped with additional context.
//
// If multiple errors occur in some function (e.g., a worker failure and a drain timeout), that
// function should return an error of type multierror.Error from package
// github.com/hashicorp/go-multierror that encapsulates those individual errors.
package sinkerrors

import (
	"fmt"
	"time"
)

// ErrNotFound is a generic error to be returned whenever some resource isn't found.
// Type and Message are optional and are omitted from the error message if not provided.
type ErrNotFound struct {
	Type    string // Resource type, e.g., "document" or "sheet"
	Value   string // Resource name, e.g., the document id
	Message string // An optional message to include in the error message
}

func (err *ErrNotFound) Error() (s string) {
	if err.Type != "" {
		s = fmt.Sprintf("resource %q of type %q does not exist", err.Value, err.Type)
	} else {
		s = fmt.Sprintf("resource %q does not exist", err.Value)
	}
	if err.Message != "" {
		return s + fmt.Sprintf("; %s", err.Message)
	} else {
		return s
	}
}

// ErrInvalidArgument is a generic error to be returned on invalid argument.
// Message is optional and is omitted from the error message if not provided.
type ErrInvalidArgument struct {
	Name    string      // Name of the field referred to, e.g., "sheet"
	Value   interface{} // The invalid value that was provided
	Message string      // An optional message to include with the error message, e.g., explaining why the value is invalid
}

func (err *ErrInvalidArgument) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("value %q is invalid for field %q", err.Value, err.Name)
	} else {
		return fmt.Sprintf("value %q is invalid for field %q; %s", err.Value, err.Name, err.Message)
	}
}

// ErrMaxRetriesExceeded is returned once an operation has been retried the maximum number of times
// without succeeding. LastError holds the error returned by the final attempt.
type ErrMaxRetriesExceeded struct {
	Message   string
	LastError error
}

func (err *ErrMaxRetriesExceeded) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("max retries exceeded; last error: %s", err.LastError)
	}
	return fmt.Sprintf("%s; last error: %s", err.Message, err.LastError)
}

func (err *ErrMaxRetriesExceeded) Unwrap() error {
	return err.LastError
}

// ErrResourceExhausted indicates that a bounded wait for a shared resource, e.g. a worker slot
// during the final drain, ran out of time. It is fatal: outstanding work could not be completed.
type ErrResourceExhausted struct {
	Resource string
	Timeout  time.Duration
	Message  string
}

func (err *ErrResourceExhausted) Error() string {
	s := fmt.Sprintf("timed out after %s waiting for %s", err.Timeout, err.Resource)
	if err.Message != "" {
		s = s + fmt.Sprintf("; %s", err.Message)
	}
	return s
}

// ErrInvariantViolation signals a defect: some internal invariant was observed to be broken.
// It should never be returned by correct code, and is fatal if it is.
type ErrInvariantViolation struct {
	Invariant string
	Message   string
}

func (err *ErrInvariantViolation) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("invariant violated: %s", err.Invariant)
	}
	return fmt.Sprintf("invariant violated: %s; %s", err.Invariant, err.Message)
}
