package sheets

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// RemoteError is a rejection returned by the remote spreadsheet service. Status follows HTTP
// semantics, so 429 means the caller is being rate limited and 503 that the service is unavailable.
type RemoteError struct {
	Operation string
	Status    int
	Message   string
}

func (err *RemoteError) Error() string {
	if err.Operation == "" {
		return fmt.Sprintf("remote error %d (%s): %s", err.Status, http.StatusText(err.Status), err.Message)
	}
	return fmt.Sprintf("%s failed with remote error %d (%s): %s", err.Operation, err.Status, http.StatusText(err.Status), err.Message)
}

func NewRemoteError(operation string, status int, format string, args ...interface{}) *RemoteError {
	return &RemoteError{
		Operation: operation,
		Status:    status,
		Message:   fmt.Sprintf(format, args...),
	}
}

// ErrorClass tells the retry wrapper what to do with an error.
type ErrorClass int

const (
	Permanent ErrorClass = iota
	Transient
)

func (c ErrorClass) String() string {
	if c == Transient {
		return "transient"
	}
	return "permanent"
}

// Classify returns Transient for rate-limit and server-unavailable rejections and Permanent for
// everything else, including context cancellation.
func Classify(err error) ErrorClass {
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		return Permanent
	}
	switch remoteErr.Status {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return Transient
	default:
		return Permanent
	}
}

func IsRetryable(err error) bool {
	return err != nil && Classify(err) == Transient
}
