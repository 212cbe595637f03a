package gateway

import (
	"errors"
	"fmt"
)

// ErrInvalidResponse is returned when a 2xx submission response carries no
// job id.
var ErrInvalidResponse = errors.New("API did not return a job ID")

// NotFoundError reports a poll for a job the server no longer knows.
// It is permanent: the job must be treated as failed.
type NotFoundError struct {
	JobID string
}

func (e *NotFoundError) Error() string {
	return "Job not found"
}

// ServerUnavailableError reports a transient poll failure: either the
// request never reached the server or the server answered with a 5xx.
// Polling continues on the next tick.
type ServerUnavailableError struct {
	StatusCode int
	Err        error
}

func (e *ServerUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("service unreachable: %v", e.Err)
	}
	return fmt.Sprintf("HTTP error %d", e.StatusCode)
}

func (e *ServerUnavailableError) Unwrap() error { return e.Err }

// RequestFailedError reports a permanent non-2xx response outside the
// distinguished 404 and 5xx classes.
type RequestFailedError struct {
	StatusCode int
	Message    string
}

func (e *RequestFailedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("HTTP error %d", e.StatusCode)
}

// DownloadFailedError reports a non-2xx response while fetching a result.
type DownloadFailedError struct {
	StatusCode int
}

func (e *DownloadFailedError) Error() string {
	return fmt.Sprintf("HTTP error %d", e.StatusCode)
}

// IsTransient reports whether a poll error should be retried on the next
// tick instead of failing the job.
func IsTransient(err error) bool {
	var unavailable *ServerUnavailableError
	return errors.As(err, &unavailable)
}
