package entities

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrEmptySubmission is returned when there is neither text nor an attachment.
	ErrEmptySubmission = errors.New("empty query and no attachment")

	// ErrSubmissionInFlight is returned in serialized mode while another submission runs.
	ErrSubmissionInFlight = errors.New("a search is already in progress")

	// ErrNoAttachment is returned when attaching nothing.
	ErrNoAttachment = errors.New("no attachment provided")
)

// ValidationError is recovered locally; no request is sent.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return "validation: " + e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// NetworkError means the request could not be completed.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "network: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is a non-success HTTP status, with the server's detail when it sent one.
type ServerError struct {
	StatusCode int
	Detail     string
}

func (e *ServerError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("server returned status %d", e.StatusCode)
}

// MalformedResponseError means the body could not be decoded.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string { return "malformed response: " + e.Err.Error() }
func (e *MalformedResponseError) Unwrap() error { return e.Err }

// AttachmentTooLargeError is returned when an attachment exceeds the configured limit.
type AttachmentTooLargeError struct {
	Size  int64
	Limit int64
}

func (e *AttachmentTooLargeError) Error() string {
	return fmt.Sprintf("attachment is %d bytes, limit is %d", e.Size, e.Limit)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
