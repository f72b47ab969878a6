package network

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionFailed indicates the client could not reach the broker.
	ErrConnectionFailed = errors.New("network: connection failed")

	// ErrInvalidResponse indicates the broker returned a malformed or unexpected response.
	ErrInvalidResponse = errors.New("network: invalid response")

	// ErrRequestRejected indicates the broker answered with a non-2xx status.
	ErrRequestRejected = errors.New("network: request rejected")

	// ErrAlreadyExists indicates metadata/create found an existing document.
	// Callers creating folders treat it as success.
	ErrAlreadyExists = errors.New("network: metadata already exists")

	// ErrNotFound indicates the requested metadata or file does not exist.
	ErrNotFound = errors.New("network: not found")

	// ErrSigningFailed indicates the request envelope could not be produced.
	ErrSigningFailed = errors.New("network: request signing failed")
)

// StatusError is returned for non-2xx broker responses.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("network: %s: HTTP %d: %s", e.Endpoint, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrRequestRejected
}

// statusCode returns the HTTP status carried by err, or 0.
func statusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
