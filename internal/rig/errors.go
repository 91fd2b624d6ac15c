package rig

import (
	"errors"
	"fmt"
)

// Response status codes carried in the "status" field of every JSON reply.
const (
	StatusOK            = 1
	StatusError         = -1
	StatusUnauthorized  = -2
	StatusNotRunning    = -3
	StatusAlreadyExists = -4
)

// Sentinel errors for rig API operations.
//
// Transport failures wrap ErrTransport, negative statuses are returned as
// *APIError (which matches ErrAPI), and undecodable bodies wrap ErrMalformed.
var (
	// ErrTransport indicates the request never produced a usable HTTP response.
	ErrTransport = errors.New("rig: transport failure")

	// ErrAPI matches any *APIError via errors.Is.
	ErrAPI = errors.New("rig: api error")

	// ErrMalformed indicates the response body could not be decoded.
	ErrMalformed = errors.New("rig: malformed response")

	// ErrNoKey is returned by keyed control calls before a key is held.
	ErrNoKey = errors.New("rig: no control key held")
)

// APIError is a reply whose status field was negative.
type APIError struct {
	Status      int
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("rig: status %d (%s)", e.Status, StatusText(e.Status))
	}
	return fmt.Sprintf("rig: status %d: %s", e.Status, e.Description)
}

// Is makes errors.Is(err, ErrAPI) true for every APIError.
func (e *APIError) Is(target error) bool {
	return target == ErrAPI
}

// StatusText names a status code.
func StatusText(status int) string {
	switch status {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	case StatusUnauthorized:
		return "unauthorized"
	case StatusNotRunning:
		return "not running"
	case StatusAlreadyExists:
		return "already exists"
	default:
		return "unknown"
	}
}

// HasStatus reports whether err is an APIError with the given status.
func HasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
