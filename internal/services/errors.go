package services

import "errors"

// Error kinds returned by the service layer. Concrete errors wrap one of these with
// fmt.Errorf("%w: ...") and handlers map them to HTTP status codes.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrTooManyRequests = errors.New("too many requests")
	ErrUnavailable     = errors.New("unavailable")
)
