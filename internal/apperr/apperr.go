// Package apperr holds the error classes surfaced to callers of the reference-data services.
// Services wrap these with fmt.Errorf("%w: ...") and the HTTP boundary maps them to status codes.
package apperr

import "errors"

var (
	// ErrInvalidFormat marks input whose shape is wrong, e.g. a malformed ISIN.
	ErrInvalidFormat = errors.New("invalid format")
	// ErrDomain marks well-formed input the domain does not accept.
	ErrDomain = errors.New("domain error")
	// ErrNotFound marks the absence of data for a valid request.
	ErrNotFound = errors.New("not found")
)

// IsClientError reports whether err is caused by the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidFormat) || errors.Is(err, ErrDomain)
}
