package executor

import (
	"errors"
	"fmt"
)

// Configuration errors. They surface immediately and are never degraded.
var (
	ErrUnknownProvider   = errors.New("executor: unknown provider")
	ErrUnsupportedMethod = errors.New("executor: supported methods are GET or POST")
	ErrInvalidParams     = errors.New("executor: invalid params")
)

// TransportError is a connection failure or a non-2xx response.
type TransportError struct {
	Provider string
	Method   string
	Path     string
	Status   int // zero when no response was received
	Body     string
	Err      error
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("executor: %s %s %s: %v", e.Provider, e.Method, e.Path, e.Err)
	}
	return fmt.Sprintf("executor: %s %s %s: http status %d: %s", e.Provider, e.Method, e.Path, e.Status, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError means the response body was not valid JSON.
type MalformedResponseError struct {
	Provider string
	Path     string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("executor: %s %s: malformed response: %v", e.Provider, e.Path, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// UnexpectedShapeError means valid JSON of the wrong top-level kind.
type UnexpectedShapeError struct {
	Provider string
	Path     string
	Received Shape
	Expected Shape
}

func (e *UnexpectedShapeError) Error() string {
	return fmt.Sprintf("executor: %s %s: expected %s response, received %s", e.Provider, e.Path, e.Expected, e.Received)
}

// IsUpstreamError reports whether err came from the provider rather than from
// configuration or storage. Callers degrade to cached data on these.
func IsUpstreamError(err error) bool {
	var transport *TransportError
	var malformed *MalformedResponseError
	var shape *UnexpectedShapeError
	return errors.As(err, &transport) || errors.As(err, &malformed) || errors.As(err, &shape)
}
