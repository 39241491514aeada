package gateway

import (
	"errors"
	"fmt"
	"net"
)

// NetworkError means no response was received: connection refused, DNS
// failure, timeout or cancellation.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the request gave up waiting
func (e *NetworkError) Timeout() bool {
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// ServerError means the backend answered with a non-2xx status, or with a
// 2xx body that could not be decoded (Err is then set)
type ServerError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *ServerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: invalid backend response (%d): %v", e.Op, e.Status, e.Err)
	}
	if e.Body == "" {
		return fmt.Sprintf("%s: backend error: %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: backend error: %d - %s", e.Op, e.Status, e.Body)
}

func (e *ServerError) Unwrap() error {
	return e.Err
}

// IsNetwork reports whether err is a NetworkError
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsServer reports whether err is a ServerError
func IsServer(err error) bool {
	var se *ServerError
	return errors.As(err, &se)
}
