package nwc

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidURI is returned when a connection URI is missing a required
	// field or is otherwise malformed.
	ErrInvalidURI = errors.New("nwc: invalid connection uri")
	// ErrTimeout is returned when no response envelope arrives within the
	// request deadline.
	ErrTimeout = errors.New("nwc: request timed out")
	// ErrDecrypt is returned when a correlated response arrives but cannot
	// be decrypted. Callers should treat this differently from ErrTimeout:
	// a decrypt failure does not prove the operation did not happen.
	ErrDecrypt = errors.New("nwc: response decrypt failed")
)

// RemoteError is a structured error returned by the wallet service itself in
// a response body.
type RemoteError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("nwc: remote error %s: %s", e.Code, e.Message)
}
