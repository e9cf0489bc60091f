package codex

import (
	"errors"
	"fmt"
)

// ErrMissingCredentials indicates that no credential file exists yet. The
// caller should send the user through the external login flow; nothing in
// this package can recover from it.
var ErrMissingCredentials = errors.New("codex: no stored credentials, login required")

// TransportError covers network and HTTP-level failures: connection errors
// and non-2xx statuses. Status is zero when the request never got a response.
type TransportError struct {
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("codex: upstream returned status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("codex: request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// TimeoutError indicates the overall exchange deadline elapsed. It is kept
// distinct from TransportError so callers can choose to retry with backoff.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("codex: request timed out: %v", e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// ProtocolError is an error event delivered inside an otherwise successful
// HTTP exchange. It is always fatal to the call it arrived on.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("codex: upstream error event: %s", e.Message)
}
