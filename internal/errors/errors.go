package errors

import (
	"errors"
	"fmt"
)

// BridgeError is the base interface for all bridge errors.
type BridgeError interface {
	error
	IsBridgeError() bool
}

// Compile-time verification that all error types implement BridgeError.
var (
	_ BridgeError = (*InvalidArgumentError)(nil)
	_ BridgeError = (*ConnectionError)(nil)
	_ BridgeError = (*HTTPStatusError)(nil)
	_ BridgeError = (*StreamTruncatedError)(nil)
	_ BridgeError = (*BackendError)(nil)
	_ BridgeError = (*EventDecodeError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrUnknownEventType indicates the event type tag is not recognized.
	// Callers should skip these events rather than treating them as fatal.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrAPIKeyNotSet indicates the backend API key was not configured.
	ErrAPIKeyNotSet = errors.New("backend API key not set: configure TABTABTAB_API_KEY in your MCP settings")
)

// InvalidArgumentError indicates a tool call with a missing or empty
// required argument. It is raised before any network activity.
type InvalidArgumentError struct {
	Field string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument: %q is required and must be non-empty", e.Field)
}

// IsBridgeError implements BridgeError.
func (e *InvalidArgumentError) IsBridgeError() bool { return true }

// ConnectionError indicates the backend could not be reached.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to backend: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *ConnectionError) IsBridgeError() bool { return true }

// HTTPStatusError indicates the backend was reachable but rejected the
// request with a non-success status. The body is preserved verbatim and
// never parsed as an event stream.
type HTTPStatusError struct {
	Status int
	Body   string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned HTTP %d", e.Status)
	}

	return fmt.Sprintf("backend returned HTTP %d: %s", e.Status, e.Body)
}

// IsBridgeError implements BridgeError.
func (e *HTTPStatusError) IsBridgeError() bool { return true }

// StreamTruncatedError indicates the event stream closed before a
// terminal event was observed. AnswerSeen records whether an answer
// candidate had already arrived; the invocation still fails because
// without an explicit terminal marker the bridge cannot distinguish
// "finished early" from "network dropped mid-turn".
type StreamTruncatedError struct {
	AnswerSeen bool
}

func (e *StreamTruncatedError) Error() string {
	if e.AnswerSeen {
		return "stream closed before completion (an unconfirmed answer had arrived)"
	}

	return "stream closed before completion"
}

// IsBridgeError implements BridgeError.
func (e *StreamTruncatedError) IsBridgeError() bool { return true }

// BackendError indicates the backend reported an explicit error event.
type BackendError struct {
	Message string
	Code    string
}

func (e *BackendError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "backend reported an error"
	}

	if e.Code != "" {
		return fmt.Sprintf("%s (code %s)", msg, e.Code)
	}

	return msg
}

// IsBridgeError implements BridgeError.
func (e *BackendError) IsBridgeError() bool { return true }

// EventDecodeError indicates a single stream fragment failed to decode.
// This error preserves the raw data that failed to parse. It is recovered
// locally: the adapter logs and skips the fragment.
type EventDecodeError struct {
	RawData string
	Err     error
}

func (e *EventDecodeError) Error() string {
	return fmt.Sprintf("failed to decode stream event: %v", e.Err)
}

func (e *EventDecodeError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *EventDecodeError) IsBridgeError() bool { return true }
