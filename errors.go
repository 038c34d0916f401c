package sheetsmcp

import "github.com/tabtabtab-ai/sheets-mcp/internal/errors"

// Re-export error types from internal package

// InvalidArgumentError indicates a tool call with a missing or empty
// required argument.
type InvalidArgumentError = errors.InvalidArgumentError

// ConnectionError indicates the backend could not be reached.
type ConnectionError = errors.ConnectionError

// HTTPStatusError indicates the backend rejected the request with a
// non-success status.
type HTTPStatusError = errors.HTTPStatusError

// StreamTruncatedError indicates the event stream closed before a
// terminal event was observed.
type StreamTruncatedError = errors.StreamTruncatedError

// BackendError indicates the backend reported an explicit error event.
type BackendError = errors.BackendError

// EventDecodeError indicates a single stream fragment failed to decode.
type EventDecodeError = errors.EventDecodeError

// BridgeError is the base interface for all bridge errors.
type BridgeError = errors.BridgeError

// Re-export sentinel errors from internal package.
var (
	// ErrUnknownEventType indicates an unrecognized event type tag.
	ErrUnknownEventType = errors.ErrUnknownEventType

	// ErrAPIKeyNotSet indicates the backend API key was not configured.
	ErrAPIKeyNotSet = errors.ErrAPIKeyNotSet
)
