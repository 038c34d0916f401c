// Package errors defines error types for the sheets MCP bridge.
//
// This package provides structured error types for the failure scenarios
// of one backend call: bad tool input, unreachable backend, rejected HTTP
// request, truncated event stream, explicit backend error events, and
// undecodable stream fragments. All types support error unwrapping and
// can be checked with errors.Is, errors.As, and errors.AsType.
package errors
