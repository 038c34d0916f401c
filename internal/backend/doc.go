// Package backend talks to the sheet-editing agent service over HTTP.
//
// This package owns the entire lifecycle of one backend call: it opens a
// streaming POST request, decodes the server-sent event stream into a
// closed set of typed events, and drives a single-consumer state machine
// that forwards intermediate events as progress updates and resolves the
// call with exactly one terminal result.
package backend
