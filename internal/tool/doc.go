// Package tool registers the edit_google_sheet tool with the MCP server.
//
// The registrar is thin glue: it declares the tool's name, schema, and
// docstring, validates arguments before any network work, and delegates
// the call to the backend stream adapter, forwarding its progress
// updates verbatim to the calling session as MCP progress notifications.
package tool
