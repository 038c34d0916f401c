// Package sheetsmcp implements an MCP stdio server that exposes the
// TabTabTab sheet-editing agent as a single tool, edit_google_sheet.
//
// The server bridges two protocols: on one side it speaks MCP over
// stdin/stdout to an IDE client; on the other it opens a streaming HTTP
// call against the TabTabTab backend and translates the backend's event
// stream into MCP progress notifications and one final tool result.
//
// # Basic Usage
//
//	ctx := context.Background()
//	srv := sheetsmcp.New(config.FromEnv(),
//	    sheetsmcp.WithLogger(slog.Default()),
//	)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Run blocks until the client disconnects or ctx is cancelled. All
// diagnostics go to the configured logger; stdout carries only MCP
// frames.
//
// # Configuration
//
// The backend URL, API key, default model, and HTTP timeout come from
// the environment (see [config.FromEnv]). A missing API key does not
// prevent startup: the server still serves tool listings, and each
// edit_google_sheet call fails in-band with a descriptive message.
//
// # Error Handling
//
// Tool-call failures are reported in-band as MCP error results, never
// as protocol errors, so a broken backend cannot take down the session.
// The error types are exported for callers embedding the server:
//
//	res, err := adapter.Run(ctx, inv, notify)
//	if err != nil {
//	    var statusErr *sheetsmcp.HTTPStatusError
//	    if errors.As(err, &statusErr) {
//	        log.Printf("backend rejected the call with HTTP %d", statusErr.Status)
//	    }
//	}
package sheetsmcp
