// Command sheets-mcp runs the Google Sheets MCP server over stdio.
//
// It is meant to be launched by an MCP client (an IDE or agent host),
// which owns stdin/stdout. All diagnostics go to stderr; set
// SHEETS_MCP_LOG_LEVEL to debug, info, warn, or error (default info).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	sheetsmcp "github.com/tabtabtab-ai/sheets-mcp"
	"github.com/tabtabtab-ai/sheets-mcp/internal/config"
)

func main() {
	log := newLogger()
	cfg := config.FromEnv()

	if cfg.APIKey == "" {
		// Not fatal: the server still answers tool listings, and each
		// call reports the missing key in-band.
		log.Warn("TABTABTAB_API_KEY is not set; edit_google_sheet calls will fail until it is configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := sheetsmcp.New(cfg, sheetsmcp.WithLogger(log))

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "sheets-mcp: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the stderr logger. Stdout belongs to the MCP
// transport and must stay clean.
func newLogger() *slog.Logger {
	level := slog.LevelInfo

	switch strings.ToLower(os.Getenv("SHEETS_MCP_LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
