package sheetsmcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tabtabtab-ai/sheets-mcp/internal/backend"
	"github.com/tabtabtab-ai/sheets-mcp/internal/config"
	"github.com/tabtabtab-ai/sheets-mcp/internal/tool"
)

// serverName identifies this server to MCP clients.
const serverName = "google-sheets-mcp"

// defaultVersion is reported during the MCP handshake unless overridden
// with WithVersion.
const defaultVersion = "1.0.0"

// Server is the MCP stdio server. Create one with New and drive it with
// Run; a Server is single-use.
type Server struct {
	cfg     config.Config
	options *serverOptions
}

// New creates a server over the given configuration. Use config.FromEnv
// to load the standard environment variables.
func New(cfg config.Config, opts ...Option) *Server {
	return &Server{
		cfg:     cfg,
		options: applyServerOptions(opts),
	}
}

// Run serves MCP over stdin/stdout until the client disconnects or ctx
// is cancelled. Stdout carries only protocol frames; all logging goes
// through the configured logger.
func (s *Server) Run(ctx context.Context) error {
	log := s.options.Logger

	client := backend.NewClient(log, s.cfg, s.options.HTTPClient)
	adapter := backend.NewAdapter(log, client)
	handler := tool.NewHandler(log, s.cfg, adapter)

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: s.options.Version,
	}, nil)

	handler.Register(srv)

	log.Info("Starting MCP server",
		"name", serverName,
		"version", s.options.Version,
		"backend_url", s.cfg.BaseURL,
		"api_key_configured", s.cfg.APIKey != "")

	return srv.Run(ctx, &mcp.StdioTransport{})
}
