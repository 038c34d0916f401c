package sheetsmcp

import (
	"log/slog"
	"net/http"
)

// serverOptions holds the optional knobs of a Server.
type serverOptions struct {
	Logger     *slog.Logger
	HTTPClient *http.Client
	Version    string
}

// Option configures a Server using the functional options pattern.
type Option func(*serverOptions)

// applyServerOptions applies functional options over the defaults.
func applyServerOptions(opts []Option) *serverOptions {
	options := &serverOptions{
		Logger:  NopLogger(),
		Version: defaultVersion,
	}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// WithLogger sets the logger for diagnostic output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *serverOptions) {
		o.Logger = logger
	}
}

// WithHTTPClient injects a custom HTTP client for backend calls.
// If not set, a client bounded by the configured timeout is used.
func WithHTTPClient(client *http.Client) Option {
	return func(o *serverOptions) {
		o.HTTPClient = client
	}
}

// WithVersion overrides the version string reported during the MCP
// handshake.
func WithVersion(version string) Option {
	return func(o *serverOptions) {
		o.Version = version
	}
}
