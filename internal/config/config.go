// Package config provides process-wide configuration for the sheets MCP bridge.
package config

import (
	"os"
	"strings"
	"time"
)

// Environment variables consumed at startup.
const (
	// EnvServerURL is the backend base URL.
	EnvServerURL = "TABTABTAB_SERVER_URL"
	// EnvAPIKey is the backend service API key.
	EnvAPIKey = "TABTABTAB_API_KEY"
	// EnvDefaultModel overrides the default model identifier.
	EnvDefaultModel = "TABTABTAB_DEFAULT_MODEL"
	// EnvHTTPTimeout overrides the overall HTTP deadline (Go duration syntax).
	EnvHTTPTimeout = "TABTABTAB_HTTP_TIMEOUT"
)

const (
	// DefaultServerURL is used when EnvServerURL is unset.
	DefaultServerURL = "http://localhost:8000"

	// DefaultModel is the model identifier sent when a tool call does not
	// specify one and EnvDefaultModel is unset.
	DefaultModel = "gemini-2.5-flash"

	// DefaultHTTPTimeout bounds one backend call end to end. Sheet edits
	// can run multi-turn agent loops, so this is deliberately generous.
	DefaultHTTPTimeout = 5 * time.Minute
)

// Config holds the process-wide settings for the bridge. It is resolved
// once at startup and treated as read-only afterwards; the stream adapter
// receives it by value and never mutates it.
type Config struct {
	// BaseURL is the backend base URL, without a trailing slash.
	BaseURL string

	// APIKey is the backend service API key. It is sent in the X-API-Key
	// header and must never appear in logs or progress messages.
	APIKey string

	// DefaultModel is applied when a tool call omits the model argument.
	DefaultModel string

	// HTTPTimeout bounds one backend call end to end.
	HTTPTimeout time.Duration
}

// FromEnv resolves the configuration from environment variables,
// applying defaults for anything unset. It never fails: a missing API
// key produces a startable server whose tool calls fail with a
// descriptive error, so the IDE user sees the problem in-band.
func FromEnv() Config {
	cfg := Config{
		BaseURL:      DefaultServerURL,
		DefaultModel: DefaultModel,
		HTTPTimeout:  DefaultHTTPTimeout,
	}

	if v := strings.TrimSpace(os.Getenv(EnvServerURL)); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}

	cfg.APIKey = strings.TrimSpace(os.Getenv(EnvAPIKey))

	if v := strings.TrimSpace(os.Getenv(EnvDefaultModel)); v != "" {
		cfg.DefaultModel = v
	}

	if v := strings.TrimSpace(os.Getenv(EnvHTTPTimeout)); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.HTTPTimeout = d
		}
	}

	return cfg
}
