package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tabtabtab-ai/sheets-mcp/internal/config"
	"github.com/tabtabtab-ai/sheets-mcp/internal/errors"
)

const (
	// editEndpoint is the backend path for one sheet-editing agent call.
	editEndpoint = "/mcp/edit_google_sheet"

	// maxErrorBodySize caps how much of a non-success response body is
	// read for the error message.
	maxErrorBodySize = 64 * 1024
)

// Invocation is one tool call, immutable once constructed.
type Invocation struct {
	Prompt            string
	GoogleAccessToken string
	SpreadsheetID     string
	ConversationID    string
	Model             string
}

// editRequest is the JSON body of the backend POST. The Google access
// token travels in the Authorization header, never in the body.
type editRequest struct {
	Prompt         string `json:"prompt"`
	SpreadsheetID  string `json:"spreadsheet_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Model          string `json:"model,omitempty"`
}

// Client opens streaming requests against the sheet-editing backend.
// It is safe for concurrent use; all per-call state lives in Invocation.
type Client struct {
	log        *slog.Logger
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a backend client from the process-wide configuration.
// If httpClient is nil, a client bounded by cfg.HTTPTimeout is used.
func NewClient(log *slog.Logger, cfg config.Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	return &Client{
		log:        log.With("component", "backend_client"),
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
	}
}

// Open starts the streaming edit call and returns the response body for
// incremental reading. The caller owns the body and must close it on
// every exit path.
//
// Network-level failures return *ConnectionError. Non-2xx responses are
// drained into *HTTPStatusError without ever being parsed as a stream.
func (c *Client) Open(ctx context.Context, inv Invocation) (io.ReadCloser, error) {
	body, err := json.Marshal(editRequest{
		Prompt:         inv.Prompt,
		SpreadsheetID:  inv.SpreadsheetID,
		ConversationID: inv.ConversationID,
		Model:          inv.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+editEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+inv.GoogleAccessToken)
	req.Header.Set("X-API-Key", c.apiKey)

	c.log.Debug("Opening backend stream",
		"endpoint", editEndpoint,
		"spreadsheet_id", inv.SpreadsheetID,
		"continuing_conversation", inv.ConversationID != "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Do wraps context errors; surface cancellation as-is so the
		// caller can tell a user abort from a network failure.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		c.log.Debug("Backend connection failed", "error", err)

		return nil, &errors.ConnectionError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		_ = resp.Body.Close()

		c.log.Debug("Backend rejected request", "status", resp.StatusCode)

		return nil, &errors.HTTPStatusError{
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(errBody)),
		}
	}

	return resp.Body, nil
}
