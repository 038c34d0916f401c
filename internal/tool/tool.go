package tool

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/oklog/ulid/v2"

	"github.com/tabtabtab-ai/sheets-mcp/internal/backend"
	"github.com/tabtabtab-ai/sheets-mcp/internal/config"
	"github.com/tabtabtab-ai/sheets-mcp/internal/errors"
)

// Name is the MCP name of the sheet-editing tool.
const Name = "edit_google_sheet"

// description is shown to the MCP client when it lists tools.
const description = "Edit a Google Sheet using an AI agent. The agent can read, write, " +
	"search, and manipulate Google Sheets data. Supports conversation history for " +
	"follow-up edits. Reports streaming progress and returns the final result."

// progressTailLimit bounds how many trailing progress lines the result
// summary repeats. The full log was already delivered as notifications.
const progressTailLimit = 10

// EditSheetInput is the tool's argument set.
type EditSheetInput struct {
	Prompt            string `json:"prompt"`
	GoogleAccessToken string `json:"google_access_token"`
	SpreadsheetID     string `json:"spreadsheet_id"`
	ConversationID    string `json:"conversation_id,omitempty"`
	Model             string `json:"model,omitempty"`
}

// EditSheetOutput is the tool's structured result.
type EditSheetOutput struct {
	Status         string `json:"status"`
	Answer         string `json:"answer,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	TurnCount      int    `json:"turn_count"`
	Partial        bool   `json:"partial,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Handler dispatches edit_google_sheet calls to the stream adapter.
type Handler struct {
	log     *slog.Logger
	cfg     config.Config
	adapter *backend.Adapter
}

// NewHandler creates the tool handler.
func NewHandler(log *slog.Logger, cfg config.Config, adapter *backend.Adapter) *Handler {
	return &Handler{
		log:     log.With("component", "tool_handler"),
		cfg:     cfg,
		adapter: adapter,
	}
}

// Register adds the tool to the MCP server.
func (h *Handler) Register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        Name,
		Description: description,
		InputSchema: editSheetSchema(),
	}, h.HandleEditSheet)
}

// editSheetSchema declares the tool arguments. It is hand-built rather
// than inferred so each property carries client-facing documentation.
func editSheetSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"prompt": {
				Type:        "string",
				Description: "The instruction for editing the sheet (e.g., 'Add a new row with Name: John, Email: john@example.com').",
			},
			"google_access_token": {
				Type:        "string",
				Description: "Google OAuth 2.0 access token with Google Sheets API access.",
			},
			"spreadsheet_id": {
				Type:        "string",
				Description: "The Google Sheets spreadsheet ID (from the URL: docs.google.com/spreadsheets/d/{spreadsheet_id}/edit).",
			},
			"conversation_id": {
				Type:        "string",
				Description: "Optional: conversation ID from a previous call, to continue that conversation with context from earlier edits.",
			},
			"model": {
				Type:        "string",
				Description: "Optional: model identifier override. The server's configured default is used when omitted.",
			},
		},
		Required: []string{"prompt", "google_access_token", "spreadsheet_id"},
	}
}

// HandleEditSheet is the tool implementation. Argument validation and
// configuration checks happen before any network activity; afterwards
// the stream adapter owns the call and this handler only translates its
// outcome into the MCP result shape.
func (h *Handler) HandleEditSheet(ctx context.Context, req *mcp.CallToolRequest, input EditSheetInput) (*mcp.CallToolResult, EditSheetOutput, error) {
	log := h.log.With("invocation_id", ulid.Make().String())

	if err := validateInput(input); err != nil {
		log.Warn("Rejected tool call", "error", err)

		return errorResult(err, nil)
	}

	if h.cfg.APIKey == "" {
		log.Warn("Rejected tool call: API key not configured")

		return errorResult(errors.ErrAPIKeyNotSet, nil)
	}

	model := input.Model
	if model == "" {
		model = h.cfg.DefaultModel
	}

	inv := backend.Invocation{
		Prompt:            input.Prompt,
		GoogleAccessToken: input.GoogleAccessToken,
		SpreadsheetID:     input.SpreadsheetID,
		ConversationID:    input.ConversationID,
		Model:             model,
	}

	notifier := newProgressNotifier(log, req)

	res, err := h.adapter.Run(ctx, inv, notifier.notify)
	if err != nil {
		// A cancelled call has no caller left to read an in-band error.
		if ctx.Err() != nil {
			return nil, EditSheetOutput{}, ctx.Err()
		}

		log.Warn("Invocation failed", "error", err)

		// Show what the agent got done before it failed.
		return errorResult(err, trailSections(notifier.toolCalls, notifier.progress))
	}

	out := EditSheetOutput{
		Status:         string(res.Status),
		Answer:         res.Answer,
		ConversationID: res.ConversationID,
		TurnCount:      res.TurnCount,
		Partial:        res.Partial,
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: summarize(res)}},
	}, out, nil
}

// validateInput checks the required fields. Whitespace-only values count
// as empty.
func validateInput(input EditSheetInput) error {
	required := []struct {
		name  string
		value string
	}{
		{"prompt", input.Prompt},
		{"google_access_token", input.GoogleAccessToken},
		{"spreadsheet_id", input.SpreadsheetID},
	}

	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return &errors.InvalidArgumentError{Field: field.name}
		}
	}

	return nil
}

// errorResult encodes a terminal error as an in-band tool result, with
// the activity trail (if any) ahead of the error line so a failed run
// still shows what the agent got done. Errors never crash the process or
// the session; the IDE client always receives either an answer or a
// descriptive message.
func errorResult(err error, trail []string) (*mcp.CallToolResult, EditSheetOutput, error) {
	parts := append(trail, "Error: "+err.Error())

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: strings.Join(parts, "\n")}},
		IsError: true,
	}, EditSheetOutput{Status: "error", Error: err.Error()}, nil
}

// trailSections formats the tool-call lines and the tail of the progress
// log as display sections shared by success and error output.
func trailSections(toolCalls, progress []string) []string {
	var parts []string

	if len(toolCalls) > 0 {
		parts = append(parts, "Tool calls:")
		parts = append(parts, toolCalls...)
		parts = append(parts, "")
	}

	if len(progress) > 0 {
		parts = append(parts, "Progress:")

		tail := progress
		if len(tail) > progressTailLimit {
			tail = tail[len(tail)-progressTailLimit:]
		}

		parts = append(parts, tail...)

		if skipped := len(progress) - progressTailLimit; skipped > 0 {
			parts = append(parts, fmt.Sprintf("... (%d earlier progress updates)", skipped))
		}

		parts = append(parts, "")
	}

	return parts
}

// summarize renders the result as display text for clients that ignore
// structured output: tool calls, the tail of the progress log, then the
// answer with follow-up instructions.
func summarize(res *backend.Result) string {
	parts := trailSections(res.ToolCalls, res.Progress)

	parts = append(parts, "Success!")

	if res.Answer != "" {
		parts = append(parts, res.Answer)
	}

	if res.ConversationID != "" {
		parts = append(parts, "Conversation ID: "+res.ConversationID)
		parts = append(parts, "(Use this conversation_id in follow-up requests to continue the conversation.)")
	}

	if res.TurnCount > 0 {
		parts = append(parts, fmt.Sprintf("Completed in %d turns", res.TurnCount))
	}

	if res.Partial {
		parts = append(parts, "Warning: response is partial (the agent reached its turn limit).")
	}

	return strings.Join(parts, "\n")
}

// progressNotifier forwards adapter progress updates to the calling
// session, preserving arrival order, and records the lines so the
// handler can replay the trail when the invocation fails. One notifier
// per invocation.
type progressNotifier struct {
	log     *slog.Logger
	session *mcp.ServerSession
	token   any
	ordinal int
	last    int

	progress  []string
	toolCalls []string
}

func newProgressNotifier(log *slog.Logger, req *mcp.CallToolRequest) *progressNotifier {
	n := &progressNotifier{log: log}

	if req != nil {
		n.session = req.Session

		if req.Params != nil {
			n.token = req.Params.GetProgressToken()
		}
	}

	return n
}

// notify delivers one progress notification. Per MCP convention nothing
// is sent when the client did not supply a progress token; the update is
// still logged so stderr shows the agent's activity.
func (n *progressNotifier) notify(ctx context.Context, update backend.ProgressUpdate) error {
	progress := n.nextValue(update.Step)

	if update.ToolCall {
		n.toolCalls = append(n.toolCalls, update.Message)
	} else {
		n.progress = append(n.progress, update.Message)
	}

	n.log.Debug("Progress", "value", progress, "message", update.Message)

	if n.session == nil || n.token == nil {
		return nil
	}

	return n.session.NotifyProgress(ctx, &mcp.ProgressNotificationParams{
		ProgressToken: n.token,
		Progress:      float64(progress),
		Message:       update.Message,
	})
}

// nextValue maps one update onto a strictly increasing progress value:
// the backend's step index when it is ahead of the running ordinal,
// otherwise one past the last emitted value. Progress must never move
// backwards even when the backend alternates stepped and unstepped
// events.
func (n *progressNotifier) nextValue(step *int) int {
	n.ordinal++

	value := n.ordinal
	if step != nil && *step > value {
		value = *step
	}

	if value <= n.last {
		value = n.last + 1
	}

	n.last = value

	return value
}
