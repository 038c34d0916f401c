package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabtabtab-ai/sheets-mcp/internal/backend"
	"github.com/tabtabtab-ai/sheets-mcp/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestHandler wires a Handler against a live httptest backend and
// returns the handler plus a counter of backend requests received.
func newTestHandler(t *testing.T, backendHandler http.HandlerFunc) (*Handler, *atomic.Int64) {
	t.Helper()

	var requests atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		backendHandler(w, r)
	}))
	t.Cleanup(srv.Close)

	cfg := config.Config{
		BaseURL:      srv.URL,
		APIKey:       "test-api-key",
		DefaultModel: "gemini-2.5-flash",
		HTTPTimeout:  10 * time.Second,
	}

	adapter := backend.NewAdapter(testLogger(), backend.NewClient(testLogger(), cfg, srv.Client()))

	return NewHandler(testLogger(), cfg, adapter), &requests
}

func streamBackend(t *testing.T, lines ...string) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)

		w.Header().Set("Content-Type", "text/event-stream")

		for _, line := range lines {
			_, _ = fmt.Fprintf(w, "data: %s\n\n", line)
			flusher.Flush()
		}
	}
}

func callRequest() *mcp.CallToolRequest {
	return &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Name: Name},
	}
}

func validInput() EditSheetInput {
	return EditSheetInput{
		Prompt:            "Add a row",
		GoogleAccessToken: "ya29.token",
		SpreadsheetID:     "sheet-1",
	}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()

	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)

	return text.Text
}

func TestHandleEditSheetSuccess(t *testing.T) {
	h, requests := newTestHandler(t, streamBackend(t,
		`{"type":"progress","message":"Reading sheet"}`,
		`{"type":"tool_call","tool_name":"write_range"}`,
		`{"type":"answer","text":"Added the row."}`,
		`{"type":"conversation","conversation_id":"c1"}`,
		`{"type":"done","turn_count":3}`,
	))

	res, out, err := h.HandleEditSheet(context.Background(), callRequest(), validInput())

	require.NoError(t, err)
	require.NotNil(t, res)
	assert.False(t, res.IsError)
	assert.EqualValues(t, 1, requests.Load())

	assert.Equal(t, EditSheetOutput{
		Status:         "success",
		Answer:         "Added the row.",
		ConversationID: "c1",
		TurnCount:      3,
	}, out)

	text := resultText(t, res)
	assert.Contains(t, text, "Success!")
	assert.Contains(t, text, "Added the row.")
	assert.Contains(t, text, "Conversation ID: c1")
	assert.Contains(t, text, "Completed in 3 turns")
	assert.Contains(t, text, "Using tool write_range")
}

func TestHandleEditSheetInvalidArgumentSkipsNetwork(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*EditSheetInput)
		field  string
	}{
		{name: "empty prompt", mutate: func(in *EditSheetInput) { in.Prompt = "" }, field: "prompt"},
		{name: "whitespace prompt", mutate: func(in *EditSheetInput) { in.Prompt = "   " }, field: "prompt"},
		{name: "empty token", mutate: func(in *EditSheetInput) { in.GoogleAccessToken = "" }, field: "google_access_token"},
		{name: "empty spreadsheet", mutate: func(in *EditSheetInput) { in.SpreadsheetID = "" }, field: "spreadsheet_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, requests := newTestHandler(t, streamBackend(t, `{"type":"done"}`))

			input := validInput()
			tt.mutate(&input)

			res, out, err := h.HandleEditSheet(context.Background(), callRequest(), input)

			require.NoError(t, err)
			assert.True(t, res.IsError)
			assert.Equal(t, "error", out.Status)
			assert.Contains(t, resultText(t, res), tt.field)
			assert.Zero(t, requests.Load(), "validation failures must not open a connection")
		})
	}
}

func TestHandleEditSheetMissingAPIKey(t *testing.T) {
	h, requests := newTestHandler(t, streamBackend(t, `{"type":"done"}`))
	h.cfg.APIKey = ""

	res, out, err := h.HandleEditSheet(context.Background(), callRequest(), validInput())

	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "error", out.Status)
	assert.Contains(t, resultText(t, res), "TABTABTAB_API_KEY")
	assert.Zero(t, requests.Load())
}

func TestHandleEditSheetAppliesDefaultModel(t *testing.T) {
	var gotModel atomic.Value

	h, _ := newTestHandler(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotModel.Store(body["model"])

		streamBackend(t, `{"type":"done"}`)(w, r)
	})

	_, _, err := h.HandleEditSheet(context.Background(), callRequest(), validInput())
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", gotModel.Load())

	input := validInput()
	input.Model = "gemini-2.5-pro"

	_, _, err = h.HandleEditSheet(context.Background(), callRequest(), input)
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", gotModel.Load())
}

func TestHandleEditSheetBackendError(t *testing.T) {
	h, _ := newTestHandler(t, streamBackend(t,
		`{"type":"progress","message":"Reading sheet"}`,
		`{"type":"tool_call","tool_name":"write_range"}`,
		`{"type":"error","message":"quota exceeded"}`,
	))

	res, out, err := h.HandleEditSheet(context.Background(), callRequest(), validInput())

	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "error", out.Status)
	assert.Contains(t, out.Error, "quota exceeded")

	// the activity trail precedes the error line so a failed run still
	// shows what the agent did
	text := resultText(t, res)
	assert.Contains(t, text, "Tool calls:\nUsing tool write_range")
	assert.Contains(t, text, "Progress:\nReading sheet")
	assert.Less(t, strings.Index(text, "Reading sheet"), strings.Index(text, "Error: quota exceeded"))
}

func TestHandleEditSheetTruncatedStream(t *testing.T) {
	h, _ := newTestHandler(t, streamBackend(t,
		`{"type":"answer","text":"X"}`,
	))

	res, out, err := h.HandleEditSheet(context.Background(), callRequest(), validInput())

	require.NoError(t, err)
	assert.True(t, res.IsError, "an answer without a terminal marker is reported as an error")
	assert.Contains(t, out.Error, "stream closed before completion")
}

func TestHandleEditSheetHTTPError(t *testing.T) {
	h, _ := newTestHandler(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	})

	res, out, err := h.HandleEditSheet(context.Background(), callRequest(), validInput())

	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, out.Error, "HTTP 401")
	assert.Contains(t, out.Error, "invalid api key")
}

func TestValidateInput(t *testing.T) {
	require.NoError(t, validateInput(validInput()))
}

func TestSummarizeProgressTail(t *testing.T) {
	res := &backend.Result{Status: backend.StatusSuccess, Answer: "done"}
	for i := 1; i <= 14; i++ {
		res.Progress = append(res.Progress, fmt.Sprintf("step %d", i))
	}

	text := summarize(res)

	assert.NotContains(t, text, "step 4\n", "only the last 10 progress lines are repeated")
	assert.Contains(t, text, "step 5")
	assert.Contains(t, text, "step 14")
	assert.Contains(t, text, "... (4 earlier progress updates)")
}

func TestProgressNotifierWithoutToken(t *testing.T) {
	n := newProgressNotifier(testLogger(), callRequest())

	// no session and no token: updates are recorded but nothing is sent
	require.NoError(t, n.notify(context.Background(), backend.ProgressUpdate{Message: "one"}))
	require.NoError(t, n.notify(context.Background(), backend.ProgressUpdate{Message: "used a tool", ToolCall: true}))
	assert.Equal(t, 2, n.ordinal)
	assert.Equal(t, []string{"one"}, n.progress)
	assert.Equal(t, []string{"used a tool"}, n.toolCalls)
}

func TestProgressNotifierValuesNeverRegress(t *testing.T) {
	n := newProgressNotifier(testLogger(), callRequest())

	tests := []struct {
		name string
		step *int
		want int
	}{
		{name: "first ordinal", step: nil, want: 1},
		{name: "step jumps ahead", step: intPtr(7), want: 7},
		{name: "unstepped event after a jump", step: nil, want: 8},
		{name: "stale step below last value", step: intPtr(2), want: 9},
		{name: "step ahead again", step: intPtr(20), want: 20},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, n.nextValue(tt.step), tt.name)
	}
}

func intPtr(v int) *int { return &v }

// TestHandleEditSheetProgressNotifications drives the tool through a
// real client/server session pair and verifies the notifications that
// reach the client: the caller's token echoed back, messages in arrival
// order, increasing progress values.
func TestHandleEditSheetProgressNotifications(t *testing.T) {
	h, _ := newTestHandler(t, streamBackend(t,
		`{"type":"progress","message":"Reading sheet","step_index":3}`,
		`{"type":"tool_call","tool_name":"write_range"}`,
		`{"type":"answer","text":"Added the row."}`,
		`{"type":"done","turn_count":1}`,
	))

	var mu sync.Mutex
	var notifications []*mcp.ProgressNotificationParams

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, &mcp.ClientOptions{
		ProgressNotificationHandler: func(_ context.Context, req *mcp.ProgressNotificationClientRequest) {
			mu.Lock()
			defer mu.Unlock()
			notifications = append(notifications, req.Params)
		},
	})

	server := mcp.NewServer(&mcp.Implementation{Name: "test-server", Version: "0.0.1"}, nil)
	h.Register(server)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ctx := context.Background()

	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	clientSession, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = clientSession.Close() })

	params := &mcp.CallToolParams{
		Name: Name,
		Arguments: map[string]any{
			"prompt":              "Add a row",
			"google_access_token": "ya29.token",
			"spreadsheet_id":      "sheet-1",
		},
	}
	params.SetProgressToken("tok-1")

	res, err := clientSession.CallTool(ctx, params)
	require.NoError(t, err)
	assert.False(t, res.IsError)

	// notifications travel as separate messages and may still be in
	// flight when the result lands
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(notifications) == 2
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, "tok-1", notifications[0].ProgressToken)
	assert.Equal(t, "Reading sheet", notifications[0].Message)
	assert.Equal(t, float64(3), notifications[0].Progress)

	assert.Equal(t, "tok-1", notifications[1].ProgressToken)
	assert.Equal(t, "Using tool write_range", notifications[1].Message)
	assert.Equal(t, float64(4), notifications[1].Progress)
}
