package backend

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tabtabtab-ai/sheets-mcp/internal/errors"
)

// maxScanTokenSize is the maximum buffer size for one stream fragment.
const maxScanTokenSize = 1024 * 1024 // 1MB

// ssePrefix frames event payloads on the wire.
var ssePrefix = []byte("data:")

// ProgressUpdate is one intermediate progress report, forwarded to the
// caller before the final result.
type ProgressUpdate struct {
	Message string
	// Step is the backend-reported ordinal, when the event carried one.
	Step *int
	// ToolCall marks updates describing an agent tool action rather than
	// free-form progress.
	ToolCall bool
}

// NotifyFunc delivers one progress update to the caller. Updates are
// delivered one at a time in event arrival order; a returned error
// aborts the invocation.
type NotifyFunc func(ctx context.Context, update ProgressUpdate) error

// ResultStatus is the terminal status of an invocation.
type ResultStatus string

const (
	// StatusSuccess means the backend confirmed completion.
	StatusSuccess ResultStatus = "success"
)

// Result is the accumulated final payload of one invocation. Exactly one
// Result or error is produced per Run call, never both, never more.
type Result struct {
	Status         ResultStatus
	Answer         string
	ConversationID string
	TurnCount      int
	// Partial reports that the agent hit its turn limit before finishing.
	Partial bool
	// Progress and ToolCalls retain the forwarded progress lines, in
	// arrival order, for the result summary.
	Progress  []string
	ToolCalls []string
}

// Adapter translates one backend event stream into one Result. A single
// Adapter is safe for concurrent Run calls: all mutable state is local
// to each call.
type Adapter struct {
	log    *slog.Logger
	client *Client
}

// NewAdapter creates a stream adapter over the given backend client.
func NewAdapter(log *slog.Logger, client *Client) *Adapter {
	return &Adapter{
		log:    log.With("component", "stream_adapter"),
		client: client,
	}
}

// Run executes one invocation end to end: it opens the backend stream,
// forwards intermediate events through notify in arrival order, and
// resolves with exactly one Result or error once a terminal event is
// seen (or the stream ends without one).
//
// Termination policy: the stream defines its own end. DoneEvent resolves
// success, ErrorEvent resolves *BackendError, and EOF before either is
// *StreamTruncatedError even if an answer had already arrived. Malformed
// fragments are logged and skipped. Cancellation of ctx stops reading
// promptly; the connection is released on every exit path.
func (a *Adapter) Run(ctx context.Context, inv Invocation, notify NotifyFunc) (*Result, error) {
	stream, err := a.client.Open(ctx, inv)
	if err != nil {
		return nil, err
	}

	// Tearing down the reader needs both: cancel unblocks a reader stuck
	// handing off an event, closing the stream unblocks one stuck in Read.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	closeStream := sync.OnceValue(stream.Close)
	defer func() { _ = closeStream() }()

	events := make(chan Event)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(events)

		scanner := bufio.NewScanner(stream)
		scanner.Buffer(make([]byte, maxScanTokenSize), maxScanTokenSize)

		for scanner.Scan() {
			payload, ok := eventPayload(scanner.Bytes())
			if !ok {
				continue
			}

			ev, err := ParseEvent(payload)
			if err != nil {
				// A single corrupt fragment must not abort an otherwise
				// successful run.
				if stderrors.Is(err, errors.ErrUnknownEventType) {
					a.log.Debug("Skipping unknown event type", "data", string(payload))
				} else {
					a.log.Debug("Skipping undecodable event", "error", err)
				}

				continue
			}

			select {
			case events <- ev:
			case <-gctx.Done():
				return gctx.Err()
			}
		}

		return scanner.Err()
	})

	// teardown stops the reader and releases the connection. Every
	// terminal path runs it before resolving, which is what guarantees
	// no event is processed after the result is produced.
	teardown := func() {
		cancel()
		_ = closeStream()
		_ = g.Wait()
	}

	res := &Result{}
	answerSeen := false

	// Single-consumer state machine. The loop exits on the terminal
	// event, so no event can ever be processed after resolution.
	for {
		select {
		case <-ctx.Done():
			teardown()

			return nil, ctx.Err()

		case ev, ok := <-events:
			if !ok {
				return nil, a.resolveStreamEnd(g.Wait(), answerSeen)
			}

			switch e := ev.(type) {
			case *ProgressEvent:
				res.Progress = append(res.Progress, e.Message)

				if err := notify(ctx, ProgressUpdate{Message: e.Message, Step: e.StepIndex}); err != nil {
					teardown()

					return nil, err
				}

			case *ToolUseEvent:
				line := e.ProgressLine()
				res.ToolCalls = append(res.ToolCalls, line)

				if err := notify(ctx, ProgressUpdate{Message: line, ToolCall: true}); err != nil {
					teardown()

					return nil, err
				}

			case *ConversationUpdateEvent:
				res.ConversationID = e.ConversationID

			case *AnswerEvent:
				answerSeen = true
				res.Answer = e.Text

				if e.ConversationID != "" {
					res.ConversationID = e.ConversationID
				}

				if e.TurnCount > 0 {
					res.TurnCount = e.TurnCount
				}

				if e.Partial {
					res.Partial = true
				}

			case *ErrorEvent:
				// Terminal: discard whatever is still on the wire.
				teardown()

				return nil, &errors.BackendError{Message: e.Message, Code: e.Code}

			case *DoneEvent:
				res.Status = StatusSuccess

				if e.TurnCount > 0 {
					res.TurnCount = e.TurnCount
				}

				if e.Partial {
					res.Partial = true
				}

				teardown()

				a.log.Debug("Invocation resolved",
					"turn_count", res.TurnCount,
					"progress_events", len(res.Progress),
					"tool_calls", len(res.ToolCalls))

				return res, nil
			}
		}
	}
}

// resolveStreamEnd maps a stream that ended without a terminal event to
// the invocation's error. Context errors pass through so a user abort is
// not misreported as truncation; read errors are folded into truncation
// because either way the backend never confirmed completion.
func (a *Adapter) resolveStreamEnd(readErr error, answerSeen bool) error {
	if readErr != nil {
		if stderrors.Is(readErr, context.Canceled) || stderrors.Is(readErr, context.DeadlineExceeded) {
			return readErr
		}

		a.log.Debug("Stream read failed before terminal event", "error", readErr)
	}

	return &errors.StreamTruncatedError{AnswerSeen: answerSeen}
}

// eventPayload extracts the JSON payload from one raw stream line.
// It strips the SSE data frame and drops blank lines and SSE comments
// (keep-alives). The second return reports whether a payload remains.
func eventPayload(line []byte) ([]byte, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] == ':' {
		return nil, false
	}

	line = bytes.TrimSpace(bytes.TrimPrefix(line, ssePrefix))
	if len(line) == 0 {
		return nil, false
	}

	return line, true
}
