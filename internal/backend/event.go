package backend

import (
	"encoding/json"
	"fmt"

	"github.com/tabtabtab-ai/sheets-mcp/internal/errors"
)

// Event is one decoded fragment of the backend event stream.
//
// The set of implementations is closed: ProgressEvent, ToolUseEvent,
// AnswerEvent, ErrorEvent, ConversationUpdateEvent, and DoneEvent.
// Dispatch sites switch over all of them so an unhandled variant is a
// visible gap rather than a silently dropped message.
type Event interface {
	streamEvent() // marker method
}

// Compile-time verification that all event types implement Event.
var (
	_ Event = (*ProgressEvent)(nil)
	_ Event = (*ToolUseEvent)(nil)
	_ Event = (*AnswerEvent)(nil)
	_ Event = (*ErrorEvent)(nil)
	_ Event = (*ConversationUpdateEvent)(nil)
	_ Event = (*DoneEvent)(nil)
)

// ProgressEvent reports intermediate agent activity.
type ProgressEvent struct {
	Message   string
	StepIndex *int
}

func (*ProgressEvent) streamEvent() {}

// ToolUseEvent reports a backend-internal agent action. It is surfaced
// to the caller as progress, never as part of the final answer.
type ToolUseEvent struct {
	ToolName string
	Args     map[string]any
	// Message is a pre-rendered description some backend versions send
	// instead of tool_name/args. Preferred when present.
	Message string
}

func (*ToolUseEvent) streamEvent() {}

// ProgressLine renders the event as a human-readable progress message.
func (e *ToolUseEvent) ProgressLine() string {
	if e.Message != "" {
		return e.Message
	}

	if len(e.Args) > 0 {
		args, err := json.Marshal(e.Args)
		if err == nil {
			return fmt.Sprintf("Using tool %s with %s", e.ToolName, args)
		}
	}

	return "Using tool " + e.ToolName
}

// AnswerEvent carries the candidate final answer text. It is not a
// terminal event: the stream ends with DoneEvent or ErrorEvent, and an
// answer without a terminal marker is treated as truncation.
//
// Older backend versions fold conversation id, turn count, and the
// partial flag into this event rather than sending them separately, so
// the decoded form carries them along.
type AnswerEvent struct {
	Text           string
	ConversationID string
	TurnCount      int
	Partial        bool
}

func (*AnswerEvent) streamEvent() {}

// ErrorEvent is a terminal event reporting an explicit backend failure.
type ErrorEvent struct {
	Message string
	Code    string
}

func (*ErrorEvent) streamEvent() {}

// ConversationUpdateEvent carries the conversation id the caller must
// echo back to continue this conversation in a follow-up call.
type ConversationUpdateEvent struct {
	ConversationID string
}

func (*ConversationUpdateEvent) streamEvent() {}

// DoneEvent is the terminal success marker. Partial reports that the
// agent stopped at its turn limit before fully completing the request.
type DoneEvent struct {
	TurnCount int
	Partial   bool
}

func (*DoneEvent) streamEvent() {}

// eventEnvelope is the superset of fields across all wire event kinds.
type eventEnvelope struct {
	Type           string         `json:"type"`
	Message        string         `json:"message"`
	Text           string         `json:"text"`
	StepIndex      *int           `json:"step_index"`
	ToolName       string         `json:"tool_name"`
	Args           map[string]any `json:"args"`
	ConversationID string         `json:"conversation_id"`
	TurnCount      int            `json:"turn_count"`
	Partial        bool           `json:"partial"`
	Code           string         `json:"code"`
}

// ParseEvent decodes one complete stream fragment into a typed Event.
//
// Unknown type tags return ErrUnknownEventType; callers skip those
// fragments so a newer backend does not break an older bridge.
// Malformed JSON returns *EventDecodeError carrying the raw data.
func ParseEvent(data []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &errors.EventDecodeError{
			RawData: string(data),
			Err:     err,
		}
	}

	switch env.Type {
	case "progress":
		return &ProgressEvent{
			Message:   env.Message,
			StepIndex: env.StepIndex,
		}, nil

	case "tool_call":
		return &ToolUseEvent{
			ToolName: env.ToolName,
			Args:     env.Args,
			Message:  env.Message,
		}, nil

	case "answer", "response":
		text := env.Text
		if text == "" {
			// the legacy "response" shape uses "message" for the answer text
			text = env.Message
		}

		return &AnswerEvent{
			Text:           text,
			ConversationID: env.ConversationID,
			TurnCount:      env.TurnCount,
			Partial:        env.Partial,
		}, nil

	case "error":
		return &ErrorEvent{
			Message: env.Message,
			Code:    env.Code,
		}, nil

	case "conversation", "conversation_update":
		return &ConversationUpdateEvent{
			ConversationID: env.ConversationID,
		}, nil

	case "done":
		return &DoneEvent{
			TurnCount: env.TurnCount,
			Partial:   env.Partial,
		}, nil

	case "":
		return nil, &errors.EventDecodeError{
			RawData: string(data),
			Err:     fmt.Errorf("missing or empty %q field", "type"),
		}

	default:
		return nil, errors.ErrUnknownEventType
	}
}
