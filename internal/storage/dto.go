package storage

import (
	"encoding/json"
	"time"

	"github.com/jp-cli/jp/internal/config"
	"github.com/jp-cli/jp/pkg/convo"
)

// conversationMetaDTO mirrors conversation metadata.json.
type conversationMetaDTO struct {
	Id          string     `json:"id"`
	Title       string     `json:"title"`
	UserScoped  bool       `json:"user_scoped"`
	LastEventAt *time.Time `json:"last_event_at,omitempty"`
	EventsCount int        `json:"events_count"`
}

func toConversationMetaDTO(c *convo.Conversation) conversationMetaDTO {
	return conversationMetaDTO{
		Id:          c.Id.String(),
		Title:       c.Title,
		UserScoped:  c.UserScoped,
		LastEventAt: c.LastEventAt,
		EventsCount: c.EventsCount,
	}
}

func (d conversationMetaDTO) toConversation() (*convo.Conversation, error) {
	id, err := convo.ParseId(d.Id)
	if err != nil {
		return nil, err
	}
	return &convo.Conversation{
		Id:          id,
		Title:       d.Title,
		UserScoped:  d.UserScoped,
		LastEventAt: d.LastEventAt,
		EventsCount: d.EventsCount,
	}, nil
}

// indexDTO mirrors the top-level conversations/metadata.json pointer file.
type indexDTO struct {
	ActiveConversationId string `json:"active_conversation_id,omitempty"`
}

// eventDTO mirrors one ConversationEventWithConfig entry in events.json.
// Malformed entries (unknown kind, missing required fields for that kind)
// are rejected at decode time so Load can skip the whole file with a
// warning rather than silently fabricate partial events.
type eventDTO struct {
	Kind      convo.EventKind      `json:"kind"`
	Timestamp time.Time            `json:"timestamp"`
	Config    config.Partial       `json:"config"`

	Text         string               `json:"text,omitempty"`
	ResponseKind convo.ResponseKind   `json:"response_kind,omitempty"`
	Structured   json.RawMessage      `json:"structured,omitempty"`

	ToolCallId        string          `json:"tool_call_id,omitempty"`
	ToolName          string          `json:"tool_name,omitempty"`
	ToolArguments     json.RawMessage `json:"tool_arguments,omitempty"`
	ToolResultError   bool            `json:"tool_result_error,omitempty"`
	ToolResultContent string          `json:"tool_result_content,omitempty"`

	Delta *config.Partial `json:"delta,omitempty"`
}

func toEventDTO(e convo.ConversationEventWithConfig) eventDTO {
	ev := e.Event
	return eventDTO{
		Kind:              ev.Kind,
		Timestamp:         e.Timestamp,
		Config:            e.Config,
		Text:              ev.Text,
		ResponseKind:      ev.ResponseKind,
		Structured:        ev.Structured,
		ToolCallId:        ev.ToolCallId,
		ToolName:          ev.ToolName,
		ToolArguments:     ev.ToolArguments,
		ToolResultError:   ev.ToolResultError,
		ToolResultContent: ev.ToolResultContent,
		Delta:             ev.Delta,
	}
}

func (d eventDTO) toEvent() (convo.ConversationEventWithConfig, error) {
	switch d.Kind {
	case convo.EventChatRequest, convo.EventChatResponse,
		convo.EventToolCallRequest, convo.EventToolCallResponse,
		convo.EventConfigDelta:
	default:
		return convo.ConversationEventWithConfig{}, &malformedError{reason: "unknown event kind: " + string(d.Kind)}
	}
	if d.Kind == convo.EventToolCallResponse && d.ToolCallId == "" {
		return convo.ConversationEventWithConfig{}, &malformedError{reason: "tool_call_response missing tool_call_id"}
	}
	ev := convo.ConversationEvent{
		Kind:              d.Kind,
		Text:              d.Text,
		ResponseKind:      d.ResponseKind,
		Structured:        d.Structured,
		ToolCallId:        d.ToolCallId,
		ToolName:          d.ToolName,
		ToolArguments:     d.ToolArguments,
		ToolResultError:   d.ToolResultError,
		ToolResultContent: d.ToolResultContent,
		Delta:             d.Delta,
	}
	return convo.ConversationEventWithConfig{Event: ev, Config: d.Config, Timestamp: d.Timestamp}, nil
}

type malformedError struct{ reason string }

func (e *malformedError) Error() string { return e.reason }
