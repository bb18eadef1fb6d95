package convo

import (
	"encoding/json"
	"time"

	"github.com/jp-cli/jp/internal/config"
)

// Conversation holds the small amount of metadata persisted alongside a
// conversation's event stream.
type Conversation struct {
	Id          Id
	Title       string
	UserScoped  bool
	LastEventAt *time.Time
	EventsCount int
}

// EventKind tags the variant carried by a ConversationEvent.
type EventKind string

const (
	EventChatRequest       EventKind = "chat_request"
	EventChatResponse      EventKind = "chat_response"
	EventToolCallRequest   EventKind = "tool_call_request"
	EventToolCallResponse  EventKind = "tool_call_response"
	EventConfigDelta       EventKind = "config_delta"
)

// ResponseKind distinguishes the three shapes a ChatResponse event may take.
type ResponseKind string

const (
	ResponseContent    ResponseKind = "content"
	ResponseReasoning  ResponseKind = "reasoning"
	ResponseStructured ResponseKind = "structured"
)

// ConversationEvent is the tagged variant persisted in a conversation's
// event stream. Exactly one of the payload fields is populated, selected by
// Kind; ToolCallRequest/ToolCallResponse pairs share Id.
type ConversationEvent struct {
	Kind EventKind

	// ChatRequest / ChatResponse
	Text         string
	ResponseKind ResponseKind
	Structured   json.RawMessage

	// ToolCallRequest / ToolCallResponse
	ToolCallId        string
	ToolName          string
	ToolArguments     json.RawMessage
	ToolResultError   bool
	ToolResultContent string

	// ConfigDelta
	Delta *config.Partial
}

// ConversationEventWithConfig pairs one event with the effective
// configuration delta active when it was recorded, and the time it was
// appended. This is the unit persisted in events.json.
type ConversationEventWithConfig struct {
	Event     ConversationEvent
	Config    config.Partial
	Timestamp time.Time
}

// ConversationStream is the append-only ordered sequence of recorded
// events for one conversation. Indices are stable once published; events
// are never reordered or removed in place.
type ConversationStream struct {
	entries []ConversationEventWithConfig
}

// Append records a new entry at the end of the stream.
func (s *ConversationStream) Append(e ConversationEvent, cfg config.Partial, at time.Time) {
	s.entries = append(s.entries, ConversationEventWithConfig{Event: e, Config: cfg, Timestamp: at})
}

// Len returns the number of recorded entries.
func (s *ConversationStream) Len() int {
	return len(s.entries)
}

// At returns the entry at index i.
func (s *ConversationStream) At(i int) ConversationEventWithConfig {
	return s.entries[i]
}

// All returns the full entry slice in append order. Callers must not
// mutate the returned slice's backing array through index assignment that
// would violate append-only semantics; this is a read view.
func (s *ConversationStream) All() []ConversationEventWithConfig {
	return s.entries
}

// LastAssistantIndex returns the index of the last ChatResponse event, or
// -1 if none exists.
func (s *ConversationStream) LastAssistantIndex() int {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].Event.Kind == EventChatResponse {
			return i
		}
	}
	return -1
}

// Truncate drops all entries from index i onward, used by replay to pop
// the most recent assistant+user events before rebuilding them.
func (s *ConversationStream) Truncate(i int) {
	if i < 0 || i > len(s.entries) {
		return
	}
	s.entries = s.entries[:i]
}

// StreamFromSlice rebuilds a stream from a decoded slice, e.g. after loading
// events.json. Order is preserved verbatim.
func StreamFromSlice(entries []ConversationEventWithConfig) ConversationStream {
	return ConversationStream{entries: entries}
}

// Attachment is an external document attached to a thread's system-level
// context (a file, URL, or other reference material).
type Attachment struct {
	Name    string
	MIME    string
	Content string
}

// Thread is the ephemeral, per-turn bundle of inputs handed to a provider.
// It is built fresh from conversation history plus new user input before
// every provider call and is never persisted directly.
type Thread struct {
	SystemPrompt string
	Sections     []string
	Attachments  []Attachment
	Events       ConversationStream
}

// EventPartKind tags the variants of a post-aggregation Event.
type EventPartKind string

const (
	PartContent  EventPartKind = "content"
	PartReasoning EventPartKind = "reasoning"
	PartToolCall EventPartKind = "tool_call"
	PartMetadata EventPartKind = "metadata"
	PartNested   EventPartKind = "part"
)

// Event is a completed, post-accumulation record emitted by a provider (or
// by the delta accumulator) during streaming.
type Event struct {
	Kind EventPartKind

	Content       string
	ToolCall      *ToolCallRequest
	MetadataKey   string
	MetadataValue string
	Nested        *Event
}

// ReasoningCapability classifies how a model exposes extended reasoning.
type ReasoningCapability int

const (
	ReasoningUnknown ReasoningCapability = iota
	ReasoningUnsupported
	ReasoningBudgeted
	ReasoningAdaptive
)

// ModelDetails describes a single model's identity and capabilities.
type ModelDetails struct {
	Provider       string
	Name           string
	ContextWindow  int
	MaxOutputTokens int
	Reasoning      ReasoningCapability
	// BudgetMin/BudgetMax apply when Reasoning == ReasoningBudgeted.
	BudgetMin int
	BudgetMax int
	// AdaptiveSupportsMax applies when Reasoning == ReasoningAdaptive.
	AdaptiveSupportsMax bool
	KnowledgeCutoff     string
	Features            []string
}

// HasFeature reports whether the model advertises the named feature
// (e.g. "structured-outputs", "vision", "cache-control").
func (m ModelDetails) HasFeature(name string) bool {
	for _, f := range m.Features {
		if f == name {
			return true
		}
	}
	return false
}

// ToolParameterKind enumerates the scalar/collection shapes a tool
// parameter leaf may take.
type ToolParameterKind string

const (
	ParamString  ToolParameterKind = "string"
	ParamNumber  ToolParameterKind = "number"
	ParamInteger ToolParameterKind = "integer"
	ParamBoolean ToolParameterKind = "boolean"
	ParamObject  ToolParameterKind = "object"
	ParamArray   ToolParameterKind = "array"
)

// ToolParameterConfig describes one named parameter of a ToolDefinition.
type ToolParameterConfig struct {
	Kind        ToolParameterKind
	Default     json.RawMessage
	Required    bool
	Description string
	Enumeration []string
	Items       *ToolParameterConfig

	// Minimum/Maximum bound a number/integer leaf (JSON Schema's
	// "minimum"/"maximum"). Nil means unbounded on that side.
	Minimum *float64
	Maximum *float64
}

// ToolParameter is one entry of a ToolDefinition's ordered parameter map.
type ToolParameter struct {
	Name   string
	Config ToolParameterConfig
}

// ToolDefinition fully describes a tool's calling convention, independent
// of which of the three sources (builtin, local, MCP) resolved it.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  []ToolParameter
}

// ToolCallRequest is the assistant's request to invoke a tool, bound to its
// eventual ToolCallResult by Id.
type ToolCallRequest struct {
	Id        string
	Name      string
	Arguments json.RawMessage
}

// ToolCallResult is the outcome of executing a ToolCallRequest.
type ToolCallResult struct {
	Id      string
	Error   bool
	Content string
}
