// Package provider implements the uniform LLM provider contract: a
// streaming chat completion pipeline shared by every backend (Anthropic,
// OpenAI, Google, llama.cpp, Ollama, OpenRouter), a Delta-to-Event
// accumulator, reasoning-block extraction, JSON-schema transformation for
// strict providers, and cache-breakpoint assignment.
package provider

import (
	"context"

	"github.com/jp-cli/jp/pkg/convo"
)

// ToolChoiceKind selects how the model is steered toward tool use.
type ToolChoiceKind string

const (
	ToolChoiceNone     ToolChoiceKind = "none"
	ToolChoiceAuto     ToolChoiceKind = "auto"
	ToolChoiceRequired ToolChoiceKind = "required"
	ToolChoiceFunction ToolChoiceKind = "function"
)

// ToolChoice mirrors spec 4.D's None|Auto|Required|Function(name) union.
type ToolChoice struct {
	Kind         ToolChoiceKind
	FunctionName string
}

// ReasoningEffort is the caller-facing effort level a request asks a
// reasoning-capable model to spend.
type ReasoningEffort string

const (
	EffortLow      ReasoningEffort = "low"
	EffortMedium   ReasoningEffort = "medium"
	EffortHigh     ReasoningEffort = "high"
	EffortAbsolute ReasoningEffort = "absolute"
	EffortMax      ReasoningEffort = "max"
)

// ChatQuery bundles everything a provider needs to produce one streamed
// response.
type ChatQuery struct {
	Thread            convo.Thread
	Tools             []convo.ToolDefinition
	ToolChoice        ToolChoice
	ToolCallStrictMode bool
	ReasoningEffort   ReasoningEffort
}

// Delta is the normalized wire-chunk record every provider's stream
// decoder must produce, regardless of the underlying wire format.
type Delta struct {
	Content            string
	Reasoning          string
	ToolCallId         string
	ToolCallName       string
	ToolCallArguments  string
	ToolCallFinished   bool
}

// Provider is the uniform contract every backend implements.
type Provider interface {
	// Models lists the models this provider knows about.
	Models() []convo.ModelDetails
	// ModelDetails resolves a single model's capabilities by name.
	ModelDetails(name string) (convo.ModelDetails, bool)
	// ChatCompletionStream opens a streaming completion.
	ChatCompletionStream(ctx context.Context, model string, query ChatQuery) (EventStream, error)
	// ChatCompletion collects a streaming completion into a slice.
	ChatCompletion(ctx context.Context, model string, query ChatQuery) ([]convo.Event, error)
	// StructuredCompletion forces a JSON result matching schema.
	StructuredCompletion(ctx context.Context, model string, query ChatQuery, schema []byte) ([]byte, error)
}

// EventStream is the pull-based iterator a ChatCompletionStream call
// returns; the orchestrator drives it one event at a time so it can
// suspend on network readiness between calls.
type EventStream interface {
	// Next advances to the next event. Returns false at stream end or on
	// error; callers must check Err() after a false return.
	Next(ctx context.Context) bool
	// Event returns the event produced by the most recent successful Next.
	Event() convo.Event
	// Err returns the terminal error, if Next returned false because of one.
	Err() error
	// Close releases the underlying network resource; safe to call more
	// than once and safe to call after the stream has already ended.
	Close() error
}
