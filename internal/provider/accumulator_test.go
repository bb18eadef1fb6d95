package provider

import (
	"errors"
	"testing"

	"github.com/jp-cli/jp/pkg/convo"
)

// TestAccumulatorPassesContentAndReasoningThroughInIdle verifies Testable
// Property 3's chronology guarantee: plain content/reasoning deltas emit
// their Event in the same order they were fed, untouched.
func TestAccumulatorPassesContentAndReasoningThroughInIdle(t *testing.T) {
	a := NewAccumulator()

	events, err := a.Feed(Delta{Content: "hello "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Kind != convo.PartContent || events[0].Content != "hello " {
		t.Fatalf("expected a single content event, got %v", events)
	}

	events, err = a.Feed(Delta{Reasoning: "thinking..."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Kind != convo.PartReasoning || events[0].Content != "thinking..." {
		t.Fatalf("expected a single reasoning event, got %v", events)
	}
}

func TestAccumulatorAssemblesToolCallArgumentsAcrossDeltas(t *testing.T) {
	a := NewAccumulator()

	events, err := a.Feed(Delta{ToolCallId: "1", ToolCallName: "get_weather", ToolCallArguments: `{"city":`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no event until the call finishes, got %v", events)
	}

	events, err = a.Feed(Delta{ToolCallArguments: `"Reno"}`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no event before ToolCallFinished, got %v", events)
	}

	events, err = a.Feed(Delta{ToolCallFinished: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Kind != convo.PartToolCall {
		t.Fatalf("expected a single tool call event, got %v", events)
	}
	call := events[0].ToolCall
	if call.Id != "1" || call.Name != "get_weather" {
		t.Fatalf("unexpected tool call %+v", call)
	}
	if string(call.Arguments) != `{"city":"Reno"}` {
		t.Fatalf("expected assembled arguments, got %q", call.Arguments)
	}

	// The FSM returns to Idle after finishing, so plain content resumes.
	events, err = a.Feed(Delta{Content: "done"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Kind != convo.PartContent {
		t.Fatalf("expected the accumulator to return to Idle, got %v", events)
	}
}

func TestAccumulatorToolCallFinishedInSingleDelta(t *testing.T) {
	a := NewAccumulator()
	events, err := a.Feed(Delta{ToolCallId: "1", ToolCallName: "noop", ToolCallFinished: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Kind != convo.PartToolCall {
		t.Fatalf("expected one tool call event, got %v", events)
	}
	if string(events[0].ToolCall.Arguments) != "{}" {
		t.Fatalf("expected empty arguments to default to {}, got %q", events[0].ToolCall.Arguments)
	}
}

func TestAccumulatorRejectsArgumentsWithoutAName(t *testing.T) {
	a := NewAccumulator()
	_, err := a.Feed(Delta{ToolCallArguments: `{"x":1}`})
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ProtocolError, got %T: %v", err, err)
	}
}

func TestAccumulatorRejectsInvalidJSONArguments(t *testing.T) {
	a := NewAccumulator()
	if _, err := a.Feed(Delta{ToolCallId: "1", ToolCallName: "get_weather", ToolCallArguments: "{not json"}); err != nil {
		t.Fatalf("unexpected error mid-accumulation: %v", err)
	}
	_, err := a.Feed(Delta{ToolCallFinished: true})
	if err == nil {
		t.Fatal("expected an error for malformed accumulated JSON")
	}
}

func TestAccumulatorDropsContentWhileAccumulating(t *testing.T) {
	a := NewAccumulator()
	if _, err := a.Feed(Delta{ToolCallId: "1", ToolCallName: "get_weather"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events, err := a.Feed(Delta{Content: "should be dropped", ToolCallArguments: "{}"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no event emitted for a dropped content chunk mid-accumulation, got %v", events)
	}
}
