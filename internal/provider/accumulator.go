package provider

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jp-cli/jp/pkg/convo"
)

// accumulatorState is the Delta->Event FSM's two states.
type accumulatorState int

const (
	accIdle accumulatorState = iota
	accAccumulating
)

// ProtocolError reports a Delta sequence that violates the accumulator's
// contract, e.g. tool_call_arguments arriving before any tool_call_name.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return "provider: protocol error: " + e.Reason }

// Accumulator walks a stream of Deltas, assembling tool-call argument
// fragments into a single ToolCall event and passing content/reasoning
// through untouched. One Accumulator serves exactly one chat stream.
type Accumulator struct {
	state accumulatorState
	id    string
	name  string
	args  strings.Builder
}

// NewAccumulator constructs an Accumulator in its Idle state.
func NewAccumulator() *Accumulator {
	return &Accumulator{state: accIdle}
}

// Feed advances the FSM by one Delta, returning zero or more completed
// Events in emission order.
func (a *Accumulator) Feed(d Delta) ([]convo.Event, error) {
	switch a.state {
	case accIdle:
		return a.feedIdle(d)
	default:
		return a.feedAccumulating(d)
	}
}

func (a *Accumulator) feedIdle(d Delta) ([]convo.Event, error) {
	if d.ToolCallArguments != "" && d.ToolCallName == "" {
		return nil, &ProtocolError{Reason: "tool_call_arguments received in Idle state without a tool_call_name"}
	}

	var events []convo.Event
	if d.Content != "" {
		events = append(events, convo.Event{Kind: convo.PartContent, Content: d.Content})
	}
	if d.Reasoning != "" {
		events = append(events, convo.Event{Kind: convo.PartReasoning, Content: d.Reasoning})
	}

	if d.ToolCallName != "" {
		a.state = accAccumulating
		a.id = d.ToolCallId
		a.name = d.ToolCallName
		a.args.Reset()
		if d.ToolCallArguments != "" {
			a.args.WriteString(d.ToolCallArguments)
		}
		if d.ToolCallFinished {
			event, err := a.finish()
			if err != nil {
				return events, err
			}
			events = append(events, event)
		}
	}
	return events, nil
}

func (a *Accumulator) feedAccumulating(d Delta) ([]convo.Event, error) {
	if d.Content != "" || d.Reasoning != "" {
		slog.Warn("provider: dropping content/reasoning chunk while accumulating a tool call", "tool_call_id", a.id)
	}
	if d.ToolCallArguments != "" {
		a.args.WriteString(d.ToolCallArguments)
	}
	if !d.ToolCallFinished {
		return nil, nil
	}
	event, err := a.finish()
	if err != nil {
		return nil, err
	}
	return []convo.Event{event}, nil
}

// finish parses the accumulated argument text as JSON (empty text counts
// as "{}") and emits a ToolCall event, returning the FSM to Idle.
func (a *Accumulator) finish() (convo.Event, error) {
	raw := strings.TrimSpace(a.args.String())
	if raw == "" {
		raw = "{}"
	}
	if !json.Valid([]byte(raw)) {
		return convo.Event{}, fmt.Errorf("provider: tool call %s arguments are not valid JSON: %q", a.id, raw)
	}
	event := convo.Event{
		Kind: convo.PartToolCall,
		ToolCall: &convo.ToolCallRequest{
			Id:        a.id,
			Name:      a.name,
			Arguments: json.RawMessage(raw),
		},
	}
	a.state = accIdle
	a.id, a.name = "", ""
	a.args.Reset()
	return event, nil
}
