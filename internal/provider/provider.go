package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/jp-cli/jp/pkg/convo"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// structuredSchemaResource is a fixed, synthetic resource name used for
// every compiled structured-output schema; each DefaultStructuredCompletion
// call compiles its own schema independently, so no two calls ever share a
// compiler and the name never needs to be unique.
const structuredSchemaResource = "structured-output.json"

// Collect drains an EventStream into a slice, implementing the default
// ChatCompletion behavior shared by every provider: pull until Next
// returns false, then surface a terminal error if there was one. Any
// buffering of partial content/reasoning chunks must already have
// happened inside the stream's own decoding (accumulator + reasoning
// extractor); by the time an Event reaches here it is complete and in
// chronological order.
func Collect(ctx context.Context, stream EventStream) ([]convo.Event, error) {
	defer stream.Close()
	var events []convo.Event
	for stream.Next(ctx) {
		events = append(events, stream.Event())
	}
	if err := stream.Err(); err != nil {
		return events, err
	}
	return events, nil
}

const structuredCompletionMaxAttempts = 3

// structuredToolName is the synthetic tool name used to force a
// schema-shaped reply from providers with no native JSON-schema response
// format.
const structuredToolName = "__structured_output__"

// DefaultStructuredCompletion implements the fallback described in spec
// 4.D: invoke chat with a forced tool call whose arguments are the
// schema, retry up to structuredCompletionMaxAttempts times, relaxing
// strict mode on the final attempt, and fail if no matching tool call
// comes back.
func DefaultStructuredCompletion(ctx context.Context, p Provider, model string, query ChatQuery, schema []byte) ([]byte, error) {
	forced := convo.ToolDefinition{
		Name:        structuredToolName,
		Description: "Emit the final answer matching the required schema.",
	}
	q := query
	q.Tools = append(append([]convo.ToolDefinition{}, query.Tools...), forced)
	q.ToolChoice = ToolChoice{Kind: ToolChoiceFunction, FunctionName: structuredToolName}

	validator, err := compileSchema(schema)
	if err != nil {
		return nil, fmt.Errorf("structured completion: invalid schema: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= structuredCompletionMaxAttempts; attempt++ {
		q.ToolCallStrictMode = attempt < structuredCompletionMaxAttempts
		events, err := p.ChatCompletion(ctx, model, q)
		if err != nil {
			lastErr = err
			continue
		}
		for _, e := range events {
			if e.Kind == convo.PartToolCall && e.ToolCall != nil && e.ToolCall.Name == structuredToolName {
				if err := validateAgainstSchema(validator, e.ToolCall.Arguments); err != nil {
					lastErr = fmt.Errorf("structured completion: reply does not match schema: %w", err)
					continue
				}
				return e.ToolCall.Arguments, nil
			}
		}
		if lastErr == nil {
			lastErr = fmt.Errorf("structured completion: no matching tool call in reply")
		}
	}
	return nil, lastErr
}

// compileSchema compiles the JSON schema requested by the caller once, so
// every retry attempt validates the model's reply against it rather than
// only checking that the reply parses as JSON.
func compileSchema(schema []byte) (*jsonschema.Schema, error) {
	return jsonschema.CompileString(structuredSchemaResource, string(schema))
}

// validateAgainstSchema parses raw as JSON (treating empty as "{}", per
// the accumulator's own convention) and validates it against validator.
func validateAgainstSchema(validator *jsonschema.Schema, raw []byte) error {
	text := bytes.TrimSpace(raw)
	if len(text) == 0 {
		text = []byte("{}")
	}
	var v any
	if err := json.Unmarshal(text, &v); err != nil {
		return fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	return validator.Validate(v)
}
