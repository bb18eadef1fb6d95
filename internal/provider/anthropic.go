package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/jp-cli/jp/pkg/convo"
)

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// AnthropicProvider implements Provider over Anthropic's Messages API.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
	models       []convo.ModelDetails
}

// NewAnthropicProvider constructs an AnthropicProvider. config.APIKey is
// required; BaseURL overrides the default endpoint (for a proxy or
// self-hosted gateway); DefaultModel is used when a query's model is empty.
func NewAnthropicProvider(config AnthropicConfig) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("provider: anthropic API key is required")
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "claude-sonnet-4-20250514"
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if strings.TrimSpace(config.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &AnthropicProvider{
		client:       anthropic.NewClient(opts...),
		defaultModel: config.DefaultModel,
		models:       anthropicModelCatalog(),
	}, nil
}

func anthropicModelCatalog() []convo.ModelDetails {
	return []convo.ModelDetails{
		{
			Provider: "anthropic", Name: "claude-opus-4-20250514",
			ContextWindow: 200000, MaxOutputTokens: 32000,
			Reasoning: convo.ReasoningBudgeted, BudgetMin: 1024, BudgetMax: 32000,
			Features: []string{"tool-calling", "vision", "cache-control"},
		},
		{
			Provider: "anthropic", Name: "claude-sonnet-4-20250514",
			ContextWindow: 200000, MaxOutputTokens: 64000,
			Reasoning: convo.ReasoningBudgeted, BudgetMin: 1024, BudgetMax: 64000,
			Features: []string{"tool-calling", "vision", "cache-control"},
		},
		{
			Provider: "anthropic", Name: "claude-haiku-4-20250514",
			ContextWindow: 200000, MaxOutputTokens: 64000,
			Reasoning: convo.ReasoningUnsupported,
			Features:  []string{"tool-calling", "vision", "cache-control"},
		},
	}
}

func (p *AnthropicProvider) Models() []convo.ModelDetails { return p.models }

func (p *AnthropicProvider) ModelDetails(name string) (convo.ModelDetails, bool) {
	for _, m := range p.models {
		if m.Name == name {
			return m, true
		}
	}
	return convo.ModelDetails{}, false
}

func (p *AnthropicProvider) model(requested string) string {
	if requested != "" {
		return requested
	}
	return p.defaultModel
}

// ChatCompletion drains ChatCompletionStream via Collect.
func (p *AnthropicProvider) ChatCompletion(ctx context.Context, model string, query ChatQuery) ([]convo.Event, error) {
	stream, err := p.ChatCompletionStream(ctx, model, query)
	if err != nil {
		return nil, err
	}
	return Collect(ctx, stream)
}

func (p *AnthropicProvider) StructuredCompletion(ctx context.Context, model string, query ChatQuery, schema []byte) ([]byte, error) {
	return DefaultStructuredCompletion(ctx, p, model, query, schema)
}

func (p *AnthropicProvider) ChatCompletionStream(ctx context.Context, model string, query ChatQuery) (EventStream, error) {
	params, err := p.buildParams(model, query)
	if err != nil {
		return nil, err
	}
	raw := p.client.Messages.NewStreaming(ctx, params)
	return &anthropicStream{raw: raw, acc: NewAccumulator(), model: p.model(model)}, nil
}

func (p *AnthropicProvider) buildParams(model string, query ChatQuery) (anthropic.MessageNewParams, error) {
	messages, err := convertThreadToAnthropic(query.Thread)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model(model)),
		Messages:  messages,
		MaxTokens: 8192,
	}

	thread := query.Thread
	var system []anthropic.TextBlockParam
	if thread.SystemPrompt != "" {
		system = append(system, anthropic.TextBlockParam{Text: thread.SystemPrompt})
	}
	for _, section := range thread.Sections {
		system = append(system, anthropic.TextBlockParam{Text: section})
	}
	for _, att := range thread.Attachments {
		system = append(system, anthropic.TextBlockParam{Text: att.Content})
	}

	if len(query.Tools) > 0 {
		tools, err := convertToolsToAnthropic(query.Tools, query.ToolCallStrictMode)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = tools
	}

	reasoningActive := query.ReasoningEffort != "" && query.ReasoningEffort != EffortLow
	details, _ := p.ModelDetails(p.model(model))
	resolvedChoice, instruction := ResolveToolChoice(query.ToolChoice, len(query.Tools), reasoningActive, details.HasFeature("forced-function-with-reasoning"))
	if instruction != "" {
		system = append(system, anthropic.TextBlockParam{Text: instruction})
	}
	params.System = system

	applyAnthropicToolChoice(&params, resolvedChoice)
	assignAnthropicCacheBreakpoints(&params, thread)

	if query.ReasoningEffort != "" && query.ReasoningEffort != EffortLow {
		budget := reasoningBudgetFor(query.ReasoningEffort)
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
	}

	return params, nil
}

// anthropicCacheControl is the 5-minute ephemeral breakpoint the
// manifold example's adaptTools/adaptMessages apply to cacheable blocks.
var anthropicCacheControl = anthropic.CacheControlEphemeralParam{TTL: anthropic.CacheControlEphemeralTTLTTL5m}

// assignAnthropicCacheBreakpoints places cache_control markers on the
// highest-value present blocks, in the fixed priority order
// AssignCacheBreakpoints enforces, capped at 4: last tool definition,
// system prompt, instructions (thread sections), attachments, last
// history message.
func assignAnthropicCacheBreakpoints(params *anthropic.MessageNewParams, thread convo.Thread) {
	present := map[CacheBlock]bool{
		CacheBlockLastToolDefinition: len(params.Tools) > 0,
		CacheBlockSystemPrompt:       thread.SystemPrompt != "",
		CacheBlockInstructions:       len(thread.Sections) > 0,
		CacheBlockAttachments:        len(thread.Attachments) > 0,
		CacheBlockLastHistoryMessage: len(params.Messages) > 0,
	}
	assigned := AssignCacheBreakpoints(present, 4)

	systemIdx := -1   // SystemPrompt occupies params.System[0] when present
	sectionIdx := -1  // last Sections entry's index in params.System
	attachIdx := -1   // last Attachments entry's index in params.System
	cursor := 0
	if thread.SystemPrompt != "" {
		systemIdx = cursor
		cursor++
	}
	if n := len(thread.Sections); n > 0 {
		sectionIdx = cursor + n - 1
		cursor += n
	}
	if n := len(thread.Attachments); n > 0 {
		attachIdx = cursor + n - 1
	}

	for _, block := range assigned {
		switch block {
		case CacheBlockLastToolDefinition:
			if n := len(params.Tools); n > 0 && params.Tools[n-1].OfTool != nil {
				params.Tools[n-1].OfTool.CacheControl = anthropicCacheControl
			}
		case CacheBlockSystemPrompt:
			if systemIdx >= 0 {
				params.System[systemIdx].CacheControl = anthropicCacheControl
			}
		case CacheBlockInstructions:
			if sectionIdx >= 0 {
				params.System[sectionIdx].CacheControl = anthropicCacheControl
			}
		case CacheBlockAttachments:
			if attachIdx >= 0 {
				params.System[attachIdx].CacheControl = anthropicCacheControl
			}
		case CacheBlockLastHistoryMessage:
			if n := len(params.Messages); n > 0 {
				if content := params.Messages[n-1].Content; len(content) > 0 {
					if last := content[len(content)-1]; last.OfText != nil {
						last.OfText.CacheControl = anthropicCacheControl
					}
				}
			}
		}
	}
}

func reasoningBudgetFor(effort ReasoningEffort) int64 {
	switch effort {
	case EffortMedium:
		return 10000
	case EffortHigh:
		return 24000
	case EffortAbsolute, EffortMax:
		return 32000
	default:
		return 4000
	}
}

func applyAnthropicToolChoice(params *anthropic.MessageNewParams, choice ToolChoice) {
	switch choice.Kind {
	case ToolChoiceRequired:
		params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}
	case ToolChoiceFunction:
		if choice.FunctionName != "" {
			params.ToolChoice = anthropic.ToolChoiceParamOfTool(choice.FunctionName)
		}
	case ToolChoiceNone:
		none := anthropic.NewToolChoiceNoneParam()
		params.ToolChoice = anthropic.ToolChoiceUnionParam{OfNone: &none}
	default:
		// Leaving ToolChoice unset is Anthropic's "auto".
	}
}

// convertThreadToAnthropic replays the conversation's persisted event
// stream into Anthropic's message list: chat request/response text
// becomes user/assistant text blocks, tool call request/response pairs
// become tool_use/tool_result blocks.
func convertThreadToAnthropic(thread convo.Thread) ([]anthropic.MessageParam, error) {
	var messages []anthropic.MessageParam
	entries := thread.Events.All()

	for i := 0; i < len(entries); i++ {
		e := entries[i].Event
		switch e.Kind {
		case convo.EventChatRequest:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(e.Text)))
		case convo.EventChatResponse:
			if e.ResponseKind == convo.ResponseReasoning {
				continue
			}
			if n := len(messages); n > 0 && messages[n-1].Role == "assistant" {
				messages[n-1].Content = append(messages[n-1].Content, anthropic.NewTextBlock(e.Text))
				continue
			}
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(e.Text)))
		case convo.EventToolCallRequest:
			var input map[string]any
			if len(e.ToolArguments) > 0 {
				if err := json.Unmarshal(e.ToolArguments, &input); err != nil {
					return nil, fmt.Errorf("provider: anthropic: tool call %s arguments: %w", e.ToolCallId, err)
				}
			}
			block := anthropic.NewToolUseBlock(e.ToolCallId, input, e.ToolName)
			if n := len(messages); n > 0 && messages[n-1].Role == "assistant" {
				messages[n-1].Content = append(messages[n-1].Content, block)
				continue
			}
			messages = append(messages, anthropic.NewAssistantMessage(block))
		case convo.EventToolCallResponse:
			block := anthropic.NewToolResultBlock(e.ToolCallId, e.ToolResultContent, e.ToolResultError)
			if n := len(messages); n > 0 && messages[n-1].Role == "user" {
				messages[n-1].Content = append(messages[n-1].Content, block)
				continue
			}
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}
	return messages, nil
}

func convertToolsToAnthropic(tools []convo.ToolDefinition, strict bool) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		raw := toolDefinitionJSONSchema(tool)
		if strict {
			transformed, err := TransformSchemaForStrictMode(raw)
			if err != nil {
				return nil, fmt.Errorf("provider: anthropic: transform schema for %s: %w", tool.Name, err)
			}
			raw = transformed
		}
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("provider: anthropic: invalid schema for %s: %w", tool.Name, err)
		}
		schema := anthropic.ToolInputSchemaParam{ExtraFields: fields}
		param := anthropic.ToolUnionParamOfTool(schema, tool.Name)
		if param.OfTool == nil {
			return nil, fmt.Errorf("provider: anthropic: missing tool definition for %s", tool.Name)
		}
		param.OfTool.Description = anthropic.String(tool.Description)
		result = append(result, param)
	}
	return result, nil
}

// toolDefinitionJSONSchema renders a convo.ToolDefinition's ordered
// parameter list as a JSON Schema object node.
func toolDefinitionJSONSchema(tool convo.ToolDefinition) []byte {
	properties := make(map[string]any, len(tool.Parameters))
	var required []string
	for _, p := range tool.Parameters {
		properties[p.Name] = paramConfigSchema(p.Config)
		if p.Config.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	b, _ := json.Marshal(schema)
	return b
}

func paramConfigSchema(c convo.ToolParameterConfig) map[string]any {
	node := map[string]any{"type": string(c.Kind)}
	if c.Description != "" {
		node["description"] = c.Description
	}
	if len(c.Enumeration) > 0 {
		enum := make([]any, len(c.Enumeration))
		for i, v := range c.Enumeration {
			enum[i] = v
		}
		node["enum"] = enum
	}
	if c.Minimum != nil {
		node["minimum"] = *c.Minimum
	}
	if c.Maximum != nil {
		node["maximum"] = *c.Maximum
	}
	if c.Items != nil {
		node["items"] = paramConfigSchema(*c.Items)
	}
	return node
}

// anthropicStream adapts Anthropic's SSE stream to EventStream, feeding
// each normalized Delta through a shared Accumulator and buffering the
// (usually >1) Events a single Delta can produce.
type anthropicStream struct {
	raw   *ssestream.Stream[anthropic.MessageStreamEventUnion]
	acc   *Accumulator
	model string

	pending []convo.Event
	current convo.Event
	err     error

	toolID   string
	toolName string
}

func (s *anthropicStream) Next(ctx context.Context) bool {
	for {
		if len(s.pending) > 0 {
			s.current, s.pending = s.pending[0], s.pending[1:]
			return true
		}
		if ctx.Err() != nil {
			s.err = ctx.Err()
			return false
		}
		if !s.raw.Next() {
			s.err = s.raw.Err()
			return false
		}
		events, err := s.feed(s.raw.Current())
		if err != nil {
			s.err = err
			return false
		}
		s.pending = events
	}
}

func (s *anthropicStream) feed(event anthropic.MessageStreamEventUnion) ([]convo.Event, error) {
	switch event.Type {
	case "content_block_start":
		block := event.AsContentBlockStart().ContentBlock
		if block.Type == "tool_use" {
			use := block.AsToolUse()
			s.toolID, s.toolName = use.ID, use.Name
			return s.acc.Feed(Delta{ToolCallId: use.ID, ToolCallName: use.Name})
		}
		return nil, nil

	case "content_block_delta":
		delta := event.AsContentBlockDelta().Delta
		switch delta.Type {
		case "text_delta":
			return s.acc.Feed(Delta{Content: delta.Text})
		case "thinking_delta":
			return s.acc.Feed(Delta{Reasoning: delta.Thinking})
		case "input_json_delta":
			return s.acc.Feed(Delta{ToolCallId: s.toolID, ToolCallName: s.toolName, ToolCallArguments: delta.PartialJSON})
		}
		return nil, nil

	case "content_block_stop":
		if s.toolID != "" {
			events, err := s.acc.Feed(Delta{ToolCallId: s.toolID, ToolCallName: s.toolName, ToolCallFinished: true})
			s.toolID, s.toolName = "", ""
			return events, err
		}
		return nil, nil

	case "message_stop":
		return nil, nil

	default:
		return nil, nil
	}
}

func (s *anthropicStream) Event() convo.Event { return s.current }
func (s *anthropicStream) Err() error {
	if errors.Is(s.err, context.Canceled) || errors.Is(s.err, context.DeadlineExceeded) {
		return s.err
	}
	if s.err == nil {
		return nil
	}
	return classifyAnthropicError(s.err, s.model)
}
func (s *anthropicStream) Close() error { return s.raw.Close() }

func classifyAnthropicError(err error, model string) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return NewError("anthropic", model, err, func(error) FailoverReason { return FailoverUnknown })
	}
	return NewError("anthropic", model, err, func(error) FailoverReason {
		switch apiErr.StatusCode {
		case 401, 403:
			return FailoverAuth
		case 402:
			return FailoverBilling
		case 429:
			return FailoverRateLimit
		case 400, 422:
			return FailoverInvalidRequest
		case 503, 529:
			return FailoverModelUnavailable
		default:
			if apiErr.StatusCode >= 500 {
				return FailoverServerError
			}
			return FailoverUnknown
		}
	})
}
