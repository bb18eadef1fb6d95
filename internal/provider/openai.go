package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/shared"

	"github.com/jp-cli/jp/pkg/convo"
)

// OpenAIConfig configures an OpenAIProvider. The same wire protocol
// (Chat Completions) serves OpenAI's own API, OpenRouter, and any
// llama.cpp-compatible server, distinguished only by BaseURL and
// DefaultModel — see NewOpenRouterProvider and NewLlamaCppProvider.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	// ProviderName overrides the "openai" label used in FailoverReason
	// classification and logging, for the OpenRouter/llama.cpp aliases.
	ProviderName string
	// ReasoningViaThinkTags enables the `<think>...</think>` extraction
	// path for backends (llama.cpp, some OpenRouter models) with no
	// native reasoning_content field.
	ReasoningViaThinkTags bool
}

// OpenAIProvider implements Provider over the OpenAI Chat Completions
// wire protocol, shared by every OpenAI-compatible backend in the
// catalog.
type OpenAIProvider struct {
	client       sdk.Client
	name         string
	defaultModel string
	reasoningTag bool
	models       []convo.ModelDetails
}

func NewOpenAIProvider(config OpenAIConfig) (*OpenAIProvider, error) {
	if config.APIKey == "" && strings.TrimSpace(config.BaseURL) == "" {
		return nil, errors.New("provider: openai API key or base URL is required")
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "gpt-4o"
	}
	name := config.ProviderName
	if name == "" {
		name = "openai"
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if strings.TrimSpace(config.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &OpenAIProvider{
		client:       sdk.NewClient(opts...),
		name:         name,
		defaultModel: config.DefaultModel,
		reasoningTag: config.ReasoningViaThinkTags,
		models:       openaiModelCatalog(name),
	}, nil
}

// NewOpenRouterProvider builds an OpenAIProvider pointed at OpenRouter's
// OpenAI-compatible endpoint.
func NewOpenRouterProvider(apiKey, defaultModel string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.New("provider: openrouter API key is required")
	}
	return NewOpenAIProvider(OpenAIConfig{
		APIKey:                apiKey,
		BaseURL:               "https://openrouter.ai/api/v1",
		DefaultModel:          defaultModel,
		ProviderName:          "openrouter",
		ReasoningViaThinkTags: true,
	})
}

// NewLlamaCppProvider builds an OpenAIProvider pointed at a local
// llama.cpp server's OpenAI-compatible endpoint. llama.cpp accepts any
// non-empty API key.
func NewLlamaCppProvider(baseURL, defaultModel string) (*OpenAIProvider, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "http://127.0.0.1:8080/v1"
	}
	return NewOpenAIProvider(OpenAIConfig{
		APIKey:                "sk-no-key-required",
		BaseURL:               baseURL,
		DefaultModel:          defaultModel,
		ProviderName:          "llamacpp",
		ReasoningViaThinkTags: true,
	})
}

func openaiModelCatalog(name string) []convo.ModelDetails {
	if name != "openai" {
		// OpenRouter and llama.cpp models are operator-configured; the
		// catalog only needs the default model to be queryable.
		return nil
	}
	return []convo.ModelDetails{
		{Provider: name, Name: "gpt-4o", ContextWindow: 128000, MaxOutputTokens: 16384, Reasoning: convo.ReasoningUnsupported, Features: []string{"tool-calling", "vision"}},
		{Provider: name, Name: "gpt-4o-mini", ContextWindow: 128000, MaxOutputTokens: 16384, Reasoning: convo.ReasoningUnsupported, Features: []string{"tool-calling", "vision"}},
		{Provider: name, Name: "o3", ContextWindow: 200000, MaxOutputTokens: 100000, Reasoning: convo.ReasoningAdaptive, AdaptiveSupportsMax: true, Features: []string{"tool-calling"}},
	}
}

func (p *OpenAIProvider) Models() []convo.ModelDetails { return p.models }

func (p *OpenAIProvider) ModelDetails(name string) (convo.ModelDetails, bool) {
	for _, m := range p.models {
		if m.Name == name {
			return m, true
		}
	}
	return convo.ModelDetails{}, false
}

func (p *OpenAIProvider) model(requested string) string {
	if requested != "" {
		return requested
	}
	return p.defaultModel
}

func (p *OpenAIProvider) ChatCompletion(ctx context.Context, model string, query ChatQuery) ([]convo.Event, error) {
	stream, err := p.ChatCompletionStream(ctx, model, query)
	if err != nil {
		return nil, err
	}
	return Collect(ctx, stream)
}

func (p *OpenAIProvider) StructuredCompletion(ctx context.Context, model string, query ChatQuery, schema []byte) ([]byte, error) {
	return DefaultStructuredCompletion(ctx, p, model, query, schema)
}

func (p *OpenAIProvider) ChatCompletionStream(ctx context.Context, model string, query ChatQuery) (EventStream, error) {
	params, err := p.buildParams(model, query)
	if err != nil {
		return nil, err
	}
	raw := p.client.Chat.Completions.NewStreaming(ctx, params)
	s := &openaiStream{raw: raw, acc: NewAccumulator(), model: p.model(model), provider: p.name, toolCalls: map[int64]*accumulatedToolCall{}}
	if p.reasoningTag {
		s.reasoning = NewReasoningExtractor()
	}
	return s, nil
}

func (p *OpenAIProvider) buildParams(model string, query ChatQuery) (sdk.ChatCompletionNewParams, error) {
	messages, err := convertThreadToOpenAI(query.Thread)
	if err != nil {
		return sdk.ChatCompletionNewParams{}, err
	}

	reasoningActive := query.ReasoningEffort != ""
	details, _ := p.ModelDetails(p.model(model))
	resolvedChoice, instruction := ResolveToolChoice(query.ToolChoice, len(query.Tools), reasoningActive, details.HasFeature("forced-function-with-reasoning"))
	if instruction != "" {
		messages = append([]sdk.ChatCompletionMessageParamUnion{sdk.SystemMessage(instruction)}, messages...)
	}

	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(p.model(model)),
		Messages: messages,
	}
	if len(query.Tools) > 0 {
		tools, err := convertToolsToOpenAI(query.Tools, query.ToolCallStrictMode)
		if err != nil {
			return sdk.ChatCompletionNewParams{}, err
		}
		params.Tools = tools
	}
	applyOpenAIToolChoice(&params, resolvedChoice)

	if query.ReasoningEffort != "" {
		params.ReasoningEffort = shared.ReasoningEffort(query.ReasoningEffort)
	}
	params.StreamOptions.IncludeUsage = sdk.Bool(true)

	return params, nil
}

func applyOpenAIToolChoice(params *sdk.ChatCompletionNewParams, choice ToolChoice) {
	switch choice.Kind {
	case ToolChoiceRequired:
		params.ToolChoice = sdk.ChatCompletionToolChoiceOptionUnionParam{OfAuto: sdk.String("required")}
	case ToolChoiceNone:
		params.ToolChoice = sdk.ChatCompletionToolChoiceOptionUnionParam{OfAuto: sdk.String("none")}
	case ToolChoiceFunction:
		if choice.FunctionName != "" {
			params.ToolChoice = sdk.ChatCompletionToolChoiceOptionUnionParam{
				OfChatCompletionNamedToolChoice: &sdk.ChatCompletionNamedToolChoiceParam{
					Function: sdk.ChatCompletionNamedToolChoiceFunctionParam{Name: choice.FunctionName},
				},
			}
		}
	default:
		// Unset leaves the API's default ("auto" when tools are present).
	}
}

// convertThreadToOpenAI replays the persisted event stream into OpenAI
// chat messages: tool call requests become an assistant message's
// ToolCalls, tool call responses become tool-role messages keyed by id.
func convertThreadToOpenAI(thread convo.Thread) ([]sdk.ChatCompletionMessageParamUnion, error) {
	var out []sdk.ChatCompletionMessageParamUnion
	if thread.SystemPrompt != "" {
		out = append(out, sdk.SystemMessage(thread.SystemPrompt))
	}

	entries := thread.Events.All()
	var pendingAssistant *sdk.ChatCompletionAssistantMessageParam

	flush := func() {
		if pendingAssistant != nil {
			out = append(out, sdk.ChatCompletionMessageParamUnion{OfAssistant: pendingAssistant})
			pendingAssistant = nil
		}
	}

	for _, entry := range entries {
		e := entry.Event
		switch e.Kind {
		case convo.EventChatRequest:
			flush()
			out = append(out, sdk.UserMessage(e.Text))
		case convo.EventChatResponse:
			if e.ResponseKind == convo.ResponseReasoning {
				continue
			}
			if pendingAssistant == nil {
				pendingAssistant = &sdk.ChatCompletionAssistantMessageParam{}
			}
			pendingAssistant.Content.OfString = sdk.String(e.Text)
		case convo.EventToolCallRequest:
			if pendingAssistant == nil {
				pendingAssistant = &sdk.ChatCompletionAssistantMessageParam{}
			}
			pendingAssistant.ToolCalls = append(pendingAssistant.ToolCalls, sdk.ChatCompletionMessageToolCallUnionParam{
				OfFunction: &sdk.ChatCompletionMessageFunctionToolCallParam{
					ID: e.ToolCallId,
					Function: sdk.ChatCompletionMessageFunctionToolCallFunctionParam{
						Name:      e.ToolName,
						Arguments: string(e.ToolArguments),
					},
				},
			})
		case convo.EventToolCallResponse:
			flush()
			out = append(out, sdk.ToolMessage(e.ToolResultContent, e.ToolCallId))
		}
	}
	flush()
	return out, nil
}

func convertToolsToOpenAI(tools []convo.ToolDefinition, strict bool) ([]sdk.ChatCompletionToolUnionParam, error) {
	result := make([]sdk.ChatCompletionToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		raw := toolDefinitionJSONSchema(tool)
		if strict {
			transformed, err := TransformSchemaForStrictMode(raw)
			if err != nil {
				return nil, fmt.Errorf("provider: openai: transform schema for %s: %w", tool.Name, err)
			}
			raw = transformed
		}
		var params map[string]any
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, fmt.Errorf("provider: openai: invalid schema for %s: %w", tool.Name, err)
		}
		def := sdk.FunctionDefinitionParam{
			Name:        tool.Name,
			Description: sdk.String(tool.Description),
			Parameters:  params,
		}
		result = append(result, sdk.ChatCompletionFunctionTool(def))
	}
	return result, nil
}

type accumulatedToolCall struct {
	id, name string
}

// openaiStream adapts the OpenAI Chat Completions SSE stream to
// EventStream. Tool call argument fragments key on the delta's Index,
// not arrival order, per the SDK's own streaming contract.
type openaiStream struct {
	raw       *ssestream.Stream[sdk.ChatCompletionChunk]
	acc       *Accumulator
	reasoning *ReasoningExtractor
	model     string
	provider  string

	toolCalls map[int64]*accumulatedToolCall

	pending []convo.Event
	current convo.Event
	err     error
}

func (s *openaiStream) Next(ctx context.Context) bool {
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
			if s.err == nil && s.reasoning != nil {
				final := s.reasoning.Finalize()
				s.pending = append(s.pending, contentReasoningEvents(final)...)
				if len(s.pending) > 0 {
					continue
				}
			}
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

func contentReasoningEvents(c ExtractedChunk) []convo.Event {
	var events []convo.Event
	if c.Content != "" {
		events = append(events, convo.Event{Kind: convo.PartContent, Content: c.Content})
	}
	if c.Reasoning != "" {
		events = append(events, convo.Event{Kind: convo.PartReasoning, Content: c.Reasoning})
	}
	return events
}

func (s *openaiStream) feed(chunk sdk.ChatCompletionChunk) ([]convo.Event, error) {
	if len(chunk.Choices) == 0 {
		return nil, nil
	}
	choice := chunk.Choices[0]
	delta := choice.Delta

	var events []convo.Event

	if delta.Content != "" {
		if s.reasoning != nil {
			events = append(events, contentReasoningEvents(s.reasoning.Feed(delta.Content))...)
		} else {
			fed, err := s.acc.Feed(Delta{Content: delta.Content})
			if err != nil {
				return nil, err
			}
			events = append(events, fed...)
		}
	}

	for _, tc := range delta.ToolCalls {
		idx := tc.Index
		call, ok := s.toolCalls[idx]
		if !ok {
			call = &accumulatedToolCall{}
			s.toolCalls[idx] = call
		}
		if tc.ID != "" {
			call.id = tc.ID
		}
		if tc.Function.Name != "" {
			call.name = tc.Function.Name
		}
		if call.id == "" || call.name == "" {
			continue
		}
		fed, err := s.acc.Feed(Delta{ToolCallId: call.id, ToolCallName: call.name, ToolCallArguments: tc.Function.Arguments})
		if err != nil {
			return nil, err
		}
		events = append(events, fed...)
	}

	if choice.FinishReason == "tool_calls" {
		for _, call := range s.toolCalls {
			fed, err := s.acc.Feed(Delta{ToolCallId: call.id, ToolCallName: call.name, ToolCallFinished: true})
			if err != nil {
				return nil, err
			}
			events = append(events, fed...)
		}
		s.toolCalls = map[int64]*accumulatedToolCall{}
	}

	return events, nil
}

func (s *openaiStream) Event() convo.Event { return s.current }

func (s *openaiStream) Err() error {
	if s.err == nil {
		return nil
	}
	if errors.Is(s.err, context.Canceled) || errors.Is(s.err, context.DeadlineExceeded) {
		return s.err
	}
	return classifyOpenAIError(s.err, s.provider, s.model)
}

func (s *openaiStream) Close() error { return s.raw.Close() }

func classifyOpenAIError(err error, providerName, model string) error {
	var apiErr *sdk.Error
	if !errors.As(err, &apiErr) {
		return NewError(providerName, model, err, func(error) FailoverReason { return FailoverUnknown })
	}
	return NewError(providerName, model, err, func(error) FailoverReason {
		switch apiErr.StatusCode {
		case 401, 403:
			return FailoverAuth
		case 402:
			return FailoverBilling
		case 429:
			return FailoverRateLimit
		case 400, 422:
			return FailoverInvalidRequest
		case 503:
			return FailoverModelUnavailable
		default:
			if apiErr.StatusCode >= 500 {
				return FailoverServerError
			}
			return FailoverUnknown
		}
	})
}
