package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"github.com/jp-cli/jp/pkg/convo"
)

// GoogleConfig configures a GoogleProvider.
type GoogleConfig struct {
	APIKey       string
	DefaultModel string
}

// GoogleProvider implements Provider over the Gemini API via the
// official google.golang.org/genai SDK.
type GoogleProvider struct {
	client       *genai.Client
	defaultModel string
	models       []convo.ModelDetails
}

func NewGoogleProvider(config GoogleConfig) (*GoogleProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("provider: google API key is required")
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("provider: google: create client: %w", err)
	}

	return &GoogleProvider{
		client:       client,
		defaultModel: config.DefaultModel,
		models:       googleModelCatalog(),
	}, nil
}

func googleModelCatalog() []convo.ModelDetails {
	return []convo.ModelDetails{
		{Provider: "google", Name: "gemini-2.0-flash", ContextWindow: 1000000, MaxOutputTokens: 8192, Reasoning: convo.ReasoningUnsupported, Features: []string{"tool-calling", "vision"}},
		{Provider: "google", Name: "gemini-2.0-flash-lite", ContextWindow: 1000000, MaxOutputTokens: 8192, Reasoning: convo.ReasoningUnsupported, Features: []string{"tool-calling", "vision"}},
		{Provider: "google", Name: "gemini-1.5-pro", ContextWindow: 2000000, MaxOutputTokens: 8192, Reasoning: convo.ReasoningUnsupported, Features: []string{"tool-calling", "vision"}},
	}
}

func (p *GoogleProvider) Models() []convo.ModelDetails { return p.models }

func (p *GoogleProvider) ModelDetails(name string) (convo.ModelDetails, bool) {
	for _, m := range p.models {
		if m.Name == name {
			return m, true
		}
	}
	return convo.ModelDetails{}, false
}

func (p *GoogleProvider) model(requested string) string {
	if requested != "" {
		return requested
	}
	return p.defaultModel
}

func (p *GoogleProvider) ChatCompletion(ctx context.Context, model string, query ChatQuery) ([]convo.Event, error) {
	stream, err := p.ChatCompletionStream(ctx, model, query)
	if err != nil {
		return nil, err
	}
	return Collect(ctx, stream)
}

func (p *GoogleProvider) StructuredCompletion(ctx context.Context, model string, query ChatQuery, schema []byte) ([]byte, error) {
	return DefaultStructuredCompletion(ctx, p, model, query, schema)
}

func (p *GoogleProvider) ChatCompletionStream(ctx context.Context, model string, query ChatQuery) (EventStream, error) {
	resolved := p.model(model)
	contents, err := convertThreadToGoogle(query.Thread)
	if err != nil {
		return nil, err
	}
	config := p.buildConfig(model, query)

	seq := p.client.Models.GenerateContentStream(ctx, resolved, contents, config)
	next, stop := iter.Pull2(seq)
	return &googleStream{next: next, stop: stop, acc: NewAccumulator(), model: resolved}, nil
}

func (p *GoogleProvider) buildConfig(model string, query ChatQuery) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if query.Thread.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: query.Thread.SystemPrompt}},
		}
	}
	if len(query.Tools) > 0 {
		config.Tools = convertToolsToGoogle(query.Tools)
	}

	// Gemini's catalog here advertises no reasoning capability, so
	// reasoningActive is always false today; still routed through
	// ResolveToolChoice so the single-tool Required substitution applies
	// uniformly across providers per spec.md §4.D.
	details, _ := p.ModelDetails(p.model(model))
	reasoningActive := details.Reasoning != convo.ReasoningUnsupported && details.Reasoning != convo.ReasoningUnknown
	resolvedChoice, instruction := ResolveToolChoice(query.ToolChoice, len(query.Tools), reasoningActive, details.HasFeature("forced-function-with-reasoning"))
	if instruction != "" {
		if config.SystemInstruction == nil {
			config.SystemInstruction = &genai.Content{}
		}
		config.SystemInstruction.Parts = append(config.SystemInstruction.Parts, &genai.Part{Text: instruction})
	}
	applyGoogleToolChoice(config, resolvedChoice)
	return config
}

func applyGoogleToolChoice(config *genai.GenerateContentConfig, choice ToolChoice) {
	switch choice.Kind {
	case ToolChoiceRequired:
		config.ToolConfig = &genai.ToolConfig{FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAny}}
	case ToolChoiceNone:
		config.ToolConfig = &genai.ToolConfig{FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeNone}}
	case ToolChoiceFunction:
		if choice.FunctionName != "" {
			config.ToolConfig = &genai.ToolConfig{FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode:                 genai.FunctionCallingConfigModeAny,
				AllowedFunctionNames: []string{choice.FunctionName},
			}}
		}
	}
}

// convertThreadToGoogle replays the persisted event stream into Gemini
// Content turns. Gemini has no tool role: tool results are user-side
// FunctionResponse parts, so consecutive tool call requests/responses
// are folded into the surrounding model/user turns per the teacher's
// convertMessages.
func convertThreadToGoogle(thread convo.Thread) ([]*genai.Content, error) {
	var result []*genai.Content
	toolNames := map[string]string{}

	appendTo := func(role genai.Role, part *genai.Part) {
		if n := len(result); n > 0 && result[n-1].Role == role {
			result[n-1].Parts = append(result[n-1].Parts, part)
			return
		}
		result = append(result, &genai.Content{Role: role, Parts: []*genai.Part{part}})
	}

	for _, entry := range thread.Events.All() {
		e := entry.Event
		switch e.Kind {
		case convo.EventChatRequest:
			appendTo(genai.RoleUser, &genai.Part{Text: e.Text})
		case convo.EventChatResponse:
			if e.ResponseKind == convo.ResponseReasoning {
				continue
			}
			appendTo(genai.RoleModel, &genai.Part{Text: e.Text})
		case convo.EventToolCallRequest:
			toolNames[e.ToolCallId] = e.ToolName
			var args map[string]any
			if err := json.Unmarshal(e.ToolArguments, &args); err != nil {
				args = map[string]any{}
			}
			appendTo(genai.RoleModel, &genai.Part{FunctionCall: &genai.FunctionCall{Name: e.ToolName, Args: args}})
		case convo.EventToolCallResponse:
			var response map[string]any
			if err := json.Unmarshal([]byte(e.ToolResultContent), &response); err != nil {
				response = map[string]any{"result": e.ToolResultContent, "error": e.ToolResultError}
			}
			appendTo(genai.RoleUser, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				Name:     toolNames[e.ToolCallId],
				Response: response,
			}})
		}
	}
	return result, nil
}

func convertToolsToGoogle(tools []convo.ToolDefinition) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  toolDefinitionGoogleSchema(tool),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// toolDefinitionGoogleSchema renders a tool's parameters as the shared
// JSON Schema node and converts it to Gemini's Schema type, the same
// two-step path the teacher's toolconv.ToGeminiSchema takes from a raw
// JSON Schema map.
func toolDefinitionGoogleSchema(tool convo.ToolDefinition) *genai.Schema {
	var asMap map[string]any
	if err := json.Unmarshal(toolDefinitionJSONSchema(tool), &asMap); err != nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	return genaiSchemaFromMap(asMap)
}

// genaiSchemaFromMap mirrors the teacher's toolconv.ToGeminiSchema.
func genaiSchemaFromMap(schemaMap map[string]any) *genai.Schema {
	if schemaMap == nil {
		return nil
	}
	schema := &genai.Schema{}

	if t, ok := schemaMap["type"].(string); ok {
		schema.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := schemaMap["description"].(string); ok {
		schema.Description = desc
	}
	if enum, ok := schemaMap["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}
	if props, ok := schemaMap["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				schema.Properties[name] = genaiSchemaFromMap(propMap)
			}
		}
	}
	if required, ok := schemaMap["required"].([]any); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	if items, ok := schemaMap["items"].(map[string]any); ok {
		schema.Items = genaiSchemaFromMap(items)
	}
	return schema
}

// googleStream adapts genai's Go 1.23 push iterator to EventStream by
// pulling it with iter.Pull2, the standard idiom for bridging iter.Seq2
// into a step-by-step consumer.
type googleStream struct {
	next func() (*genai.GenerateContentResponse, error, bool)
	stop func()
	acc  *Accumulator
	model string

	callSeq int

	pending []convo.Event
	current convo.Event
	err     error
	closed  bool
}

func (s *googleStream) Next(ctx context.Context) bool {
	for {
		if len(s.pending) > 0 {
			s.current, s.pending = s.pending[0], s.pending[1:]
			return true
		}
		if ctx.Err() != nil {
			s.err = ctx.Err()
			return false
		}
		resp, err, ok := s.next()
		if !ok {
			return false
		}
		if err != nil {
			s.err = err
			return false
		}
		events, ferr := s.feed(resp)
		if ferr != nil {
			s.err = ferr
			return false
		}
		s.pending = events
	}
}

func (s *googleStream) feed(resp *genai.GenerateContentResponse) ([]convo.Event, error) {
	var events []convo.Event
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			if part.Text != "" {
				fed, err := s.acc.Feed(Delta{Content: part.Text})
				if err != nil {
					return nil, err
				}
				events = append(events, fed...)
			}
			if part.FunctionCall != nil {
				s.callSeq++
				id := "call_" + strconv.Itoa(s.callSeq)
				args, err := json.Marshal(part.FunctionCall.Args)
				if err != nil {
					args = []byte("{}")
				}
				fed, err := s.acc.Feed(Delta{ToolCallId: id, ToolCallName: part.FunctionCall.Name, ToolCallArguments: string(args), ToolCallFinished: true})
				if err != nil {
					return nil, err
				}
				events = append(events, fed...)
			}
		}
	}
	return events, nil
}

func (s *googleStream) Event() convo.Event { return s.current }

func (s *googleStream) Err() error {
	if s.err == nil {
		return nil
	}
	if errors.Is(s.err, context.Canceled) || errors.Is(s.err, context.DeadlineExceeded) {
		return s.err
	}
	return classifyGoogleError(s.err, s.model)
}

func (s *googleStream) Close() error {
	if !s.closed {
		s.closed = true
		s.stop()
	}
	return nil
}

func classifyGoogleError(err error, model string) error {
	return NewError("google", model, err, func(err error) FailoverReason {
		msg := strings.ToLower(err.Error())
		switch {
		case strings.Contains(msg, "401"), strings.Contains(msg, "unauthenticated"):
			return FailoverAuth
		case strings.Contains(msg, "403"), strings.Contains(msg, "permission denied"):
			return FailoverAuth
		case strings.Contains(msg, "429"), strings.Contains(msg, "resource exhausted"), strings.Contains(msg, "quota"):
			return FailoverRateLimit
		case strings.Contains(msg, "400"), strings.Contains(msg, "invalid"):
			return FailoverInvalidRequest
		case strings.Contains(msg, "503"), strings.Contains(msg, "unavailable"):
			return FailoverModelUnavailable
		case strings.Contains(msg, "500"), strings.Contains(msg, "internal"):
			return FailoverServerError
		default:
			return FailoverUnknown
		}
	})
}
