package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jp-cli/jp/pkg/convo"
)

// OllamaConfig configures an OllamaProvider.
type OllamaConfig struct {
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
}

// OllamaProvider implements Provider over Ollama's native NDJSON
// `/api/chat` endpoint (not the OpenAI-compatible one, so tool call ids
// Ollama never assigns are synthesized here).
type OllamaProvider struct {
	client       *http.Client
	baseURL      string
	defaultModel string
}

func NewOllamaProvider(config OllamaConfig) *OllamaProvider {
	baseURL := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &OllamaProvider{
		client:       &http.Client{Timeout: timeout},
		baseURL:      baseURL,
		defaultModel: strings.TrimSpace(config.DefaultModel),
	}
}

func (p *OllamaProvider) Models() []convo.ModelDetails {
	if p.defaultModel == "" {
		return nil
	}
	return []convo.ModelDetails{{Provider: "ollama", Name: p.defaultModel, ContextWindow: 8192, Reasoning: convo.ReasoningUnsupported, Features: []string{"tool-calling"}}}
}

func (p *OllamaProvider) ModelDetails(name string) (convo.ModelDetails, bool) {
	for _, m := range p.Models() {
		if m.Name == name {
			return m, true
		}
	}
	return convo.ModelDetails{}, false
}

func (p *OllamaProvider) model(requested string) string {
	if requested != "" {
		return requested
	}
	return p.defaultModel
}

func (p *OllamaProvider) ChatCompletion(ctx context.Context, model string, query ChatQuery) ([]convo.Event, error) {
	stream, err := p.ChatCompletionStream(ctx, model, query)
	if err != nil {
		return nil, err
	}
	return Collect(ctx, stream)
}

func (p *OllamaProvider) StructuredCompletion(ctx context.Context, model string, query ChatQuery, schema []byte) ([]byte, error) {
	return DefaultStructuredCompletion(ctx, p, model, query, schema)
}

func (p *OllamaProvider) ChatCompletionStream(ctx context.Context, model string, query ChatQuery) (EventStream, error) {
	resolved := p.model(model)
	if resolved == "" {
		return nil, NewError("ollama", model, errors.New("model is required"), func(error) FailoverReason { return FailoverInvalidRequest })
	}

	payload := ollamaChatRequest{
		Model:    resolved,
		Stream:   true,
		Messages: buildOllamaMessages(query),
	}
	if len(query.Tools) > 0 {
		payload.Tools = convertToolsToOllama(query.Tools)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, NewError("ollama", resolved, fmt.Errorf("marshal request: %w", err), func(error) FailoverReason { return FailoverInvalidRequest })
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, NewError("ollama", resolved, err, func(error) FailoverReason { return FailoverUnknown })
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, NewError("ollama", resolved, err, func(error) FailoverReason { return FailoverTimeout })
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, ollamaStatusError(resolved, resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	scanner := bufio.NewScanner(resp.Body)
	buf := make([]byte, 0, 1024*64)
	scanner.Buffer(buf, 1024*1024)

	return &ollamaStream{
		body:    resp.Body,
		scanner: scanner,
		acc:     NewAccumulator(),
		model:   resolved,
		emitted: map[string]struct{}{},
	}, nil
}

func ollamaStatusError(model string, status int, body string) error {
	cause := fmt.Errorf("ollama status %d: %s", status, body)
	return NewError("ollama", model, cause, func(error) FailoverReason {
		switch {
		case status == http.StatusUnauthorized, status == http.StatusForbidden:
			return FailoverAuth
		case status == http.StatusTooManyRequests:
			return FailoverRateLimit
		case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
			return FailoverInvalidRequest
		case status == http.StatusServiceUnavailable:
			return FailoverModelUnavailable
		case status >= 500:
			return FailoverServerError
		default:
			return FailoverUnknown
		}
	})
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Tools    []ollamaTool        `json:"tools,omitempty"`
	Stream   bool                `json:"stream"`
}

type ollamaChatMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content,omitempty"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaChatResponse struct {
	Message         *ollamaChatMessage `json:"message"`
	Done            bool               `json:"done"`
	Error           string             `json:"error"`
	EvalCount       int                `json:"eval_count"`
	PromptEvalCount int                `json:"prompt_eval_count"`
}

type ollamaToolCall struct {
	ID       string             `json:"id,omitempty"`
	Type     string             `json:"type,omitempty"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type ollamaTool struct {
	Type     string             `json:"type"`
	Function ollamaToolFunctionDef `json:"function"`
}

type ollamaToolFunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

func convertToolsToOllama(tools []convo.ToolDefinition) []ollamaTool {
	out := make([]ollamaTool, 0, len(tools))
	for _, tool := range tools {
		var params map[string]any
		_ = json.Unmarshal(toolDefinitionJSONSchema(tool), &params)
		out = append(out, ollamaTool{
			Type: "function",
			Function: ollamaToolFunctionDef{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

// buildOllamaMessages replays the persisted event stream into Ollama's
// chat message shape, keyed the same way the teacher's
// buildOllamaMessages tracks tool call ids to names for the "tool" role.
func buildOllamaMessages(query ChatQuery) []ollamaChatMessage {
	var messages []ollamaChatMessage
	toolNames := map[string]string{}

	if sys := strings.TrimSpace(query.Thread.SystemPrompt); sys != "" {
		messages = append(messages, ollamaChatMessage{Role: "system", Content: sys})
	}

	var pendingAssistant *ollamaChatMessage
	flush := func() {
		if pendingAssistant != nil {
			messages = append(messages, *pendingAssistant)
			pendingAssistant = nil
		}
	}

	for _, entry := range query.Thread.Events.All() {
		e := entry.Event
		switch e.Kind {
		case convo.EventChatRequest:
			flush()
			messages = append(messages, ollamaChatMessage{Role: "user", Content: e.Text})
		case convo.EventChatResponse:
			if e.ResponseKind == convo.ResponseReasoning {
				continue
			}
			if pendingAssistant == nil {
				pendingAssistant = &ollamaChatMessage{Role: "assistant"}
			}
			pendingAssistant.Content += e.Text
		case convo.EventToolCallRequest:
			toolNames[e.ToolCallId] = e.ToolName
			if pendingAssistant == nil {
				pendingAssistant = &ollamaChatMessage{Role: "assistant"}
			}
			args := e.ToolArguments
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			pendingAssistant.ToolCalls = append(pendingAssistant.ToolCalls, ollamaToolCall{
				ID:   e.ToolCallId,
				Type: "function",
				Function: ollamaToolFunction{
					Name:      e.ToolName,
					Arguments: args,
				},
			})
		case convo.EventToolCallResponse:
			flush()
			messages = append(messages, ollamaChatMessage{
				Role:     "tool",
				Content:  e.ToolResultContent,
				ToolName: toolNames[e.ToolCallId],
			})
		}
	}
	flush()
	return messages
}

// ollamaStream adapts Ollama's newline-delimited JSON `/api/chat`
// response to EventStream, scanning one object per line the same way
// the teacher's streamResponse does, minus the channel indirection (the
// Next/Event pull contract does not need a goroutine here).
type ollamaStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	acc     *Accumulator
	model   string
	emitted map[string]struct{}

	pending []convo.Event
	current convo.Event
	err     error
}

func (s *ollamaStream) Next(ctx context.Context) bool {
	for {
		if len(s.pending) > 0 {
			s.current, s.pending = s.pending[0], s.pending[1:]
			return true
		}
		if ctx.Err() != nil {
			s.err = ctx.Err()
			return false
		}
		if !s.scanner.Scan() {
			s.err = s.scanner.Err()
			return false
		}
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}
		var resp ollamaChatResponse
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			s.err = fmt.Errorf("provider: ollama: decode response: %w", err)
			return false
		}
		if resp.Error != "" {
			s.err = errors.New(resp.Error)
			return false
		}
		events, err := s.feed(resp)
		if err != nil {
			s.err = err
			return false
		}
		s.pending = events
		if resp.Done && len(s.pending) == 0 {
			return false
		}
	}
}

func (s *ollamaStream) feed(resp ollamaChatResponse) ([]convo.Event, error) {
	var events []convo.Event
	if resp.Message == nil {
		return events, nil
	}
	if resp.Message.Content != "" {
		fed, err := s.acc.Feed(Delta{Content: resp.Message.Content})
		if err != nil {
			return nil, err
		}
		events = append(events, fed...)
	}
	for _, tc := range resp.Message.ToolCalls {
		callID := strings.TrimSpace(tc.ID)
		if callID == "" {
			callID = ollamaToolCallKey(tc)
			if callID == "" {
				callID = uuid.NewString()
			}
		}
		if _, ok := s.emitted[callID]; ok {
			continue
		}
		s.emitted[callID] = struct{}{}

		args := tc.Function.Arguments
		if len(args) == 0 {
			args = json.RawMessage(`{}`)
		}
		fed, err := s.acc.Feed(Delta{ToolCallId: callID, ToolCallName: strings.TrimSpace(tc.Function.Name), ToolCallArguments: string(args), ToolCallFinished: true})
		if err != nil {
			return nil, err
		}
		events = append(events, fed...)
	}
	return events, nil
}

func ollamaToolCallKey(tc ollamaToolCall) string {
	name := strings.TrimSpace(tc.Function.Name)
	args := strings.TrimSpace(string(tc.Function.Arguments))
	if name == "" && args == "" {
		return ""
	}
	return name + ":" + args
}

func (s *ollamaStream) Event() convo.Event { return s.current }

func (s *ollamaStream) Err() error {
	if s.err == nil {
		return nil
	}
	if errors.Is(s.err, context.Canceled) || errors.Is(s.err, context.DeadlineExceeded) {
		return s.err
	}
	var perr *Error
	if errors.As(s.err, &perr) {
		return s.err
	}
	return NewError("ollama", s.model, s.err, func(error) FailoverReason { return FailoverServerError })
}

func (s *ollamaStream) Close() error { return s.body.Close() }
