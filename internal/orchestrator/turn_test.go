package orchestrator

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jp-cli/jp/internal/config"
	"github.com/jp-cli/jp/internal/provider"
	"github.com/jp-cli/jp/internal/storage"
	"github.com/jp-cli/jp/internal/tomb"
	"github.com/jp-cli/jp/internal/toolexec"
	"github.com/jp-cli/jp/pkg/convo"
)

// scriptedProvider replays one canned response per ChatCompletionStream
// call, in order, so a test can drive the orchestrator through a
// specific sequence of streaming/tool-call turns. Each response is
// served through a real EventStream (sliceEventStream) rather than
// collected up front, so tests exercise the orchestrator's actual
// per-event streaming path.
type scriptedProvider struct {
	responses [][]convo.Event
	calls     int
	last      *sliceEventStream
}

func (p *scriptedProvider) Models() []convo.ModelDetails { return nil }

func (p *scriptedProvider) ModelDetails(name string) (convo.ModelDetails, bool) {
	return convo.ModelDetails{}, false
}

func (p *scriptedProvider) ChatCompletionStream(ctx context.Context, model string, query provider.ChatQuery) (provider.EventStream, error) {
	if p.calls >= len(p.responses) {
		return &sliceEventStream{}, nil
	}
	r := p.responses[p.calls]
	p.calls++
	p.last = &sliceEventStream{events: r}
	return p.last, nil
}

func (p *scriptedProvider) ChatCompletion(ctx context.Context, model string, query provider.ChatQuery) ([]convo.Event, error) {
	stream, err := p.ChatCompletionStream(ctx, model, query)
	if err != nil {
		return nil, err
	}
	return provider.Collect(ctx, stream)
}

func (p *scriptedProvider) StructuredCompletion(ctx context.Context, model string, query provider.ChatQuery, schema []byte) ([]byte, error) {
	return nil, nil
}

// sliceEventStream is a fake provider.EventStream that yields a fixed
// slice of events one at a time, honoring ctx cancellation the way a
// real provider stream's Next would.
type sliceEventStream struct {
	events []convo.Event
	idx    int
	err    error
	closed bool
}

func (s *sliceEventStream) Next(ctx context.Context) bool {
	if err := ctx.Err(); err != nil {
		s.err = err
		return false
	}
	if s.idx >= len(s.events) {
		return false
	}
	s.idx++
	return true
}

func (s *sliceEventStream) Event() convo.Event { return s.events[s.idx-1] }

func (s *sliceEventStream) Err() error { return s.err }

func (s *sliceEventStream) Close() error {
	s.closed = true
	return nil
}

// recordingRenderer captures everything forwarded to it for assertions.
type recordingRenderer struct {
	content []string
}

func (r *recordingRenderer) Content(text string)     { r.content = append(r.content, text) }
func (r *recordingRenderer) Reasoning(string)         {}
func (r *recordingRenderer) Metadata(string, string)  {}

func newTestOrchestrator(t *testing.T, prov provider.Provider, exec *toolexec.Executor, renderer Renderer) *Orchestrator {
	t.Helper()
	dir := t.TempDir()
	layout := storage.Layout{WorkspaceRoot: dir, UserRoot: dir, WorkspaceName: "test", WorkspaceID: "1"}
	return &Orchestrator{
		Layout:        layout,
		Conversations: tomb.New[convo.Id, *convo.Conversation](),
		Streams:       tomb.New[convo.Id, *convo.ConversationStream](),
		Provider:      prov,
		Model:         "test-model",
		ToolExec:      exec,
		Renderer:      renderer,
		Cfg:           &config.Config{Workspace: config.Workspace{Root: dir}},
	}
}

func TestRunQueryFinishesWithNoToolCalls(t *testing.T) {
	prov := &scriptedProvider{responses: [][]convo.Event{
		{{Kind: convo.PartContent, Content: "hello"}},
	}}
	renderer := &recordingRenderer{}
	orch := newTestOrchestrator(t, prov, &toolexec.Executor{Resolver: &toolexec.Resolver{}, Policy: toolexec.DefaultPolicy()}, renderer)

	if err := orch.RunQuery(context.Background(), QueryOptions{Text: "hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(renderer.content) != 1 || renderer.content[0] != "hello" {
		t.Fatalf("expected rendered content [hello], got %v", renderer.content)
	}
	if orch.ActiveId == "" {
		t.Fatal("expected a conversation to be created")
	}
}

func TestRunQueryDrivesToolLoopThenFinishes(t *testing.T) {
	callArgs := json.RawMessage(`{}`)
	prov := &scriptedProvider{responses: [][]convo.Event{
		{{Kind: convo.PartToolCall, ToolCall: &convo.ToolCallRequest{Id: "1", Name: "read", Arguments: callArgs}}},
		{{Kind: convo.PartContent, Content: "done"}},
	}}
	renderer := &recordingRenderer{}
	registry := toolexec.NewRegistry()
	registry.Register(toolexec.Builtin{
		Definition: convo.ToolDefinition{Name: "read"},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			return "file contents", nil
		},
	})
	exec := &toolexec.Executor{
		Resolver: &toolexec.Resolver{Builtins: registry},
		Policy:   toolexec.Policy{DefaultRun: toolexec.RunUnattended, DefaultResult: toolexec.ResultDeliver},
		Builtins: registry,
	}
	orch := newTestOrchestrator(t, prov, exec, renderer)

	if err := orch.RunQuery(context.Background(), QueryOptions{Text: "read x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prov.calls != 2 {
		t.Fatalf("expected 2 provider calls (tool round-trip then finish), got %d", prov.calls)
	}
	if len(renderer.content) != 1 || renderer.content[0] != "done" {
		t.Fatalf("expected final content [done], got %v", renderer.content)
	}

	stream, ok := orch.Streams.Get(mustParseId(t, orch.ActiveId))
	if !ok {
		t.Fatal("expected conversation stream to be persisted in the TombMap")
	}
	foundRequest, foundResponse := false, false
	for _, e := range stream.All() {
		if e.Event.Kind == convo.EventToolCallRequest {
			foundRequest = true
		}
		if e.Event.Kind == convo.EventToolCallResponse && e.Event.ToolResultContent == "file contents" {
			foundResponse = true
		}
	}
	if !foundRequest || !foundResponse {
		t.Fatal("expected both ToolCallRequest and ToolCallResponse events persisted")
	}
}

func TestRunQueryStopsAtMaxToolIterations(t *testing.T) {
	loopingResponse := []convo.Event{{Kind: convo.PartToolCall, ToolCall: &convo.ToolCallRequest{Id: "1", Name: "noop", Arguments: json.RawMessage(`{}`)}}}
	var responses [][]convo.Event
	for i := 0; i < 5; i++ {
		responses = append(responses, loopingResponse)
	}
	prov := &scriptedProvider{responses: responses}
	registry := toolexec.NewRegistry()
	registry.Register(toolexec.Builtin{
		Definition: convo.ToolDefinition{Name: "noop"},
		Handler:    func(ctx context.Context, args json.RawMessage) (string, error) { return "ok", nil },
	})
	exec := &toolexec.Executor{
		Resolver: &toolexec.Resolver{Builtins: registry},
		Policy:   toolexec.Policy{DefaultRun: toolexec.RunUnattended, DefaultResult: toolexec.ResultDeliver},
		Builtins: registry,
	}
	orch := newTestOrchestrator(t, prov, exec, &recordingRenderer{})
	orch.Cfg.Session.MaxToolIterations = 2

	err := orch.RunQuery(context.Background(), QueryOptions{Text: "loop"})
	if err != ErrToolLoopExceeded {
		t.Fatalf("expected ErrToolLoopExceeded, got %v", err)
	}
}

// TestRunQueryRendersEachChunkAsItStreams verifies spec.md §4.F's Stream
// step: content arrives as the renderer receives it chunk by chunk, not
// as one collected string, while the persisted event coalesces the
// chunks into a single ChatResponse.
func TestRunQueryRendersEachChunkAsItStreams(t *testing.T) {
	prov := &scriptedProvider{responses: [][]convo.Event{
		{
			{Kind: convo.PartContent, Content: "hel"},
			{Kind: convo.PartContent, Content: "lo "},
			{Kind: convo.PartContent, Content: "world"},
		},
	}}
	renderer := &recordingRenderer{}
	orch := newTestOrchestrator(t, prov, &toolexec.Executor{Resolver: &toolexec.Resolver{}, Policy: toolexec.DefaultPolicy()}, renderer)

	if err := orch.RunQuery(context.Background(), QueryOptions{Text: "hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"hel", "lo ", "world"}
	if len(renderer.content) != len(want) {
		t.Fatalf("expected %d separate render calls, got %v", len(want), renderer.content)
	}
	for i, w := range want {
		if renderer.content[i] != w {
			t.Errorf("chunk %d: got %q, want %q", i, renderer.content[i], w)
		}
	}

	stream, ok := orch.Streams.Get(mustParseId(t, orch.ActiveId))
	if !ok {
		t.Fatal("expected conversation stream to be persisted")
	}
	var gotText string
	count := 0
	for _, e := range stream.All() {
		if e.Event.Kind == convo.EventChatResponse {
			gotText = e.Event.Text
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected the streamed chunks to coalesce into 1 persisted event, got %d", count)
	}
	if gotText != "hello world" {
		t.Fatalf("expected coalesced text %q, got %q", "hello world", gotText)
	}
}

// TestRunQueryCancellationClosesStreamAndDiscardsTurn verifies spec.md
// §5's cancellation semantics: a context cancelled before the stream
// even starts yielding events surfaces ErrCancelled, closes the
// provider's stream promptly, and persists nothing for that turn.
func TestRunQueryCancellationClosesStreamAndDiscardsTurn(t *testing.T) {
	prov := &scriptedProvider{responses: [][]convo.Event{
		{{Kind: convo.PartContent, Content: "should not be rendered"}},
	}}
	renderer := &recordingRenderer{}
	orch := newTestOrchestrator(t, prov, &toolexec.Executor{Resolver: &toolexec.Resolver{}, Policy: toolexec.DefaultPolicy()}, renderer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := orch.RunQuery(ctx, QueryOptions{Text: "hi"})
	if err != ErrCancelled {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if len(renderer.content) != 0 {
		t.Fatalf("expected no content rendered for a cancelled turn, got %v", renderer.content)
	}

	opened := prov.calls
	if opened != 1 {
		t.Fatalf("expected the stream to have been opened once, got %d", opened)
	}
	if !prov.last.closed {
		t.Fatalf("expected the provider's stream to be closed after cancellation")
	}

	stream, ok := orch.Streams.Get(mustParseId(t, orch.ActiveId))
	if !ok || stream.Len() != 0 {
		t.Fatalf("expected an empty, unmodified stream for a cancelled turn")
	}
}

func mustParseId(t *testing.T, s string) convo.Id {
	t.Helper()
	id, err := convo.ParseId(s)
	if err != nil {
		t.Fatalf("ParseId(%q): %v", s, err)
	}
	return id
}
