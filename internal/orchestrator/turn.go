package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jp-cli/jp/internal/backoff"
	"github.com/jp-cli/jp/internal/budget"
	"github.com/jp-cli/jp/internal/config"
	"github.com/jp-cli/jp/internal/ids"
	"github.com/jp-cli/jp/internal/provider"
	"github.com/jp-cli/jp/internal/storage"
	"github.com/jp-cli/jp/internal/toolexec"
	"github.com/jp-cli/jp/pkg/convo"
)

// Orchestrator drives spec.md §4.F's turn state machine. One Orchestrator
// serves exactly one workspace (spec.md §1: "exactly one driver process
// is assumed per workspace directory").
type Orchestrator struct {
	Layout        storage.Layout
	Conversations *storage.ConversationsMap
	Streams       *storage.StreamsMap
	ActiveId      string

	Provider   provider.Provider
	Model      string
	Tools      []convo.ToolDefinition
	ToolChoice provider.ToolChoice
	Source     SourceResolver

	ToolExec *toolexec.Executor
	Renderer Renderer

	Backoff    backoff.Policy
	MaxRetries int

	Cfg *config.Config

	Logger *slog.Logger
}

// QueryOptions selects how the new user input for a turn is obtained.
type QueryOptions struct {
	// Text is the explicit user query. Input sourced some other way
	// (editor, etc.) is passed here by the caller — composing that input is an external
	// collaborator's job (spec.md §1's CLI dispatch).
	Text string
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// activeConversation resolves (creating if necessary) the conversation
// this orchestrator is currently pointed at, and its event stream.
func (o *Orchestrator) activeConversation() (*convo.Conversation, *convo.ConversationStream, error) {
	if o.ActiveId != "" {
		id, err := convo.ParseId(o.ActiveId)
		if err != nil {
			return nil, nil, err
		}
		conv, ok := o.Conversations.Get(id)
		if !ok {
			return nil, nil, ErrUnknownConversation
		}
		stream, ok := o.Streams.Get(id)
		if !ok {
			empty := convo.StreamFromSlice(nil)
			stream = &empty
		}
		return conv, stream, nil
	}

	id := ids.NewConversationId()
	conv := &convo.Conversation{Id: id, UserScoped: false}
	o.Conversations.Insert(id, conv)
	empty := convo.StreamFromSlice(nil)
	o.Streams.Insert(id, &empty)
	o.ActiveId = id.String()
	return conv, &empty, nil
}

// RunQuery drives one full turn: Compose -> Streaming -> (tool loop)* ->
// Finished, per spec.md §4.F.
func (o *Orchestrator) RunQuery(ctx context.Context, opts QueryOptions) error {
	conv, stream, err := o.activeConversation()
	if err != nil {
		return err
	}

	staged := stageStream(stream)
	lastCfg := lastConfigPartial(staged)

	userCfg := o.Cfg.ToPartial()
	delta := config.Delta(lastCfg, userCfg)
	staged.Append(convo.ConversationEvent{Kind: convo.EventChatRequest, Text: opts.Text}, delta, now())
	lastCfg = userCfg

	return o.drive(ctx, conv, staged, lastCfg)
}

// drive runs the Streaming -> ToolExecuting loop until a streaming
// completion yields no tool calls, then commits the turn.
func (o *Orchestrator) drive(ctx context.Context, conv *convo.Conversation, staged *convo.ConversationStream, lastCfg config.Partial) error {
	state := StateStreaming
	iterations := 0
	maxIterations := o.Cfg.Session.MaxToolIterations
	if maxIterations <= 0 {
		maxIterations = 25
	}

	for {
		switch state {
		case StateStreaming:
			window := budget.DefaultContextWindow
			if details, ok := o.Provider.ModelDetails(o.Model); ok {
				window = budget.WindowFor(details)
			}
			trimmedEntries, dropped := budget.Trim(staged.All(), window)
			if dropped > 0 {
				o.logger().Warn("orchestrator: trimmed conversation history to fit context window",
					"model", o.Model, "window", window, "entries_dropped", dropped)
			}

			thread := convo.Thread{
				SystemPrompt: o.Cfg.Llm.Instructions,
				Events:       convo.StreamFromSlice(trimmedEntries),
			}
			query := provider.ChatQuery{
				Thread:     thread,
				Tools:      o.Tools,
				ToolChoice: o.ToolChoice,
			}

			segments, toolCalls, err := o.streamWithRetry(ctx, query)
			if err != nil {
				if errors.Is(ctx.Err(), context.Canceled) {
					return ErrCancelled
				}
				return err
			}

			for _, seg := range segments {
				responseKind := convo.ResponseContent
				if seg.kind == convo.PartReasoning {
					responseKind = convo.ResponseReasoning
				}
				d := config.Delta(lastCfg, lastCfg)
				staged.Append(convo.ConversationEvent{
					Kind:         convo.EventChatResponse,
					Text:         seg.text,
					ResponseKind: responseKind,
				}, d, now())
			}

			if len(toolCalls) == 0 {
				return o.commit(conv, staged)
			}

			iterations++
			if iterations > maxIterations {
				return ErrToolLoopExceeded
			}

			o.executeAndAppend(ctx, staged, toolCalls)
			state = StateStreaming
			continue

		default:
			return nil
		}
	}
}

// executeAndAppend runs each accumulated tool call through the Tool
// Executor and appends its ToolCallRequest/ToolCallResponse pair to
// staged, in order, per spec.md §4.F's tool loop.
func (o *Orchestrator) executeAndAppend(ctx context.Context, staged *convo.ConversationStream, toolCalls []convo.ToolCallRequest) {
	src := BuiltinSourceResolver
	if o.Source != nil {
		src = o.Source
	}
	for _, call := range toolCalls {
		staged.Append(convo.ConversationEvent{
			Kind:          convo.EventToolCallRequest,
			ToolCallId:    call.Id,
			ToolName:      call.Name,
			ToolArguments: call.Arguments,
		}, config.Partial{}, now())

		result, err := o.ToolExec.Execute(ctx, call, src(call.Name))
		if err != nil {
			result = toolexec.Result{Id: call.Id, Error: true, Content: err.Error()}
		}
		staged.Append(convo.ConversationEvent{
			Kind:              convo.EventToolCallResponse,
			ToolCallId:        result.Id,
			ToolResultError:   result.Error,
			ToolResultContent: result.Content,
		}, config.Partial{}, now())
	}
}

// commit finalizes a successfully completed turn: replaces the staged
// stream into the TombMap (marking it modified) and persists to disk.
func (o *Orchestrator) commit(conv *convo.Conversation, staged *convo.ConversationStream) error {
	id := conv.Id
	o.Streams.Insert(id, staged)

	conv.EventsCount = staged.Len()
	at := time.Now()
	conv.LastEventAt = &at
	o.Conversations.Insert(id, conv)

	return storage.Persist(o.Layout, o.Conversations, o.Streams, o.ActiveId)
}

// streamWithRetry opens a ChatCompletionStream and drains it one event at
// a time (streamOnce), retrying the whole attempt on a rate-limit
// classified *provider.Error per spec.md §4.D/§4.F: "the orchestrator —
// not the provider — applies retries."
func (o *Orchestrator) streamWithRetry(ctx context.Context, query provider.ChatQuery) ([]segment, []convo.ToolCallRequest, error) {
	maxAttempts := o.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	policy := o.Backoff
	if policy == (backoff.Policy{}) {
		policy = backoff.DefaultPolicy()
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		segments, calls, err := o.streamOnce(ctx, query)
		if err == nil {
			return segments, calls, nil
		}
		lastErr = err

		var perr *provider.Error
		if !errors.As(err, &perr) || perr.Reason != provider.FailoverRateLimit {
			return nil, nil, err
		}
		if attempt == maxAttempts {
			break
		}

		delay := backoff.Compute(policy, attempt)
		if perr.RetryAfter != nil {
			if werr := backoff.SleepRetryAfter(ctx, policy, attempt, *perr.RetryAfter); werr != nil {
				return nil, nil, werr
			}
		} else {
			if werr := backoff.SleepWithContext(ctx, delay); werr != nil {
				return nil, nil, werr
			}
		}
		o.logger().Warn("orchestrator: retrying after rate limit", "attempt", attempt, "model", o.Model)
	}
	return nil, nil, lastErr
}

// streamOnce opens one ChatCompletionStream and pulls it to completion,
// forwarding each Content/Reasoning event to the renderer as it arrives —
// spec.md §4.F's "Stream" step — rather than waiting for the full reply.
// Cancelling ctx drops the open stream promptly (spec.md §5): Next
// observes ctx.Err() and the deferred Close releases the provider's
// network resource before streamOnce returns.
func (o *Orchestrator) streamOnce(ctx context.Context, query provider.ChatQuery) ([]segment, []convo.ToolCallRequest, error) {
	stream, err := o.Provider.ChatCompletionStream(ctx, o.Model, query)
	if err != nil {
		return nil, nil, err
	}
	defer stream.Close()

	var segments []segment
	var calls []convo.ToolCallRequest
	for stream.Next(ctx) {
		e := stream.Event()
		switch e.Kind {
		case convo.PartContent:
			o.Renderer.Content(e.Content)
			segments = appendSegment(segments, e.Kind, e.Content)
		case convo.PartReasoning:
			o.Renderer.Reasoning(e.Content)
			segments = appendSegment(segments, e.Kind, e.Content)
		case convo.PartToolCall:
			if e.ToolCall != nil {
				calls = append(calls, *e.ToolCall)
			}
		case convo.PartMetadata:
			o.Renderer.Metadata(e.MetadataKey, e.MetadataValue)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, nil, err
	}
	return segments, calls, nil
}

type segment struct {
	kind convo.EventPartKind
	text string
}

// appendSegment coalesces consecutive same-kind content/reasoning chunks
// into one segment for persistence, preserving chronological order, per
// spec.md §4.D's "Collect semantics" — while the individual chunks are
// still forwarded to the renderer one at a time as they stream in.
func appendSegment(segments []segment, kind convo.EventPartKind, text string) []segment {
	if n := len(segments); n > 0 && segments[n-1].kind == kind {
		segments[n-1].text += text
		return segments
	}
	return append(segments, segment{kind: kind, text: text})
}

// stageStream clones stream's entries into a fresh ConversationStream so
// a turn's in-progress mutations never touch the TombMap-owned value
// until commit succeeds — this is what gives cancellation its "discard
// the in-progress assistant buffer" semantics for free: a turn that never
// reaches commit leaves the original entry untouched.
func stageStream(stream *convo.ConversationStream) *convo.ConversationStream {
	entries := append([]convo.ConversationEventWithConfig{}, stream.All()...)
	staged := convo.StreamFromSlice(entries)
	return &staged
}

func lastConfigPartial(stream *convo.ConversationStream) config.Partial {
	n := stream.Len()
	if n == 0 {
		return config.Partial{}
	}
	return stream.At(n - 1).Config
}

// now is the single clock read point for staged-stream timestamps,
// isolated so tests can observe strictly increasing, real timestamps
// without the orchestrator depending on an injected clock abstraction it
// doesn't otherwise need.
func now() time.Time { return time.Now() }
