package orchestrator

import (
	"context"

	"github.com/jp-cli/jp/internal/config"
	"github.com/jp-cli/jp/pkg/convo"
)

// ReplayOptions selects the new text, if any, to splice into a replayed
// user turn. Empty Text replays the prior user input verbatim.
type ReplayOptions struct {
	Text string
}

// Replay implements spec.md §4.F's replay turn: pop the most recent
// assistant response (and whatever triggered it), rebuild the input, and
// re-run. If the trigger was a plain chat request, the orchestrator
// re-queries the provider with that text (optionally replaced by
// opts.Text). If the trigger was a tool-call response, the orchestrator
// re-executes the tool calls recorded on the now-last assistant message
// instead of re-querying, since there is no user text to rebuild.
func (o *Orchestrator) Replay(ctx context.Context, opts ReplayOptions) error {
	conv, stream, err := o.activeConversation()
	if err != nil {
		return err
	}

	staged := stageStream(stream)
	lastAssistant := staged.LastAssistantIndex()
	if lastAssistant < 0 {
		return ErrNoPriorAssistant
	}

	// Walk back from lastAssistant to find the contiguous run of
	// ChatResponse entries belonging to the same turn, and the entry
	// immediately preceding that run: the trigger.
	start := lastAssistant
	for start > 0 && staged.At(start-1).Event.Kind == convo.EventChatResponse {
		start--
	}
	if start == 0 {
		return ErrNoPriorAssistant
	}
	trigger := staged.At(start - 1)
	lastCfg := trigger.Config

	switch trigger.Event.Kind {
	case convo.EventChatRequest:
		text := trigger.Event.Text
		if opts.Text != "" {
			text = opts.Text
		}
		// Drop the trigger request and its response run.
		staged.Truncate(start - 1)

		userCfg := o.Cfg.ToPartial()
		delta := config.Delta(lastCfg, userCfg)
		staged.Append(convo.ConversationEvent{Kind: convo.EventChatRequest, Text: text}, delta, now())
		return o.drive(ctx, conv, staged, userCfg)

	case convo.EventToolCallResponse:
		// Walk back further through the trailing Request/Response pairs
		// that fed the popped assistant turn, collecting the requests so
		// they can be re-executed; truncate the stream to just before
		// that block.
		pairsEnd := start
		pairsStart := pairsEnd
		for pairsStart > 0 {
			k := staged.At(pairsStart - 1).Event.Kind
			if k != convo.EventToolCallRequest && k != convo.EventToolCallResponse {
				break
			}
			pairsStart--
		}
		if pairsStart == 0 {
			return ErrNoPriorAssistant
		}

		var calls []convo.ToolCallRequest
		for i := pairsStart; i < pairsEnd; i++ {
			e := staged.At(i).Event
			if e.Kind == convo.EventToolCallRequest {
				calls = append(calls, convo.ToolCallRequest{Id: e.ToolCallId, Name: e.ToolName, Arguments: e.ToolArguments})
			}
		}

		staged.Truncate(pairsStart)
		o.executeAndAppend(ctx, staged, calls)
		return o.drive(ctx, conv, staged, lastCfg)

	default:
		return ErrNoPriorAssistant
	}
}
