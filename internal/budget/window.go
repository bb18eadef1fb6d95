// Package budget enforces a model's context window against a turn's
// accumulated conversation history before it is handed to a provider as a
// Thread. It is not itself named as a spec.md §4.F component — Compose
// says only that a Thread is "built fresh from history + new user input
// before each provider call" — but ModelDetails carries a ContextWindow
// for exactly this reason, and a real driver cannot hand a provider more
// history than the model can hold.
//
// Trimming always keeps whole turns (everything from one ChatRequest up
// to, but not including, the next) so a ToolCallRequest is never dropped
// without its ToolCallResponse, or vice versa — spec.md §3's pairing
// invariant survives trimming because it is never torn mid-turn.
package budget

import "github.com/jp-cli/jp/pkg/convo"

// DefaultContextWindow is used when a model's ModelDetails carries no
// ContextWindow (ReasoningUnknown-style "we don't know" case).
const DefaultContextWindow = 128000

// tokensPerChar is the same conservative, allocation-free estimate the
// teacher's own context-window package used: no provider tokenizer is
// vendored here, so staying comfortably under budget matters more than
// precision.
const tokensPerChar = 0.25

// reserveTokens reserves headroom in the window for the system prompt,
// tool definitions, and the model's own response, none of which this
// package sees directly.
const reserveTokens = 2048

// EstimateTokens roughly estimates the token count of text.
func EstimateTokens(text string) int {
	n := 0
	for range text {
		n++
	}
	if n == 0 {
		return 0
	}
	tokens := int(float64(n) * tokensPerChar)
	if tokens == 0 {
		return 1
	}
	return tokens
}

// WindowFor resolves the usable context window for a model: its declared
// ContextWindow, or DefaultContextWindow if the provider did not report
// one.
func WindowFor(details convo.ModelDetails) int {
	if details.ContextWindow > 0 {
		return details.ContextWindow
	}
	return DefaultContextWindow
}

func eventTokens(e convo.ConversationEvent) int {
	const perEventOverhead = 4
	switch e.Kind {
	case convo.EventChatRequest, convo.EventChatResponse:
		return EstimateTokens(e.Text) + perEventOverhead
	case convo.EventToolCallRequest:
		return EstimateTokens(e.ToolName) + EstimateTokens(string(e.ToolArguments)) + perEventOverhead
	case convo.EventToolCallResponse:
		return EstimateTokens(e.ToolResultContent) + perEventOverhead
	default:
		return perEventOverhead
	}
}

// Trim drops the oldest whole turns from entries until the remaining
// estimated token total fits within maxTokens (minus reserveTokens
// headroom), always keeping at least the most recent turn so a query is
// never left with no history to answer from. It returns the retained
// entries and the count of entries dropped; it does not mutate entries.
func Trim(entries []convo.ConversationEventWithConfig, maxTokens int) ([]convo.ConversationEventWithConfig, int) {
	if maxTokens <= 0 {
		maxTokens = DefaultContextWindow
	}
	budget := maxTokens - reserveTokens
	if budget <= 0 {
		budget = maxTokens
	}

	turns := splitTurns(entries)
	if len(turns) <= 1 {
		return entries, 0
	}

	totals := make([]int, len(turns))
	sum := 0
	for i, t := range turns {
		totals[i] = turnTokens(t)
		sum += totals[i]
	}

	dropped := 0
	for sum > budget && len(turns) > 1 {
		sum -= totals[0]
		dropped += len(turns[0])
		turns = turns[1:]
		totals = totals[1:]
	}

	trimmed := make([]convo.ConversationEventWithConfig, 0, len(entries)-dropped)
	for _, t := range turns {
		trimmed = append(trimmed, t...)
	}
	return trimmed, dropped
}

// splitTurns partitions entries into runs starting at each ChatRequest
// event (the first run may have no leading ChatRequest if the stream was
// truncated mid-turn by a prior replay).
func splitTurns(entries []convo.ConversationEventWithConfig) [][]convo.ConversationEventWithConfig {
	var turns [][]convo.ConversationEventWithConfig
	for _, e := range entries {
		if e.Event.Kind == convo.EventChatRequest || len(turns) == 0 {
			turns = append(turns, nil)
		}
		turns[len(turns)-1] = append(turns[len(turns)-1], e)
	}
	return turns
}

func turnTokens(turn []convo.ConversationEventWithConfig) int {
	total := 0
	for _, e := range turn {
		total += eventTokens(e.Event)
	}
	return total
}
