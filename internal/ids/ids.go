// Package ids provides the process-wide identifier allocators spec.md §9's
// "Global mutable state" design note calls for: one conversation-id source
// and one tool-call-id source, each a thin wrapper over a single
// process-lifetime generator rather than scattered ad-hoc randomness.
package ids

import (
	"time"

	"github.com/google/uuid"
	"github.com/jp-cli/jp/pkg/convo"
)

// NewConversationId allocates a fresh, sortable conversation identifier
// stamped with the current time. This is the one place outside pkg/convo
// that is allowed to call convo.NewId with a live clock; everywhere else
// should take a convo.Id as a parameter so tests can supply their own.
func NewConversationId() convo.Id {
	return convo.NewId(time.Now())
}

// NewToolCallId allocates an id for a tool call a provider did not supply
// one for. Providers normally assign their own ids (Anthropic's
// "toolu_...", OpenAI's "call_..."); this is only a fallback for wire
// formats that omit one, so a plain random UUID is sufficient — tool-call
// ids need uniqueness within one thread, not global sort order.
func NewToolCallId() string {
	return uuid.NewString()
}
