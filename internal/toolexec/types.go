// Package toolexec implements spec.md §4.E: resolving a tool call's
// definition across the three tool sources (local process, MCP server,
// built-in), gating it through the configured user-confirmation modes,
// dispatching it, and normalizing the result the orchestrator appends to
// the conversation as a ToolCallResponse event.
package toolexec

import (
	"encoding/json"

	"github.com/jp-cli/jp/pkg/convo"
)

// SourceKind names which of the three tool sources resolves a call.
type SourceKind string

const (
	SourceBuiltin SourceKind = "builtin"
	SourceLocal   SourceKind = "local"
	SourceMcp     SourceKind = "mcp"
)

// Source identifies where a tool's definition and implementation come
// from. Tool is the name to look up at the source, which may differ from
// the name the model called (an MCP tool re-exported under an alias, for
// instance); Server narrows an MCP lookup to one server, or "" to search
// all servers and take the first hit.
type Source struct {
	Kind   SourceKind
	Tool   string
	Server string
}

// RunMode gates whether a resolved tool call is invoked at all.
type RunMode string

const (
	// RunAsk prompts the user for y/n/edit/refuse-with-reason.
	RunAsk RunMode = "ask"
	// RunUnattended dispatches immediately, no prompt.
	RunUnattended RunMode = "unattended"
	// RunEdit opens an editor on the argument JSON before dispatch.
	RunEdit RunMode = "edit"
	// RunSkip returns a skip result without invoking the tool.
	RunSkip RunMode = "skip"
)

// ResultMode gates what happens to a dispatched tool's result before it
// becomes a ToolCallResponse event.
type ResultMode string

const (
	// ResultDeliver passes the result through unchanged.
	ResultDeliver ResultMode = "deliver"
	// ResultAsk prompts deliver/discard/edit.
	ResultAsk ResultMode = "ask"
	// ResultEdit opens an editor on the result content.
	ResultEdit ResultMode = "edit"
	// ResultSkip returns a placeholder instead of the real result.
	ResultSkip ResultMode = "skip"
)

// Outcome is the structured form a local tool's stdout may take, per
// spec.md §6's wire format: `{"Success":{"content":"..."}}` or
// `{"NeedsInput":{"question":"..."}}`. Stdout that does not parse as
// either is treated as raw content instead.
type Outcome struct {
	Success    *OutcomeSuccess    `json:"Success,omitempty"`
	NeedsInput *OutcomeNeedsInput `json:"NeedsInput,omitempty"`
}

type OutcomeSuccess struct {
	Content string `json:"content"`
}

type OutcomeNeedsInput struct {
	Question string `json:"question"`
}

// ParamOverride narrows a remote (MCP) parameter definition. Per spec.md
// §4.E, overrides may only narrow: add an enum, flip Required from false
// to true, add a Description. They may never widen scope or change
// Kind/name, which Resolve rejects as a McpGetTool error.
type ParamOverride struct {
	Required    *bool
	Enumeration []string
	Description *string
}

// CallContext is the render context template-expanded local-tool commands
// and arguments see, mirroring spec.md §4.E's `{tool: {name, arguments,
// answers}, context: {root}}` shape.
type CallContext struct {
	ToolName      string
	Arguments     json.RawMessage
	Answers       map[string]string
	WorkspaceRoot string
}

// Result is what Execute returns for one tool call, ready to become a
// convo.ToolCallResult.
type Result struct {
	Id      string
	Error   bool
	Content string
}

func (r Result) ToConvo() convo.ToolCallResult {
	return convo.ToolCallResult{Id: r.Id, Error: r.Error, Content: r.Content}
}
