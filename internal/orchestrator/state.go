// Package orchestrator implements spec.md §4.F: the per-query state
// machine that composes a Thread, drives a provider's event stream,
// persists the assistant's turn, and loops through any accumulated tool
// calls before the conversation returns to rest.
package orchestrator

// State names the position of one turn within its state machine:
//
//	Composed -> Streaming -> (ToolCalls? -> ToolExecuting -> Composed) | Finished
type State string

const (
	StateComposed      State = "composed"
	StateStreaming     State = "streaming"
	StateToolExecuting State = "tool_executing"
	StateFinished      State = "finished"
)
