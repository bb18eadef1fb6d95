package toolexec

import (
	"context"
	"encoding/json"
)

// ConfirmAction is the user's answer to a RunAsk pre-run prompt.
type ConfirmAction string

const (
	ConfirmYes     ConfirmAction = "yes"
	ConfirmNo      ConfirmAction = "no"
	ConfirmEditArg ConfirmAction = "edit"
	ConfirmRefuse  ConfirmAction = "refuse"
)

// ResultAction is the user's answer to a ResultAsk post-run prompt.
type ResultAction string

const (
	ResultActionDeliver ResultAction = "deliver"
	ResultActionDiscard ResultAction = "discard"
	ResultActionEdit    ResultAction = "edit"
)

// Prompter is the interactive collaborator the executor drives for the
// RunAsk/RunEdit/ResultAsk/ResultEdit gates. spec.md §1 scopes the actual
// terminal UI and editor subprocess launcher out of this core ("the
// interactive editor launcher" is an external collaborator); this
// interface is the seam the orchestrator's concrete CLI implements.
type Prompter interface {
	// ConfirmRun asks y/n/edit/refuse for a pending tool call.
	ConfirmRun(ctx context.Context, toolName string, arguments json.RawMessage) (ConfirmAction, error)
	// RefuseReason captures the free-text reason for a ConfirmRefuse
	// answer.
	RefuseReason(ctx context.Context) (string, error)
	// EditArguments opens an editor on the argument JSON. ok is false if
	// the user aborted without saving.
	EditArguments(ctx context.Context, arguments json.RawMessage) (edited json.RawMessage, ok bool, err error)
	// ConfirmResult asks deliver/discard/edit for a tool's result.
	ConfirmResult(ctx context.Context, content string) (ResultAction, error)
	// EditResult opens an editor on the result content. ok is false if
	// the user aborted without saving; an empty edited result with ok
	// true makes the executor open the editor again.
	EditResult(ctx context.Context, content string) (edited string, ok bool, err error)
}
