package orchestrator

import "errors"

// ErrUnknownConversation reports a conversation id with no matching entry
// in the conversations TombMap.
var ErrUnknownConversation = errors.New("orchestrator: unknown conversation id")

// ErrNoPriorAssistant reports a replay request on a conversation with no
// assistant turn to pop.
var ErrNoPriorAssistant = errors.New("orchestrator: no prior assistant turn to replay")

// ErrToolLoopExceeded reports the tool round-trip loop hitting its
// configured cap without the model settling on a final answer, spec.md
// §4.F's "finite per turn (configurable cap) to prevent runaway models."
var ErrToolLoopExceeded = errors.New("orchestrator: tool loop exceeded configured cap")

// ErrCancelled reports a turn discarded by external cancellation.
var ErrCancelled = errors.New("orchestrator: turn cancelled")
