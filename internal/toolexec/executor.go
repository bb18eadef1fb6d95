package toolexec

import (
	"context"
	"encoding/json"

	"github.com/jp-cli/jp/pkg/convo"
)

// maxGateRetries bounds the Edit-mode and Ask-edit retry loops so a
// Prompter that keeps returning invalid input cannot hang the turn
// forever; the spec names the retry behavior but not a cap, so this is
// a defensive finite bound rather than a spec requirement.
const maxGateRetries = 5

// Executor ties definition resolution, the pre/post-run confirmation
// gates, and dispatch together into spec.md §4.E's full invocation flow.
type Executor struct {
	Resolver *Resolver
	Policy   Policy
	Prompter Prompter
	Mcp      MCPClient
	Builtins *Registry

	// LocalCommands maps a local tool's resolved name to the command it
	// runs. Missing entries produce a MissingCommand error.
	LocalCommands map[string]LocalCommand

	WorkspaceRoot string
}

// Execute runs the full flow for one tool call and returns the result the
// orchestrator appends as a ToolCallResponse event. Execute only returns
// a non-nil error for conditions the orchestrator cannot turn into a
// persisted result (definition resolution failure); every other failure
// — argument validation, dispatch failure, MCP errors — is folded into an
// error-tagged Result so the turn always has something to persist.
func (e *Executor) Execute(ctx context.Context, call convo.ToolCallRequest, src Source) (Result, error) {
	def, err := e.Resolver.Resolve(ctx, src)
	if err != nil {
		return Result{}, err
	}

	mode := e.Policy.RunModeFor(call.Name)
	cmd, hasLocal := e.LocalCommands[src.Tool]
	if src.Kind == SourceLocal && hasLocal && cmd.Shell && mode == RunUnattended {
		mode = RunAsk
	}

	args := call.Arguments
	switch mode {
	case RunSkip:
		return Result{Id: call.Id, Error: false, Content: "skipped"}, nil

	case RunEdit:
		edited, ok, err := e.gateEditArguments(ctx, args)
		if err != nil {
			return resultFromError(call.Id, err), nil
		}
		if !ok {
			// Empty content degrades to Ask, per spec.md §4.E.
			args, err = e.gateAsk(ctx, call, args)
			if err != nil {
				return resultFromError(call.Id, err), nil
			}
			if args == nil {
				return Result{Id: call.Id, Error: true, Content: "tool call declined by user"}, nil
			}
		} else {
			args = edited
		}

	case RunAsk:
		resolved, err := e.gateAsk(ctx, call, args)
		if err != nil {
			return resultFromError(call.Id, err), nil
		}
		if resolved == nil {
			return Result{Id: call.Id, Error: true, Content: "tool call declined by user"}, nil
		}
		args = resolved

	case RunUnattended:
		// proceed as-is
	}

	if verr := validateArguments(def, args); verr != nil {
		return resultFromError(call.Id, verr), nil
	}

	content, isErr := e.dispatch(ctx, call.Name, src, args)

	content, isErr = e.gateResult(ctx, call.Name, content, isErr)

	return Result{Id: call.Id, Error: isErr, Content: content}, nil
}

// gateAsk drives the RunAsk y/n/edit/refuse prompt, returning the
// (possibly edited) arguments to dispatch with, or nil if the call should
// not be dispatched (a plain "no" or a refuse).
func (e *Executor) gateAsk(ctx context.Context, call convo.ToolCallRequest, args json.RawMessage) (json.RawMessage, error) {
	action, err := e.Prompter.ConfirmRun(ctx, call.Name, args)
	if err != nil {
		return nil, err
	}
	switch action {
	case ConfirmYes:
		return args, nil
	case ConfirmNo:
		return nil, nil
	case ConfirmRefuse:
		reason, err := e.Prompter.RefuseReason(ctx)
		if err != nil {
			return nil, err
		}
		return nil, &refusedError{reason: reason}
	case ConfirmEditArg:
		edited, ok, err := e.gateEditArguments(ctx, args)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return edited, nil
	default:
		return nil, errInvalidType("unknown confirm action " + string(action))
	}
}

// refusedError carries a user-supplied refusal reason through to the
// synthetic result spec.md §4.E requires: "the tool call is not executed
// and a synthetic result carrying the reason is produced."
type refusedError struct{ reason string }

func (e *refusedError) Error() string { return e.reason }

func (e *Executor) gateEditArguments(ctx context.Context, args json.RawMessage) (json.RawMessage, bool, error) {
	for attempt := 0; attempt < maxGateRetries; attempt++ {
		edited, ok, err := e.Prompter.EditArguments(ctx, args)
		if err != nil {
			return nil, false, errOpenEditor(err)
		}
		if !ok {
			return nil, false, nil
		}
		if len(edited) == 0 {
			return nil, false, nil
		}
		if !json.Valid(edited) {
			args = edited
			continue
		}
		return edited, true, nil
	}
	return nil, false, errEditArguments("exceeded retry limit waiting for valid argument JSON")
}

func (e *Executor) dispatch(ctx context.Context, toolName string, src Source, args json.RawMessage) (content string, isErr bool) {
	switch src.Kind {
	case SourceLocal:
		cmd, ok := e.LocalCommands[src.Tool]
		if !ok {
			return errMissingCommand(src.Tool).Error(), true
		}
		cc := CallContext{ToolName: toolName, Arguments: args, WorkspaceRoot: e.WorkspaceRoot}
		stdout, stderr, runErr := runLocal(ctx, cmd, cc)
		if runErr != nil {
			if terr, ok := runErr.(*Error); ok {
				return terr.Error(), true
			}
			return errorResultContent(runErr.Error(), stdout, stderr), true
		}
		result, question, _ := decodeLocalOutcome(stdout)
		if question != "" {
			return (&Error{Kind: ErrNeedsInput, Reason: question}).Error(), true
		}
		return result, false

	case SourceMcp:
		if e.Mcp == nil {
			return errMcpRunTool(errNoMcpClient).Error(), true
		}
		blocks, err := e.Mcp.CallTool(ctx, src.Server, src.Tool, args)
		if err != nil {
			return errMcpRunTool(err).Error(), true
		}
		return joinMCPContent(blocks), false

	case SourceBuiltin:
		b, ok := e.Builtins.Lookup(src.Tool)
		if !ok {
			return (&ErrUnknownBuiltin{Name: src.Tool}).Error(), true
		}
		content, err := b.Handler(ctx, args)
		if err != nil {
			return err.Error(), true
		}
		return content, false

	default:
		return errInvalidType("unknown tool source kind " + string(src.Kind)).Error(), true
	}
}

var errNoMcpClient = &Error{Kind: ErrMcpRunTool, Reason: "no MCP client configured"}

// gateResult drives the post-run ResultMode gate.
func (e *Executor) gateResult(ctx context.Context, toolName, content string, isErr bool) (string, bool) {
	mode := e.Policy.ResultModeFor(toolName)
	switch mode {
	case ResultSkip:
		return "result skipped", isErr
	case ResultEdit:
		edited, ok, err := e.editResultWithRetry(ctx, content)
		if err != nil {
			return content, isErr
		}
		if !ok {
			return content, isErr
		}
		return edited, isErr
	case ResultAsk:
		action, err := e.Prompter.ConfirmResult(ctx, content)
		if err != nil {
			return content, isErr
		}
		switch action {
		case ResultActionDeliver:
			return content, isErr
		case ResultActionDiscard:
			return "result discarded by user", true
		case ResultActionEdit:
			edited, ok, err := e.editResultWithRetry(ctx, content)
			if err != nil || !ok {
				return content, isErr
			}
			return edited, isErr
		}
		return content, isErr
	default: // ResultDeliver
		return content, isErr
	}
}

func (e *Executor) editResultWithRetry(ctx context.Context, content string) (string, bool, error) {
	for attempt := 0; attempt < maxGateRetries; attempt++ {
		edited, ok, err := e.Prompter.EditResult(ctx, content)
		if err != nil {
			return "", false, errOpenEditor(err)
		}
		if !ok {
			return "", false, nil
		}
		if edited == "" {
			content = edited
			continue
		}
		return edited, true, nil
	}
	return "", false, errEditArguments("exceeded retry limit waiting for non-empty edited result")
}

func resultFromError(id string, err error) Result {
	if refused, ok := err.(*refusedError); ok {
		return Result{Id: id, Error: true, Content: refused.reason}
	}
	return Result{Id: id, Error: true, Content: err.Error()}
}

// validateArguments checks args against def's required/unknown-key
// contract, spec.md §4.E step 2, then against its full JSON Schema
// (enum membership, numeric bounds, leaf types) so a call that names
// all the right keys but violates a constraint on one of them is still
// rejected before dispatch.
func validateArguments(def convo.ToolDefinition, args json.RawMessage) error {
	var decoded map[string]json.RawMessage
	if len(args) > 0 {
		if err := json.Unmarshal(args, &decoded); err != nil {
			return errInvalidType("arguments are not a JSON object: " + err.Error())
		}
	}

	known := make(map[string]convo.ToolParameterConfig, len(def.Parameters))
	for _, p := range def.Parameters {
		known[p.Name] = p.Config
	}

	var missing, unknown []string
	for name, cfg := range known {
		if cfg.Required {
			if _, ok := decoded[name]; !ok {
				missing = append(missing, name)
			}
		}
	}
	for name := range decoded {
		if _, ok := known[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(missing) > 0 || len(unknown) > 0 {
		return errArguments(missing, unknown)
	}

	if len(def.Parameters) == 0 {
		return nil
	}
	schema, err := compileToolSchema(def)
	if err != nil {
		return errSchemaViolation("invalid parameter schema: " + err.Error())
	}
	var v any = map[string]any{}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &v); err != nil {
			return errInvalidType("arguments are not a JSON object: " + err.Error())
		}
	}
	if err := schema.Validate(v); err != nil {
		return errSchemaViolation(err.Error())
	}
	return nil
}
