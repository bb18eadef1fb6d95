package toolexec

import "fmt"

// ErrorKind enumerates the failure taxonomy spec.md §4.E names verbatim.
type ErrorKind string

const (
	ErrMissingCommand     ErrorKind = "missing_command"
	ErrTemplate           ErrorKind = "template_error"
	ErrNeedsInput         ErrorKind = "needs_input"
	ErrArguments          ErrorKind = "arguments"
	ErrMcpGetTool         ErrorKind = "mcp_get_tool"
	ErrMcpRunTool         ErrorKind = "mcp_run_tool"
	ErrSerializeArguments ErrorKind = "serialize_arguments"
	ErrOpenEditor         ErrorKind = "open_editor"
	ErrEditArguments      ErrorKind = "edit_arguments"
	ErrInvalidType        ErrorKind = "invalid_type"
	ErrSchemaViolation    ErrorKind = "schema_violation"
)

// Error is the tagged failure type every toolexec operation returns,
// following the teacher's ToolError{Type, ...}/Unwrap pattern.
type Error struct {
	Kind ErrorKind
	// Missing/Unknown populate an Arguments error with the offending keys.
	Missing []string
	Unknown []string
	Reason  string
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrArguments:
		return fmt.Sprintf("toolexec: arguments: missing=%v unknown=%v", e.Missing, e.Unknown)
	case ErrNeedsInput:
		return fmt.Sprintf("toolexec: needs input: %s", e.Reason)
	case ErrSchemaViolation:
		return fmt.Sprintf("toolexec: schema violation: %s", e.Reason)
	default:
		if e.Err != nil {
			return fmt.Sprintf("toolexec: %s: %v", e.Kind, e.Err)
		}
		return fmt.Sprintf("toolexec: %s: %s", e.Kind, e.Reason)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func errMissingCommand(tool string) *Error {
	return &Error{Kind: ErrMissingCommand, Reason: "no command configured for local tool " + tool}
}

func errTemplate(err error) *Error {
	return &Error{Kind: ErrTemplate, Err: err}
}

func errArguments(missing, unknown []string) *Error {
	return &Error{Kind: ErrArguments, Missing: missing, Unknown: unknown}
}

func errMcpGetTool(reason string) *Error {
	return &Error{Kind: ErrMcpGetTool, Reason: reason}
}

func errMcpRunTool(err error) *Error {
	return &Error{Kind: ErrMcpRunTool, Err: err}
}

func errSerializeArguments(err error) *Error {
	return &Error{Kind: ErrSerializeArguments, Err: err}
}

func errOpenEditor(err error) *Error {
	return &Error{Kind: ErrOpenEditor, Err: err}
}

func errEditArguments(reason string) *Error {
	return &Error{Kind: ErrEditArguments, Reason: reason}
}

func errInvalidType(reason string) *Error {
	return &Error{Kind: ErrInvalidType, Reason: reason}
}

func errSchemaViolation(reason string) *Error {
	return &Error{Kind: ErrSchemaViolation, Reason: reason}
}
