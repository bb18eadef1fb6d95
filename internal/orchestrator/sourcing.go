package orchestrator

import "github.com/jp-cli/jp/internal/toolexec"

// SourceResolver maps a tool name, as the model calls it, to the
// toolexec.Source that resolves and dispatches it. The orchestrator
// itself is source-agnostic; a concrete CLI wires this from its tool
// configuration (local command table, MCP server list, builtin
// registry).
type SourceResolver func(toolName string) toolexec.Source

// BuiltinSourceResolver resolves every tool name as a Builtin lookup,
// useful when no local/MCP tools are configured.
func BuiltinSourceResolver(toolName string) toolexec.Source {
	return toolexec.Source{Kind: toolexec.SourceBuiltin, Tool: toolName}
}
