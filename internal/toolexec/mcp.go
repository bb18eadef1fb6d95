package toolexec

import (
	"context"
	"encoding/json"
)

// MCPContentKind tags the variant an MCP tool result's content carries,
// per spec.md §6: "returning content with text/resource/image/audio
// variants."
type MCPContentKind string

const (
	MCPContentText     MCPContentKind = "text"
	MCPContentResource MCPContentKind = "resource"
	MCPContentImage    MCPContentKind = "image"
	MCPContentAudio    MCPContentKind = "audio"
)

// MCPContent is one block of an MCP tool result.
type MCPContent struct {
	Kind MCPContentKind
	Text string
	// URI/MIMEType/Data apply to resource/image/audio blocks.
	URI      string
	MIMEType string
	Data     string
}

// MCPToolDefinition is what an MCP server reports for one tool.
type MCPToolDefinition struct {
	Server string
	Name   string
	Schema json.RawMessage
}

// MCPClient is the MCP consumer interface spec.md §6 says the core
// expects but does not define the transport for ("MCP transport and
// JSON-RPC plumbing" is an external collaborator, spec.md §1). Any
// concrete JSON-RPC client satisfies this by adapting its own wire calls.
type MCPClient interface {
	// ListTools enumerates every tool advertised by every connected
	// server.
	ListTools(ctx context.Context) ([]MCPToolDefinition, error)
	// GetTool fetches one tool's definition. server == "" searches every
	// connected server and returns the first hit.
	GetTool(ctx context.Context, server, name string) (MCPToolDefinition, error)
	// CallTool invokes a tool and returns its content blocks.
	CallTool(ctx context.Context, server, name string, arguments json.RawMessage) ([]MCPContent, error)
}

// joinMCPContent flattens content blocks into a single display string,
// the shape toolexec needs to fold an MCP result into a Result.Content.
func joinMCPContent(blocks []MCPContent) string {
	if len(blocks) == 1 && blocks[0].Kind == MCPContentText {
		return blocks[0].Text
	}
	var out []byte
	for i, b := range blocks {
		if i > 0 {
			out = append(out, '\n')
		}
		switch b.Kind {
		case MCPContentText:
			out = append(out, b.Text...)
		case MCPContentResource:
			out = append(out, ("[resource: " + b.URI + "]")...)
		case MCPContentImage:
			out = append(out, ("[image: " + b.MIMEType + "]")...)
		case MCPContentAudio:
			out = append(out, ("[audio: " + b.MIMEType + "]")...)
		}
	}
	return string(out)
}
