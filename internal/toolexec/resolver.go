package toolexec

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jp-cli/jp/pkg/convo"
)

// Resolver resolves a tool's ToolDefinition across the three sources,
// spec.md §4.E.
type Resolver struct {
	// Local holds definitions configured directly (no external lookup).
	Local map[string]convo.ToolDefinition
	// LocalOverrides narrows a Local definition's parameters, keyed the
	// same way MCP overrides are.
	LocalOverrides map[string]map[string]ParamOverride
	// McpOverrides narrows a remote MCP tool's parameters, keyed by tool
	// name then parameter name.
	McpOverrides map[string]map[string]ParamOverride
	Builtins     *Registry
	Mcp          MCPClient
}

// Resolve fetches and, for MCP, merges a tool's definition according to
// its Source.
func (r *Resolver) Resolve(ctx context.Context, src Source) (convo.ToolDefinition, error) {
	switch src.Kind {
	case SourceLocal:
		def, ok := r.Local[src.Tool]
		if !ok {
			return convo.ToolDefinition{}, errMcpGetTool("no local tool configuration for " + src.Tool)
		}
		return applyOverrides(def, r.LocalOverrides[src.Tool])

	case SourceBuiltin:
		if r.Builtins == nil {
			return convo.ToolDefinition{}, &ErrUnknownBuiltin{Name: src.Tool}
		}
		b, ok := r.Builtins.Lookup(src.Tool)
		if !ok {
			return convo.ToolDefinition{}, &ErrUnknownBuiltin{Name: src.Tool}
		}
		return b.Definition, nil

	case SourceMcp:
		if r.Mcp == nil {
			return convo.ToolDefinition{}, errMcpGetTool("no MCP client configured")
		}
		remote, err := r.Mcp.GetTool(ctx, src.Server, src.Tool)
		if err != nil {
			return convo.ToolDefinition{}, errMcpGetTool(err.Error())
		}
		def, err := schemaToDefinition(src.Tool, remote.Schema)
		if err != nil {
			return convo.ToolDefinition{}, errMcpGetTool(err.Error())
		}
		return applyOverrides(def, r.McpOverrides[src.Tool])

	default:
		return convo.ToolDefinition{}, errInvalidType("unknown tool source kind " + string(src.Kind))
	}
}

// applyOverrides merges config overrides into a definition's parameters.
// Overrides may only narrow: add/restrict an enum, flip Required
// false->true, add a Description. A widening or name/type-changing
// override is rejected as a McpGetTool error (spec.md §4.E).
func applyOverrides(def convo.ToolDefinition, overrides map[string]ParamOverride) (convo.ToolDefinition, error) {
	if len(overrides) == 0 {
		return def, nil
	}
	out := def
	out.Parameters = make([]convo.ToolParameter, len(def.Parameters))
	copy(out.Parameters, def.Parameters)

	for i, p := range out.Parameters {
		ov, ok := overrides[p.Name]
		if !ok {
			continue
		}
		cfg := p.Config
		if ov.Required != nil {
			if !cfg.Required && !*ov.Required {
				// no-op
			} else if cfg.Required && !*ov.Required {
				return convo.ToolDefinition{}, errMcpGetTool(fmt.Sprintf("override cannot widen %q from required to optional", p.Name))
			} else {
				cfg.Required = true
			}
		}
		if len(ov.Enumeration) > 0 {
			if len(cfg.Enumeration) > 0 && !isSubset(ov.Enumeration, cfg.Enumeration) {
				return convo.ToolDefinition{}, errMcpGetTool(fmt.Sprintf("override enum for %q is not a subset of the remote enum", p.Name))
			}
			cfg.Enumeration = ov.Enumeration
		}
		if ov.Description != nil {
			cfg.Description = *ov.Description
		}
		out.Parameters[i] = convo.ToolParameter{Name: p.Name, Config: cfg}
	}
	delete(overrides, "")
	for name := range overrides {
		found := false
		for _, p := range def.Parameters {
			if p.Name == name {
				found = true
				break
			}
		}
		if !found {
			return convo.ToolDefinition{}, errMcpGetTool(fmt.Sprintf("override names unknown parameter %q (name/type changes are rejected)", name))
		}
	}
	return out, nil
}

func isSubset(subset, superset []string) bool {
	set := make(map[string]bool, len(superset))
	for _, s := range superset {
		set[s] = true
	}
	for _, s := range subset {
		if !set[s] {
			return false
		}
	}
	return true
}

// jsonSchemaNode is the minimal subset of JSON Schema needed to describe
// a tool's parameters, mirroring internal/provider/schema.go's node shape
// but walked read-only here rather than transformed.
type jsonSchemaNode struct {
	Type        any                        `json:"type"`
	Description string                     `json:"description"`
	Enum        []json.RawMessage          `json:"enum"`
	Default     json.RawMessage            `json:"default"`
	Items       *jsonSchemaNode            `json:"items"`
	Properties  map[string]*jsonSchemaNode `json:"properties"`
	Required    []string                   `json:"required"`
}

// schemaToDefinition parses a remote MCP JSON-schema tool description
// into the ordered convo.ToolDefinition parameter shape this package and
// the provider abstraction share.
func schemaToDefinition(name string, schema json.RawMessage) (convo.ToolDefinition, error) {
	var root jsonSchemaNode
	if err := json.Unmarshal(schema, &root); err != nil {
		return convo.ToolDefinition{}, fmt.Errorf("toolexec: invalid schema for %q: %w", name, err)
	}
	required := make(map[string]bool, len(root.Required))
	for _, r := range root.Required {
		required[r] = true
	}

	names := make([]string, 0, len(root.Properties))
	for pname := range root.Properties {
		names = append(names, pname)
	}
	// Deterministic order: properties is unordered in Go's map, so the
	// caller-visible ToolDefinition.Parameters order is alphabetical.
	// Real MCP servers that care about order should set a "x-order"
	// extension the caller pre-sorts by before calling this; omitted
	// here as no pack example exercises ordered MCP schemas.
	sortStrings(names)

	params := make([]convo.ToolParameter, 0, len(names))
	for _, pname := range names {
		node := root.Properties[pname]
		params = append(params, convo.ToolParameter{
			Name: pname,
			Config: convo.ToolParameterConfig{
				Kind:        paramKindFromSchema(node),
				Default:     node.Default,
				Required:    required[pname],
				Description: node.Description,
				Enumeration: decodeEnum(node.Enum),
				Items:       itemsConfig(node.Items),
			},
		})
	}

	return convo.ToolDefinition{Name: name, Parameters: params}, nil
}

func paramKindFromSchema(n *jsonSchemaNode) convo.ToolParameterKind {
	if n == nil {
		return convo.ParamString
	}
	t, _ := n.Type.(string)
	switch t {
	case "integer":
		return convo.ParamInteger
	case "number":
		return convo.ParamNumber
	case "boolean":
		return convo.ParamBoolean
	case "object":
		return convo.ParamObject
	case "array":
		return convo.ParamArray
	default:
		return convo.ParamString
	}
}

func itemsConfig(n *jsonSchemaNode) *convo.ToolParameterConfig {
	if n == nil {
		return nil
	}
	return &convo.ToolParameterConfig{
		Kind:        paramKindFromSchema(n),
		Description: n.Description,
		Enumeration: decodeEnum(n.Enum),
	}
}

func decodeEnum(raw []json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			out = append(out, s)
			continue
		}
		out = append(out, string(r))
	}
	return out
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
