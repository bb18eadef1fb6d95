package toolexec

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jp-cli/jp/pkg/convo"
)

const toolSchemaResource = "tool-arguments.json"

// toolDefinitionJSONSchema renders def's ordered parameter list as a JSON
// Schema object node, the same shape internal/provider builds for the
// wire-format tool schemas the model sees, so argument validation enforces
// the enum/numeric-bound constraints already advertised to the model.
func toolDefinitionJSONSchema(def convo.ToolDefinition) []byte {
	properties := make(map[string]any, len(def.Parameters))
	var required []string
	for _, p := range def.Parameters {
		properties[p.Name] = paramConfigSchema(p.Config)
		if p.Config.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	b, _ := json.Marshal(schema)
	return b
}

func paramConfigSchema(c convo.ToolParameterConfig) map[string]any {
	node := map[string]any{"type": string(c.Kind)}
	if c.Description != "" {
		node["description"] = c.Description
	}
	if len(c.Enumeration) > 0 {
		enum := make([]any, len(c.Enumeration))
		for i, v := range c.Enumeration {
			enum[i] = v
		}
		node["enum"] = enum
	}
	if c.Minimum != nil {
		node["minimum"] = *c.Minimum
	}
	if c.Maximum != nil {
		node["maximum"] = *c.Maximum
	}
	if c.Items != nil {
		node["items"] = paramConfigSchema(*c.Items)
	}
	return node
}

// compileToolSchema compiles def's parameter schema fresh on every call;
// tool definitions are small and validated once per dispatch, so there's
// no cache to maintain here unlike provider's retry-loop validator.
func compileToolSchema(def convo.ToolDefinition) (*jsonschema.Schema, error) {
	return jsonschema.CompileString(toolSchemaResource, string(toolDefinitionJSONSchema(def)))
}
