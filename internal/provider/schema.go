package provider

import "encoding/json"

// TransformSchemaForStrictMode rewrites a JSON schema so it is accepted by
// providers that enforce a stricter subset of JSON Schema for structured
// outputs and tool parameters: oneOf becomes anyOf, every object gets
// additionalProperties:false, and keywords those providers reject outright
// (minItems>1, maxItems, minimum, maximum, unsupported string formats) are
// folded into the node's description instead of dropped. $ref is left
// untouched; $defs, properties, and items are recursed into. The
// transform is idempotent: running it twice produces the same result as
// running it once.
func TransformSchemaForStrictMode(schema []byte) ([]byte, error) {
	var node any
	if err := json.Unmarshal(schema, &node); err != nil {
		return nil, err
	}
	node = transformNode(node)
	return json.Marshal(node)
}

var unsupportedFormats = map[string]bool{
	"date-time": false,
	"uuid":      true,
	"email":     true,
	"hostname":  true,
}

func transformNode(n any) any {
	switch v := n.(type) {
	case map[string]any:
		return transformObjectSchema(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = transformNode(item)
		}
		return out
	default:
		return n
	}
}

func transformObjectSchema(m map[string]any) map[string]any {
	if _, hasRef := m["$ref"]; hasRef && len(m) == 1 {
		return m
	}

	var notes []string

	if oneOf, ok := m["oneOf"]; ok {
		delete(m, "oneOf")
		m["anyOf"] = oneOf
	}

	if anyOf, ok := m["anyOf"].([]any); ok {
		m["anyOf"] = transformNode(anyOf)
	}

	if typ, _ := m["type"].(string); typ == "object" {
		m["additionalProperties"] = false
	}

	if minItems, ok := numberValue(m["minItems"]); ok && minItems > 1 {
		notes = append(notes, jsonNote("minItems", m["minItems"]))
		delete(m, "minItems")
	}
	if maxItems, ok := m["maxItems"]; ok {
		notes = append(notes, jsonNote("maxItems", maxItems))
		delete(m, "maxItems")
	}
	if minimum, ok := m["minimum"]; ok {
		notes = append(notes, jsonNote("minimum", minimum))
		delete(m, "minimum")
	}
	if maximum, ok := m["maximum"]; ok {
		notes = append(notes, jsonNote("maximum", maximum))
		delete(m, "maximum")
	}
	if format, ok := m["format"].(string); ok && unsupportedFormats[format] {
		notes = append(notes, "format: "+format)
		delete(m, "format")
	}

	if len(notes) > 0 {
		desc, _ := m["description"].(string)
		for _, note := range notes {
			if desc != "" {
				desc += "; "
			}
			desc += note
		}
		m["description"] = desc
	}

	for _, key := range []string{"properties", "$defs", "definitions"} {
		if nested, ok := m[key].(map[string]any); ok {
			out := make(map[string]any, len(nested))
			for k, v := range nested {
				out[k] = transformNode(v)
			}
			m[key] = out
		}
	}
	if items, ok := m["items"]; ok {
		m["items"] = transformNode(items)
	}

	return m
}

func numberValue(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func jsonNote(key string, v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return key
	}
	return key + ": " + string(b)
}
