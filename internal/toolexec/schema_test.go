package toolexec

import (
	"encoding/json"
	"testing"

	"github.com/jp-cli/jp/pkg/convo"
)

func floatPtr(f float64) *float64 { return &f }

func weatherTool() convo.ToolDefinition {
	return convo.ToolDefinition{
		Name: "get_weather",
		Parameters: []convo.ToolParameter{
			{Name: "city", Config: convo.ToolParameterConfig{Kind: convo.ParamString, Required: true}},
			{Name: "unit", Config: convo.ToolParameterConfig{Kind: convo.ParamString, Enumeration: []string{"celsius", "fahrenheit"}}},
			{Name: "days", Config: convo.ToolParameterConfig{Kind: convo.ParamInteger, Minimum: floatPtr(1), Maximum: floatPtr(10)}},
		},
	}
}

func TestValidateArgumentsAcceptsWellFormedCall(t *testing.T) {
	def := weatherTool()
	args := json.RawMessage(`{"city":"Reno","unit":"celsius","days":3}`)
	if err := validateArguments(def, args); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateArgumentsCatchesMissingAndUnknownKeys(t *testing.T) {
	def := weatherTool()
	args := json.RawMessage(`{"unit":"celsius","extra":true}`)
	err := validateArguments(def, args)
	if err == nil {
		t.Fatal("expected an error")
	}
	terr, ok := err.(*Error)
	if !ok || terr.Kind != ErrArguments {
		t.Fatalf("expected ErrArguments, got %v", err)
	}
	if len(terr.Missing) != 1 || terr.Missing[0] != "city" {
		t.Errorf("expected missing=[city], got %v", terr.Missing)
	}
	if len(terr.Unknown) != 1 || terr.Unknown[0] != "extra" {
		t.Errorf("expected unknown=[extra], got %v", terr.Unknown)
	}
}

func TestValidateArgumentsRejectsEnumViolation(t *testing.T) {
	def := weatherTool()
	args := json.RawMessage(`{"city":"Reno","unit":"kelvin"}`)
	err := validateArguments(def, args)
	if err == nil {
		t.Fatal("expected an error for an out-of-enum unit")
	}
	terr, ok := err.(*Error)
	if !ok || terr.Kind != ErrSchemaViolation {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}
}

func TestValidateArgumentsRejectsNumericBoundsViolation(t *testing.T) {
	def := weatherTool()
	args := json.RawMessage(`{"city":"Reno","days":30}`)
	err := validateArguments(def, args)
	if err == nil {
		t.Fatal("expected an error for a days value above the maximum")
	}
	terr, ok := err.(*Error)
	if !ok || terr.Kind != ErrSchemaViolation {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}
}

func TestValidateArgumentsSkipsSchemaCompileForParameterlessTools(t *testing.T) {
	def := convo.ToolDefinition{Name: "ping"}
	if err := validateArguments(def, nil); err != nil {
		t.Fatalf("unexpected error for a parameterless tool: %v", err)
	}
}

func TestToolDefinitionJSONSchemaIncludesBoundsAndEnum(t *testing.T) {
	def := weatherTool()
	raw := toolDefinitionJSONSchema(def)
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}
	props, ok := decoded["properties"].(map[string]any)
	if !ok {
		t.Fatal("expected a properties object")
	}
	days, ok := props["days"].(map[string]any)
	if !ok {
		t.Fatal("expected a days property")
	}
	if days["minimum"] != float64(1) || days["maximum"] != float64(10) {
		t.Errorf("expected days bounds [1,10], got min=%v max=%v", days["minimum"], days["maximum"])
	}
	unit, ok := props["unit"].(map[string]any)
	if !ok {
		t.Fatal("expected a unit property")
	}
	if _, ok := unit["enum"]; !ok {
		t.Error("expected unit to carry an enum constraint")
	}
}
