package config

import "testing"

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }

func TestMergeAssociativity(t *testing.T) {
	a := Partial{Llm: &LlmPartial{Provider: strPtr("anthropic")}}
	b := Partial{Llm: &LlmPartial{Model: strPtr("claude")}}
	c := Partial{Llm: &LlmPartial{MaxTokens: intPtr(2048)}}

	left := Merge(Merge(a, b), c)
	right := Merge(a, Merge(b, c))

	if *left.Llm.Provider != *right.Llm.Provider {
		t.Fatalf("provider mismatch: %s vs %s", *left.Llm.Provider, *right.Llm.Provider)
	}
	if *left.Llm.Model != *right.Llm.Model {
		t.Fatalf("model mismatch: %s vs %s", *left.Llm.Model, *right.Llm.Model)
	}
	if *left.Llm.MaxTokens != *right.Llm.MaxTokens {
		t.Fatalf("max_tokens mismatch: %d vs %d", *left.Llm.MaxTokens, *right.Llm.MaxTokens)
	}
}

func TestMergeOverwriteLatestWins(t *testing.T) {
	a := Partial{Llm: &LlmPartial{Provider: strPtr("anthropic")}}
	b := Partial{Llm: &LlmPartial{Provider: strPtr("openai")}}

	merged := Merge(a, b)
	if *merged.Llm.Provider != "openai" {
		t.Fatalf("provider = %s, want openai", *merged.Llm.Provider)
	}
}

func TestInheritFalseFloor(t *testing.T) {
	defaults := Partial{Llm: &LlmPartial{Provider: strPtr("anthropic")}}
	global := Partial{Llm: &LlmPartial{Model: strPtr("claude-opus")}}
	project := Partial{Inherit: boolPtr(false), Llm: &LlmPartial{Model: strPtr("claude-sonnet")}}

	merged := InheritanceWalk([]Partial{defaults, global, project})

	if merged.Llm.Provider != nil {
		t.Fatalf("provider should have been dropped by inherit=false floor, got %v", merged.Llm.Provider)
	}
	if *merged.Llm.Model != "claude-sonnet" {
		t.Fatalf("model = %v, want claude-sonnet", merged.Llm.Model)
	}
}

func TestMergeableStringAppendPrependReplace(t *testing.T) {
	// Scenario S3: one.toml sets a="α" (replace), root sets
	// a={value:"γ",strategy:"prepend"}, two.toml sets
	// a={value:"β",strategy:"append"}. Merge order one -> root -> two
	// (before-extends, self, after-extends) should yield "γαβ".
	one := Partial{Llm: &LlmPartial{Instructions: &MergeableString{Value: "α", Strategy: StrategyReplace}}}
	root := Partial{Llm: &LlmPartial{Instructions: &MergeableString{Value: "γ", Strategy: StrategyPrepend}}}
	two := Partial{Llm: &LlmPartial{Instructions: &MergeableString{Value: "β", Strategy: StrategyAppend}}}

	merged := InheritanceWalk([]Partial{one, root, two})

	if merged.Llm.Instructions.Value != "γαβ" {
		t.Fatalf("instructions = %q, want %q", merged.Llm.Instructions.Value, "γαβ")
	}
}

func TestMergeableStringListStrategies(t *testing.T) {
	base := Partial{Tools: &ToolsPartial{Disabled: &MergeableStringList{Values: []string{"shell"}, Strategy: StrategyReplace}}}
	appended := Partial{Tools: &ToolsPartial{Disabled: &MergeableStringList{Values: []string{"browser"}, Strategy: StrategyAppend}}}

	merged := Merge(base, appended)
	want := []string{"shell", "browser"}
	if len(merged.Tools.Disabled.Values) != len(want) {
		t.Fatalf("disabled = %v, want %v", merged.Tools.Disabled.Values, want)
	}
	for i, v := range want {
		if merged.Tools.Disabled.Values[i] != v {
			t.Fatalf("disabled[%d] = %s, want %s", i, merged.Tools.Disabled.Values[i], v)
		}
	}
}
