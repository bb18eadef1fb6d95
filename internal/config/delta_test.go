package config

import "testing"

func TestDeltaDropsUnchangedFields(t *testing.T) {
	prev := Partial{Llm: &LlmPartial{Provider: strPtr("anthropic"), Model: strPtr("claude-opus")}}
	next := Partial{Llm: &LlmPartial{Provider: strPtr("anthropic"), Model: strPtr("claude-sonnet")}}

	delta := Delta(prev, next)
	if delta.Llm.Provider != nil {
		t.Fatalf("provider unchanged, should be dropped from delta, got %v", delta.Llm.Provider)
	}
	if delta.Llm.Model == nil || *delta.Llm.Model != "claude-sonnet" {
		t.Fatalf("model should be present in delta: %v", delta.Llm.Model)
	}
}

func TestDeltaAppliedToPrevReproducesNext(t *testing.T) {
	prev := Partial{Llm: &LlmPartial{Provider: strPtr("anthropic"), MaxTokens: intPtr(1024)}}
	next := Partial{Llm: &LlmPartial{Provider: strPtr("anthropic"), MaxTokens: intPtr(4096)}}

	delta := Delta(prev, next)
	reconstructed := Merge(prev, delta)

	if *reconstructed.Llm.MaxTokens != *next.Llm.MaxTokens {
		t.Fatalf("reconstructed max_tokens = %d, want %d", *reconstructed.Llm.MaxTokens, *next.Llm.MaxTokens)
	}
	if *reconstructed.Llm.Provider != *next.Llm.Provider {
		t.Fatalf("reconstructed provider = %s, want %s", *reconstructed.Llm.Provider, *next.Llm.Provider)
	}
}
