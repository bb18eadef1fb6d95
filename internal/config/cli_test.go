package config

import "testing"

func TestApplyAssignmentsScalar(t *testing.T) {
	p, err := ApplyAssignments(Partial{}, []string{"llm.provider=anthropic", "llm.max_tokens=2048"})
	if err != nil {
		t.Fatalf("ApplyAssignments: %v", err)
	}
	if p.Llm == nil || p.Llm.Provider == nil || *p.Llm.Provider != "anthropic" {
		t.Fatalf("provider not applied: %+v", p.Llm)
	}
	if p.Llm.MaxTokens == nil || *p.Llm.MaxTokens != 2048 {
		t.Fatalf("max_tokens not applied as int: %+v", p.Llm)
	}
}

func TestApplyAssignmentsObjectMerge(t *testing.T) {
	p, err := ApplyAssignments(Partial{}, []string{`llm:={"provider":"openai","model":"gpt-4o"}`})
	if err != nil {
		t.Fatalf("ApplyAssignments: %v", err)
	}
	if p.Llm == nil || p.Llm.Provider == nil || *p.Llm.Provider != "openai" {
		t.Fatalf("provider not applied: %+v", p.Llm)
	}
	if p.Llm.Model == nil || *p.Llm.Model != "gpt-4o" {
		t.Fatalf("model not applied: %+v", p.Llm)
	}
}

func TestApplyAssignmentsOrderLatestWins(t *testing.T) {
	p, err := ApplyAssignments(Partial{}, []string{"llm.provider=anthropic", "llm.provider=openai"})
	if err != nil {
		t.Fatalf("ApplyAssignments: %v", err)
	}
	if *p.Llm.Provider != "openai" {
		t.Fatalf("provider = %s, want openai (last assignment wins)", *p.Llm.Provider)
	}
}
