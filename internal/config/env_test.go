package config

import "testing"

func TestFromEnvironMapsKnownLeaves(t *testing.T) {
	p, err := FromEnviron([]string{
		"JP_CFG_LLM_PROVIDER=anthropic",
		"JP_CFG_LLM_MAX_TOKENS=8192",
		"JP_CFG_SESSION_REPLAY_ENABLED=false",
		"UNRELATED=ignored",
	})
	if err != nil {
		t.Fatalf("FromEnviron: %v", err)
	}
	if p.Llm == nil || p.Llm.Provider == nil || *p.Llm.Provider != "anthropic" {
		t.Fatalf("provider not set: %+v", p.Llm)
	}
	if p.Llm.MaxTokens == nil || *p.Llm.MaxTokens != 8192 {
		t.Fatalf("max_tokens not set: %+v", p.Llm)
	}
	if p.Session == nil || p.Session.ReplayEnabled == nil || *p.Session.ReplayEnabled != false {
		t.Fatalf("replay_enabled not set: %+v", p.Session)
	}
}

func TestFromEnvironUnknownLeafRejected(t *testing.T) {
	_, err := FromEnviron([]string{"JP_CFG_NOT_A_REAL_LEAF=1"})
	if err == nil {
		t.Fatalf("expected unknown key error")
	}
}

func TestGlobalConfigPathOverride(t *testing.T) {
	got := GlobalConfigPath([]string{"JP_GLOBAL_CONFIG_FILE=/custom/path.toml"}, "/default/path.toml")
	if got != "/custom/path.toml" {
		t.Fatalf("got %s, want override", got)
	}
	got = GlobalConfigPath([]string{}, "/default/path.toml")
	if got != "/default/path.toml" {
		t.Fatalf("got %s, want fallback", got)
	}
}
