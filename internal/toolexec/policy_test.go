package toolexec

import "testing"

func TestDefaultPolicyAsksForEverything(t *testing.T) {
	p := DefaultPolicy()
	if p.RunModeFor("read") != RunAsk {
		t.Fatalf("expected RunAsk, got %v", p.RunModeFor("read"))
	}
	if p.ResultModeFor("read") != ResultAsk {
		t.Fatalf("expected ResultAsk, got %v", p.ResultModeFor("read"))
	}
}

func TestRunOverridesMatchInOrder(t *testing.T) {
	p := Policy{
		DefaultRun: RunAsk,
		RunOverrides: []PatternMode{
			{Pattern: "write*", Mode: RunUnattended},
			{Pattern: "*", Mode: RunSkip},
		},
	}
	if got := p.RunModeFor("write_file"); got != RunUnattended {
		t.Fatalf("expected RunUnattended for write_file, got %v", got)
	}
	if got := p.RunModeFor("read"); got != RunSkip {
		t.Fatalf("expected the trailing wildcard to catch read, got %v", got)
	}
}

func TestMatchPatternTrailingWildcard(t *testing.T) {
	cases := []struct {
		pattern, name string
		want          bool
	}{
		{"*", "anything", true},
		{"read", "read", true},
		{"read", "readonly", false},
		{"read*", "readonly", true},
		{"read*", "write", false},
	}
	for _, c := range cases {
		if got := matchPattern(c.pattern, c.name); got != c.want {
			t.Errorf("matchPattern(%q, %q) = %v, want %v", c.pattern, c.name, got, c.want)
		}
	}
}

func TestEmptyDefaultRunFallsBackToAsk(t *testing.T) {
	var p Policy
	if got := p.RunModeFor("anything"); got != RunAsk {
		t.Fatalf("expected RunAsk fallback, got %v", got)
	}
	if got := p.ResultModeFor("anything"); got != ResultAsk {
		t.Fatalf("expected ResultAsk fallback, got %v", got)
	}
}
