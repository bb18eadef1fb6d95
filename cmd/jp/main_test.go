package main

import (
	"testing"

	"github.com/jp-cli/jp/internal/builtins"
	"github.com/jp-cli/jp/internal/toolexec"
)

func TestBuildRootCmdRegistersFlags(t *testing.T) {
	cmd := buildRootCmd()
	for _, name := range []string{"workspace", "config", "conversation", "provider", "model", "base-url", "max-tokens", "set"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Fatalf("expected flag %q to be registered", name)
		}
	}
}

func TestWorkspaceIDStableAcrossCalls(t *testing.T) {
	a := workspaceID("/tmp/some-workspace")
	b := workspaceID("/tmp/some-workspace")
	if a != b {
		t.Fatalf("expected stable id, got %q and %q", a, b)
	}
	if c := workspaceID("/tmp/other-workspace"); c == a {
		t.Fatalf("expected distinct workspaces to hash differently")
	}
}

func TestEnabledToolDefinitionsRespectsDisabled(t *testing.T) {
	reg := toolexec.NewRegistry()
	builtins.Register(reg, builtins.Config{Workspace: t.TempDir()})

	all := enabledToolDefinitions(reg, nil)
	if len(all) != len(reg.Names()) {
		t.Fatalf("expected every builtin advertised, got %d of %d", len(all), len(reg.Names()))
	}

	filtered := enabledToolDefinitions(reg, []string{"write"})
	for _, def := range filtered {
		if def.Name == "write" {
			t.Fatal("expected \"write\" to be excluded")
		}
	}
	if len(filtered) != len(all)-1 {
		t.Fatalf("expected exactly one tool excluded, got %d vs %d", len(filtered), len(all))
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "", "b", "c"); got != "b" {
		t.Fatalf("got %q, want %q", got, "b")
	}
	if got := firstNonEmpty("", ""); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}
