package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestLoadFileExtendsScenarioS3(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.toml", "[llm]\ninstructions = \"\\u03b1\"\n")
	writeFile(t, dir, "two.toml", "[llm.instructions]\nvalue = \"\\u03b2\"\nstrategy = \"append\"\n")
	root := writeFile(t, dir, "root.toml", `
extends = ["one.toml", { path = "two.toml", position = "after" }]

[llm.instructions]
value = "\u03b3"
strategy = "prepend"
`)

	merged, err := LoadFile(root, nil)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if merged.Llm == nil || merged.Llm.Instructions == nil {
		t.Fatalf("merged.Llm.Instructions is nil")
	}
	if got, want := merged.Llm.Instructions.Value, "\u03b3\u03b1\u03b2"; got != want {
		t.Fatalf("instructions = %q, want %q", got, want)
	}
}

func TestLoadFileExtendsCycle(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.toml")
	b := filepath.Join(dir, "b.toml")
	if err := os.WriteFile(a, []byte(`extends = ["b.toml"]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte(`extends = ["a.toml"]`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(a, nil)
	if err == nil {
		t.Fatalf("expected extends cycle error")
	}
	cfgErr, ok := err.(*Error)
	if !ok || cfgErr.Kind != KindExtendsCycle {
		t.Fatalf("err = %v, want KindExtendsCycle", err)
	}
}

func TestLoadFileMissingLiteralExtendWarnsAndContinues(t *testing.T) {
	dir := t.TempDir()
	root := writeFile(t, dir, "root.toml", `
extends = ["missing.toml"]

[llm]
provider = "anthropic"
`)

	merged, err := LoadFile(root, nil)
	if err != nil {
		t.Fatalf("LoadFile should tolerate a missing literal extend, got: %v", err)
	}
	if merged.Llm == nil || merged.Llm.Provider == nil || *merged.Llm.Provider != "anthropic" {
		t.Fatalf("merged config not applied: %+v", merged)
	}
}

func TestLoadFileGlobExtendZeroMatchesSilent(t *testing.T) {
	dir := t.TempDir()
	root := writeFile(t, dir, "root.toml", `
extends = ["conf.d/*.toml"]

[llm]
provider = "anthropic"
`)
	merged, err := LoadFile(root, nil)
	if err != nil {
		t.Fatalf("LoadFile should tolerate a zero-match glob, got: %v", err)
	}
	if merged.Llm == nil || *merged.Llm.Provider != "anthropic" {
		t.Fatalf("merged config not applied: %+v", merged)
	}
}

func TestUnknownKeyRejected(t *testing.T) {
	dir := t.TempDir()
	root := writeFile(t, dir, "root.toml", "bogus_top_level_key = 1\n")

	_, err := LoadFile(root, nil)
	if err == nil {
		t.Fatalf("expected unknown key error")
	}
}
