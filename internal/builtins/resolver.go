// Package builtins implements the built-in tool family spec.md §4.E names
// as one of the three tool sources: workspace-scoped file read/write/edit
// and unified-diff patching, registered against a toolexec.Registry under
// the "builtin" source kind.
//
// These are adapted from the teacher's internal/tools/files package (a
// coding-assistant's own built-in toolset), rewritten against this
// module's toolexec.BuiltinHandler signature and result conventions
// instead of the teacher's agent.ToolResult.
package builtins

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// pathResolver resolves and validates workspace-relative paths, refusing
// any target that would escape Root.
type pathResolver struct {
	Root string
}

func (r pathResolver) Resolve(path string) (string, error) {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return "", fmt.Errorf("path is required")
	}
	root := strings.TrimSpace(r.Root)
	if root == "" {
		root = "."
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve workspace root: %w", err)
	}
	var target string
	if filepath.IsAbs(clean) {
		target = filepath.Clean(clean)
	} else {
		target = filepath.Join(rootAbs, clean)
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	rel, err := filepath.Rel(rootAbs, targetAbs)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q escapes workspace root", path)
	}
	return targetAbs, nil
}
