package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/jp-cli/jp/internal/toolexec"
	"github.com/jp-cli/jp/pkg/convo"
)

type filePatch struct {
	Path  string
	Hunks []hunk
}

type hunk struct {
	OldStart int
	Lines    []string
}

type patchResult struct {
	Content string
	Added   int
	Removed int
}

var hunkHeader = regexp.MustCompile(`^@@ -(\d+)(?:,\d+)? \+(\d+)(?:,\d+)? @@`)

// NewApplyPatch builds the "apply_patch" builtin, scoped to root: applies
// a unified diff (---/+++ file headers, @@ hunk headers) across one or
// more workspace files.
func NewApplyPatch(root string) toolexec.Builtin {
	resolver := pathResolver{Root: root}

	handler := func(ctx context.Context, raw json.RawMessage) (string, error) {
		var args struct {
			Patch string `json:"patch"`
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		if strings.TrimSpace(args.Patch) == "" {
			return "", fmt.Errorf("patch is required")
		}

		patches, err := parseUnifiedDiff(args.Patch)
		if err != nil {
			return "", err
		}

		applied := make([]map[string]any, 0, len(patches))
		for _, patch := range patches {
			resolved, err := resolver.Resolve(patch.Path)
			if err != nil {
				return "", err
			}
			data, err := os.ReadFile(resolved)
			if err != nil {
				return "", fmt.Errorf("read file: %w", err)
			}
			updated, err := applyFilePatch(string(data), patch)
			if err != nil {
				return "", fmt.Errorf("apply patch to %s: %w", patch.Path, err)
			}
			if err := os.WriteFile(resolved, []byte(updated.Content), 0o644); err != nil {
				return "", fmt.Errorf("write file: %w", err)
			}
			applied = append(applied, map[string]any{
				"path":          patch.Path,
				"hunks":         len(patch.Hunks),
				"lines_added":   updated.Added,
				"lines_removed": updated.Removed,
			})
		}

		payload, err := json.MarshalIndent(map[string]any{"applied": applied}, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode result: %w", err)
		}
		return string(payload), nil
	}

	return toolexec.Builtin{
		Definition: convo.ToolDefinition{
			Name:        "apply_patch",
			Description: "Apply a unified diff patch to one or more files in the workspace.",
			Parameters: []convo.ToolParameter{
				{Name: "patch", Config: convo.ToolParameterConfig{
					Kind: convo.ParamString, Required: true,
					Description: "Unified diff patch (---/+++ headers required).",
				}},
			},
		},
		Handler: handler,
	}
}

func parseUnifiedDiff(patch string) ([]filePatch, error) {
	lines := strings.Split(patch, "\n")
	var patches []filePatch
	var current *filePatch
	var currentHunk *hunk

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, "diff ") || strings.HasPrefix(line, "index "):
			continue
		case strings.HasPrefix(line, "--- "):
			if i+1 >= len(lines) || !strings.HasPrefix(lines[i+1], "+++ ") {
				return nil, fmt.Errorf("invalid patch: missing +++ header")
			}
			newPath := strings.TrimSpace(strings.TrimPrefix(lines[i+1], "+++ "))
			newPath = strings.TrimPrefix(strings.TrimPrefix(newPath, "b/"), "a/")
			patches = append(patches, filePatch{Path: newPath})
			current = &patches[len(patches)-1]
			currentHunk = nil
			i++
		case strings.HasPrefix(line, "@@ "):
			if current == nil {
				return nil, fmt.Errorf("invalid patch: hunk without file header")
			}
			match := hunkHeader.FindStringSubmatch(line)
			if match == nil {
				return nil, fmt.Errorf("invalid patch: malformed hunk header")
			}
			current.Hunks = append(current.Hunks, hunk{OldStart: atoi(match[1])})
			currentHunk = &current.Hunks[len(current.Hunks)-1]
		default:
			if currentHunk == nil || line == "" || line == "\\ No newline at end of file" {
				continue
			}
			prefix := line[:1]
			if prefix != " " && prefix != "+" && prefix != "-" {
				return nil, fmt.Errorf("invalid patch line: %s", line)
			}
			currentHunk.Lines = append(currentHunk.Lines, line)
		}
	}

	if len(patches) == 0 {
		return nil, fmt.Errorf("invalid patch: no file headers found")
	}
	return patches, nil
}

func applyFilePatch(content string, patch filePatch) (patchResult, error) {
	hadTrailing := strings.HasSuffix(content, "\n")
	trimmed := strings.TrimSuffix(content, "\n")
	var lines []string
	if trimmed != "" {
		lines = strings.Split(trimmed, "\n")
	}

	var added, removed int
	for _, h := range patch.Hunks {
		idx := h.OldStart - 1
		if idx < 0 {
			idx = 0
		}
		for _, line := range h.Lines {
			if line == "" {
				continue
			}
			prefix := line[:1]
			text := ""
			if len(line) > 1 {
				text = line[1:]
			}
			switch prefix {
			case " ":
				if idx >= len(lines) || lines[idx] != text {
					return patchResult{}, fmt.Errorf("context mismatch at line %d", idx+1)
				}
				idx++
			case "-":
				if idx >= len(lines) || lines[idx] != text {
					return patchResult{}, fmt.Errorf("delete mismatch at line %d", idx+1)
				}
				lines = append(lines[:idx], lines[idx+1:]...)
				removed++
			case "+":
				lines = append(lines[:idx], append([]string{text}, lines[idx:]...)...)
				idx++
				added++
			}
		}
	}

	result := strings.Join(lines, "\n")
	if hadTrailing {
		result += "\n"
	}
	return patchResult{Content: result, Added: added, Removed: removed}, nil
}

func atoi(value string) int {
	out := 0
	for _, r := range value {
		if r < '0' || r > '9' {
			return 0
		}
		out = out*10 + int(r-'0')
	}
	return out
}
