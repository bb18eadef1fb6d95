package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jp-cli/jp/internal/toolexec"
	"github.com/jp-cli/jp/pkg/convo"
)

type editArgs struct {
	Path  string `json:"path"`
	Edits []struct {
		OldText    string `json:"old_text"`
		NewText    string `json:"new_text"`
		ReplaceAll bool   `json:"replace_all"`
	} `json:"edits"`
}

// NewEdit builds the "edit" builtin, scoped to root: a sequence of
// find/replace operations applied in order to one file.
func NewEdit(root string) toolexec.Builtin {
	resolver := pathResolver{Root: root}

	handler := func(ctx context.Context, raw json.RawMessage) (string, error) {
		var args editArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		if strings.TrimSpace(args.Path) == "" {
			return "", fmt.Errorf("path is required")
		}
		if len(args.Edits) == 0 {
			return "", fmt.Errorf("edits are required")
		}

		resolved, err := resolver.Resolve(args.Path)
		if err != nil {
			return "", err
		}

		data, err := os.ReadFile(resolved)
		if err != nil {
			return "", fmt.Errorf("read file: %w", err)
		}

		content := string(data)
		replacements := 0
		for _, edit := range args.Edits {
			if edit.OldText == "" {
				return "", fmt.Errorf("old_text is required")
			}
			if !strings.Contains(content, edit.OldText) {
				return "", fmt.Errorf("old_text not found: %q", edit.OldText)
			}
			if edit.ReplaceAll {
				replacements += strings.Count(content, edit.OldText)
				content = strings.ReplaceAll(content, edit.OldText, edit.NewText)
			} else {
				content = strings.Replace(content, edit.OldText, edit.NewText, 1)
				replacements++
			}
		}

		if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
			return "", fmt.Errorf("write file: %w", err)
		}

		payload, err := json.MarshalIndent(map[string]any{
			"path":         args.Path,
			"replacements": replacements,
		}, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode result: %w", err)
		}
		return string(payload), nil
	}

	return toolexec.Builtin{
		Definition: convo.ToolDefinition{
			Name:        "edit",
			Description: "Apply one or more find/replace edits to a file in the workspace.",
			Parameters: []convo.ToolParameter{
				{Name: "path", Config: convo.ToolParameterConfig{
					Kind: convo.ParamString, Required: true,
					Description: "Path to edit (relative to workspace).",
				}},
				{Name: "edits", Config: convo.ToolParameterConfig{
					Kind: convo.ParamArray, Required: true,
					Description: "Ordered find/replace operations to apply.",
					Items: &convo.ToolParameterConfig{Kind: convo.ParamObject},
				}},
			},
		},
		Handler: handler,
	}
}
