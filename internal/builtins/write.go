package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jp-cli/jp/internal/toolexec"
	"github.com/jp-cli/jp/pkg/convo"
)

type writeArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Append  bool   `json:"append"`
}

// NewWrite builds the "write" builtin, scoped to root.
func NewWrite(root string) toolexec.Builtin {
	resolver := pathResolver{Root: root}

	handler := func(ctx context.Context, raw json.RawMessage) (string, error) {
		var args writeArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		if strings.TrimSpace(args.Path) == "" {
			return "", fmt.Errorf("path is required")
		}

		resolved, err := resolver.Resolve(args.Path)
		if err != nil {
			return "", err
		}
		if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
			return "", fmt.Errorf("create directory: %w", err)
		}

		flags := os.O_CREATE | os.O_WRONLY
		if args.Append {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}
		file, err := os.OpenFile(resolved, flags, 0o644)
		if err != nil {
			return "", fmt.Errorf("open file: %w", err)
		}
		defer file.Close()

		n, err := file.WriteString(args.Content)
		if err != nil {
			return "", fmt.Errorf("write file: %w", err)
		}

		payload, err := json.MarshalIndent(map[string]any{
			"path":          args.Path,
			"bytes_written": n,
			"append":        args.Append,
		}, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode result: %w", err)
		}
		return string(payload), nil
	}

	return toolexec.Builtin{
		Definition: convo.ToolDefinition{
			Name:        "write",
			Description: "Write content to a file in the workspace (overwrites by default).",
			Parameters: []convo.ToolParameter{
				{Name: "path", Config: convo.ToolParameterConfig{
					Kind: convo.ParamString, Required: true,
					Description: "Path to write (relative to workspace).",
				}},
				{Name: "content", Config: convo.ToolParameterConfig{
					Kind: convo.ParamString, Required: true,
					Description: "File contents to write.",
				}},
				{Name: "append", Config: convo.ToolParameterConfig{
					Kind:        convo.ParamBoolean,
					Description: "Append instead of overwrite (default: false).",
				}},
			},
		},
		Handler: handler,
	}
}
