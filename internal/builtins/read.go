package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jp-cli/jp/internal/toolexec"
	"github.com/jp-cli/jp/pkg/convo"
)

const defaultMaxReadBytes = 200000

// readArgs is the decoded {path, offset, max_bytes} shape the "read"
// builtin's schema describes.
type readArgs struct {
	Path     string `json:"path"`
	Offset   int64  `json:"offset"`
	MaxBytes int    `json:"max_bytes"`
}

// NewRead builds the "read" builtin, scoped to root, bounded at
// maxBytes per call (0 uses defaultMaxReadBytes).
func NewRead(root string, maxBytes int) toolexec.Builtin {
	if maxBytes <= 0 {
		maxBytes = defaultMaxReadBytes
	}
	resolver := pathResolver{Root: root}

	handler := func(ctx context.Context, raw json.RawMessage) (string, error) {
		var args readArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		if args.Offset < 0 {
			return "", fmt.Errorf("offset must be >= 0")
		}

		resolved, err := resolver.Resolve(args.Path)
		if err != nil {
			return "", err
		}

		file, err := os.Open(resolved)
		if err != nil {
			return "", fmt.Errorf("open file: %w", err)
		}
		defer file.Close()

		info, err := file.Stat()
		if err != nil {
			return "", fmt.Errorf("stat file: %w", err)
		}

		if args.Offset > 0 {
			if _, err := file.Seek(args.Offset, io.SeekStart); err != nil {
				return "", fmt.Errorf("seek file: %w", err)
			}
		}

		limit := maxBytes
		if args.MaxBytes > 0 && args.MaxBytes < limit {
			limit = args.MaxBytes
		}

		remaining := int64(limit)
		if size := info.Size(); size > 0 {
			remaining = size - args.Offset
			if remaining < 0 {
				remaining = 0
			}
			if remaining > int64(limit) {
				remaining = int64(limit)
			}
		}

		buf, err := io.ReadAll(io.LimitReader(file, remaining))
		if err != nil {
			return "", fmt.Errorf("read file: %w", err)
		}

		truncated := info.Size() > 0 && args.Offset+int64(len(buf)) < info.Size()

		payload, err := json.MarshalIndent(map[string]any{
			"path":      args.Path,
			"content":   string(buf),
			"offset":    args.Offset,
			"bytes":     len(buf),
			"truncated": truncated,
		}, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode result: %w", err)
		}
		return string(payload), nil
	}

	return toolexec.Builtin{
		Definition: convo.ToolDefinition{
			Name:        "read",
			Description: "Read a file from the workspace with optional offset and byte limit.",
			Parameters: []convo.ToolParameter{
				{Name: "path", Config: convo.ToolParameterConfig{
					Kind: convo.ParamString, Required: true,
					Description: "Path to the file (relative to workspace).",
				}},
				{Name: "offset", Config: convo.ToolParameterConfig{
					Kind: convo.ParamInteger,
					Description: "Byte offset to start reading from (default: 0).",
				}},
				{Name: "max_bytes", Config: convo.ToolParameterConfig{
					Kind: convo.ParamInteger,
					Description: "Maximum bytes to read (capped by the builtin's own limit).",
				}},
			},
		},
		Handler: handler,
	}
}
