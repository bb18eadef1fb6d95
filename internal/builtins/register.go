package builtins

import "github.com/jp-cli/jp/internal/toolexec"

// Config controls the filesystem-scoped builtins' defaults.
type Config struct {
	// Workspace roots every builtin's path resolution; paths escaping it
	// are rejected.
	Workspace string
	// MaxReadBytes caps a single "read" call; 0 uses the builtin default.
	MaxReadBytes int
}

// Register adds the workspace file builtins (read, write, edit,
// apply_patch) to reg. Callers needing a narrower built-in surface can
// register a subset directly via the New* constructors instead.
func Register(reg *toolexec.Registry, cfg Config) {
	reg.Register(NewRead(cfg.Workspace, cfg.MaxReadBytes))
	reg.Register(NewWrite(cfg.Workspace))
	reg.Register(NewEdit(cfg.Workspace))
	reg.Register(NewApplyPatch(cfg.Workspace))
}
