package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/jp-cli/jp/pkg/convo"
)

// BuiltinHandler implements one built-in tool's behavior. It receives
// already-validated arguments and returns raw result content; errors
// surface as an error-tagged Result by the caller.
type BuiltinHandler func(ctx context.Context, arguments json.RawMessage) (content string, err error)

// Builtin bundles a built-in tool's static definition with its handler.
type Builtin struct {
	Definition convo.ToolDefinition
	Handler    BuiltinHandler
}

// Registry is a name-keyed lookup of built-in tools, satisfying spec.md
// §4.E's "Builtin: name-based registry lookup."
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Builtin
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Builtin)}
}

// Register adds or replaces a built-in tool.
func (r *Registry) Register(b Builtin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[b.Definition.Name] = b
}

// Lookup resolves a built-in tool by name.
func (r *Registry) Lookup(name string) (Builtin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.tools[name]
	return b, ok
}

// Names lists every registered built-in tool name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ErrUnknownBuiltin reports a Builtin source naming a tool the registry
// does not have.
type ErrUnknownBuiltin struct{ Name string }

func (e *ErrUnknownBuiltin) Error() string {
	return fmt.Sprintf("toolexec: unknown builtin tool %q", e.Name)
}
