package config

import "gopkg.in/yaml.v3"

// MergeStrategy selects how a mergeable leaf combines with the layer
// beneath it. The zero value behaves like Replace.
type MergeStrategy string

const (
	StrategyReplace MergeStrategy = "replace"
	StrategyAppend  MergeStrategy = "append"
	StrategyPrepend MergeStrategy = "prepend"
)

// MergeableString is a scalar leaf that may either replace the value
// beneath it (the default, and the behavior of a bare scalar in a config
// file) or concatenate with it when an explicit strategy is given.
//
// In a config file this decodes from either a bare string:
//
//	instructions: "be concise"
//
// or an object naming a strategy:
//
//	instructions: {value: "be concise", strategy: append}
type MergeableString struct {
	Value    string
	Strategy MergeStrategy
}

// UnmarshalYAML accepts both forms described above.
func (m *MergeableString) UnmarshalYAML(node *yaml.Node) error {
	var asString string
	if err := node.Decode(&asString); err == nil {
		m.Value = asString
		m.Strategy = StrategyReplace
		return nil
	}
	var asObject struct {
		Value    string `yaml:"value"`
		Strategy string `yaml:"strategy"`
	}
	if err := node.Decode(&asObject); err != nil {
		return err
	}
	m.Value = asObject.Value
	m.Strategy = MergeStrategy(asObject.Strategy)
	if m.Strategy == "" {
		m.Strategy = StrategyReplace
	}
	return nil
}

// MarshalYAML round-trips the object form so deltas re-parse identically.
func (m MergeableString) MarshalYAML() (any, error) {
	return struct {
		Value    string `yaml:"value"`
		Strategy string `yaml:"strategy"`
	}{m.Value, string(m.Strategy)}, nil
}

// mergeMergeableString combines next onto base per next's strategy. A nil
// next leaves base unchanged; a nil base with a non-replace strategy
// behaves as if base were empty.
func mergeMergeableString(base, next *MergeableString) *MergeableString {
	if next == nil {
		return base
	}
	if base == nil || next.Strategy == "" || next.Strategy == StrategyReplace {
		copy := *next
		return &copy
	}
	switch next.Strategy {
	case StrategyAppend:
		return &MergeableString{Value: base.Value + next.Value, Strategy: next.Strategy}
	case StrategyPrepend:
		return &MergeableString{Value: next.Value + base.Value, Strategy: next.Strategy}
	default:
		copy := *next
		return &copy
	}
}

// MergeableStringList is a collection leaf whose layers combine by
// appending, prepending, or replacing wholesale.
type MergeableStringList struct {
	Strategy MergeStrategy
	Values   []string
}

func (m *MergeableStringList) UnmarshalYAML(node *yaml.Node) error {
	var asList []string
	if err := node.Decode(&asList); err == nil {
		m.Values = asList
		m.Strategy = StrategyReplace
		return nil
	}
	var asObject struct {
		Values   []string `yaml:"values"`
		Strategy string   `yaml:"strategy"`
	}
	if err := node.Decode(&asObject); err != nil {
		return err
	}
	m.Values = asObject.Values
	m.Strategy = MergeStrategy(asObject.Strategy)
	if m.Strategy == "" {
		m.Strategy = StrategyReplace
	}
	return nil
}

func (m MergeableStringList) MarshalYAML() (any, error) {
	return struct {
		Values   []string `yaml:"values"`
		Strategy string   `yaml:"strategy"`
	}{m.Values, string(m.Strategy)}, nil
}

func mergeMergeableStringList(base, next *MergeableStringList) *MergeableStringList {
	if next == nil {
		return base
	}
	if base == nil || next.Strategy == "" || next.Strategy == StrategyReplace {
		copy := *next
		return &copy
	}
	switch next.Strategy {
	case StrategyAppend:
		vals := append(append([]string{}, base.Values...), next.Values...)
		return &MergeableStringList{Values: vals, Strategy: next.Strategy}
	case StrategyPrepend:
		vals := append(append([]string{}, next.Values...), base.Values...)
		return &MergeableStringList{Values: vals, Strategy: next.Strategy}
	default:
		copy := *next
		return &copy
	}
}

// ExtendPosition selects where an extended file's contribution lands
// relative to the file declaring it.
type ExtendPosition string

const (
	PositionBefore ExtendPosition = "before"
	PositionAfter  ExtendPosition = "after"
)

// ExtendEntry is one element of a Partial's `extends` list. A bare string
// path implies PositionBefore.
type ExtendEntry struct {
	Path     string
	Position ExtendPosition
}

func (e *ExtendEntry) UnmarshalYAML(node *yaml.Node) error {
	var asString string
	if err := node.Decode(&asString); err == nil {
		e.Path = asString
		e.Position = PositionBefore
		return nil
	}
	var asObject struct {
		Path     string `yaml:"path"`
		Position string `yaml:"position"`
	}
	if err := node.Decode(&asObject); err != nil {
		return err
	}
	e.Path = asObject.Path
	e.Position = ExtendPosition(asObject.Position)
	if e.Position == "" {
		e.Position = PositionBefore
	}
	return nil
}

// WorkspacePartial is the optional-everything form of Workspace.
type WorkspacePartial struct {
	Root *string `yaml:"root,omitempty"`
}

// LlmPartial is the optional-everything form of Llm.
type LlmPartial struct {
	Provider         *string          `yaml:"provider,omitempty"`
	Model            *string          `yaml:"model,omitempty"`
	MaxTokens        *int             `yaml:"max_tokens,omitempty"`
	ReasoningEffort  *string          `yaml:"reasoning_effort,omitempty"`
	CacheBreakpoints *int             `yaml:"cache_breakpoints,omitempty"`
	Instructions     *MergeableString `yaml:"instructions,omitempty"`
}

// ToolsPartial is the optional-everything form of Tools.
type ToolsPartial struct {
	RunMode    *string               `yaml:"run_mode,omitempty"`
	ResultMode *string               `yaml:"result_mode,omitempty"`
	Disabled   *MergeableStringList  `yaml:"disabled,omitempty"`
}

// SessionPartial is the optional-everything form of Session.
type SessionPartial struct {
	MaxToolIterations *int  `yaml:"max_tool_iterations,omitempty"`
	ReplayEnabled     *bool `yaml:"replay_enabled,omitempty"`
}

// StoragePartial is the optional-everything form of Storage.
type StoragePartial struct {
	UserRoot *string `yaml:"user_root,omitempty"`
}

// Partial is the configuration tree with every field optional, the
// currency of merge, extends resolution, and environment/CLI injection.
type Partial struct {
	Inherit   *bool             `yaml:"inherit,omitempty"`
	Extends   []ExtendEntry     `yaml:"extends,omitempty"`
	Workspace *WorkspacePartial `yaml:"workspace,omitempty"`
	Llm       *LlmPartial       `yaml:"llm,omitempty"`
	Tools     *ToolsPartial     `yaml:"tools,omitempty"`
	Session   *SessionPartial   `yaml:"session,omitempty"`
	Storage   *StoragePartial   `yaml:"storage,omitempty"`
}

// IsEmpty reports whether no field carries a value worth merging.
func (p Partial) IsEmpty() bool {
	return p.Inherit == nil && len(p.Extends) == 0 && p.Workspace == nil &&
		p.Llm == nil && p.Tools == nil && p.Session == nil && p.Storage == nil
}
