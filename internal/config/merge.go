package config

// Merge combines b onto a: for each field, if b sets it, it overwrites a
// (recursing into nested records, combining mergeable leaves per their
// strategy). a is left unmodified; the result is a new Partial.
func Merge(a, b Partial) Partial {
	out := a
	if b.Inherit != nil {
		out.Inherit = b.Inherit
	}
	if len(b.Extends) > 0 {
		out.Extends = b.Extends
	}
	out.Workspace = mergeWorkspace(a.Workspace, b.Workspace)
	out.Llm = mergeLlm(a.Llm, b.Llm)
	out.Tools = mergeTools(a.Tools, b.Tools)
	out.Session = mergeSession(a.Session, b.Session)
	out.Storage = mergeStorage(a.Storage, b.Storage)
	return out
}

func mergeWorkspace(a, b *WorkspacePartial) *WorkspacePartial {
	if b == nil {
		return a
	}
	if a == nil {
		copy := *b
		return &copy
	}
	out := *a
	if b.Root != nil {
		out.Root = b.Root
	}
	return &out
}

func mergeLlm(a, b *LlmPartial) *LlmPartial {
	if b == nil {
		return a
	}
	if a == nil {
		copy := *b
		return &copy
	}
	out := *a
	if b.Provider != nil {
		out.Provider = b.Provider
	}
	if b.Model != nil {
		out.Model = b.Model
	}
	if b.MaxTokens != nil {
		out.MaxTokens = b.MaxTokens
	}
	if b.ReasoningEffort != nil {
		out.ReasoningEffort = b.ReasoningEffort
	}
	if b.CacheBreakpoints != nil {
		out.CacheBreakpoints = b.CacheBreakpoints
	}
	out.Instructions = mergeMergeableString(a.Instructions, b.Instructions)
	return &out
}

func mergeTools(a, b *ToolsPartial) *ToolsPartial {
	if b == nil {
		return a
	}
	if a == nil {
		copy := *b
		return &copy
	}
	out := *a
	if b.RunMode != nil {
		out.RunMode = b.RunMode
	}
	if b.ResultMode != nil {
		out.ResultMode = b.ResultMode
	}
	out.Disabled = mergeMergeableStringList(a.Disabled, b.Disabled)
	return &out
}

func mergeSession(a, b *SessionPartial) *SessionPartial {
	if b == nil {
		return a
	}
	if a == nil {
		copy := *b
		return &copy
	}
	out := *a
	if b.MaxToolIterations != nil {
		out.MaxToolIterations = b.MaxToolIterations
	}
	if b.ReplayEnabled != nil {
		out.ReplayEnabled = b.ReplayEnabled
	}
	return &out
}

func mergeStorage(a, b *StoragePartial) *StoragePartial {
	if b == nil {
		return a
	}
	if a == nil {
		copy := *b
		return &copy
	}
	out := *a
	if b.UserRoot != nil {
		out.UserRoot = b.UserRoot
	}
	return &out
}

// InheritanceWalk applies Merge left to right across an ordered list of
// partials from most general to most specific. If any partial (other than
// the first) sets inherit=false, the walk stops before it: that partial
// becomes the floor and everything merged so far is discarded.
func InheritanceWalk(partials []Partial) Partial {
	var acc Partial
	for i, p := range partials {
		if i > 0 && p.Inherit != nil && !*p.Inherit {
			acc = Partial{}
		}
		acc = Merge(acc, p)
	}
	return acc
}
