package config

// Delta computes the partial that, merged onto prev, reproduces next,
// while dropping any field whose value is unchanged from prev. This is
// what gets recorded alongside each persisted conversation event instead
// of the full effective configuration.
func Delta(prev, next Partial) Partial {
	var out Partial
	if next.Inherit != nil && !boolEqual(prev.Inherit, next.Inherit) {
		out.Inherit = next.Inherit
	}
	out.Workspace = deltaWorkspace(prev.Workspace, next.Workspace)
	out.Llm = deltaLlm(prev.Llm, next.Llm)
	out.Tools = deltaTools(prev.Tools, next.Tools)
	out.Session = deltaSession(prev.Session, next.Session)
	out.Storage = deltaStorage(prev.Storage, next.Storage)
	return out
}

func boolEqual(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func stringEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func mergeableStringEqual(a, b *MergeableString) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func mergeableStringListEqual(a, b *MergeableStringList) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Strategy != b.Strategy || len(a.Values) != len(b.Values) {
		return false
	}
	for i := range a.Values {
		if a.Values[i] != b.Values[i] {
			return false
		}
	}
	return true
}

func deltaWorkspace(prev, next *WorkspacePartial) *WorkspacePartial {
	if next == nil {
		return nil
	}
	var p WorkspacePartial
	if prev != nil {
		p = *prev
	}
	var out WorkspacePartial
	changed := false
	if !stringEqual(p.Root, next.Root) {
		out.Root = next.Root
		changed = true
	}
	if !changed {
		return nil
	}
	return &out
}

func deltaLlm(prev, next *LlmPartial) *LlmPartial {
	if next == nil {
		return nil
	}
	var p LlmPartial
	if prev != nil {
		p = *prev
	}
	var out LlmPartial
	changed := false
	if !stringEqual(p.Provider, next.Provider) {
		out.Provider = next.Provider
		changed = true
	}
	if !stringEqual(p.Model, next.Model) {
		out.Model = next.Model
		changed = true
	}
	if !intEqual(p.MaxTokens, next.MaxTokens) {
		out.MaxTokens = next.MaxTokens
		changed = true
	}
	if !stringEqual(p.ReasoningEffort, next.ReasoningEffort) {
		out.ReasoningEffort = next.ReasoningEffort
		changed = true
	}
	if !intEqual(p.CacheBreakpoints, next.CacheBreakpoints) {
		out.CacheBreakpoints = next.CacheBreakpoints
		changed = true
	}
	if !mergeableStringEqual(p.Instructions, next.Instructions) {
		out.Instructions = next.Instructions
		changed = true
	}
	if !changed {
		return nil
	}
	return &out
}

func deltaTools(prev, next *ToolsPartial) *ToolsPartial {
	if next == nil {
		return nil
	}
	var p ToolsPartial
	if prev != nil {
		p = *prev
	}
	var out ToolsPartial
	changed := false
	if !stringEqual(p.RunMode, next.RunMode) {
		out.RunMode = next.RunMode
		changed = true
	}
	if !stringEqual(p.ResultMode, next.ResultMode) {
		out.ResultMode = next.ResultMode
		changed = true
	}
	if !mergeableStringListEqual(p.Disabled, next.Disabled) {
		out.Disabled = next.Disabled
		changed = true
	}
	if !changed {
		return nil
	}
	return &out
}

func deltaSession(prev, next *SessionPartial) *SessionPartial {
	if next == nil {
		return nil
	}
	var p SessionPartial
	if prev != nil {
		p = *prev
	}
	var out SessionPartial
	changed := false
	if !intEqual(p.MaxToolIterations, next.MaxToolIterations) {
		out.MaxToolIterations = next.MaxToolIterations
		changed = true
	}
	if !boolEqual(p.ReplayEnabled, next.ReplayEnabled) {
		out.ReplayEnabled = next.ReplayEnabled
		changed = true
	}
	if !changed {
		return nil
	}
	return &out
}

func deltaStorage(prev, next *StoragePartial) *StoragePartial {
	if next == nil {
		return nil
	}
	var p StoragePartial
	if prev != nil {
		p = *prev
	}
	var out StoragePartial
	changed := false
	if !stringEqual(p.UserRoot, next.UserRoot) {
		out.UserRoot = next.UserRoot
		changed = true
	}
	if !changed {
		return nil
	}
	return &out
}
