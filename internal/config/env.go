package config

import (
	"strconv"
	"strings"
)

// EnvPrefix is the fixed prefix environment-injected configuration keys
// carry: JP_CFG_<UPPER_PATH>.
const EnvPrefix = "JP_CFG_"

// GlobalConfigEnvVar overrides the global config file's path.
const GlobalConfigEnvVar = "JP_GLOBAL_CONFIG_FILE"

// envSetter parses a string value and applies it to the named leaf of a
// Partial. Each leaf owns its own from-string rule.
type envSetter func(p *Partial, value string) error

// envLeaves maps the UPPER_PATH suffix (after EnvPrefix, separator "_")
// for every leaf to its setter. A lookup table rather than a generic
// segment-splitter is required because leaf names themselves contain "_"
// (e.g. MAX_TOKENS), making a naive split ambiguous.
var envLeaves = map[string]envSetter{
	"WORKSPACE_ROOT": func(p *Partial, v string) error {
		ensureWorkspace(p).Root = &v
		return nil
	},
	"LLM_PROVIDER": func(p *Partial, v string) error {
		ensureLlm(p).Provider = &v
		return nil
	},
	"LLM_MODEL": func(p *Partial, v string) error {
		ensureLlm(p).Model = &v
		return nil
	},
	"LLM_MAX_TOKENS": func(p *Partial, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return badValue("llm.max_tokens", err.Error())
		}
		ensureLlm(p).MaxTokens = &n
		return nil
	},
	"LLM_REASONING_EFFORT": func(p *Partial, v string) error {
		ensureLlm(p).ReasoningEffort = &v
		return nil
	},
	"LLM_CACHE_BREAKPOINTS": func(p *Partial, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return badValue("llm.cache_breakpoints", err.Error())
		}
		ensureLlm(p).CacheBreakpoints = &n
		return nil
	},
	"LLM_INSTRUCTIONS": func(p *Partial, v string) error {
		ensureLlm(p).Instructions = &MergeableString{Value: v, Strategy: StrategyReplace}
		return nil
	},
	"TOOLS_RUN_MODE": func(p *Partial, v string) error {
		ensureTools(p).RunMode = &v
		return nil
	},
	"TOOLS_RESULT_MODE": func(p *Partial, v string) error {
		ensureTools(p).ResultMode = &v
		return nil
	},
	"TOOLS_DISABLED": func(p *Partial, v string) error {
		ensureTools(p).Disabled = &MergeableStringList{Values: strings.Split(v, ","), Strategy: StrategyReplace}
		return nil
	},
	"SESSION_MAX_TOOL_ITERATIONS": func(p *Partial, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return badValue("session.max_tool_iterations", err.Error())
		}
		ensureSession(p).MaxToolIterations = &n
		return nil
	},
	"SESSION_REPLAY_ENABLED": func(p *Partial, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return badValue("session.replay_enabled", err.Error())
		}
		ensureSession(p).ReplayEnabled = &b
		return nil
	},
	"STORAGE_USER_ROOT": func(p *Partial, v string) error {
		ensureStorage(p).UserRoot = &v
		return nil
	},
}

func ensureWorkspace(p *Partial) *WorkspacePartial {
	if p.Workspace == nil {
		p.Workspace = &WorkspacePartial{}
	}
	return p.Workspace
}

func ensureLlm(p *Partial) *LlmPartial {
	if p.Llm == nil {
		p.Llm = &LlmPartial{}
	}
	return p.Llm
}

func ensureTools(p *Partial) *ToolsPartial {
	if p.Tools == nil {
		p.Tools = &ToolsPartial{}
	}
	return p.Tools
}

func ensureSession(p *Partial) *SessionPartial {
	if p.Session == nil {
		p.Session = &SessionPartial{}
	}
	return p.Session
}

func ensureStorage(p *Partial) *StoragePartial {
	if p.Storage == nil {
		p.Storage = &StoragePartial{}
	}
	return p.Storage
}

// FromEnviron builds a Partial from a flat KEY=VALUE environment slice
// (as returned by os.Environ), picking up every JP_CFG_<UPPER_PATH> entry.
// Entries whose path does not match a known leaf are rejected as
// UnknownKey.
func FromEnviron(environ []string) (Partial, error) {
	var p Partial
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		leafPath := strings.TrimPrefix(key, EnvPrefix)
		setter, ok := envLeaves[leafPath]
		if !ok {
			return Partial{}, unknownKey(strings.ToLower(strings.ReplaceAll(leafPath, "_", ".")))
		}
		if err := setter(&p, value); err != nil {
			return Partial{}, err
		}
	}
	return p, nil
}

// GlobalConfigPath resolves the global config file's path, honoring
// JP_GLOBAL_CONFIG_FILE when set.
func GlobalConfigPath(environ []string, fallback string) string {
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if ok && key == GlobalConfigEnvVar && value != "" {
			return value
		}
	}
	return fallback
}
