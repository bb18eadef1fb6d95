package config

// Config is the fully resolved, strongly-typed configuration for one turn,
// produced by Finalize after the whole merge lattice (defaults, global,
// project, environment, CLI) has been walked.
type Config struct {
	Workspace Workspace
	Llm       Llm
	Tools     Tools
	Session   Session
	Storage   Storage
}

type Workspace struct {
	Root string
}

type Llm struct {
	Provider         string
	Model            string
	MaxTokens        int
	ReasoningEffort  string
	CacheBreakpoints int
	Instructions     string
}

type Tools struct {
	RunMode    string
	ResultMode string
	Disabled   []string
}

type Session struct {
	MaxToolIterations int
	ReplayEnabled     bool
}

type Storage struct {
	UserRoot string
}

// defaultConfig seeds values a bare Partial chain need not restate.
func defaultConfig() Config {
	return Config{
		Llm: Llm{
			MaxTokens:        4096,
			ReasoningEffort:  "medium",
			CacheBreakpoints: 4,
		},
		Tools: Tools{
			RunMode:    "ask",
			ResultMode: "ask",
		},
		Session: Session{
			MaxToolIterations: 25,
			ReplayEnabled:     true,
		},
	}
}

// Finalize converts the fully merged Partial into a typed Config,
// reporting MissingRequired for any leaf that must be set and was not.
func Finalize(p Partial) (*Config, error) {
	cfg := defaultConfig()

	if p.Workspace != nil && p.Workspace.Root != nil {
		cfg.Workspace.Root = *p.Workspace.Root
	}
	if cfg.Workspace.Root == "" {
		return nil, missingRequired("workspace.root")
	}

	if p.Llm != nil {
		if p.Llm.Provider != nil {
			cfg.Llm.Provider = *p.Llm.Provider
		}
		if p.Llm.Model != nil {
			cfg.Llm.Model = *p.Llm.Model
		}
		if p.Llm.MaxTokens != nil {
			cfg.Llm.MaxTokens = *p.Llm.MaxTokens
		}
		if p.Llm.ReasoningEffort != nil {
			cfg.Llm.ReasoningEffort = *p.Llm.ReasoningEffort
		}
		if p.Llm.CacheBreakpoints != nil {
			cfg.Llm.CacheBreakpoints = *p.Llm.CacheBreakpoints
		}
		if p.Llm.Instructions != nil {
			cfg.Llm.Instructions = p.Llm.Instructions.Value
		}
	}
	if cfg.Llm.Provider == "" {
		return nil, missingRequired("llm.provider")
	}
	if cfg.Llm.Model == "" {
		return nil, missingRequired("llm.model")
	}

	if p.Tools != nil {
		if p.Tools.RunMode != nil {
			cfg.Tools.RunMode = *p.Tools.RunMode
		}
		if p.Tools.ResultMode != nil {
			cfg.Tools.ResultMode = *p.Tools.ResultMode
		}
		if p.Tools.Disabled != nil {
			cfg.Tools.Disabled = p.Tools.Disabled.Values
		}
	}

	if p.Session != nil {
		if p.Session.MaxToolIterations != nil {
			cfg.Session.MaxToolIterations = *p.Session.MaxToolIterations
		}
		if p.Session.ReplayEnabled != nil {
			cfg.Session.ReplayEnabled = *p.Session.ReplayEnabled
		}
	}

	if p.Storage != nil && p.Storage.UserRoot != nil {
		cfg.Storage.UserRoot = *p.Storage.UserRoot
	}

	return &cfg, nil
}

// ToPartial reifies a finalized Config back into a fully-populated Partial,
// used by the orchestrator as the current configuration that each new
// event's config delta is computed against.
func (c Config) ToPartial() Partial {
	return Partial{
		Workspace: &WorkspacePartial{Root: &c.Workspace.Root},
		Llm: &LlmPartial{
			Provider:         &c.Llm.Provider,
			Model:            &c.Llm.Model,
			MaxTokens:        &c.Llm.MaxTokens,
			ReasoningEffort:  &c.Llm.ReasoningEffort,
			CacheBreakpoints: &c.Llm.CacheBreakpoints,
			Instructions:     &MergeableString{Value: c.Llm.Instructions, Strategy: StrategyReplace},
		},
		Tools: &ToolsPartial{
			RunMode:    &c.Tools.RunMode,
			ResultMode: &c.Tools.ResultMode,
			Disabled:   &MergeableStringList{Values: c.Tools.Disabled, Strategy: StrategyReplace},
		},
		Session: &SessionPartial{
			MaxToolIterations: &c.Session.MaxToolIterations,
			ReplayEnabled:     &c.Session.ReplayEnabled,
		},
		Storage: &StoragePartial{UserRoot: &c.Storage.UserRoot},
	}
}
