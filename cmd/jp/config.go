package main

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jp-cli/jp/internal/config"
	"github.com/jp-cli/jp/internal/provider"
	"github.com/jp-cli/jp/internal/toolexec"
)

// defaultProjectConfigName is the project config file looked for under a
// workspace root when --config is not given.
const defaultProjectConfigName = ".jp.toml"

// loadConfig walks the merge lattice spec.md §3 describes: defaults,
// global file, project file (with its own extends chain resolved),
// environment, then CLI assignments, in that order of increasing
// specificity.
func loadConfig(flags *runFlags) (*config.Config, error) {
	environ := os.Environ()
	logger := slog.Default()

	var layers []config.Partial

	globalPath := config.GlobalConfigPath(environ, defaultGlobalConfigPath())
	if _, err := os.Stat(globalPath); err == nil {
		global, err := config.LoadFile(globalPath, logger)
		if err != nil {
			return nil, err
		}
		layers = append(layers, global)
	}

	projectPath := flags.configPath
	if projectPath == "" {
		projectPath = filepath.Join(flags.workspace, defaultProjectConfigName)
	}
	if _, err := os.Stat(projectPath); err == nil {
		project, err := config.LoadFile(projectPath, logger)
		if err != nil {
			return nil, err
		}
		layers = append(layers, project)
	} else if flags.configPath != "" {
		return nil, &config.Error{Kind: config.KindFileNotFound, Path: projectPath}
	}

	envLayer, err := config.FromEnviron(environ)
	if err != nil {
		return nil, err
	}
	layers = append(layers, envLayer)
	layers = append(layers, cliFlagPartial(flags))

	merged := config.InheritanceWalk(layers)

	merged, err = config.ApplyAssignments(merged, flags.set)
	if err != nil {
		return nil, err
	}

	return config.Finalize(merged)
}

// cliFlagPartial folds the dedicated --provider/--model/--workspace/etc.
// flags into a Partial at the highest-priority layer, ahead of --set
// (spec.md §6's generic key.subkey=value assignment applies on top of
// these named shortcuts).
func cliFlagPartial(flags *runFlags) config.Partial {
	var p config.Partial
	root := flags.workspace
	p.Workspace = &config.WorkspacePartial{Root: &root}

	llm := &config.LlmPartial{}
	have := false
	if flags.provider != "" {
		llm.Provider = &flags.provider
		have = true
	}
	if flags.model != "" {
		llm.Model = &flags.model
		have = true
	}
	if flags.maxTokens > 0 {
		llm.MaxTokens = &flags.maxTokens
		have = true
	}
	if have {
		p.Llm = llm
	}
	return p
}

func defaultGlobalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".jp/config.toml"
	}
	return filepath.Join(home, ".jp", "config.toml")
}

func defaultUserRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".jp/storage"
	}
	return filepath.Join(home, ".jp", "storage")
}

// workspaceName and workspaceID together key a workspace's user-scoped
// storage directory (storage.Layout's "<name>-<id>" convention). The name
// is the directory's base for readability; the id is a stable hash of its
// absolute path so two workspaces named "foo" never collide and the same
// workspace resolves to the same user directory across runs.
func workspaceName(root string) string {
	base := filepath.Base(root)
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "workspace"
	}
	return base
}

func workspaceID(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(abs))
	return fmt.Sprintf("%x", h.Sum64())
}

// policyFromConfig builds the RunMode/ResultMode gate from the resolved
// config's tools section.
func policyFromConfig(cfg *config.Config) toolexec.Policy {
	policy := toolexec.DefaultPolicy()
	if cfg.Tools.RunMode != "" {
		policy.DefaultRun = toolexec.RunMode(cfg.Tools.RunMode)
	}
	if cfg.Tools.ResultMode != "" {
		policy.DefaultResult = toolexec.ResultMode(cfg.Tools.ResultMode)
	}
	return policy
}

// providerEnvKey names the environment variable each provider id reads
// its API key from, matching the convention every major CLI in this
// space (and the teacher's own gateway config) uses.
var providerEnvKey = map[provider.ID]string{
	provider.IDAnthropic:  "ANTHROPIC_API_KEY",
	provider.IDGoogle:     "GOOGLE_API_KEY",
	provider.IDOpenAI:     "OPENAI_API_KEY",
	provider.IDOpenRouter: "OPENROUTER_API_KEY",
}

// newConfiguredProvider resolves cfg.Llm.Provider to a provider.ID and
// builds it through the factory, reading credentials from the
// conventional environment variables (API keys are deliberately kept out
// of the config merge lattice so they never round-trip into a persisted
// events.json delta).
func newConfiguredProvider(cfg *config.Config, baseURL string) (provider.Provider, error) {
	id := provider.ID(cfg.Llm.Provider)
	if baseURL == "" {
		baseURL = os.Getenv("JP_PROVIDER_BASE_URL")
	}
	creds := provider.Credentials{
		BaseURL:      baseURL,
		DefaultModel: cfg.Llm.Model,
	}
	if envKey, ok := providerEnvKey[id]; ok {
		creds.APIKey = os.Getenv(envKey)
	}
	return provider.New(id, creds)
}
