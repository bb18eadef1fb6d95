// Package main provides the CLI entry point for jp, the core conversation
// engine described in spec.md §1: a single-workspace driver that composes
// a turn, streams it through a provider, dispatches any tool calls, and
// persists the result.
//
// jp deliberately does not reimplement the full subcommand tree or
// terminal rendering a real assistant CLI would have — spec.md §1 names
// the markdown renderer, the interactive editor launcher, and the CLI
// argument parser itself as external collaborators. This file wires the
// minimum flags the engine needs and hands everything else to the core
// packages.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jp-cli/jp/internal/builtins"
	"github.com/jp-cli/jp/internal/orchestrator"
	"github.com/jp-cli/jp/internal/provider"
	"github.com/jp-cli/jp/internal/storage"
	"github.com/jp-cli/jp/internal/toolexec"
	"github.com/jp-cli/jp/pkg/convo"
	"github.com/spf13/cobra"
)

// version is populated by ldflags during build, matching the teacher's
// build-info convention.
var version = "dev"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

type runFlags struct {
	workspace    string
	configPath   string
	conversation string
	provider     string
	model        string
	baseURL      string
	maxTokens    int
	set          []string
}

func buildRootCmd() *cobra.Command {
	flags := &runFlags{}

	rootCmd := &cobra.Command{
		Use:          "jp [query]",
		Short:        "jp - a single-workspace LLM conversation driver",
		Version:      version,
		SilenceUsage: true,
		Args:         cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), flags, strings.Join(args, " "))
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.workspace, "workspace", ".", "workspace root directory")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "project config file (defaults to <workspace>/.jp.toml if present)")
	rootCmd.PersistentFlags().StringVar(&flags.conversation, "conversation", "", "resume an existing conversation id (new conversation if empty)")
	rootCmd.PersistentFlags().StringVar(&flags.provider, "provider", "", "llm.provider override")
	rootCmd.PersistentFlags().StringVar(&flags.model, "model", "", "llm.model override")
	rootCmd.PersistentFlags().StringVar(&flags.baseURL, "base-url", "", "provider base URL override (ollama/llama.cpp/openai-compatible)")
	rootCmd.PersistentFlags().IntVar(&flags.maxTokens, "max-tokens", 0, "llm.max_tokens override")
	rootCmd.PersistentFlags().StringArrayVar(&flags.set, "set", nil, "key.subkey=value CLI assignment (spec.md §6); repeatable")

	return rootCmd
}

// runQuery wires config -> storage -> provider -> orchestrator and drives
// exactly one turn, per spec.md §1's "exactly one driver process is
// assumed per workspace directory."
func runQuery(parent context.Context, flags *runFlags, query string) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	layout := storage.Layout{
		WorkspaceRoot: cfg.Workspace.Root,
		UserRoot:      cfg.Storage.UserRoot,
		WorkspaceName: workspaceName(cfg.Workspace.Root),
		WorkspaceID:   workspaceID(cfg.Workspace.Root),
	}
	if layout.UserRoot == "" {
		layout.UserRoot = defaultUserRoot()
	}

	loaded, err := storage.Load(layout)
	if err != nil {
		return err
	}

	prov, err := newConfiguredProvider(cfg, flags.baseURL)
	if err != nil {
		return err
	}

	registry := toolexec.NewRegistry()
	builtins.Register(registry, builtins.Config{Workspace: cfg.Workspace.Root})

	exec := &toolexec.Executor{
		Resolver: &toolexec.Resolver{Builtins: registry},
		Policy:   policyFromConfig(cfg),
		Prompter: stdioPrompter{},
		Builtins: registry,
	}

	orch := &orchestrator.Orchestrator{
		Layout:        layout,
		Conversations: loaded.Conversations,
		Streams:       loaded.Streams,
		ActiveId:      firstNonEmpty(flags.conversation, loaded.ActiveConversationId),
		Provider:      prov,
		Model:         cfg.Llm.Model,
		Tools:         enabledToolDefinitions(registry, cfg.Tools.Disabled),
		ToolChoice:    provider.ToolChoice{Kind: provider.ToolChoiceAuto},
		ToolExec:      exec,
		Renderer:      stdoutRenderer{},
		Cfg:           cfg,
		Logger:        slog.Default(),
	}

	if err := orch.RunQuery(ctx, orchestrator.QueryOptions{Text: query}); err != nil {
		return err
	}
	fmt.Println()
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// enabledToolDefinitions advertises every registered builtin to the model
// except those named in disabled (spec.md's tools.disabled list).
func enabledToolDefinitions(registry *toolexec.Registry, disabled []string) []convo.ToolDefinition {
	skip := make(map[string]bool, len(disabled))
	for _, name := range disabled {
		skip[name] = true
	}
	var defs []convo.ToolDefinition
	for _, name := range registry.Names() {
		if skip[name] {
			continue
		}
		b, ok := registry.Lookup(name)
		if !ok {
			continue
		}
		defs = append(defs, b.Definition)
	}
	return defs
}
