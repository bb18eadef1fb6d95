package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jp-cli/jp/internal/config"
	"github.com/jp-cli/jp/internal/orchestrator"
)

// Exit codes, spec.md §6: "0 success; 1 runtime error; 2 configuration
// error; 130 user cancel."
const (
	exitSuccess  = 0
	exitRuntime  = 1
	exitConfig   = 2
	exitCanceled = 130
)

// exitCodeFor classifies err per spec.md §6/§7 and prints it to stderr
// with its category prefix before returning the process exit code every
// error already carries its own prefix (e.g. "config: ...",
// "toolexec: ...", "provider: ..."), so printing is just writing the
// error text.
func exitCodeFor(err error) int {
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintln(os.Stderr, err.Error())

	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		return exitConfig
	}
	if errors.Is(err, orchestrator.ErrCancelled) || errors.Is(err, context.Canceled) {
		return exitCanceled
	}
	return exitRuntime
}
