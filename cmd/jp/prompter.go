package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jp-cli/jp/internal/toolexec"
)

// stdioPrompter is the minimal terminal collaborator spec.md §1 and the
// Prompter doc name as external: a real CLI would launch $EDITOR and
// render a TUI confirmation; this reads one line of plain stdin input
// per gate, which is enough to exercise every RunMode/ResultMode path.
type stdioPrompter struct{}

func (stdioPrompter) ConfirmRun(ctx context.Context, toolName string, arguments json.RawMessage) (toolexec.ConfirmAction, error) {
	fmt.Fprintf(os.Stderr, "run tool %q with %s? [y/n/e(dit)/r(efuse)] ", toolName, arguments)
	line, err := readLine()
	if err != nil {
		return "", err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "":
		return toolexec.ConfirmYes, nil
	case "e", "edit":
		return toolexec.ConfirmEditArg, nil
	case "r", "refuse":
		return toolexec.ConfirmRefuse, nil
	default:
		return toolexec.ConfirmNo, nil
	}
}

func (stdioPrompter) RefuseReason(ctx context.Context) (string, error) {
	fmt.Fprint(os.Stderr, "reason: ")
	return readLine()
}

func (stdioPrompter) EditArguments(ctx context.Context, arguments json.RawMessage) (json.RawMessage, bool, error) {
	fmt.Fprintf(os.Stderr, "edit arguments (currently %s), blank to abort: ", arguments)
	line, err := readLine()
	if err != nil {
		return nil, false, err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, false, nil
	}
	return json.RawMessage(line), true, nil
}

func (stdioPrompter) ConfirmResult(ctx context.Context, content string) (toolexec.ResultAction, error) {
	fmt.Fprintf(os.Stderr, "deliver result %q? [y/n/e(dit)] ", content)
	line, err := readLine()
	if err != nil {
		return "", err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "":
		return toolexec.ResultActionDeliver, nil
	case "e", "edit":
		return toolexec.ResultActionEdit, nil
	default:
		return toolexec.ResultActionDiscard, nil
	}
}

func (stdioPrompter) EditResult(ctx context.Context, content string) (string, bool, error) {
	fmt.Fprintf(os.Stderr, "edit result (currently %q): ", content)
	line, err := readLine()
	if err != nil {
		return "", false, err
	}
	line = strings.TrimSpace(line)
	return line, line != "", nil
}

// stdin is shared across every gate so buffered lookahead from one
// ReadString call is never discarded before the next prompt reads it.
var stdin = bufio.NewReader(os.Stdin)

func readLine() (string, error) {
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return line, nil
}
