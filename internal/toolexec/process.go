package toolexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"text/template"

	jpexec "github.com/jp-cli/jp/internal/exec"
)

// LocalCommand is the configured program a Local tool source runs.
// Program and each entry of Args are rendered as text/template strings
// against a CallContext before execution.
type LocalCommand struct {
	Program string
	Args    []string
	// Shell runs Program through "sh -c" instead of exec'ing it directly.
	// spec.md §4.E: this "forces Ask for safety" regardless of the
	// configured RunMode.
	Shell bool
}

// renderContext is the template data shape spec.md §4.E names:
// {tool: {name, arguments, answers}, context: {root}}.
type renderContext struct {
	Tool struct {
		Name      string
		Arguments string
		Answers   map[string]string
	}
	Context struct {
		Root string
	}
}

func newRenderContext(cc CallContext) renderContext {
	var rc renderContext
	rc.Tool.Name = cc.ToolName
	rc.Tool.Arguments = string(cc.Arguments)
	rc.Tool.Answers = cc.Answers
	rc.Context.Root = cc.WorkspaceRoot
	return rc
}

func renderTemplate(name, text string, data renderContext) (string, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", errTemplate(err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", errTemplate(err)
	}
	return buf.String(), nil
}

// runLocal renders cmd against cc and executes it, returning raw stdout,
// stderr, and the process exit error (nil on a zero exit code).
func runLocal(ctx context.Context, cmd LocalCommand, cc CallContext) (stdout, stderr string, runErr error) {
	if cmd.Program == "" {
		return "", "", errMissingCommand(cc.ToolName)
	}
	data := newRenderContext(cc)

	program, err := renderTemplate("program", cmd.Program, data)
	if err != nil {
		return "", "", err
	}
	args := make([]string, 0, len(cmd.Args))
	for i, a := range cmd.Args {
		rendered, err := renderTemplate(fmt.Sprintf("arg%d", i), a, data)
		if err != nil {
			return "", "", err
		}
		args = append(args, rendered)
	}

	var c *exec.Cmd
	if cmd.Shell {
		full := program
		for _, a := range args {
			full += " " + a
		}
		c = exec.CommandContext(ctx, "sh", "-c", full)
	} else {
		for _, a := range args {
			if !jpexec.IsSafeArgument(a) && a != "" {
				// Arguments containing shell metacharacters are only
				// acceptable when Shell is set; direct exec rejects them
				// outright rather than passing them to the kernel
				// unescaped.
				return "", "", errTemplate(fmt.Errorf("argument %q is unsafe for direct execution", a))
			}
		}
		c = exec.CommandContext(ctx, program, args...)
	}

	var outBuf, errBuf bytes.Buffer
	c.Stdout = &outBuf
	c.Stderr = &errBuf
	runErr = c.Run()
	return outBuf.String(), errBuf.String(), runErr
}

// decodeLocalOutcome parses stdout per spec.md §6's local wire format:
// a Success/NeedsInput JSON envelope, falling back to raw text.
func decodeLocalOutcome(stdout string) (content string, needsInput string, err error) {
	var o Outcome
	if json.Valid([]byte(stdout)) {
		if decodeErr := json.Unmarshal([]byte(stdout), &o); decodeErr == nil {
			if o.Success != nil {
				return o.Success.Content, "", nil
			}
			if o.NeedsInput != nil {
				return "", o.NeedsInput.Question, nil
			}
		}
	}
	return stdout, "", nil
}

// errorResultContent builds the JSON object {message, stderr, stdout} a
// non-zero exit produces as error-tagged result content.
func errorResultContent(message, stdout, stderr string) string {
	obj := map[string]string{"message": message, "stdout": stdout, "stderr": stderr}
	b, _ := json.Marshal(obj)
	return string(b)
}
