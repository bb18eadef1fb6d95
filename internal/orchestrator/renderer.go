package orchestrator

// Renderer is the terminal-output collaborator spec.md §1 and §6 name as
// external ("the terminal-output markdown renderer with ANSI/syntax
// highlighting" is explicitly out of scope): the orchestrator forwards
// content/reasoning/metadata as they stream in, and the concrete CLI
// decides how to draw them.
type Renderer interface {
	Content(text string)
	Reasoning(text string)
	Metadata(key, value string)
}

// NopRenderer discards everything; useful for tests and non-interactive
// replay.
type NopRenderer struct{}

func (NopRenderer) Content(string)        {}
func (NopRenderer) Reasoning(string)      {}
func (NopRenderer) Metadata(string, string) {}
