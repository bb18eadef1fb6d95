package main

import (
	"fmt"
	"os"
)

// stdoutRenderer is the minimal terminal-output collaborator spec.md §1
// names as external ("the terminal-output markdown renderer with
// ANSI/syntax highlighting" is explicitly out of scope): it writes raw
// content/reasoning as they stream in with no markdown or syntax
// highlighting.
type stdoutRenderer struct{}

func (stdoutRenderer) Content(text string) {
	fmt.Print(text)
}

func (stdoutRenderer) Reasoning(text string) {
	fmt.Fprint(os.Stderr, text)
}

func (stdoutRenderer) Metadata(key, value string) {
	fmt.Fprintf(os.Stderr, "[%s: %s]\n", key, value)
}
