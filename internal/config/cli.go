package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ApplyAssignments layers a sequence of CLI `key.subkey=value` (or
// `key:=value` object-merge) assignments onto base, applying them in
// order as the most-specific layer of the merge lattice.
func ApplyAssignments(base Partial, assignments []string) (Partial, error) {
	acc := base
	for _, assignment := range assignments {
		next, err := parseAssignment(assignment)
		if err != nil {
			return Partial{}, err
		}
		acc = Merge(acc, next)
	}
	return acc, nil
}

func parseAssignment(assignment string) (Partial, error) {
	if path, rhs, ok := strings.Cut(assignment, ":="); ok {
		value, err := parseObjectRHS(rhs)
		if err != nil {
			return Partial{}, badValue(path, err.Error())
		}
		return rawPathToPartial(path, value)
	}
	path, rhs, ok := strings.Cut(assignment, "=")
	if !ok {
		return Partial{}, badValue(assignment, "expected key=value or key:=value")
	}
	var scalar any
	if err := yaml.Unmarshal([]byte(rhs), &scalar); err != nil {
		scalar = rhs
	}
	return rawPathToPartial(path, scalar)
}

// parseObjectRHS parses the right-hand side of a `:=` assignment as a
// JSON object, falling back to TOML.
func parseObjectRHS(rhs string) (any, error) {
	var asJSON map[string]any
	if err := json.Unmarshal([]byte(rhs), &asJSON); err == nil {
		return asJSON, nil
	}
	var asTOML map[string]any
	if _, err := toml.Decode(rhs, &asTOML); err == nil {
		return asTOML, nil
	}
	return nil, fmt.Errorf("could not parse %q as a JSON or TOML object", rhs)
}

// rawPathToPartial wraps value at the dotted path and funnels it through
// the same strict raw-to-Partial decode every config file uses.
func rawPathToPartial(path string, value any) (Partial, error) {
	segments := strings.Split(path, ".")
	if len(segments) == 0 || segments[0] == "" {
		return Partial{}, badValue(path, "empty key")
	}
	var wrapped any = value
	for i := len(segments) - 1; i >= 0; i-- {
		wrapped = map[string]any{segments[i]: wrapped}
	}
	raw, ok := wrapped.(map[string]any)
	if !ok {
		return Partial{}, badValue(path, "not an object after wrapping")
	}
	return decodeRawToPartial(raw)
}
