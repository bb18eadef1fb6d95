package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"
)

// parseRaw decodes data into a generic map, detecting format from path's
// extension. When the extension matches none of the four known formats,
// each parser is attempted in turn (TOML, JSON, JSON5, YAML) and the first
// successful parse wins, per the on-disk format-detection rule.
func parseRaw(data []byte, path string) (map[string]any, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return parseTOML(data)
	case ".json":
		return parseJSON(data)
	case ".json5":
		return parseJSON5(data)
	case ".yaml", ".yml":
		return parseYAML(data)
	}

	for _, parser := range []func([]byte) (map[string]any, error){parseTOML, parseJSON, parseJSON5, parseYAML} {
		if raw, err := parser(data); err == nil {
			return raw, nil
		}
	}
	return nil, fmt.Errorf("config: could not parse %s in any known format", path)
}

func parseTOML(data []byte) (map[string]any, error) {
	var raw map[string]any
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

func parseJSON(data []byte) (map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

func parseJSON5(data []byte) (map[string]any, error) {
	var raw map[string]any
	if err := json5.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

func parseYAML(data []byte) (map[string]any, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("config: expected single YAML document")
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// decodeRawToPartial funnels a generic map through YAML (regardless of
// its source format) for one strict, single-choke-point decode into the
// typed Partial, rejecting unknown keys.
func decodeRawToPartial(raw map[string]any) (Partial, error) {
	payload, err := yaml.Marshal(raw)
	if err != nil {
		return Partial{}, fmt.Errorf("config: re-serializing parsed document: %w", err)
	}
	var p Partial
	decoder := yaml.NewDecoder(bytes.NewReader(payload))
	decoder.KnownFields(true)
	if err := decoder.Decode(&p); err != nil {
		if err == io.EOF {
			return Partial{}, nil
		}
		return Partial{}, decodeErrToUnknownKey(err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return Partial{}, fmt.Errorf("config: expected single document")
	}
	return p, nil
}

// decodeErrToUnknownKey classifies yaml.v3's "field X not found" strict
// decode failures into the structured UnknownKey error kind.
func decodeErrToUnknownKey(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "not found") || strings.Contains(msg, "field") {
		return unknownKey(msg)
	}
	return badValue("", msg)
}
