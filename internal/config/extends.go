package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// LoadFile loads path and fully resolves its `extends` chain into a single
// Partial: before-extends merged first, then the file's own contents, then
// after-extends. Cycle detection is a visited set over canonicalized
// absolute paths.
func LoadFile(path string, logger *slog.Logger) (Partial, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return loadFileRecursive(path, map[string]bool{}, logger)
}

func loadFileRecursive(path string, seen map[string]bool, logger *slog.Logger) (Partial, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Partial{}, err
	}
	if seen[absPath] {
		return Partial{}, extendsCycle(absPath)
	}
	seen[absPath] = true
	defer delete(seen, absPath)

	data, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Partial{}, fileNotFound(absPath)
		}
		return Partial{}, err
	}

	raw, err := parseRaw(data, absPath)
	if err != nil {
		return Partial{}, err
	}
	self, err := decodeRawToPartial(raw)
	if err != nil {
		return Partial{}, err
	}

	var before, after []Partial
	baseDir := filepath.Dir(absPath)
	for _, entry := range self.Extends {
		resolved, err := resolveExtendPaths(baseDir, entry.Path, logger)
		if err != nil {
			return Partial{}, err
		}
		for _, p := range resolved {
			part, err := loadFileRecursive(p, seen, logger)
			if err != nil {
				return Partial{}, err
			}
			if entry.Position == PositionAfter {
				after = append(after, part)
			} else {
				before = append(before, part)
			}
		}
	}

	self.Extends = nil
	chain := append(append(before, self), after...)
	return InheritanceWalk(chain), nil
}

// resolveExtendPaths expands glob metacharacters in an extends entry
// relative to baseDir. A literal (non-glob) path that does not exist logs
// a warning and is skipped; a glob pattern matching zero files is silent.
func resolveExtendPaths(baseDir, pattern string, logger *slog.Logger) ([]string, error) {
	full := pattern
	if !filepath.IsAbs(full) {
		full = filepath.Join(baseDir, pattern)
	}

	if !containsGlobMeta(pattern) {
		if _, err := os.Stat(full); err != nil {
			logger.Warn("config extends path does not exist", "path", full)
			return nil, nil
		}
		return []string{full}, nil
	}

	matches, err := filepath.Glob(full)
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func containsGlobMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}
