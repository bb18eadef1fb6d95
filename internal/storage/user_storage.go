package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WithUserStorage locates (or creates) the per-user directory for a
// workspace, renaming it if the workspace name prefix changed since the
// last run, and ensures its "storage" symlink points at workspaceRoot.
// It returns the resolved user-workspace directory.
func WithUserStorage(userRoot, workspaceRoot, workspaceName, workspaceId string) (string, error) {
	if err := os.MkdirAll(userRoot, 0o700); err != nil {
		return "", err
	}

	want := fmt.Sprintf("%s-%s", workspaceName, workspaceId)
	wantDir := filepath.Join(userRoot, want)

	existing, err := findExistingUserDir(userRoot, workspaceId)
	if err != nil {
		return "", err
	}
	if existing != "" && existing != wantDir {
		if err := os.Rename(existing, wantDir); err != nil {
			return "", err
		}
	}

	if err := os.MkdirAll(wantDir, 0o700); err != nil {
		return "", err
	}

	return wantDir, ensureStorageSymlink(wantDir, workspaceRoot)
}

// findExistingUserDir looks for a directory under userRoot named
// "*-<workspaceId>", tolerating a stale name prefix from a prior
// workspace rename.
func findExistingUserDir(userRoot, workspaceId string) (string, error) {
	entries, err := os.ReadDir(userRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	suffix := "-" + workspaceId
	for _, entry := range entries {
		if entry.IsDir() && strings.HasSuffix(entry.Name(), suffix) {
			return filepath.Join(userRoot, entry.Name()), nil
		}
	}
	return "", nil
}

func ensureStorageSymlink(userWorkspaceDir, workspaceRoot string) error {
	linkPath := filepath.Join(userWorkspaceDir, userStorageSymlink)
	target, err := os.Readlink(linkPath)
	if err == nil {
		if target == workspaceRoot {
			return nil
		}
		if err := os.Remove(linkPath); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.Symlink(workspaceRoot, linkPath)
}
