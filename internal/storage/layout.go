// Package storage implements the dual-root on-disk conversation layout:
// a shared workspace root and a per-user root, atomic write-then-rename
// persistence, and delta write-back driven by tomb.Map.
package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jp-cli/jp/pkg/convo"
)

const (
	conversationsDir   = "conversations"
	indexMetadataFile  = "metadata.json"
	eventsFile         = "events.json"
	conversationMeta   = "metadata.json"
	userStorageSymlink = "storage"
)

// Layout resolves the directories and files that make up one workspace's
// on-disk presence across both roots.
type Layout struct {
	WorkspaceRoot string
	UserRoot      string
	WorkspaceName string
	WorkspaceID   string
}

// workspaceConversationsDir is <workspace_root>/conversations.
func (l Layout) workspaceConversationsDir() string {
	return filepath.Join(l.WorkspaceRoot, conversationsDir)
}

// userWorkspaceDir is <user_root>/<workspace_name>-<workspace_id>.
func (l Layout) userWorkspaceDir() string {
	return filepath.Join(l.UserRoot, fmt.Sprintf("%s-%s", l.WorkspaceName, l.WorkspaceID))
}

// userConversationsDir is the user-scoped conversations directory.
func (l Layout) userConversationsDir() string {
	return filepath.Join(l.userWorkspaceDir(), conversationsDir)
}

// rootDirFor returns the conversations directory appropriate for a
// conversation's scope.
func (l Layout) rootDirFor(userScoped bool) string {
	if userScoped {
		return l.userConversationsDir()
	}
	return l.workspaceConversationsDir()
}

// indexPath is the conversations index file for a given root.
func (l Layout) indexPath(userScoped bool) string {
	return filepath.Join(l.rootDirFor(userScoped), indexMetadataFile)
}

// conversationDirName computes the on-disk directory name for a
// conversation: <ts>[-<slug>].
func conversationDirName(id convo.Id, title string) string {
	slug := slugify(title)
	if slug == "" {
		return id.Short()
	}
	return id.Short() + "-" + slug
}

func slugify(title string) string {
	title = strings.TrimSpace(strings.ToLower(title))
	if title == "" {
		return ""
	}
	var b strings.Builder
	lastDash := false
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if len(out) > 40 {
		out = out[:40]
	}
	return out
}

// conversationDir is the directory holding one conversation's metadata
// and events, under the appropriate root.
func (l Layout) conversationDir(userScoped bool, id convo.Id, title string) string {
	return filepath.Join(l.rootDirFor(userScoped), conversationDirName(id, title))
}

// roots returns the two top-level conversations directories, paired with
// whether entries found there are user-scoped.
func (l Layout) roots() []rootEntry {
	return []rootEntry{
		{dir: l.workspaceConversationsDir(), userScoped: false},
		{dir: l.userConversationsDir(), userScoped: true},
	}
}

type rootEntry struct {
	dir        string
	userScoped bool
}

