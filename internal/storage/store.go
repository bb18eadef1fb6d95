package storage

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jp-cli/jp/internal/tomb"
	"github.com/jp-cli/jp/pkg/convo"
)

// ConversationsMap is the conversations TombMap keyed by conversation id.
type ConversationsMap = tomb.Map[convo.Id, *convo.Conversation]

// StreamsMap is the per-conversation event-stream TombMap.
type StreamsMap = tomb.Map[convo.Id, *convo.ConversationStream]

// LoadResult bundles the two TombMaps and the pointer to the active
// conversation, loaded fresh from disk.
type LoadResult struct {
	Conversations        *ConversationsMap
	Streams               *StreamsMap
	ActiveConversationId string
}

// Load enumerates both roots (workspace and user) and reads every
// conversation directory's metadata.json and events.json. Missing files
// are treated as "no data"; malformed files are skipped with a warning so
// one corrupt conversation never blocks the rest of the workspace.
func Load(l Layout) (LoadResult, error) {
	conversations := tomb.New[convo.Id, *convo.Conversation]()
	streams := tomb.New[convo.Id, *convo.ConversationStream]()

	var activeId string
	for _, root := range l.roots() {
		entries, err := os.ReadDir(root.dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return LoadResult{}, err
		}

		if idx := loadIndex(filepath.Join(root.dir, indexMetadataFile)); idx != "" {
			activeId = idx
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			dir := filepath.Join(root.dir, entry.Name())
			conv, stream, ok := loadConversationDir(dir, root.userScoped)
			if !ok {
				continue
			}
			conversations.Insert(conv.Id, conv)
			streams.Insert(conv.Id, stream)
		}
	}

	return LoadResult{Conversations: conversations, Streams: streams, ActiveConversationId: activeId}, nil
}

func loadIndex(path string) string {
	var idx indexDTO
	if err := readJSON(path, &idx); err != nil {
		return ""
	}
	return idx.ActiveConversationId
}

func loadConversationDir(dir string, userScoped bool) (*convo.Conversation, *convo.ConversationStream, bool) {
	var metaDTO conversationMetaDTO
	metaPath := filepath.Join(dir, conversationMeta)
	if err := readJSON(metaPath, &metaDTO); err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("skipping conversation with malformed metadata", "dir", dir, "error", err)
		}
		return nil, nil, false
	}
	metaDTO.UserScoped = userScoped

	conv, err := metaDTO.toConversation()
	if err != nil {
		slog.Warn("skipping conversation with malformed id", "dir", dir, "error", err)
		return nil, nil, false
	}

	var raw []eventDTO
	eventsPath := filepath.Join(dir, eventsFile)
	if err := readJSON(eventsPath, &raw); err != nil && !os.IsNotExist(err) {
		slog.Warn("skipping conversation with malformed events", "dir", dir, "error", err)
		return nil, nil, false
	}

	entries := make([]convo.ConversationEventWithConfig, 0, len(raw))
	for i, d := range raw {
		e, err := d.toEvent()
		if err != nil {
			slog.Warn("skipping malformed event", "dir", dir, "index", i, "error", err)
			continue
		}
		entries = append(entries, e)
	}
	stream := convo.StreamFromSlice(entries)
	return conv, &stream, true
}

// Persist writes the live contents of conversations/streams to disk and
// removes directories for dead keys (except activeConversationId), per
// conversation scope. Cross-file atomicity is not guaranteed; each
// conversation directory is self-contained so a crash mid-persist is
// recoverable on next Load.
func Persist(l Layout, conversations *ConversationsMap, streams *StreamsMap, activeConversationId string) error {
	for _, id := range conversations.ModifiedKeys() {
		conv, ok := conversations.Get(id)
		if !ok {
			continue
		}
		if err := persistOne(l, conv, streams); err != nil {
			return err
		}
	}
	for _, id := range newlyInsertedLive(conversations) {
		conv, ok := conversations.Get(id)
		if !ok {
			continue
		}
		if err := persistOne(l, conv, streams); err != nil {
			return err
		}
	}

	for _, id := range conversations.RemovedKeys() {
		if id.String() == activeConversationId {
			continue
		}
		removeConversationDirs(l, id)
	}

	for _, root := range l.roots() {
		if err := writeIndex(root, activeConversationId); err != nil {
			return err
		}
	}

	return nil
}

// newlyInsertedLive returns live keys not already covered by
// ModifiedKeys, i.e. entries inserted fresh this turn without ever being
// mutated via GetMut. Insert() itself only marks modified when replacing
// an existing or previously-dead key, so a brand-new key needs this
// fallback to guarantee it gets written at least once.
func newlyInsertedLive(conversations *ConversationsMap) []convo.Id {
	modified := map[convo.Id]struct{}{}
	for _, k := range conversations.ModifiedKeys() {
		modified[k] = struct{}{}
	}
	var out []convo.Id
	for k := range conversations.Live() {
		if _, ok := modified[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

func persistOne(l Layout, conv *convo.Conversation, streams *StreamsMap) error {
	dir := l.conversationDir(conv.UserScoped, conv.Id, conv.Title)
	removeStalePrefixDirs(l, conv)

	if err := writeJSONAtomic(filepath.Join(dir, conversationMeta), toConversationMetaDTO(conv)); err != nil {
		return err
	}

	stream, ok := streams.Get(conv.Id)
	entries := []convo.ConversationEventWithConfig{}
	if ok && stream != nil {
		entries = stream.All()
	}
	dtos := make([]eventDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toEventDTO(e))
	}
	return writeJSONAtomic(filepath.Join(dir, eventsFile), dtos)
}

// removeStalePrefixDirs removes any sibling directory that shares conv's
// id prefix but no longer matches its current title-derived name, i.e.
// the on-disk trace of a prior title edit.
func removeStalePrefixDirs(l Layout, conv *convo.Conversation) {
	root := l.rootDirFor(conv.UserScoped)
	want := conversationDirName(conv.Id, conv.Title)
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == want {
			continue
		}
		if conv.Id.HasPrefix(entry.Name()) {
			full := filepath.Join(root, entry.Name())
			os.RemoveAll(full)
			removeEmptyParents(filepath.Dir(full), root)
		}
	}
}

func removeConversationDirs(l Layout, id convo.Id) {
	for _, root := range l.roots() {
		entries, err := os.ReadDir(root.dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() || !id.HasPrefix(entry.Name()) {
				continue
			}
			full := filepath.Join(root.dir, entry.Name())
			if err := os.RemoveAll(full); err != nil {
				slog.Warn("failed to remove conversation directory", "dir", full, "error", err)
				continue
			}
			removeEmptyParents(filepath.Dir(full), root.dir)
		}
	}
}

func writeIndex(root rootEntry, activeConversationId string) error {
	if _, err := os.Stat(root.dir); err != nil {
		return nil
	}
	return writeJSONAtomic(filepath.Join(root.dir, indexMetadataFile), indexDTO{ActiveConversationId: activeConversationId})
}

// findByPrefix locates a live conversation whose id's short form matches
// the given prefix (case-insensitive), as used to resolve user-supplied
// partial conversation references.
func findByPrefix(conversations *ConversationsMap, prefix string) (*convo.Conversation, bool) {
	prefix = strings.ToLower(prefix)
	for _, conv := range conversations.Live() {
		if strings.HasPrefix(strings.ToLower(conv.Id.Short()), prefix) {
			return conv, true
		}
	}
	return nil, false
}
