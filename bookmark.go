package hiermem

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Bookmark is purely metadata: it references messages by id but never
// moves them, and must resolve across whatever layer currently holds each
// reference.
type Bookmark struct {
	ID          string
	Label       string
	Description string
	Tags        []string
	Importance  float64
	MessageIDs  []string
	CreatedAt   time.Time
}

// BookmarkContextEntry pairs a referenced (or neighboring) message with the
// layer it was resolved from.
type BookmarkContextEntry struct {
	Message *Message
	Layer   Layer
}

// messageResolver looks up a message by id across every layer, returning
// its layer and its neighbors within window positions on either side
// within that same layer's ordering. Session implements this; bookmark.go
// stays independent of Session's internals.
type messageResolver interface {
	resolveMessage(id string) (*Message, bool)
	neighbors(id string, window int) []*Message
}

// BookmarkRegistry owns one session's bookmarks, keyed by id. Orphan
// policy: rather than cascade-deleting a bookmark when every message it
// references has been deleted, the registry marks it Orphaned and keeps it
// queryable — bookmarks are cheap, user-authored metadata, and silently
// vanishing one is more surprising than flagging it stale (recorded as a
// decided design choice, consistent within a session).
type BookmarkRegistry struct {
	mu        sync.RWMutex
	byID      map[string]*Bookmark
	orphaned  map[string]bool
	nextSeq   uint64
	idPrefix  string
}

func NewBookmarkRegistry(sessionID string) *BookmarkRegistry {
	return &BookmarkRegistry{
		byID:     make(map[string]*Bookmark),
		orphaned: make(map[string]bool),
		idPrefix: sessionID,
	}
}

// Create registers a new bookmark. Fails with ErrInvalidArgument if
// messageIDs is empty.
func (b *BookmarkRegistry) Create(label, description string, tags []string, importance float64, messageIDs []string) (*Bookmark, error) {
	if len(messageIDs) == 0 {
		return nil, fmt.Errorf("%w: create_bookmark requires at least one message id", ErrInvalidArgument)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSeq++
	bm := &Bookmark{
		ID:          fmt.Sprintf("bm-%s-%d", b.idPrefix, b.nextSeq),
		Label:       label,
		Description: description,
		Tags:        append([]string(nil), tags...),
		Importance:  importance,
		MessageIDs:  append([]string(nil), messageIDs...),
		CreatedAt:   time.Now(),
	}
	b.byID[bm.ID] = bm
	return bm, nil
}

// List returns every bookmark, including orphaned ones.
func (b *BookmarkRegistry) List() []*Bookmark {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Bookmark, 0, len(b.byID))
	for _, bm := range b.byID {
		out = append(out, bm)
	}
	return out
}

// Get returns the named bookmark, or ErrNotFound.
func (b *BookmarkRegistry) Get(id string) (*Bookmark, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bm, ok := b.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: bookmark %q", ErrNotFound, id)
	}
	return bm, nil
}

// MarkOrphanedIfUnresolvable checks every reference in bookmark id against
// resolver and flags the bookmark orphaned if none resolve. Session does not
// call it: a clear that drops referenced messages leaves the orphan flag
// unchanged until this method is invoked.
func (b *BookmarkRegistry) MarkOrphanedIfUnresolvable(id string, resolver messageResolver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bm, ok := b.byID[id]
	if !ok {
		return
	}
	for _, msgID := range bm.MessageIDs {
		if _, found := resolver.resolveMessage(msgID); found {
			return
		}
	}
	b.orphaned[id] = true
}

// IsOrphaned reports whether id has been flagged orphaned.
func (b *BookmarkRegistry) IsOrphaned(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.orphaned[id]
}

// BookmarkSnapshot is the serializable form of a bookmark plus its orphan
// flag, used by snapshot save/load and the standalone bookmarks file.
type BookmarkSnapshot struct {
	Bookmark
	Orphaned bool `json:"orphaned"`
}

// Export returns every bookmark plus its orphan flag, for persistence.
func (b *BookmarkRegistry) Export() []BookmarkSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]BookmarkSnapshot, 0, len(b.byID))
	for id, bm := range b.byID {
		out = append(out, BookmarkSnapshot{Bookmark: *bm, Orphaned: b.orphaned[id]})
	}
	return out
}

// Restore replaces the registry's contents with snap, read back from
// persistence. nextSeq is recomputed past the highest restored id suffix so
// newly created bookmarks never collide with a restored one.
func (b *BookmarkRegistry) Restore(snap []BookmarkSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byID = make(map[string]*Bookmark, len(snap))
	b.orphaned = make(map[string]bool, len(snap))
	var maxSeq uint64
	for _, s := range snap {
		bm := s.Bookmark
		b.byID[bm.ID] = &bm
		if s.Orphaned {
			b.orphaned[bm.ID] = true
		}
		if seq, ok := parseBookmarkSeq(bm.ID, b.idPrefix); ok && seq > maxSeq {
			maxSeq = seq
		}
	}
	b.nextSeq = maxSeq
}

// parseBookmarkSeq extracts the trailing sequence number from a bookmark id
// of the form "bm-<prefix>-<n>", or false if id doesn't match that shape.
func parseBookmarkSeq(id, prefix string) (uint64, bool) {
	want := "bm-" + prefix + "-"
	if !strings.HasPrefix(id, want) {
		return 0, false
	}
	seq, err := strconv.ParseUint(id[len(want):], 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}

// Context resolves a bookmark's referenced messages plus window neighbors
// on either side from their respective owning layers.
func (b *BookmarkRegistry) Context(id string, window int, resolver messageResolver) ([]BookmarkContextEntry, error) {
	bm, err := b.Get(id)
	if err != nil {
		return nil, err
	}
	var entries []BookmarkContextEntry
	for _, msgID := range bm.MessageIDs {
		msg, found := resolver.resolveMessage(msgID)
		if !found {
			continue
		}
		entries = append(entries, BookmarkContextEntry{Message: msg, Layer: msg.Layer})
		for _, neighbor := range resolver.neighbors(msgID, window) {
			entries = append(entries, BookmarkContextEntry{Message: neighbor, Layer: neighbor.Layer})
		}
	}
	return entries, nil
}
