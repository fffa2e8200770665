package hiermem

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	bookmarksPlainFileName = "bookmarks.json"
	bookmarksSealedFileName = "bookmarks.enc"
)

func bookmarksFileName(encrypted bool) string {
	if encrypted {
		return bookmarksSealedFileName
	}
	return bookmarksPlainFileName
}

// saveBookmarks writes the session's bookmarks to their own file under the
// storage root, separate from the layer/queue snapshot, per the documented
// on-disk layout. A session with no storage root (in-memory only) is a
// no-op.
func (s *Session) saveBookmarks() error {
	if s.storageRoot == "" {
		return nil
	}
	payload, err := json.Marshal(s.bookmarks.Export())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	if s.encrypted {
		sealed, err := s.envelope.Seal(payload, []byte("bookmarks"))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		payload = sealed
	}
	path := filepath.Join(s.storageRoot, bookmarksFileName(s.encrypted))
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	return nil
}

// loadBookmarks restores bookmarks from the standalone file written by
// saveBookmarks. A missing file leaves the registry empty, which is the
// expected state for a session that never had any bookmarks checkpointed.
func (s *Session) loadBookmarks() error {
	if s.storageRoot == "" {
		return nil
	}
	path := filepath.Join(s.storageRoot, bookmarksFileName(s.encrypted))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	if s.encrypted {
		plaintext, err := s.envelope.Open(data, []byte("bookmarks"))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		data = plaintext
	}
	var snap []BookmarkSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	s.bookmarks.Restore(snap)
	return nil
}
