package hiermem

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Hirogarden/AuraNexus/llmapi"
)

// blobMessage is the on-disk shape of one original message body inside a
// summary's source blob.
type blobMessage struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

func blobPath(storageRoot, summaryID string) string {
	return filepath.Join(storageRoot, "blobs", summaryID+".blob")
}

// writeSourceBlob writes sourceMessages — the original message bodies
// folded into a summary record — to a blob file named by the summary's id,
// rather than re-indexing them under their own ids. For encrypted sessions
// the blob is AEAD-sealed with the summary id as associated data; for
// non-encrypted sessions it is plain JSON.
// A session with no storage root (in-memory only, as in tests) silently
// skips persistence: there is nowhere to write to and nothing to read back
// from, so resolveMessage falls back to the summary's own content.
func (s *Session) writeSourceBlob(summaryID string, sourceMessages []llmapi.SourceMessage) error {
	if s.storageRoot == "" || len(sourceMessages) == 0 {
		return nil
	}
	out := make([]blobMessage, len(sourceMessages))
	for i, m := range sourceMessages {
		out[i] = blobMessage{ID: m.ID, Role: m.Role, Content: m.Content}
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	if s.encrypted {
		sealed, err := s.envelope.Seal(payload, []byte(summaryID))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		payload = sealed
	}
	if err := os.WriteFile(blobPath(s.storageRoot, summaryID), payload, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	return nil
}

// readSourceBlob recovers the original message bodies sealed under
// summaryID. Returns ok=false if there is no storage root, no blob was ever
// written for this summary, or (for encrypted sessions) the blob fails to
// decrypt — callers treat that as "unavailable", not fatal, and fall back
// to the summary's own content.
func (s *Session) readSourceBlob(summaryID string) ([]blobMessage, bool) {
	if s.storageRoot == "" {
		return nil, false
	}
	data, err := os.ReadFile(blobPath(s.storageRoot, summaryID))
	if err != nil {
		return nil, false
	}
	if s.encrypted {
		plaintext, err := s.envelope.Open(data, []byte(summaryID))
		if err != nil {
			return nil, false
		}
		data = plaintext
	}
	var out []blobMessage
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false
	}
	return out, true
}
