package hiermem

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Hirogarden/AuraNexus/layerstore"
	"github.com/Hirogarden/AuraNexus/llmapi"
)

const (
	snapshotMagic        = "AUNX"
	snapshotVersion       = 1
	snapshotFlagEncrypted = 1 << 0
)

// snapshotMetadata is the session-level JSON section of a snapshot.
type snapshotMetadata struct {
	ID          string      `json:"id"`
	ProjectType ProjectType `json:"project_type"`
	Encrypted   bool        `json:"encrypted"`
	TokenUsage  llmapi.Usage `json:"token_usage"`
}

// snapshotQueueSection holds the pending and dead-lettered compression work,
// so a restored session is stats()-indistinguishable from the one that was
// checkpointed, including work still in flight.
type snapshotQueueSection struct {
	Queue      []QueuedBatch `json:"queue"`
	DeadLetter []QueuedBatch `json:"dead_letter"`
}

// snapshotLayerSection holds one layer's records, serialized generically:
// active/short_term as messages, medium/long/archived as summary records.
type snapshotLayerSection struct {
	Layer     Layer            `json:"layer"`
	Messages  []*Message       `json:"messages,omitempty"`
	Summaries []*SummaryRecord `json:"summaries,omitempty"`
}

func writeFrame(w *bufio.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r *bufio.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := readFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	payload := make([]byte, binary.LittleEndian.Uint32(lenBuf[:]))
	if _, err := readFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// SaveSnapshot exports a sealed representation of the entire session to
// path: encrypted sessions route every section through the crypto
// envelope, non-encrypted sessions write plaintext JSON frames directly.
func (s *Session) SaveSnapshot(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: creating snapshot file: %v", ErrStorageError, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	var flags byte
	if s.encrypted {
		flags |= snapshotFlagEncrypted
	}
	header := append([]byte(snapshotMagic), 0, 0, 0, 0, flags)
	binary.LittleEndian.PutUint32(header[4:8], snapshotVersion)
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}

	meta := snapshotMetadata{ID: s.id, ProjectType: s.projectType, Encrypted: s.encrypted, TokenUsage: s.totalUsage}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	if err := s.writeSection(w, metaJSON, "metadata"); err != nil {
		return err
	}

	sections := []snapshotLayerSection{
		{Layer: LayerActive, Messages: messagesFromRecords(s.layers.Active.All(), s.liveMessages)},
		{Layer: LayerShortTerm, Messages: messagesFromRecords(s.layers.ShortTerm.All(), s.liveMessages)},
		{Layer: LayerMediumTerm, Summaries: summarySlice(s.summaries[LayerMediumTerm])},
		{Layer: LayerLongTerm, Summaries: summarySlice(s.summaries[LayerLongTerm])},
		{Layer: LayerArchived, Summaries: summarySlice(s.summaries[LayerArchived])},
	}
	for _, sec := range sections {
		payload, err := json.Marshal(sec)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		if err := s.writeSection(w, payload, sec.Layer.String()); err != nil {
			return err
		}
	}

	bookmarksJSON, err := json.Marshal(s.bookmarks.Export())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	if err := s.writeSection(w, bookmarksJSON, "bookmarks"); err != nil {
		return err
	}

	queueJSON, err := json.Marshal(snapshotQueueSection{Queue: s.compressionQueue, DeadLetter: s.deadLetter})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	if err := s.writeSection(w, queueJSON, "queue"); err != nil {
		return err
	}

	return w.Flush()
}

// writeSection writes one length-prefixed frame. section names the frame for
// the caller only: snapshot frames are sealed with empty associated data.
func (s *Session) writeSection(w *bufio.Writer, payload []byte, section string) error {
	if s.encrypted {
		sealed, err := s.envelope.Seal(payload, nil)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		payload = sealed
	}
	if err := writeFrame(w, payload); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	return nil
}

// LoadSnapshot restores a session's state from a file produced by
// SaveSnapshot. The receiver must already be constructed with the correct
// encryption posture (and, for encrypted sessions, the matching envelope)
// before calling this.
func (s *Session) LoadSnapshot(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: opening snapshot file: %v", ErrStorageError, err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	header := make([]byte, 9)
	if _, err := readFull(r, header); err != nil {
		return fmt.Errorf("%w: reading header: %v", ErrStorageError, err)
	}
	if string(header[:4]) != snapshotMagic {
		return fmt.Errorf("%w: bad snapshot magic", ErrInvalidArgument)
	}
	flags := header[8]
	encrypted := flags&snapshotFlagEncrypted != 0

	readSection := func(section string) ([]byte, error) {
		payload, err := readFrame(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		if encrypted {
			plaintext, err := s.envelope.Open(payload, nil)
			if err != nil {
				return nil, err
			}
			return plaintext, nil
		}
		return payload, nil
	}

	metaJSON, err := readSection("metadata")
	if err != nil {
		return err
	}
	var meta snapshotMetadata
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	s.id = meta.ID
	s.projectType = meta.ProjectType
	s.encrypted = meta.Encrypted
	s.totalUsage = meta.TokenUsage

	s.layers = layerstore.NewActiveShortTerm()
	s.liveMessages = make(map[string]*Message)
	s.sourceIndex = make(map[string]sourceLocation)
	s.summaries = map[Layer]map[string]*SummaryRecord{LayerMediumTerm: {}, LayerLongTerm: {}, LayerArchived: {}}

	for _, layer := range []Layer{LayerActive, LayerShortTerm, LayerMediumTerm, LayerLongTerm, LayerArchived} {
		payload, err := readSection(layer.String())
		if err != nil {
			return err
		}
		var sec snapshotLayerSection
		if err := json.Unmarshal(payload, &sec); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageError, err)
		}
		s.restoreSection(sec)
	}

	bookmarksPayload, err := readSection("bookmarks")
	if err != nil {
		return err
	}
	var bms []BookmarkSnapshot
	if err := json.Unmarshal(bookmarksPayload, &bms); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	s.bookmarks = NewBookmarkRegistry(s.id)
	s.bookmarks.Restore(bms)

	queuePayload, err := readSection("queue")
	if err != nil {
		return err
	}
	var qsec snapshotQueueSection
	if err := json.Unmarshal(queuePayload, &qsec); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	s.compressionQueue = qsec.Queue
	s.deadLetter = qsec.DeadLetter

	return nil
}

func (s *Session) restoreSection(sec snapshotLayerSection) {
	switch sec.Layer {
	case LayerActive:
		for _, m := range sec.Messages {
			s.liveMessages[m.ID] = m
			s.layers.Active.Append(recordFromMessage(m))
			s.sourceIndex[m.ID] = sourceLocation{Layer: LayerActive}
		}
	case LayerShortTerm:
		for _, m := range sec.Messages {
			s.liveMessages[m.ID] = m
			s.layers.ShortTerm.Append(recordFromMessage(m))
			s.layers.ShortIndex.Add(m.ID, m.Content)
			s.sourceIndex[m.ID] = sourceLocation{Layer: LayerShortTerm}
		}
	default:
		for _, rec := range sec.Summaries {
			s.summaries[sec.Layer][rec.ID] = rec
			if err := s.vectors.Upsert(sec.Layer.String(), rec.ID, rec.Embedding); err != nil {
				continue
			}
			for _, srcID := range rec.SourceMessageIDs {
				s.sourceIndex[srcID] = sourceLocation{Layer: sec.Layer, SummaryID: rec.ID}
			}
		}
	}
}

func messagesFromRecords(records []layerstore.Record, liveMessages map[string]*Message) []*Message {
	out := make([]*Message, 0, len(records))
	for _, r := range records {
		if msg, ok := liveMessages[r.ID]; ok {
			out = append(out, msg)
		}
	}
	return out
}

func recordFromMessage(m *Message) layerstore.Record {
	return layerstore.Record{ID: m.ID, Content: m.Content}
}

func summarySlice(m map[string]*SummaryRecord) []*SummaryRecord {
	out := make([]*SummaryRecord, 0, len(m))
	for _, rec := range m {
		out = append(out, rec)
	}
	return out
}
