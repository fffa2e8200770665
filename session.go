package hiermem

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Hirogarden/AuraNexus/cryptenv"
	"github.com/Hirogarden/AuraNexus/layerstore"
	"github.com/Hirogarden/AuraNexus/llmapi"
	"github.com/Hirogarden/AuraNexus/vectorindex"
)

// ProjectType selects a session's encryption posture and storage root.
type ProjectType string

const (
	ProjectMedicalPeer      ProjectType = "medical_peer"
	ProjectMedicalAssistant ProjectType = "medical_assistant"
	ProjectStorytelling     ProjectType = "storytelling"
	ProjectGeneralChat      ProjectType = "general_chat"
	ProjectGeneralAssistant ProjectType = "general_assistant"
)

// IsMedical reports whether p is one of the medical project types, which
// always carry encrypted = true.
func (p ProjectType) IsMedical() bool {
	return p == ProjectMedicalPeer || p == ProjectMedicalAssistant
}

func (p ProjectType) valid() bool {
	switch p {
	case ProjectMedicalPeer, ProjectMedicalAssistant, ProjectStorytelling, ProjectGeneralChat, ProjectGeneralAssistant:
		return true
	default:
		return false
	}
}

// SummaryRecord is the unit of storage in the medium/long/archived layers.
// It lives only there and is never promoted backward.
type SummaryRecord struct {
	ID               string
	SourceMessageIDs []string
	Level            llmapi.Level
	Content          string
	Entities         []llmapi.Entity
	Embedding        []float32
	CreatedAt        time.Time
	OldestSourceAge  time.Time
}

// sourceLocation tracks where a message or summary's id currently resolves:
// a raw Layer for active/short_term, or a Layer plus owning summary id for
// anything folded into a summary record.
type sourceLocation struct {
	Layer     Layer
	SummaryID string
}

// QueuedBatch is one unit of compression work: a run of same-origin
// records awaiting summarization into ToLayer.
type QueuedBatch struct {
	FromLayer Layer
	ToLayer   Layer
	Items     []llmapi.SourceMessage
	SourceIDs []string
	OldestAge time.Time
	Attempt   int
}

// QueryResult is one hit from Session.Query.
type QueryResult struct {
	ID      string
	Layer   Layer
	Content string
	Score   float64
}

// SessionStats is the summary returned by Stats().
type SessionStats struct {
	Counts                map[Layer]int
	BookmarkCount         int
	CompressionQueueDepth int
	DeadLetterDepth       int
	// Behind is true when CompressionQueueDepth+DeadLetterDepth exceeds the
	// session's backpressure bound. Advisory only: it never blocks
	// AddMessage, it just flags that the scheduler has fallen behind the
	// foreground write rate.
	Behind bool
	// Quarantined is true once a fatal-to-session error (storage
	// corruption, a DEK that no longer decrypts its own records) has
	// parked the session in a read-only, refuse-writes state.
	Quarantined bool
	TokenUsage  llmapi.Usage
}

const maxCompressionAttempts = 3

// Session is the HierarchicalMemory for one conversation: the five-layer
// state, its bookmark registry, and (for encrypted sessions) its crypto
// envelope.
type Session struct {
	mu sync.Mutex

	id          string
	projectType ProjectType
	encrypted   bool
	storageRoot string

	layers  *layerstore.ActiveShortTerm
	vectors *vectorindex.Store

	summaries   map[Layer]map[string]*SummaryRecord
	sourceIndex map[string]sourceLocation
	liveMessages map[string]*Message

	bookmarks *BookmarkRegistry
	envelope  *cryptenv.Envelope

	compressionQueue []QueuedBatch
	deadLetter       []QueuedBatch

	capacities           map[Layer]int
	compressionBatchSize int
	backpressureBound    int

	quarantined     bool
	quarantineCause error
	totalUsage      llmapi.Usage

	createdAt    time.Time
	lastActivity time.Time
	destroyed    bool

	seqCounter   uint64
	embeddingDim int
}

// NewSession constructs a session in the given project/encryption posture.
// envelope must be non-nil iff encrypted is true; the caller (Session
// Manager) is responsible for deriving it before calling NewSession.
// compressionBatchSize and backpressureBound of zero or less fall back to
// DefaultCompressionBatchSize and DefaultBackpressureBound respectively.
func NewSession(id string, projectType ProjectType, storageRoot string, encrypted bool, envelope *cryptenv.Envelope, embeddingDim int, compressionBatchSize, backpressureBound int) *Session {
	if compressionBatchSize <= 0 {
		compressionBatchSize = DefaultCompressionBatchSize
	}
	if backpressureBound <= 0 {
		backpressureBound = DefaultBackpressureBound
	}
	now := time.Now()
	return &Session{
		id:                   id,
		projectType:          projectType,
		encrypted:            encrypted,
		storageRoot:          storageRoot,
		layers:               layerstore.NewActiveShortTerm(),
		vectors:              vectorindex.NewStore(embeddingDim, []string{LayerMediumTerm.String(), LayerLongTerm.String(), LayerArchived.String()}),
		summaries:            map[Layer]map[string]*SummaryRecord{LayerMediumTerm: {}, LayerLongTerm: {}, LayerArchived: {}},
		sourceIndex:          make(map[string]sourceLocation),
		liveMessages:         make(map[string]*Message),
		bookmarks:            NewBookmarkRegistry(id),
		envelope:             envelope,
		capacities:           cloneCapacities(DefaultCapacities),
		compressionBatchSize: compressionBatchSize,
		backpressureBound:    backpressureBound,
		createdAt:            now,
		lastActivity:         now,
		embeddingDim:         embeddingDim,
	}
}

func cloneCapacities(in map[Layer]int) map[Layer]int {
	out := make(map[Layer]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// ID returns the session's identifier.
func (s *Session) ID() string { return s.id }

// ProjectType returns the session's project type.
func (s *Session) ProjectType() ProjectType { return s.projectType }

// Encrypted reports whether the session routes on-disk payloads through
// its crypto envelope.
func (s *Session) Encrypted() bool { return s.encrypted }

// Destroyed reports whether the session has been torn down. The scheduler
// uses this to drop in-flight work rather than write to a dead session.
func (s *Session) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

// Destroy marks the session dead; further AddMessage/Query calls fail.
// Called by the Session Manager before it unlinks storage or shreds keys.
func (s *Session) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
	s.compressionQueue = nil
}

// LastActivity returns the timestamp of the most recent AddMessage call,
// used by the scheduler's idle-detection gates.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// AddMessage appends to the active layer, cascading promotions as
// thresholds trip. It fails only if the session has been destroyed or
// quarantined, and never invokes the embedding or generation collaborators.
func (s *Session) AddMessage(role Role, content string, metadata Metadata) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return "", fmt.Errorf("%w: session %q has been deleted", ErrNotFound, s.id)
	}
	if s.quarantined {
		return "", fmt.Errorf("%w: session %q: %v", ErrSessionQuarantined, s.id, s.quarantineCause)
	}

	s.seqCounter++
	id := fmt.Sprintf("%s-msg-%d", s.id, s.seqCounter)
	msg := &Message{
		ID:        id,
		SessionID: s.id,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
		Seq:       s.seqCounter,
		Metadata:  metadata.Clone(),
		Layer:     LayerActive,
	}
	s.liveMessages[id] = msg
	s.layers.Active.Append(layerstore.Record{ID: id, Content: content})
	s.sourceIndex[id] = sourceLocation{Layer: LayerActive}
	s.lastActivity = msg.CreatedAt

	s.cascadePromotions()
	return id, nil
}

// cascadePromotions evaluates active/short_term overflow after an insert,
// moving records forward and, if short_term overflows, enqueuing a
// compression batch. Called with s.mu held.
func (s *Session) cascadePromotions() {
	if overflow := s.layers.Active.Len() - s.capacities[LayerActive]; overflow > 0 {
		moved := s.layers.PromoteActiveToShort(overflow)
		for _, r := range moved {
			if msg, ok := s.liveMessages[r.ID]; ok {
				msg.Layer = LayerShortTerm
			}
			s.sourceIndex[r.ID] = sourceLocation{Layer: LayerShortTerm}
		}
	}

	if overflow := s.layers.ShortTerm.Len() - s.capacities[LayerShortTerm]; overflow > 0 {
		pulled := s.layers.EnqueueForCompression(overflow)
		for _, r := range pulled {
			msg := s.liveMessages[r.ID]
			item := llmapi.SourceMessage{ID: r.ID, Role: msg.Role.String(), Content: r.Content}
			s.enqueueCompressionItem(LayerShortTerm, LayerMediumTerm, item, msg.CreatedAt)
		}
	}
}

// enqueueCompressionItem appends one record to the compression queue,
// coalescing into the most recent batch when it shares the same from/to
// layers and has room under compressionBatchSize, so a run of overflow
// events drains as configurable multi-item batches rather than one batch
// per record. Called with s.mu held.
func (s *Session) enqueueCompressionItem(from, to Layer, item llmapi.SourceMessage, age time.Time) {
	if n := len(s.compressionQueue); n > 0 {
		tail := &s.compressionQueue[n-1]
		if tail.FromLayer == from && tail.ToLayer == to && len(tail.Items) < s.compressionBatchSize {
			tail.Items = append(tail.Items, item)
			tail.SourceIDs = append(tail.SourceIDs, item.ID)
			if age.Before(tail.OldestAge) {
				tail.OldestAge = age
			}
			return
		}
	}
	s.compressionQueue = append(s.compressionQueue, QueuedBatch{
		FromLayer: from,
		ToLayer:   to,
		Items:     []llmapi.SourceMessage{item},
		SourceIDs: []string{item.ID},
		OldestAge: age,
	})
}

// GetRecent returns the last n messages from active+short_term, newest
// first. It never touches medium/long/archived.
func (s *Session) GetRecent(n int) []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ordered []layerstore.Record
	ordered = append(ordered, s.layers.ShortTerm.All()...)
	ordered = append(ordered, s.layers.Active.All()...)

	if n > len(ordered) {
		n = len(ordered)
	}
	tail := ordered[len(ordered)-n:]

	out := make([]*Message, 0, n)
	for i := len(tail) - 1; i >= 0; i-- {
		if msg, ok := s.liveMessages[tail[i].ID]; ok {
			out = append(out, msg)
		}
	}
	return out
}

// recencyBias gives newer records a small additive boost in ranking. The
// boost decays over a week so very old summaries don't dominate a query
// purely by virtue of similarity noise.
func recencyBias(t time.Time) float64 {
	age := time.Since(t)
	const halfLife = 7 * 24 * time.Hour
	if age <= 0 {
		return 0.05
	}
	decay := 1.0 / (1.0 + age.Hours()/halfLife.Hours())
	return 0.05 * decay
}

// Query runs a semantic query across the requested layers (default
// medium_term/long_term/archived), merging vector-index kNN results with a
// recency bias and, for active/short_term when requested, a literal
// substring scan.
func (s *Session) Query(ctx context.Context, queryText string, layers []Layer, k int, embedder llmapi.Embedder) ([]QueryResult, error) {
	if layers == nil {
		layers = DefaultQueryLayers
	}

	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: session %q has been deleted", ErrNotFound, s.id)
	}
	if s.quarantined {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: session %q: %v", ErrSessionQuarantined, s.id, s.quarantineCause)
	}
	var results []QueryResult

	for _, l := range layers {
		switch l {
		case LayerActive, LayerShortTerm:
			seq := s.layers.Active
			if l == LayerShortTerm {
				seq = s.layers.ShortTerm
			}
			needle := strings.ToLower(queryText)
			for _, r := range seq.All() {
				if strings.Contains(strings.ToLower(r.Content), needle) {
					msg := s.liveMessages[r.ID]
					score := 1.0
					if msg != nil {
						score += recencyBias(msg.CreatedAt)
					}
					results = append(results, QueryResult{ID: r.ID, Layer: l, Content: r.Content, Score: score})
				}
			}
		}
	}
	s.mu.Unlock()

	vectorLayers := intersectVectorLayers(layers)
	if len(vectorLayers) > 0 {
		if embedder == nil {
			return nil, ErrEmbeddingUnavailable
		}
		embedding, err := embedder.Embed(ctx, queryText)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
		}

		s.mu.Lock()
		for _, l := range vectorLayers {
			matches, err := s.vectors.KNN(l.String(), embedding, k)
			if err != nil {
				s.mu.Unlock()
				return nil, err
			}
			for _, m := range matches {
				summary := s.summaries[l][m.ID]
				if summary == nil {
					continue
				}
				results = append(results, QueryResult{
					ID:      m.ID,
					Layer:   l,
					Content: summary.Content,
					Score:   m.Similarity + recencyBias(summary.OldestSourceAge),
				})
			}
		}
		s.mu.Unlock()
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Layer.rank() != results[j].Layer.rank() {
			return results[i].Layer.rank() < results[j].Layer.rank()
		}
		return results[i].ID > results[j].ID
	})
	if k > 0 && k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func intersectVectorLayers(layers []Layer) []Layer {
	var out []Layer
	for _, l := range layers {
		for _, vl := range VectorLayers {
			if l == vl {
				out = append(out, l)
			}
		}
	}
	return out
}

// PeekBatch returns the oldest queued compression batch without removing
// it, so the scheduler can apply its idle gates before committing to
// dequeue it.
func (s *Session) PeekBatch() (QueuedBatch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed || len(s.compressionQueue) == 0 {
		return QueuedBatch{}, false
	}
	return s.compressionQueue[0], true
}

// DequeueBatch removes and returns the oldest queued compression batch, for
// the scheduler to process. Returns false if the queue is empty or the
// session has been destroyed.
func (s *Session) DequeueBatch() (QueuedBatch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed || len(s.compressionQueue) == 0 {
		return QueuedBatch{}, false
	}
	batch := s.compressionQueue[0]
	s.compressionQueue = s.compressionQueue[1:]
	return batch, true
}

// RequeueBatch puts a failed batch back at the front of the queue with its
// attempt counter incremented, unless it has exhausted maxCompressionAttempts,
// in which case it is parked in the dead-letter queue instead. cause is the
// error that made this attempt fail; if it is fatal to the session (storage
// corruption, a DEK that no longer decrypts its own records), exhausting
// attempts quarantines the session rather than leaving it silently stuck.
func (s *Session) RequeueBatch(batch QueuedBatch, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	batch.Attempt++
	if batch.Attempt >= maxCompressionAttempts {
		s.deadLetter = append(s.deadLetter, batch)
		if isFatalToSession(cause) {
			s.quarantineLocked(cause)
		}
		return
	}
	s.compressionQueue = append([]QueuedBatch{batch}, s.compressionQueue...)
}

// isFatalToSession reports whether err represents a fatal-to-session
// condition: storage corruption or a DEK that no longer decrypts its own
// records. Transient collaborator failures (a summarizer timing out, a rate
// limit) are not fatal and simply requeue.
func isFatalToSession(err error) bool {
	return errors.Is(err, ErrStorageError) ||
		errors.Is(err, ErrDecryptionFailed) ||
		errors.Is(err, cryptenv.ErrDecryptionFailed)
}

// Quarantine puts the session into its fatal-error read-only state: further
// AddMessage/Query calls fail with ErrSessionQuarantined. Unlike Destroy,
// quarantine never unlinks storage or shreds key material — it is a
// recoverable hold, not a deletion.
func (s *Session) Quarantine(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quarantineLocked(cause)
}

func (s *Session) quarantineLocked(cause error) {
	if s.quarantined {
		return
	}
	s.quarantined = true
	s.quarantineCause = cause
}

// Quarantined reports whether the session has been quarantined.
func (s *Session) Quarantined() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quarantined
}

// AddUsage accumulates token usage reported by a completed generate or
// summarize call, for Stats().TokenUsage. Embed responses carry no
// comparable usage in either wired provider, so embedding is not tracked.
func (s *Session) AddUsage(u llmapi.Usage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalUsage = s.totalUsage.Add(u)
}

// IngestSummary materializes a compression result into targetLayer's
// vector index and the session's summary source of truth. sourceMessages
// carries the original message bodies folded into this summary; they are
// written to a per-summary blob (AEAD-sealed for encrypted sessions, see
// blob.go) before the live in-RAM
// copies are dropped, so resolveMessage can still recover them later. It is
// a no-op (returning ErrNotFound) if the session has been destroyed, so a
// completion racing a delete never writes to dead storage.
func (s *Session) IngestSummary(layer Layer, result llmapi.SummaryResult, embedding []float32, level llmapi.Level, oldestAge time.Time, sourceMessages []llmapi.SourceMessage) (*SummaryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil, fmt.Errorf("%w: session %q has been deleted", ErrNotFound, s.id)
	}

	s.seqCounter++
	record := &SummaryRecord{
		ID:               fmt.Sprintf("%s-sum-%d", s.id, s.seqCounter),
		SourceMessageIDs: result.References,
		Level:            level,
		Content:          result.Content,
		Entities:         result.Entities,
		Embedding:        embedding,
		CreatedAt:        time.Now(),
		OldestSourceAge:  oldestAge,
	}
	if err := s.vectors.Upsert(layer.String(), record.ID, embedding); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	if err := s.writeSourceBlob(record.ID, sourceMessages); err != nil {
		return nil, err
	}
	s.summaries[layer][record.ID] = record
	for _, srcID := range result.References {
		s.sourceIndex[srcID] = sourceLocation{Layer: layer, SummaryID: record.ID}
		delete(s.liveMessages, srcID)
	}

	s.evaluateLayerOverflow(layer)
	return record, nil
}

// evaluateLayerOverflow checks whether layer now exceeds its capacity and,
// if so, enqueues its oldest record(s) for compression into the next
// layer down. Bounded by layer count: archived has no successor and never
// overflows further. Called with s.mu held.
func (s *Session) evaluateLayerOverflow(layer Layer) {
	cap := s.capacities[layer]
	if cap == 0 {
		return // unbounded (archived)
	}
	next, ok := nextLayer(layer)
	if !ok {
		return
	}
	records := s.summaries[layer]
	if len(records) <= cap {
		return
	}

	var oldest *SummaryRecord
	for _, r := range records {
		if oldest == nil || r.OldestSourceAge.Before(oldest.OldestSourceAge) {
			oldest = r
		}
	}
	if oldest == nil {
		return
	}
	s.vectors.Delete(layer.String(), oldest.ID)
	delete(records, oldest.ID)

	item := llmapi.SourceMessage{ID: oldest.ID, Role: "summary", Content: oldest.Content}
	s.enqueueCompressionItem(layer, next, item, oldest.OldestSourceAge)
}

// Stats returns per-layer counts, bookmark count, and compression-queue
// depth. CompressionQueueDepth and DeadLetterDepth count individual queued
// records, not batches.
func (s *Session) Stats() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[Layer]int{
		LayerActive:     s.layers.Active.Len(),
		LayerShortTerm:  s.layers.ShortTerm.Len(),
		LayerMediumTerm: len(s.summaries[LayerMediumTerm]),
		LayerLongTerm:   len(s.summaries[LayerLongTerm]),
		LayerArchived:   len(s.summaries[LayerArchived]),
	}
	queueDepth := queueItemCount(s.compressionQueue)
	deadDepth := queueItemCount(s.deadLetter)
	return SessionStats{
		Counts:                counts,
		BookmarkCount:         len(s.bookmarks.List()),
		CompressionQueueDepth: queueDepth,
		DeadLetterDepth:       deadDepth,
		Behind:                queueDepth+deadDepth > s.backpressureBound,
		Quarantined:           s.quarantined,
		TokenUsage:            s.totalUsage,
	}
}

func queueItemCount(batches []QueuedBatch) int {
	n := 0
	for _, b := range batches {
		n += len(b.Items)
	}
	return n
}

// Clear drops messages from the given layer, or every layer if nil. Key
// material is untouched.
func (s *Session) Clear(layer *Layer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clearOne := func(l Layer) {
		switch l {
		case LayerActive:
			s.layers.Active.Clear()
		case LayerShortTerm:
			s.layers.ShortTerm.Clear()
			s.layers.ShortIndex = layerstore.NewKeywordIndex()
		default:
			s.vectors.Drop(l.String())
			s.summaries[l] = make(map[string]*SummaryRecord)
		}
	}

	if layer == nil {
		for _, l := range []Layer{LayerActive, LayerShortTerm, LayerMediumTerm, LayerLongTerm, LayerArchived} {
			clearOne(l)
		}
		s.liveMessages = make(map[string]*Message)
		s.sourceIndex = make(map[string]sourceLocation)
		s.compressionQueue = nil
		return
	}
	clearOne(*layer)
}

// CreateBookmark delegates to the session's bookmark registry.
func (s *Session) CreateBookmark(label, description string, tags []string, importance float64, messageIDs []string) (*Bookmark, error) {
	return s.bookmarks.Create(label, description, tags, importance, messageIDs)
}

// ListBookmarks delegates to the session's bookmark registry.
func (s *Session) ListBookmarks() []*Bookmark {
	return s.bookmarks.List()
}

// GetBookmarkContext resolves a bookmark's references plus window
// neighbors, consulting layers in active→archived order.
func (s *Session) GetBookmarkContext(bookmarkID string, window int) ([]BookmarkContextEntry, error) {
	return s.bookmarks.Context(bookmarkID, window, s)
}

// resolveMessage implements messageResolver for the bookmark registry: a
// live message in active/short_term resolves directly; anything folded
// into a summary first tries to recover its original body from the
// summary's sealed blob (see blob.go), falling back to the summary's own
// content if the blob is missing or the message id isn't in it.
func (s *Session) resolveMessage(id string) (*Message, bool) {
	s.mu.Lock()
	if msg, ok := s.liveMessages[id]; ok {
		s.mu.Unlock()
		return msg, true
	}
	loc, ok := s.sourceIndex[id]
	if !ok || loc.SummaryID == "" {
		s.mu.Unlock()
		return nil, false
	}
	summary, ok := s.summaries[loc.Layer][loc.SummaryID]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	summaryID, layer := summary.ID, loc.Layer
	fallback := &Message{ID: summary.ID, SessionID: s.id, Content: summary.Content, CreatedAt: summary.CreatedAt, Layer: loc.Layer}
	s.mu.Unlock()

	blobbed, ok := s.readSourceBlob(summaryID)
	if !ok {
		return fallback, true
	}
	for _, m := range blobbed {
		if m.ID == id {
			return &Message{ID: m.ID, SessionID: s.id, Role: RoleFromString(m.Role), Content: m.Content, CreatedAt: fallback.CreatedAt, Layer: layer}, true
		}
	}
	return fallback, true
}

// neighbors returns up to window records on either side of id within its
// owning layer's ordering.
func (s *Session) neighbors(id string, window int) []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	loc, ok := s.sourceIndex[id]
	if !ok {
		return nil
	}
	switch loc.Layer {
	case LayerActive, LayerShortTerm:
		seq := s.layers.Active
		if loc.Layer == LayerShortTerm {
			seq = s.layers.ShortTerm
		}
		return s.sequenceNeighbors(seq.All(), id, window)
	default:
		ids := s.vectors.Iterate(loc.Layer.String())
		var out []*Message
		idx := indexOf(ids, loc.SummaryID)
		if idx < 0 {
			return nil
		}
		for i := idx - window; i <= idx+window; i++ {
			if i < 0 || i >= len(ids) || i == idx {
				continue
			}
			if summary, ok := s.summaries[loc.Layer][ids[i]]; ok {
				out = append(out, &Message{ID: summary.ID, SessionID: s.id, Content: summary.Content, CreatedAt: summary.CreatedAt, Layer: loc.Layer})
			}
		}
		return out
	}
}

func (s *Session) sequenceNeighbors(records []layerstore.Record, id string, window int) []*Message {
	idx := -1
	for i, r := range records {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	var out []*Message
	for i := idx - window; i <= idx+window; i++ {
		if i < 0 || i >= len(records) || i == idx {
			continue
		}
		if msg, ok := s.liveMessages[records[i].ID]; ok {
			out = append(out, msg)
		}
	}
	return out
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
