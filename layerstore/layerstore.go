// Package layerstore implements the active and short_term in-RAM layers:
// bounded, ordered sequences supporting append, pop-oldest, linear scan,
// and a keyword index over short_term for the linear-scan path.
package layerstore

import (
	"strings"
	"sync"
)

// Record is the minimal shape layerstore needs from a caller's message
// type: an id for indexing and content for tokenization. Callers keep the
// full value elsewhere (the Session owns the actual []Message slice); this
// package only tracks ordering and membership.
type Record struct {
	ID      string
	Content string
}

// Sequence is an ordered in-RAM sequence (active or short_term).
// Append preserves insertion order; PopOldest removes and returns the
// front. Sequence itself enforces no size limit; the caller (Session)
// keeps it within its layer's capacity by promoting records out. It is not safe for concurrent use on its own — callers
// (Session) serialize access with their own per-session lock.
type Sequence struct {
	records []Record
}

func NewSequence() *Sequence {
	return &Sequence{}
}

func (s *Sequence) Append(r Record) {
	s.records = append(s.records, r)
}

// PopOldest removes and returns the front record, and false if empty.
func (s *Sequence) PopOldest() (Record, bool) {
	if len(s.records) == 0 {
		return Record{}, false
	}
	r := s.records[0]
	s.records = s.records[1:]
	return r, true
}

func (s *Sequence) Len() int {
	return len(s.records)
}

// All returns the records in insertion order. The returned slice aliases
// internal storage and must not be mutated by the caller.
func (s *Sequence) All() []Record {
	return s.records
}

// Contains reports whether id is present, for the invariant check that no
// record appears in two layers simultaneously.
func (s *Sequence) Contains(id string) bool {
	for _, r := range s.records {
		if r.ID == id {
			return true
		}
	}
	return false
}

// Clear drops every record.
func (s *Sequence) Clear() {
	s.records = nil
}

// KeywordIndex is short_term's lightweight tokenized-content index: a
// naive lowercase whitespace tokenizer mapping each token to the set of
// message ids containing it. At short_term's capacity of 50 this is a
// linear-scan optimization, not a search engine, so no indexing library is
// warranted.
type KeywordIndex struct {
	mu    sync.RWMutex
	index map[string]map[string]struct{}
}

func NewKeywordIndex() *KeywordIndex {
	return &KeywordIndex{index: make(map[string]map[string]struct{})}
}

func tokenize(content string) []string {
	return strings.Fields(strings.ToLower(content))
}

// Add indexes a message's tokens against its id.
func (k *KeywordIndex) Add(id, content string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, tok := range tokenize(content) {
		set, ok := k.index[tok]
		if !ok {
			set = make(map[string]struct{})
			k.index[tok] = set
		}
		set[id] = struct{}{}
	}
}

// Remove deletes id from every token's set. Called when a message leaves
// short_term (enqueued for compression).
func (k *KeywordIndex) Remove(id string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for tok, set := range k.index {
		delete(set, id)
		if len(set) == 0 {
			delete(k.index, tok)
		}
	}
}

// Lookup returns the ids of messages whose content contains any token of
// query.
func (k *KeywordIndex) Lookup(query string) []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, tok := range tokenize(query) {
		for id := range k.index[tok] {
			seen[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out
}

// ActiveShortTerm bundles the active and short_term sequences plus
// short_term's keyword index, and implements the §4.3 promotion
// primitives. A message is considered out of short_term the instant it
// enters the compression queue, so EnqueueForCompression removes it from
// both the sequence and the keyword index synchronously.
type ActiveShortTerm struct {
	Active     *Sequence
	ShortTerm  *Sequence
	ShortIndex *KeywordIndex
}

func NewActiveShortTerm() *ActiveShortTerm {
	return &ActiveShortTerm{
		Active:     NewSequence(),
		ShortTerm:  NewSequence(),
		ShortIndex: NewKeywordIndex(),
	}
}

// PromoteActiveToShort moves up to n oldest active records into short_term
// verbatim, in order.
func (a *ActiveShortTerm) PromoteActiveToShort(n int) []Record {
	moved := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		r, ok := a.Active.PopOldest()
		if !ok {
			break
		}
		a.ShortTerm.Append(r)
		a.ShortIndex.Add(r.ID, r.Content)
		moved = append(moved, r)
	}
	return moved
}

// EnqueueForCompression pulls up to n oldest short_term records out,
// removing them from the sequence and keyword index in the same step so
// they are never visible in short_term after this call returns.
func (a *ActiveShortTerm) EnqueueForCompression(n int) []Record {
	pulled := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		r, ok := a.ShortTerm.PopOldest()
		if !ok {
			break
		}
		a.ShortIndex.Remove(r.ID)
		pulled = append(pulled, r)
	}
	return pulled
}
