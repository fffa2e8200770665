// Package vectorindex stores summary-record embeddings for one session,
// partitioned by layer, and serves cosine-similarity kNN queries.
//
// The index is a search index derived from summary records, which remain
// the source of truth for the medium/long/archived layers; rebuilding the
// index from those records is always possible and never destructive.
package vectorindex

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// Record is one entry in the index: a summary id and its embedding.
type Record struct {
	ID        string
	Embedding []float32
}

// Match is one kNN result.
type Match struct {
	ID         string
	Similarity float64 // cosine similarity, higher is better
}

// Index is a single layer's brute-force vector store. Below ~10k records
// per layer this comfortably meets the 0.9 recall floor at k=10 since it is
// exact, not approximate; a layer expected to exceed that should be backed
// by a different Index implementation behind the same interface.
type Index struct {
	mu   sync.RWMutex
	dim  int
	byID map[string][]float32
	// order preserves insertion order so iterate() is deterministic for a
	// fixed corpus, matching the ordering guarantee in the query contract.
	order []string
}

// New returns an empty index fixed to embeddings of dimension dim. The
// dimension is a session-construction parameter and must not change over
// the session's lifetime.
func New(dim int) *Index {
	return &Index{dim: dim, byID: make(map[string][]float32)}
}

// Upsert inserts or replaces the embedding for id.
func (idx *Index) Upsert(id string, embedding []float32) error {
	if len(embedding) != idx.dim {
		return fmt.Errorf("vectorindex: embedding has dimension %d, index expects %d", len(embedding), idx.dim)
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, exists := idx.byID[id]; !exists {
		idx.order = append(idx.order, id)
	}
	idx.byID[id] = embedding
	return nil
}

// Delete removes id from the index, if present.
func (idx *Index) Delete(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, exists := idx.byID[id]; !exists {
		return
	}
	delete(idx.byID, id)
	for i, existing := range idx.order {
		if existing == id {
			idx.order = append(idx.order[:i], idx.order[i+1:]...)
			break
		}
	}
}

// KNN returns the top-k matches by cosine similarity against query,
// descending by similarity, ties broken by id ascending for determinism.
func (idx *Index) KNN(query []float32, k int) ([]Match, error) {
	if len(query) != idx.dim {
		return nil, fmt.Errorf("vectorindex: query has dimension %d, index expects %d", len(query), idx.dim)
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	matches := make([]Match, 0, len(idx.byID))
	for _, id := range idx.order {
		matches = append(matches, Match{ID: id, Similarity: cosineSimilarity(query, idx.byID[id])})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].ID < matches[j].ID
	})
	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

// Iterate returns every id currently in the index, in insertion order.
func (idx *Index) Iterate() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]string, len(idx.order))
	copy(out, idx.order)
	return out
}

// Len reports the number of records currently indexed.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.byID)
}

// Drop removes every record from the index.
func (idx *Index) Drop() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.byID = make(map[string][]float32)
	idx.order = nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Store owns one Index per layer tier for a single session.
type Store struct {
	mu      sync.RWMutex
	dim     int
	byLayer map[string]*Index
}

// NewStore returns a per-layer vector store for layer names (the caller
// passes string layer keys so this package stays independent of the root
// Layer type).
func NewStore(dim int, layers []string) *Store {
	s := &Store{dim: dim, byLayer: make(map[string]*Index, len(layers))}
	for _, l := range layers {
		s.byLayer[l] = New(dim)
	}
	return s
}

func (s *Store) layer(layer string) *Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byLayer[layer]
	if !ok {
		idx = New(s.dim)
		s.byLayer[layer] = idx
	}
	return idx
}

func (s *Store) Upsert(layer, id string, embedding []float32) error {
	return s.layer(layer).Upsert(id, embedding)
}

func (s *Store) Delete(layer, id string) {
	s.layer(layer).Delete(id)
}

func (s *Store) KNN(layer string, query []float32, k int) ([]Match, error) {
	return s.layer(layer).KNN(query, k)
}

func (s *Store) Iterate(layer string) []string {
	return s.layer(layer).Iterate()
}

func (s *Store) Len(layer string) int {
	return s.layer(layer).Len()
}

func (s *Store) Drop(layer string) {
	s.layer(layer).Drop()
}
