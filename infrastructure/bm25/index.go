// Package bm25 implements the in-memory inverted index used for the
// lexical half of hybrid search. Unlike a database-engine-backed full-text
// index, the whole structure lives in process memory, is guarded by a
// single sync.RWMutex, and is rebuilt from the vector store's textual
// payloads on process start. The lock does not prefer readers: a writer
// waiting for it blocks new readers until the write completes.
package bm25

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/codemem/engine/domain/search"
)

// Config carries the BM25 tuning parameters.
type Config struct {
	// K1 controls term-frequency saturation.
	K1 float64
	// B controls document-length normalization.
	B float64
	// RecomputeEvery triggers a from-scratch statistics recompute after
	// this many modifications, guarding against incremental drift. Zero
	// disables the recompute.
	RecomputeEvery int
}

// DefaultConfig returns the standard parameter set.
func DefaultConfig() Config {
	return Config{K1: 1.5, B: 0.75, RecomputeEvery: 1000}
}

// Index is an in-memory inverted index with incremental document-frequency
// and average-length maintenance.
type Index struct {
	cfg Config

	mu        sync.RWMutex
	docs      map[string]map[string]int      // id -> term -> term frequency
	docLen    map[string]int                 // id -> token count
	postings  map[string]map[string]struct{} // term -> set of ids
	totalLen  int
	modsSince int
}

// New returns an empty Index.
func New(cfg Config) *Index {
	if cfg.K1 == 0 {
		cfg.K1 = 1.5
	}
	if cfg.B == 0 {
		cfg.B = 0.75
	}
	return &Index{
		cfg:      cfg,
		docs:     make(map[string]map[string]int),
		docLen:   make(map[string]int),
		postings: make(map[string]map[string]struct{}),
	}
}

// Tokenize lowercases, splits on non-alphanumeric runes, and discards
// single-character tokens. No stemming, no stopword filtering beyond the
// length rule.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			out = append(out, f)
		}
	}
	return out
}

// Add indexes text under id, replacing any prior content for that id.
func (x *Index) Add(ctx context.Context, id, text string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.removeLocked(id)
	terms := Tokenize(text)
	tf := make(map[string]int, len(terms))
	for _, t := range terms {
		tf[t]++
	}
	x.docs[id] = tf
	x.docLen[id] = len(terms)
	x.totalLen += len(terms)
	for t := range tf {
		if x.postings[t] == nil {
			x.postings[t] = make(map[string]struct{})
		}
		x.postings[t][id] = struct{}{}
	}
	x.noteModificationLocked()
	return nil
}

// Remove drops id from the index. Removing an unknown id is a no-op.
func (x *Index) Remove(ctx context.Context, id string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.removeLocked(id)
	x.noteModificationLocked()
	return nil
}

// Update replaces the text indexed under id.
func (x *Index) Update(ctx context.Context, id, text string) error {
	return x.Add(ctx, id, text)
}

func (x *Index) removeLocked(id string) {
	tf, ok := x.docs[id]
	if !ok {
		return
	}
	for t := range tf {
		delete(x.postings[t], id)
		if len(x.postings[t]) == 0 {
			delete(x.postings, t)
		}
	}
	x.totalLen -= x.docLen[id]
	delete(x.docs, id)
	delete(x.docLen, id)
}

func (x *Index) noteModificationLocked() {
	if x.cfg.RecomputeEvery <= 0 {
		return
	}
	x.modsSince++
	if x.modsSince < x.cfg.RecomputeEvery {
		return
	}
	x.modsSince = 0
	// Rebuild postings and length statistics from the documents map, the
	// authoritative copy, dropping any drift the incremental bookkeeping
	// may have accumulated.
	x.postings = make(map[string]map[string]struct{}, len(x.postings))
	x.totalLen = 0
	for id, tf := range x.docs {
		length := 0
		for t, n := range tf {
			length += n
			if x.postings[t] == nil {
				x.postings[t] = make(map[string]struct{})
			}
			x.postings[t][id] = struct{}{}
		}
		x.docLen[id] = length
		x.totalLen += length
	}
}

// Query scores every document containing at least one query term and
// returns the top k as (id, score) pairs, score descending, ties broken by
// id. An empty index returns an empty result set, not an error.
func (x *Index) Query(ctx context.Context, terms []string, k int) ([]search.ScoredID, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	n := len(x.docs)
	if n == 0 || len(terms) == 0 || k == 0 {
		return []search.ScoredID{}, nil
	}
	avgLen := float64(x.totalLen) / float64(n)
	if avgLen == 0 {
		avgLen = 1
	}

	scores := make(map[string]float64)
	for _, raw := range terms {
		normalized := Tokenize(raw)
		for _, term := range normalized {
			ids := x.postings[term]
			if len(ids) == 0 {
				continue
			}
			idf := idf(n, len(ids))
			for id := range ids {
				tf := float64(x.docs[id][term])
				dl := float64(x.docLen[id])
				denom := tf + x.cfg.K1*(1-x.cfg.B+x.cfg.B*dl/avgLen)
				scores[id] += idf * (tf * (x.cfg.K1 + 1)) / denom
			}
		}
	}

	out := make([]search.ScoredID, 0, len(scores))
	for id, s := range scores {
		out = append(out, search.ScoredID{ID: id, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Len reports the number of indexed documents.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docs)
}

// idf is the standard BM25 inverse document frequency with the +1
// smoothing that keeps it positive for very common terms.
func idf(totalDocs, docFreq int) float64 {
	return math.Log((float64(totalDocs)-float64(docFreq)+0.5)/(float64(docFreq)+0.5) + 1)
}
