package search

import "context"

// VectorStore operates on a single named collection parameterized by the
// vector dimension D.
type VectorStore interface {
	// Upsert inserts or replaces points by id. Atomic per-batch from the
	// caller's view; on partial failure the caller still receives the ids
	// that were successfully written.
	Upsert(ctx context.Context, request IndexRequest) ([]string, error)

	// Retrieve fetches a single point by id; fails with errs.KindNotFound
	// if absent.
	Retrieve(ctx context.Context, collection, id string) (Document, error)

	// Search returns the top-k nearest points subject to filter, each with
	// a similarity score. Stable ordering by score desc, ties broken by id
	// lexicographically.
	Search(ctx context.Context, query Query) ([]Result, error)

	// Update merges payload fields; if vector is non-nil, replaces it
	// atomically.
	Update(ctx context.Context, collection, id string, payload map[string]any, vector []float32) error

	// Delete removes a single point; idempotent.
	Delete(ctx context.Context, request DeleteRequest) error

	// DeleteByFilter deletes at most max points matching filter and
	// returns the count deleted. Implemented as a filtered delete, not
	// scroll-then-delete, to avoid TOCTOU races.
	DeleteByFilter(ctx context.Context, collection string, filter Filter, max int) (int, error)

	// Scroll returns a bounded page of points matching filter.
	Scroll(ctx context.Context, collection string, filter Filter, cursor Cursor, limit int) (ScrollPage, error)
}

// BM25Store is the in-memory inverted index contract.
type BM25Store interface {
	Add(ctx context.Context, id, text string) error
	Remove(ctx context.Context, id string) error
	Update(ctx context.Context, id, text string) error
	Query(ctx context.Context, terms []string, k int) ([]ScoredID, error)
}

// ScoredID pairs a document id with its BM25 score.
type ScoredID struct {
	ID    string
	Score float64
}

// Embedder is the content-addressed embedding collaborator. It
// wraps a batched embed_batch function with an LRU cache.
type Embedder interface {
	// Embed returns one vector per text, order preserved. Cache hits
	// bypass the underlying model; on partial hit only misses are
	// batched.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Invalidate drops a cached entry ahead of an update that changes
	// content, per the invalidation contract for callers.
	Invalidate(text string)

	// Dimension returns D for the embedder's configured model.
	Dimension() int

	// Model returns the embedder's model identifier.
	Model() string
}

// EmbedBatchFunc is the external embedding model collaborator consumed by
// Embedder implementations: embed_batch(texts) -> vectors.
type EmbedBatchFunc func(ctx context.Context, texts []string) ([][]float32, error)
