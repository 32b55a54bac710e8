// Package retriever implements hybrid search: a vector k-NN sub-query and
// a BM25 lexical sub-query issued in parallel, fused by reciprocal rank
// fusion (or a weighted linear combination), then damped by lifecycle
// state.
package retriever

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/codemem/engine/domain/search"
	"github.com/codemem/engine/errs"
)

// defaultSubQueryCap bounds k' = 2k for the two sub-queries.
const defaultSubQueryCap = 100

// Retriever fans a query out to the vector store and the BM25 index and
// fuses the two rankings.
type Retriever struct {
	embedder    search.Embedder
	vectors     search.VectorStore
	lexical     search.BM25Store
	collection  string
	subQueryCap int
}

// New builds a Retriever over the given collaborators.
func New(embedder search.Embedder, vectors search.VectorStore, lexical search.BM25Store, collection string) *Retriever {
	return &Retriever{
		embedder:    embedder,
		vectors:     vectors,
		lexical:     lexical,
		collection:  collection,
		subQueryCap: defaultSubQueryCap,
	}
}

// Options selects the fusion strategy for one call.
type Options struct {
	Strategy search.FusionStrategy
	// Alpha is the vector weight for FusionWeightedLinear; ignored for
	// RRF.
	Alpha float64
}

// Option mutates Options.
type Option func(*Options)

// WithWeightedLinear selects the α·vector + (1−α)·bm25 combination.
func WithWeightedLinear(alpha float64) Option {
	return func(o *Options) {
		o.Strategy = search.FusionWeightedLinear
		o.Alpha = alpha
	}
}

// Search runs a hybrid query: embeds the query text, issues the vector and
// BM25 sub-queries in parallel under the same filter, fuses, and returns
// the top k results with component sub-scores. A filter that matches
// nothing returns an empty result set without error.
func (r *Retriever) Search(ctx context.Context, queryText string, filter search.Filter, k int, opts ...Option) ([]search.Result, error) {
	validated, err := filter.Validated()
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		return []search.Result{}, nil
	}
	options := Options{Strategy: search.FusionRRF, Alpha: 0.5}
	for _, opt := range opts {
		opt(&options)
	}

	vectors, err := r.embedder.Embed(ctx, []string{queryText})
	if err != nil {
		return nil, err
	}
	queryVector := vectors[0]

	kPrime := 2 * k
	if kPrime > r.subQueryCap {
		kPrime = r.subQueryCap
	}

	var vectorResults, bm25Results []search.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		results, err := r.vectors.Search(gctx, search.Query{
			Collection: r.collection,
			Vector:     queryVector,
			Filter:     validated,
			K:          kPrime,
		})
		if err != nil {
			return err
		}
		vectorResults = results
		return nil
	})
	g.Go(func() error {
		results, err := r.lexicalSearch(gctx, queryText, validated, kPrime)
		if err != nil {
			return err
		}
		bm25Results = results
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	docs := make(map[string]search.Document, len(vectorResults)+len(bm25Results))
	for _, res := range vectorResults {
		docs[res.Document.ID] = res.Document
	}
	for _, res := range bm25Results {
		docs[res.Document.ID] = res.Document
	}
	lifecycleOf := func(id string) string { return docs[id].LifecycleState }

	return search.Fuse(options.Strategy, options.Alpha, vectorResults, bm25Results, docs, lifecycleOf, k), nil
}

// lexicalSearch runs the BM25 sub-query and applies the structured filter
// to its hits. The inverted index carries no payloads, so each hit's
// document is fetched from the vector store and checked against the
// filter; hits whose documents have since been deleted are dropped.
func (r *Retriever) lexicalSearch(ctx context.Context, queryText string, filter search.Filter, k int) ([]search.Result, error) {
	scored, err := r.lexical.Query(ctx, []string{queryText}, k)
	if err != nil {
		return nil, err
	}
	results := make([]search.Result, 0, len(scored))
	for _, hit := range scored {
		doc, err := r.vectors.Retrieve(ctx, r.collection, hit.ID)
		if err != nil {
			if errs.Is(err, errs.KindNotFound) {
				continue
			}
			return nil, err
		}
		if !filter.Matches(doc) {
			continue
		}
		results = append(results, search.Result{Document: doc, Score: hit.Score, BM25Score: hit.Score})
	}
	return results, nil
}
