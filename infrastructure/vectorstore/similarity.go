package vectorstore

import (
	"math"
	"sort"

	"github.com/codemem/engine/domain/search"
)

// cosineSimilarity computes cosine similarity between two equal-length
// vectors. Returns 0 for mismatched lengths or zero-magnitude vectors
// rather than erroring, since this is a scoring primitive, not a
// validated boundary.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// topKByCosine ranks docs by cosine similarity to query, descending, with
// ties broken by id ascending.
func topKByCosine(query []float32, docs []search.Document, k int) []search.Result {
	type scored struct {
		doc   search.Document
		score float64
	}
	rows := make([]scored, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, scored{doc: d, score: cosineSimilarity(query, d.Vector)})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].score != rows[j].score {
			return rows[i].score > rows[j].score
		}
		return rows[i].doc.ID < rows[j].doc.ID
	})
	if k > 0 && len(rows) > k {
		rows = rows[:k]
	}
	out := make([]search.Result, 0, len(rows))
	for _, r := range rows {
		out = append(out, search.Result{Document: r.doc, Score: r.score, VectorScore: r.score})
	}
	return out
}
