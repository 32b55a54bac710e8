package search

import "sort"

// FusionStrategy selects how vector and BM25 rankings are combined.
type FusionStrategy int

const (
	// FusionRRF is Reciprocal Rank Fusion: score(d) = Σ 1/(C+rank_r(d)).
	FusionRRF FusionStrategy = iota
	// FusionWeightedLinear computes α·vector + (1−α)·bm25 over
	// normalized [0,1] sub-scores.
	FusionWeightedLinear
)

// rrfConstant is the smoothing constant C in the RRF formula.
const rrfConstant = 60.0

// rankedHit is one ranking's view of a document: its position (1-based)
// and raw score.
type rankedHit struct {
	id    string
	rank  int
	score float64
}

func rankOf(results []Result, scoreOf func(Result) float64) []rankedHit {
	type pair struct {
		id    string
		score float64
	}
	pairs := make([]pair, len(results))
	for i, r := range results {
		pairs[i] = pair{id: r.Document.ID, score: scoreOf(r)}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].score != pairs[j].score {
			return pairs[i].score > pairs[j].score
		}
		return pairs[i].id < pairs[j].id
	})
	out := make([]rankedHit, len(pairs))
	for i, p := range pairs {
		out[i] = rankedHit{id: p.id, rank: i + 1, score: p.score}
	}
	return out
}

func normalize(scores map[string]float64) map[string]float64 {
	var max float64
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	out := make(map[string]float64, len(scores))
	if max <= 0 {
		for id := range scores {
			out[id] = 0
		}
		return out
	}
	for id, s := range scores {
		out[id] = s / max
	}
	return out
}

// Fuse combines a vector ranking and a BM25 ranking into a single list of
// Results, applying the given strategy and then lifecycle-state weighting
// as a post-multiplication factor. docs supplies the full Document and
// lifecycle state for every id seen in either ranking.
func Fuse(strategy FusionStrategy, alpha float64, vectorResults, bm25Results []Result, docs map[string]Document, lifecycleOf func(id string) string, k int) []Result {
	switch strategy {
	case FusionWeightedLinear:
		return fuseWeightedLinear(alpha, vectorResults, bm25Results, docs, lifecycleOf, k)
	default:
		return fuseRRF(vectorResults, bm25Results, docs, lifecycleOf, k)
	}
}

func fuseRRF(vectorResults, bm25Results []Result, docs map[string]Document, lifecycleOf func(id string) string, k int) []Result {
	vRanks := rankOf(vectorResults, func(r Result) float64 { return r.Score })
	bRanks := rankOf(bm25Results, func(r Result) float64 { return r.Score })

	vScore := map[string]float64{}
	vRankByID := map[string]int{}
	for _, h := range vRanks {
		vScore[h.id] = h.score
		vRankByID[h.id] = h.rank
	}
	bScore := map[string]float64{}
	bRankByID := map[string]int{}
	for _, h := range bRanks {
		bScore[h.id] = h.score
		bRankByID[h.id] = h.rank
	}

	fused := map[string]float64{}
	for id, rank := range vRankByID {
		fused[id] += 1.0 / (rrfConstant + float64(rank))
	}
	for id, rank := range bRankByID {
		fused[id] += 1.0 / (rrfConstant + float64(rank))
	}

	return assemble(fused, vScore, bScore, docs, lifecycleOf, k)
}

func fuseWeightedLinear(alpha float64, vectorResults, bm25Results []Result, docs map[string]Document, lifecycleOf func(id string) string, k int) []Result {
	vRaw := map[string]float64{}
	for _, r := range vectorResults {
		vRaw[r.Document.ID] = r.Score
	}
	bRaw := map[string]float64{}
	for _, r := range bm25Results {
		bRaw[r.Document.ID] = r.Score
	}
	vNorm := normalize(vRaw)
	bNorm := normalize(bRaw)

	fused := map[string]float64{}
	ids := map[string]struct{}{}
	for id := range vNorm {
		ids[id] = struct{}{}
	}
	for id := range bNorm {
		ids[id] = struct{}{}
	}
	for id := range ids {
		fused[id] = alpha*vNorm[id] + (1-alpha)*bNorm[id]
	}

	return assemble(fused, vRaw, bRaw, docs, lifecycleOf, k)
}

func assemble(fused, vScore, bScore map[string]float64, docs map[string]Document, lifecycleOf func(id string) string, k int) []Result {
	type row struct {
		id    string
		score float64
		v     float64
		b     float64
	}
	rows := make([]row, 0, len(fused))
	for id, score := range fused {
		weight := lifecycleWeight(lifecycleOf(id))
		rows = append(rows, row{id: id, score: score * weight, v: vScore[id], b: bScore[id]})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].score != rows[j].score {
			return rows[i].score > rows[j].score
		}
		if rows[i].v != rows[j].v {
			return rows[i].v > rows[j].v
		}
		return rows[i].id < rows[j].id
	})
	if k > 0 && len(rows) > k {
		rows = rows[:k]
	}
	out := make([]Result, 0, len(rows))
	for _, r := range rows {
		out = append(out, Result{
			Document:    docs[r.id],
			Score:       r.score,
			VectorScore: r.v,
			BM25Score:   r.b,
		})
	}
	return out
}

func lifecycleWeight(state string) float64 {
	switch state {
	case "active":
		return 1.0
	case "recent":
		return 0.7
	case "archived":
		return 0.3
	case "stale":
		return 0.1
	default:
		return 1.0
	}
}
