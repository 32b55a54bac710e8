package search_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codemem/engine/domain/search"
)

func docMap(ids ...string) map[string]search.Document {
	out := make(map[string]search.Document, len(ids))
	for _, id := range ids {
		out[id] = search.Document{ID: id}
	}
	return out
}

func lifecycleAllActive(string) string { return "active" }

func TestFuse_RRF_PrefersItemsRankedHighInBoth(t *testing.T) {
	vector := []search.Result{
		{Document: search.Document{ID: "a"}, Score: 0.9},
		{Document: search.Document{ID: "b"}, Score: 0.8},
		{Document: search.Document{ID: "c"}, Score: 0.7},
	}
	bm25 := []search.Result{
		{Document: search.Document{ID: "b"}, Score: 5},
		{Document: search.Document{ID: "a"}, Score: 3},
		{Document: search.Document{ID: "d"}, Score: 1},
	}

	results := search.Fuse(search.FusionRRF, 0, vector, bm25, docMap("a", "b", "c", "d"), lifecycleAllActive, 10)

	require.NotEmpty(t, results)
	assert.Equal(t, "a", results[0].Document.ID, "a and b tie on RRF (1st and 2nd each); a wins on its higher vector score")
	assert.Equal(t, "b", results[1].Document.ID)
}

func TestFuse_RRF_RespectsK(t *testing.T) {
	vector := []search.Result{
		{Document: search.Document{ID: "a"}, Score: 0.9},
		{Document: search.Document{ID: "b"}, Score: 0.8},
	}
	results := search.Fuse(search.FusionRRF, 0, vector, nil, docMap("a", "b"), lifecycleAllActive, 1)
	assert.Len(t, results, 1)
}

func TestFuse_WeightedLinear_NormalizesBeforeCombining(t *testing.T) {
	vector := []search.Result{{Document: search.Document{ID: "a"}, Score: 0.5}}
	bm25 := []search.Result{{Document: search.Document{ID: "a"}, Score: 10}}

	results := search.Fuse(search.FusionWeightedLinear, 0.5, vector, bm25, docMap("a"), lifecycleAllActive, 10)

	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9, "both sub-scores normalize to 1.0 for the lone document")
}

func TestFuse_LifecycleWeighting_DampsArchivedItems(t *testing.T) {
	vector := []search.Result{
		{Document: search.Document{ID: "active-doc"}, Score: 0.6},
		{Document: search.Document{ID: "archived-doc"}, Score: 0.6},
	}
	lifecycle := func(id string) string {
		if id == "archived-doc" {
			return "archived"
		}
		return "active"
	}

	results := search.Fuse(search.FusionRRF, 0, vector, nil, docMap("active-doc", "archived-doc"), lifecycle, 10)

	require.Len(t, results, 2)
	assert.Equal(t, "active-doc", results[0].Document.ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestFuse_EmptyRankings_ReturnsEmpty(t *testing.T) {
	results := search.Fuse(search.FusionRRF, 0, nil, nil, nil, lifecycleAllActive, 10)
	assert.Empty(t, results)
}
