package embedding_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codemem/engine/infrastructure/embedding"
)

func TestCache_PartialHit_OnlyBatchesMisses(t *testing.T) {
	var calls [][]string
	embedFn := func(_ context.Context, texts []string) ([][]float32, error) {
		calls = append(calls, texts)
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{float32(len(texts[i]))}
		}
		return out, nil
	}

	c, err := embedding.New(context.Background(), 16, "test-model", 1, embedFn, nil)
	require.NoError(t, err)

	first, err := c.Embed(context.Background(), []string{"hello", "world"})
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := c.Embed(context.Background(), []string{"hello", "goodbye"})
	require.NoError(t, err)
	require.Len(t, second, 2)

	assert.Equal(t, first[0], second[0], "cached entry for 'hello' must be reused")
	require.Len(t, calls, 2, "second call should only batch the miss")
	assert.Equal(t, []string{"goodbye"}, calls[1])
}

func TestCache_EmptyInput_SkipsModel(t *testing.T) {
	called := false
	embedFn := func(_ context.Context, texts []string) ([][]float32, error) {
		called = true
		return nil, nil
	}
	c, err := embedding.New(context.Background(), 4, "m", 1, embedFn, nil)
	require.NoError(t, err)

	out, err := c.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.False(t, called, "embed_batch([]) must not call the model")
}

func TestCache_Invalidate_ForcesRegeneration(t *testing.T) {
	calls := 0
	embedFn := func(_ context.Context, texts []string) ([][]float32, error) {
		calls++
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{float32(calls)}
		}
		return out, nil
	}
	c, err := embedding.New(context.Background(), 4, "m", 1, embedFn, nil)
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	c.Invalidate("x")
	out, err := c.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, float32(2), out[0][0], "invalidated entry must be regenerated, not served stale")
}

func TestCache_CaseAndWhitespaceAreSignificant(t *testing.T) {
	embedFn := func(_ context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{float32(len(texts[i]))}
		}
		return out, nil
	}
	c, err := embedding.New(context.Background(), 4, "m", 1, embedFn, nil)
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), []string{"Hello"})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
	_, err = c.Embed(context.Background(), []string{"hello"})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len(), "differently-cased text must be a distinct cache entry")
}
