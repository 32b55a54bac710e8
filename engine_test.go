package engine_test

import (
	"context"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codemem/engine"
	"github.com/codemem/engine/domain/memory"
	"github.com/codemem/engine/domain/search"
	"github.com/codemem/engine/errs"
)

const embedDim = 64

// hashEmbed is a deterministic bag-of-words embedding: good enough for
// ranking assertions without a model.
func hashEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec := make([]float32, embedDim)
		tokens := strings.FieldsFunc(strings.ToLower(t), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, tok := range tokens {
			h := fnv.New32a()
			_, _ = h.Write([]byte(tok))
			vec[h.Sum32()%embedDim]++
		}
		out[i] = vec
	}
	return out, nil
}

func newEngine(t *testing.T, opts ...engine.Option) *engine.Engine {
	t.Helper()
	base := []engine.Option{
		engine.WithSQLite(filepath.Join(t.TempDir(), "data.db")),
		engine.WithEmbedFunc(hashEmbed, "hash-embed", embedDim),
	}
	eng, err := engine.New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// qnameFor mirrors how qualified names are derived from file paths.
func qnameFor(path, name string) string {
	p := strings.TrimSuffix(path, filepath.Ext(path))
	p = strings.Trim(filepath.ToSlash(p), "/")
	return strings.ReplaceAll(p, "/", ".") + "." + name
}

func containsID(results []search.Result, id string) bool {
	for _, r := range results {
		if r.Document.ID == id {
			return true
		}
	}
	return false
}

func TestStoreAndRetrieve(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	m, err := eng.Store(ctx, engine.StoreParams{
		Project:    "demo",
		Content:    "I prefer async/await in Python",
		Category:   memory.CategoryPreference,
		Importance: 0.8,
	})
	require.NoError(t, err)
	require.NotEmpty(t, m.ID())

	got, err := eng.RetrieveByID(ctx, m.ID())
	require.NoError(t, err)
	assert.Equal(t, "I prefer async/await in Python", got.Content())
	assert.Equal(t, memory.CategoryPreference, got.Category())
	assert.InDelta(t, 0.8, got.Importance(), 1e-9)

	results, err := eng.Retrieve(ctx, "async preferences", search.New(search.WithProject("demo")), 5)
	require.NoError(t, err)
	require.True(t, containsID(results, m.ID()))
	assert.Greater(t, results[0].Score, 0.0)
}

func TestStore_InvalidInputsRejected(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	_, err := eng.Store(ctx, engine.StoreParams{Project: "demo", Content: "x", Category: "nonsense", Importance: 0.5})
	assert.True(t, errs.Is(err, errs.KindValidation))

	_, err = eng.Store(ctx, engine.StoreParams{Project: "demo", Content: "x", Category: memory.CategoryFact, Importance: 1.5})
	assert.True(t, errs.Is(err, errs.KindValidation))
}

func TestUpdate_ContentChangeRegeneratesEmbedding(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	x, err := eng.Store(ctx, engine.StoreParams{
		Project: "demo", Content: "I prefer async/await in Python",
		Category: memory.CategoryPreference, Importance: 0.8,
	})
	require.NoError(t, err)
	y, err := eng.Store(ctx, engine.StoreParams{
		Project: "demo", Content: "Use async functions for IO heavy work",
		Category: memory.CategoryFact, Importance: 0.5,
	})
	require.NoError(t, err)

	newContent := "I prefer threading in Python"
	updated, err := eng.Update(ctx, x.ID(), memory.Delta{Content: &newContent})
	require.NoError(t, err)
	assert.Equal(t, newContent, updated.Content())
	assert.True(t, !updated.UpdatedAt().Before(x.CreatedAt()))

	results, err := eng.Retrieve(ctx, "async preferences", search.New(search.WithProject("demo")), 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, y.ID(), results[0].Document.ID, "updated memory no longer wins the async query")

	results, err = eng.Retrieve(ctx, "threading preferences", search.New(search.WithProject("demo")), 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, x.ID(), results[0].Document.ID)
}

func TestDelete_PurgesFromSearch(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	m, err := eng.Store(ctx, engine.StoreParams{
		Project: "demo", Content: "I prefer async/await in Python",
		Category: memory.CategoryPreference, Importance: 0.8,
	})
	require.NoError(t, err)

	require.NoError(t, eng.Delete(ctx, m.ID()))
	require.NoError(t, eng.Delete(ctx, m.ID()), "second delete is ok")

	results, err := eng.Retrieve(ctx, "async preferences", search.New(search.WithProject("demo")), 5)
	require.NoError(t, err)
	assert.False(t, containsID(results, m.ID()))

	_, err = eng.RetrieveByID(ctx, m.ID())
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestDeleteByFilter_MaxZeroDeletesNothing(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	_, err := eng.Store(ctx, engine.StoreParams{
		Project: "demo", Content: "anything", Category: memory.CategoryFact, Importance: 0.5,
	})
	require.NoError(t, err)

	count, err := eng.DeleteByFilter(ctx, search.New(search.WithProject("demo")), 0)
	require.NoError(t, err)
	assert.Zero(t, count)

	memories, _, err := eng.List(ctx, search.New(search.WithProject("demo")), "", 10)
	require.NoError(t, err)
	assert.Len(t, memories, 1)
}

func TestRetrieve_KZeroReturnsEmpty(t *testing.T) {
	eng := newEngine(t)
	results, err := eng.Retrieve(context.Background(), "anything", search.New(search.WithProject("demo")), 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestReadOnlyMode_RejectsWritesBeforeAnyWork(t *testing.T) {
	var embedCalls atomic.Int64
	countingEmbed := func(ctx context.Context, texts []string) ([][]float32, error) {
		embedCalls.Add(1)
		return hashEmbed(ctx, texts)
	}
	eng, err := engine.New(
		engine.WithSQLite(filepath.Join(t.TempDir(), "data.db")),
		engine.WithEmbedFunc(countingEmbed, "hash-embed", embedDim),
		engine.WithReadOnly(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	_, err = eng.Store(context.Background(), engine.StoreParams{
		Project: "demo", Content: "x", Category: memory.CategoryFact, Importance: 0.5,
	})
	assert.True(t, errs.Is(err, errs.KindReadOnly))
	assert.Zero(t, embedCalls.Load(), "rejected before acquiring any resource")

	err = eng.Delete(context.Background(), "some-id")
	assert.True(t, errs.Is(err, errs.KindReadOnly))
}

func TestIndexFile_IdempotentOnUnchangedContent(t *testing.T) {
	var embedCalls atomic.Int64
	countingEmbed := func(ctx context.Context, texts []string) ([][]float32, error) {
		embedCalls.Add(1)
		return hashEmbed(ctx, texts)
	}
	eng, err := engine.New(
		engine.WithSQLite(filepath.Join(t.TempDir(), "data.db")),
		engine.WithEmbedFunc(countingEmbed, "hash-embed", embedDim),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	ctx := context.Background()

	path := writeSource(t, t.TempDir(), "a.py", "def greet():\n    return 1\n")

	first, err := eng.IndexFile(ctx, "demo", path)
	require.NoError(t, err)
	assert.False(t, first.Skipped)
	assert.Equal(t, 1, first.UnitCount)
	callsAfterFirst := embedCalls.Load()

	second, err := eng.IndexFile(ctx, "demo", path)
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, callsAfterFirst, embedCalls.Load(), "no embedding work on unchanged content")
}

func TestStructural_FindCallers(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	src := `def authenticate():
    return True

def login_user():
    return authenticate()

def api_middleware():
    return authenticate()
`
	path := writeSource(t, t.TempDir(), "auth.py", src)
	_, err := eng.IndexFile(ctx, "demo", path)
	require.NoError(t, err)

	callers, err := eng.FindCallers(ctx, "demo", qnameFor(path, "authenticate"), 1, 50)
	require.NoError(t, err)

	require.Len(t, callers, 2)
	names := []string{callers[0].QualifiedName, callers[1].QualifiedName}
	assert.Contains(t, names, qnameFor(path, "login_user"))
	assert.Contains(t, names, qnameFor(path, "api_middleware"))
	assert.Equal(t, 1, callers[0].Distance)
	assert.Equal(t, 1, callers[1].Distance)
}

func TestStructural_CallChain(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	src := `def db_query():
    return []

def get_user():
    return db_query()

def process():
    return get_user()

def main():
    return process()
`
	path := writeSource(t, t.TempDir(), "app.py", src)
	_, err := eng.IndexFile(ctx, "demo", path)
	require.NoError(t, err)

	from := qnameFor(path, "main")
	to := qnameFor(path, "db_query")

	paths, err := eng.GetCallChain(ctx, "demo", from, to, 5, 10)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, []string{
		from, qnameFor(path, "process"), qnameFor(path, "get_user"), to,
	}, []string(paths[0]))

	paths, err = eng.GetCallChain(ctx, "demo", from, to, 5, 2)
	require.NoError(t, err)
	assert.Empty(t, paths, "max_depth prunes longer chains")
}

func TestProjectStatsAndHealth(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	_, err := eng.Store(ctx, engine.StoreParams{
		Project: "demo", Content: "a fact", Category: memory.CategoryFact, Importance: 0.4,
	})
	require.NoError(t, err)
	_, err = eng.Retrieve(ctx, "fact", search.New(search.WithProject("demo")), 3)
	require.NoError(t, err)

	stats, err := eng.ProjectStats(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalMemories)
	assert.Equal(t, 1, stats.ByCategory["fact"])
	assert.Equal(t, 1, stats.ByLifecycle["active"])
	assert.Equal(t, int64(1), stats.SearchCount)
	assert.GreaterOrEqual(t, stats.UpdateCount, int64(1))

	health := eng.Health(ctx)
	assert.True(t, health.Healthy)
	assert.True(t, health.Pool.OK)
	assert.True(t, health.Storage.OK)

	metrics := eng.PoolMetrics()
	assert.Greater(t, metrics.TotalAcquires, int64(0))
}

func TestRetrieve_RequiresProjectOrConsent(t *testing.T) {
	eng := newEngine(t)
	_, err := eng.Retrieve(context.Background(), "anything", search.New(), 5)
	assert.True(t, errs.Is(err, errs.KindValidation))
}

func TestLexicalIndexRebuiltOnRestart(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "data.db")

	eng, err := engine.New(
		engine.WithSQLite(dbPath),
		engine.WithEmbedFunc(hashEmbed, "hash-embed", embedDim),
	)
	require.NoError(t, err)
	ctx := context.Background()

	m, err := eng.Store(ctx, engine.StoreParams{
		Project: "demo", Content: "rebuild survives restart",
		Category: memory.CategoryFact, Importance: 0.5,
	})
	require.NoError(t, err)
	require.NoError(t, eng.Close())

	reopened, err := engine.New(
		engine.WithSQLite(dbPath),
		engine.WithEmbedFunc(hashEmbed, "hash-embed", embedDim),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	results, err := reopened.Retrieve(ctx, "rebuild restart", search.New(search.WithProject("demo")), 5)
	require.NoError(t, err)
	assert.True(t, containsID(results, m.ID()))
}
