package indexer_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codemem/engine/domain/callgraph"
	"github.com/codemem/engine/domain/codeunit"
	"github.com/codemem/engine/domain/parser"
	"github.com/codemem/engine/domain/project"
	"github.com/codemem/engine/domain/search"
	"github.com/codemem/engine/infrastructure/bm25"
	"github.com/codemem/engine/infrastructure/indexer"
	"github.com/codemem/engine/infrastructure/parsing"
	"github.com/codemem/engine/infrastructure/vectorstore"
)

// lineUnitAnalyzer treats every non-empty line as one function unit named
// after its first word, except "a->b" lines, which become call edges
// instead of units.
type lineUnitAnalyzer struct{}

func (lineUnitAnalyzer) Language() parser.Language { return parser.LangPython }

func (lineUnitAnalyzer) Parse(ctx context.Context, proj, path string, content []byte) (parser.ParseResult, error) {
	result := parser.ParseResult{Language: parser.LangPython}
	for i, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if caller, callee, ok := strings.Cut(line, "->"); ok {
			result.Calls = append(result.Calls, callgraph.CallSite{
				Project: proj, Caller: caller, Callee: callee,
				CallerFile: path, CallerLine: i + 1, Kind: callgraph.CallDirect,
			})
			continue
		}
		name := strings.Fields(line)[0]
		result.Units = append(result.Units, codeunit.CodeUnit{
			Project: proj, FilePath: path, Language: "python",
			Kind: codeunit.KindFunction, QualifiedName: name, Name: name,
			StartLine: i + 1, EndLine: i + 1, Snippet: line,
		})
	}
	return result, nil
}

type countingEmbedder struct {
	batches int
	texts   int
}

func (e *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	e.batches++
	e.texts += len(texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (e *countingEmbedder) Invalidate(string) {}
func (e *countingEmbedder) Dimension() int { return 3 }
func (e *countingEmbedder) Model() string { return "stub" }

type fakeGraph struct {
	nodes map[string][]callgraph.FunctionNode
	calls map[string][]callgraph.CallSite
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{nodes: map[string][]callgraph.FunctionNode{}, calls: map[string][]callgraph.CallSite{}}
}

func (g *fakeGraph) UpsertNodes(ctx context.Context, proj string, nodes []callgraph.FunctionNode) error {
	g.nodes[proj] = append(g.nodes[proj], nodes...)
	return nil
}

func (g *fakeGraph) UpsertCalls(ctx context.Context, proj string, calls []callgraph.CallSite) error {
	g.calls[proj] = append(g.calls[proj], calls...)
	return nil
}

func (g *fakeGraph) UpsertImplementations(ctx context.Context, proj string, impls []callgraph.InterfaceImplementation) error {
	return nil
}

func (g *fakeGraph) RemoveForFile(ctx context.Context, proj, filePath string) error {
	var keptNodes []callgraph.FunctionNode
	for _, n := range g.nodes[proj] {
		if n.FilePath != filePath {
			keptNodes = append(keptNodes, n)
		}
	}
	g.nodes[proj] = keptNodes
	var keptCalls []callgraph.CallSite
	for _, c := range g.calls[proj] {
		if c.CallerFile != filePath {
			keptCalls = append(keptCalls, c)
		}
	}
	g.calls[proj] = keptCalls
	return nil
}

func (g *fakeGraph) DeleteProject(ctx context.Context, proj string) error {
	delete(g.nodes, proj)
	delete(g.calls, proj)
	return nil
}

type fakeFileTable struct {
	entries map[string]project.FileEntry
}

func newFakeFileTable() *fakeFileTable {
	return &fakeFileTable{entries: map[string]project.FileEntry{}}
}

func (f *fakeFileTable) key(proj, path string) string { return proj + "|" + path }

func (f *fakeFileTable) Get(ctx context.Context, proj, path string) (project.FileEntry, bool, error) {
	e, ok := f.entries[f.key(proj, path)]
	return e, ok, nil
}

func (f *fakeFileTable) Put(ctx context.Context, entry project.FileEntry) error {
	f.entries[f.key(entry.Project, entry.Path)] = entry
	return nil
}

func (f *fakeFileTable) Remove(ctx context.Context, proj, path string) error {
	delete(f.entries, f.key(proj, path))
	return nil
}

func (f *fakeFileTable) ListProject(ctx context.Context, proj string) ([]project.FileEntry, error) {
	var out []project.FileEntry
	for _, e := range f.entries {
		if e.Project == proj {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeFileTable) DeleteProject(ctx context.Context, proj string) (int64, error) {
	var n int64
	for k, e := range f.entries {
		if e.Project == proj {
			delete(f.entries, k)
			n++
		}
	}
	return n, nil
}

type harness struct {
	ix       *indexer.Indexer
	store    *vectorstore.Memory
	lexical  *bm25.Index
	graph    *fakeGraph
	files    *fakeFileTable
	embedder *countingEmbedder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	registry := parsing.New(0)
	registry.Register(".py", lineUnitAnalyzer{})
	h := &harness{
		store:    vectorstore.NewMemory(),
		lexical:  bm25.New(bm25.DefaultConfig()),
		graph:    newFakeGraph(),
		files:    newFakeFileTable(),
		embedder: &countingEmbedder{},
	}
	h.ix = indexer.New(registry, h.embedder, h.store, h.graph, h.lexical, h.files,
		indexer.Config{Collection: "memories"})
	return h
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func unitsForFile(t *testing.T, store *vectorstore.Memory, proj, path string) []search.Document {
	t.Helper()
	filter := search.New(search.WithProject(proj))
	filter.Predicates = append(filter.Predicates, search.Predicate{Field: "file_path", Op: search.OpEqual, Value: path})
	page, err := store.Scroll(context.Background(), "memories", filter, "", 1000)
	require.NoError(t, err)
	return page.Documents
}

func TestIndexFile_ProducesUnitsAndGraphEntries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "a.py", "authenticate user\nlogin_user checks\nlogin_user->authenticate\n")

	outcome, err := h.ix.IndexFile(ctx, "demo", path)
	require.NoError(t, err)

	assert.Equal(t, 2, outcome.UnitCount)
	assert.Len(t, unitsForFile(t, h.store, "demo", path), 2)
	assert.Len(t, h.graph.nodes["demo"], 2)
	assert.Len(t, h.graph.calls["demo"], 1)
	assert.Equal(t, 2, h.lexical.Len())
	assert.Equal(t, 1, h.embedder.batches, "all snippets embed in a single batch")
}

func TestIndexFile_UnchangedContentIsNoOp(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "a.py", "authenticate user\n")

	_, err := h.ix.IndexFile(ctx, "demo", path)
	require.NoError(t, err)
	batchesAfterFirst := h.embedder.batches

	outcome, err := h.ix.IndexFile(ctx, "demo", path)
	require.NoError(t, err)

	assert.True(t, outcome.Skipped)
	assert.Equal(t, batchesAfterFirst, h.embedder.batches, "no embedding calls on unchanged content")
	assert.Len(t, unitsForFile(t, h.store, "demo", path), 1)
}

func TestIndexFile_ForceBypassesHashGate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "a.py", "authenticate user\n")

	_, err := h.ix.IndexFile(ctx, "demo", path)
	require.NoError(t, err)

	outcome, err := h.ix.ReindexFile(ctx, "demo", path, true)
	require.NoError(t, err)
	assert.False(t, outcome.Skipped)
}

func TestIndexFile_ChangedContentLeavesNoTraceOfOld(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "a.py", "old_function body\nold_function->helper\n")

	_, err := h.ix.IndexFile(ctx, "demo", path)
	require.NoError(t, err)

	writeFile(t, dir, "a.py", "new_function body\n")
	_, err = h.ix.IndexFile(ctx, "demo", path)
	require.NoError(t, err)

	docs := unitsForFile(t, h.store, "demo", path)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Content, "new_function")

	// "old" is the one token unique to the old content: the tokenizer
	// splits "old_function" into "old" and "function", and "function"
	// also occurs in the new content.
	hits, err := h.lexical.Query(ctx, []string{"old"}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits, "old content purged from the lexical index")

	assert.Len(t, h.graph.calls["demo"], 0, "old call edges replaced, not merged")
	require.Len(t, h.graph.nodes["demo"], 1)
	assert.Equal(t, "new_function", h.graph.nodes["demo"][0].QualifiedName)
}

func TestIndexDirectory_EmptyDirectoryChangesNothing(t *testing.T) {
	h := newHarness(t)
	report, err := h.ix.IndexDirectory(context.Background(), "demo", t.TempDir(), true, nil)
	require.NoError(t, err)

	assert.Zero(t, report.Indexed)
	assert.Zero(t, report.Failed)
	assert.Zero(t, h.lexical.Len())
	assert.Empty(t, h.files.entries)
}

func TestIndexDirectory_SkipsExcludedAndUnsupported(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	writeFile(t, dir, "keep.py", "kept unit\n")
	writeFile(t, dir, "node_modules/dep.py", "excluded unit\n")
	writeFile(t, dir, "notes.xyz", "unsupported extension\n")

	report, err := h.ix.IndexDirectory(context.Background(), "demo", dir, true, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Indexed)
	assert.Zero(t, report.Failed)
	assert.Equal(t, 1, h.lexical.Len())
}

func TestIndexDirectory_ReportsProgress(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	writeFile(t, dir, "a.py", "one unit\n")

	var calls int
	_, err := h.ix.IndexDirectory(context.Background(), "demo", dir, true, func(processed, indexed, failed int) {
		calls++
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls, 1, "final progress report always fires")
}

func TestDeleteProject_PurgesEverythingAndIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "a.py", "authenticate user\nlogin_user->authenticate\n")

	_, err := h.ix.IndexFile(ctx, "demo", path)
	require.NoError(t, err)

	require.NoError(t, h.ix.DeleteProject(ctx, "demo"))

	assert.Empty(t, unitsForFile(t, h.store, "demo", path))
	assert.Zero(t, h.lexical.Len())
	assert.Empty(t, h.graph.nodes["demo"])
	assert.Empty(t, h.files.entries)

	assert.NoError(t, h.ix.DeleteProject(ctx, "demo"), "second delete is ok")
}

func TestPruneMissing_RemovesEntriesForDeletedFiles(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "a.py", "transient unit\n")

	_, err := h.ix.IndexFile(ctx, "demo", path)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	removed, err := h.ix.PruneMissing(ctx, "demo")
	require.NoError(t, err)

	assert.Equal(t, 1, removed)
	assert.Empty(t, unitsForFile(t, h.store, "demo", path))
	assert.Zero(t, h.lexical.Len())
}
