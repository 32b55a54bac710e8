package callgraphstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/codemem/engine/domain/callgraph"
	"github.com/codemem/engine/infrastructure/callgraphstore"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	return db
}

func seed(t *testing.T, s *callgraphstore.Store, project string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.UpsertNodes(ctx, project, []callgraph.FunctionNode{
		{Project: project, QualifiedName: "pkg.A", Name: "A", FilePath: "a.go"},
		{Project: project, QualifiedName: "pkg.B", Name: "B", FilePath: "b.go"},
		{Project: project, QualifiedName: "pkg.C", Name: "C", FilePath: "c.go"},
	}))
	require.NoError(t, s.UpsertCalls(ctx, project, []callgraph.CallSite{
		{Project: project, Caller: "pkg.A", Callee: "pkg.B", CallerFile: "a.go", CallerLine: 10, Kind: callgraph.CallDirect},
		{Project: project, Caller: "pkg.B", Callee: "pkg.C", CallerFile: "b.go", CallerLine: 5, Kind: callgraph.CallDirect},
	}))
}

func TestStore_UpsertAndFindCalleesCallers(t *testing.T) {
	ctx := context.Background()
	s, err := callgraphstore.Open(ctx, openTestDB(t))
	require.NoError(t, err)
	seed(t, s, "proj")

	callees, err := s.FindCallees(ctx, "proj", "pkg.A", 2, 10)
	require.NoError(t, err)
	require.Len(t, callees, 2)
	assert.Equal(t, "pkg.B", callees[0].QualifiedName)
	assert.Equal(t, 1, callees[0].Distance)
	assert.Equal(t, "pkg.C", callees[1].QualifiedName)
	assert.Equal(t, 2, callees[1].Distance)

	callers, err := s.FindCallers(ctx, "proj", "pkg.C", 2, 10)
	require.NoError(t, err)
	require.Len(t, callers, 2)
	assert.Equal(t, "pkg.B", callers[0].QualifiedName)
}

func TestStore_FindChain(t *testing.T) {
	ctx := context.Background()
	s, err := callgraphstore.Open(ctx, openTestDB(t))
	require.NoError(t, err)
	seed(t, s, "proj")

	paths, err := s.FindChain(ctx, "proj", "pkg.A", "pkg.C", 5, 5)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, callgraph.Path{"pkg.A", "pkg.B", "pkg.C"}, paths[0])
}

func TestStore_RemoveForFileLeavesCalleesIntact(t *testing.T) {
	ctx := context.Background()
	s, err := callgraphstore.Open(ctx, openTestDB(t))
	require.NoError(t, err)
	seed(t, s, "proj")

	require.NoError(t, s.RemoveForFile(ctx, "proj", "a.go"))

	callers, err := s.FindCallers(ctx, "proj", "pkg.B", 2, 10)
	require.NoError(t, err)
	assert.Empty(t, callers)

	// pkg.B -> pkg.C edge (defined in b.go) is untouched.
	callees, err := s.FindCallees(ctx, "proj", "pkg.B", 1, 10)
	require.NoError(t, err)
	require.Len(t, callees, 1)
	assert.Equal(t, "pkg.C", callees[0].QualifiedName)
}

func TestStore_FileDependenciesAndDependents(t *testing.T) {
	ctx := context.Background()
	s, err := callgraphstore.Open(ctx, openTestDB(t))
	require.NoError(t, err)
	seed(t, s, "proj")

	deps, err := s.FileDependencies(ctx, "proj", "a.go")
	require.NoError(t, err)
	assert.Equal(t, []string{"b.go"}, deps)

	dependents, err := s.FileDependents(ctx, "proj", "c.go")
	require.NoError(t, err)
	assert.Equal(t, []string{"b.go"}, dependents)
}

func TestStore_FindImplementations(t *testing.T) {
	ctx := context.Background()
	s, err := callgraphstore.Open(ctx, openTestDB(t))
	require.NoError(t, err)
	require.NoError(t, s.UpsertImplementations(ctx, "proj", []callgraph.InterfaceImplementation{
		{Project: "proj", InterfaceName: "pkg.Reader", ConcreteName: "pkg.File", Methods: []string{"Read"}},
	}))

	impls, err := s.FindImplementations(ctx, "proj", "pkg.Reader")
	require.NoError(t, err)
	require.Len(t, impls, 1)
	assert.Equal(t, "pkg.File", impls[0].ConcreteName)
	assert.Equal(t, []string{"Read"}, impls[0].Methods)
}

func TestStore_DeleteProjectIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, err := callgraphstore.Open(ctx, openTestDB(t))
	require.NoError(t, err)
	seed(t, s, "proj")

	require.NoError(t, s.DeleteProject(ctx, "proj"))
	require.NoError(t, s.DeleteProject(ctx, "proj"))

	callees, err := s.FindCallees(ctx, "proj", "pkg.A", 2, 10)
	require.NoError(t, err)
	assert.Empty(t, callees)
}

func TestStore_SCCDetectsCycle(t *testing.T) {
	ctx := context.Background()
	s, err := callgraphstore.Open(ctx, openTestDB(t))
	require.NoError(t, err)
	require.NoError(t, s.UpsertNodes(ctx, "proj", []callgraph.FunctionNode{
		{Project: "proj", QualifiedName: "pkg.X", FilePath: "x.go"},
		{Project: "proj", QualifiedName: "pkg.Y", FilePath: "y.go"},
	}))
	require.NoError(t, s.UpsertCalls(ctx, "proj", []callgraph.CallSite{
		{Project: "proj", Caller: "pkg.X", Callee: "pkg.Y", CallerFile: "x.go", Kind: callgraph.CallDirect},
		{Project: "proj", Caller: "pkg.Y", Callee: "pkg.X", CallerFile: "y.go", Kind: callgraph.CallDirect},
	}))

	sccs, err := s.SCC(ctx, "proj")
	require.NoError(t, err)
	require.Len(t, sccs, 1)
	assert.ElementsMatch(t, []string{"pkg.X", "pkg.Y"}, sccs[0])
}
