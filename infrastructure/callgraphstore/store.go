package callgraphstore

import (
	"context"
	"sort"
	"sync"

	"gorm.io/gorm"

	"github.com/codemem/engine/domain/callgraph"
	"github.com/codemem/engine/errs"
	"github.com/codemem/engine/infrastructure/persistence"
)

// Store is the durable node/edge store backing one or more projects'
// call graphs. Each project's forward/reverse adjacency is rebuilt
// in-memory from its persisted rows on first touch and cached until a
// write invalidates it.
type Store struct {
	db *gorm.DB

	mu    sync.Mutex
	cache map[string]*callgraph.Adjacency // project -> adjacency
}

// Open builds a Store and migrates its tables.
func Open(ctx context.Context, db *gorm.DB) (*Store, error) {
	if err := persistence.PreMigrate(ctx, db, &nodeModel{}, &callModel{}, &implementationModel{}); err != nil {
		return nil, err
	}
	return &Store{db: db, cache: make(map[string]*callgraph.Adjacency)}, nil
}

func (s *Store) invalidate(project string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, project)
}

// adjacency returns the cached Adjacency for project, loading it from the
// database on first use.
func (s *Store) adjacency(ctx context.Context, project string) (*callgraph.Adjacency, error) {
	s.mu.Lock()
	if a, ok := s.cache[project]; ok {
		s.mu.Unlock()
		return a, nil
	}
	s.mu.Unlock()

	var nodeRows []nodeModel
	if err := s.db.WithContext(ctx).Where("project = ?", project).Find(&nodeRows).Error; err != nil {
		return nil, errs.StorageError("callgraphstore.load_nodes", err)
	}
	var callRows []callModel
	if err := s.db.WithContext(ctx).Where("project = ?", project).Find(&callRows).Error; err != nil {
		return nil, errs.StorageError("callgraphstore.load_calls", err)
	}
	nodes := make([]callgraph.FunctionNode, 0, len(nodeRows))
	for _, r := range nodeRows {
		nodes = append(nodes, toFunctionNode(r))
	}
	calls := make([]callgraph.CallSite, 0, len(callRows))
	for _, r := range callRows {
		calls = append(calls, toCallSite(r))
	}
	a := callgraph.NewAdjacency(nodes, calls)

	s.mu.Lock()
	s.cache[project] = a
	s.mu.Unlock()
	return a, nil
}

// UpsertNodes persists function nodes and invalidates the project's
// cached adjacency.
func (s *Store) UpsertNodes(ctx context.Context, project string, nodes []callgraph.FunctionNode) error {
	for _, n := range nodes {
		row := toNodeModel(n)
		if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
			return errs.StorageError("callgraphstore.upsert_nodes", err)
		}
	}
	s.invalidate(project)
	return nil
}

// UpsertCalls persists call sites and invalidates the project's cached
// adjacency.
func (s *Store) UpsertCalls(ctx context.Context, project string, calls []callgraph.CallSite) error {
	for _, c := range calls {
		row := toCallModel(c)
		if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
			return errs.StorageError("callgraphstore.upsert_calls", err)
		}
	}
	s.invalidate(project)
	return nil
}

// UpsertImplementations persists InterfaceImplementation records.
func (s *Store) UpsertImplementations(ctx context.Context, project string, impls []callgraph.InterfaceImplementation) error {
	for _, i := range impls {
		row := toImplementationModel(i)
		if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
			return errs.StorageError("callgraphstore.upsert_implementations", err)
		}
	}
	return nil
}

// RemoveForFile removes all nodes and calls whose caller file equals
// filePath; callees referenced from elsewhere are left untouched.
func (s *Store) RemoveForFile(ctx context.Context, project, filePath string) error {
	if err := s.db.WithContext(ctx).
		Where("project = ? AND file_path = ?", project, filePath).
		Delete(&nodeModel{}).Error; err != nil {
		return errs.StorageError("callgraphstore.remove_for_file", err)
	}
	if err := s.db.WithContext(ctx).
		Where("project = ? AND caller_file = ?", project, filePath).
		Delete(&callModel{}).Error; err != nil {
		return errs.StorageError("callgraphstore.remove_for_file", err)
	}
	s.invalidate(project)
	return nil
}

// DeleteProject removes all nodes, calls, and implementations for
// project. Idempotent.
func (s *Store) DeleteProject(ctx context.Context, project string) error {
	if err := s.db.WithContext(ctx).Where("project = ?", project).Delete(&nodeModel{}).Error; err != nil {
		return errs.StorageError("callgraphstore.delete_project", err)
	}
	if err := s.db.WithContext(ctx).Where("project = ?", project).Delete(&callModel{}).Error; err != nil {
		return errs.StorageError("callgraphstore.delete_project", err)
	}
	if err := s.db.WithContext(ctx).Where("project = ?", project).Delete(&implementationModel{}).Error; err != nil {
		return errs.StorageError("callgraphstore.delete_project", err)
	}
	s.invalidate(project)
	return nil
}

// FindCallers returns the qualified names reachable by walking the
// reverse adjacency from qname, bounded by depth and limit.
func (s *Store) FindCallers(ctx context.Context, project, qname string, depth, limit int) ([]callgraph.DistanceNode, error) {
	a, err := s.adjacency(ctx, project)
	if err != nil {
		return nil, err
	}
	return a.Walk(qname, callgraph.Reverse, depth, limit), nil
}

// FindCallees returns the qualified names reachable by walking the
// forward adjacency from qname, bounded by depth and limit.
func (s *Store) FindCallees(ctx context.Context, project, qname string, depth, limit int) ([]callgraph.DistanceNode, error) {
	a, err := s.adjacency(ctx, project)
	if err != nil {
		return nil, err
	}
	return a.Walk(qname, callgraph.Forward, depth, limit), nil
}

// FindChain returns up to maxPaths shortest-first paths from one
// qualified name to another, each no longer than maxDepth edges.
func (s *Store) FindChain(ctx context.Context, project, from, to string, maxPaths, maxDepth int) ([]callgraph.Path, error) {
	a, err := s.adjacency(ctx, project)
	if err != nil {
		return nil, err
	}
	return a.FindChains(from, to, maxPaths, maxDepth), nil
}

// FindImplementations returns the InterfaceImplementation rows recorded
// for the given interface qualified name.
func (s *Store) FindImplementations(ctx context.Context, project, interfaceQName string) ([]callgraph.InterfaceImplementation, error) {
	var rows []implementationModel
	err := s.db.WithContext(ctx).
		Where("project = ? AND interface_name = ?", project, interfaceQName).
		Find(&rows).Error
	if err != nil {
		return nil, errs.StorageError("callgraphstore.find_implementations", err)
	}
	out := make([]callgraph.InterfaceImplementation, 0, len(rows))
	for _, r := range rows {
		out = append(out, toInterfaceImplementation(r))
	}
	return out, nil
}

// FileDependencies returns the distinct file paths of functions called by
// any function defined in path.
func (s *Store) FileDependencies(ctx context.Context, project, path string) ([]string, error) {
	a, err := s.adjacency(ctx, project)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	for _, n := range nodesInFile(a, path) {
		for _, callee := range a.Callees(n.QualifiedName) {
			if target, ok := a.Node(callee); ok && target.FilePath != path {
				seen[target.FilePath] = struct{}{}
			}
		}
	}
	return sortedFilePaths(seen), nil
}

// FileDependents returns the distinct file paths of functions that call
// into any function defined in path.
func (s *Store) FileDependents(ctx context.Context, project, path string) ([]string, error) {
	a, err := s.adjacency(ctx, project)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	for _, n := range nodesInFile(a, path) {
		for _, caller := range a.Callers(n.QualifiedName) {
			if source, ok := a.Node(caller); ok && source.FilePath != path {
				seen[source.FilePath] = struct{}{}
			}
		}
	}
	return sortedFilePaths(seen), nil
}

// SCC returns the strongly connected components of project's call graph.
func (s *Store) SCC(ctx context.Context, project string) ([][]string, error) {
	a, err := s.adjacency(ctx, project)
	if err != nil {
		return nil, err
	}
	return a.SCC(), nil
}

func nodesInFile(a *callgraph.Adjacency, path string) []callgraph.FunctionNode {
	// Adjacency has no per-file index, so file-scoped lookups enumerate
	// every node via AllQualifiedNames; the adjacency this store builds
	// holds one project's rows.
	var out []callgraph.FunctionNode
	for _, qname := range a.AllQualifiedNames() {
		if n, ok := a.Node(qname); ok && n.FilePath == path {
			out = append(out, n)
		}
	}
	return out
}

func sortedFilePaths(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
