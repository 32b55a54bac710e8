package engine

import (
	"context"

	"github.com/codemem/engine/domain/callgraph"
)

// FindCallers walks the reverse call graph from a qualified name, bounded
// by depth and limit, returning each reached function with its distance.
func (e *Engine) FindCallers(ctx context.Context, project, qname string, depth, limit int) ([]callgraph.DistanceNode, error) {
	const op = "engine.find_callers"
	ctx, cancel := e.opCtx(ctx)
	defer cancel()
	nodes, err := e.graph.FindCallers(ctx, project, qname, depth, limit)
	if err != nil {
		return nil, mapErr(op, err)
	}
	return nodes, nil
}

// FindCallees walks the forward call graph from a qualified name.
func (e *Engine) FindCallees(ctx context.Context, project, qname string, depth, limit int) ([]callgraph.DistanceNode, error) {
	const op = "engine.find_callees"
	ctx, cancel := e.opCtx(ctx)
	defer cancel()
	nodes, err := e.graph.FindCallees(ctx, project, qname, depth, limit)
	if err != nil {
		return nil, mapErr(op, err)
	}
	return nodes, nil
}

// GetCallChain returns up to maxPaths shortest-first call paths between
// two qualified names, each no longer than maxDepth edges.
func (e *Engine) GetCallChain(ctx context.Context, project, from, to string, maxPaths, maxDepth int) ([]callgraph.Path, error) {
	const op = "engine.get_call_chain"
	ctx, cancel := e.opCtx(ctx)
	defer cancel()
	paths, err := e.graph.FindChain(ctx, project, from, to, maxPaths, maxDepth)
	if err != nil {
		return nil, mapErr(op, err)
	}
	return paths, nil
}

// FindImplementations returns the concrete classes recorded as
// implementing an interface, with their method lists.
func (e *Engine) FindImplementations(ctx context.Context, project, interfaceQName string) ([]callgraph.InterfaceImplementation, error) {
	const op = "engine.find_implementations"
	ctx, cancel := e.opCtx(ctx)
	defer cancel()
	impls, err := e.graph.FindImplementations(ctx, project, interfaceQName)
	if err != nil {
		return nil, mapErr(op, err)
	}
	return impls, nil
}

// FindDependencies returns the files that functions defined in path call
// into.
func (e *Engine) FindDependencies(ctx context.Context, project, path string) ([]string, error) {
	const op = "engine.find_dependencies"
	ctx, cancel := e.opCtx(ctx)
	defer cancel()
	paths, err := e.graph.FileDependencies(ctx, project, path)
	if err != nil {
		return nil, mapErr(op, err)
	}
	return paths, nil
}

// FindDependents returns the files whose functions call into functions
// defined in path.
func (e *Engine) FindDependents(ctx context.Context, project, path string) ([]string, error) {
	const op = "engine.find_dependents"
	ctx, cancel := e.opCtx(ctx)
	defer cancel()
	paths, err := e.graph.FileDependents(ctx, project, path)
	if err != nil {
		return nil, mapErr(op, err)
	}
	return paths, nil
}

// StronglyConnectedComponents returns the SCCs of a project's call graph,
// for callers that need cycle structure beyond bounded traversal.
func (e *Engine) StronglyConnectedComponents(ctx context.Context, project string) ([][]string, error) {
	const op = "engine.scc"
	ctx, cancel := e.opCtx(ctx)
	defer cancel()
	sccs, err := e.graph.SCC(ctx, project)
	if err != nil {
		return nil, mapErr(op, err)
	}
	return sccs, nil
}
