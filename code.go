package engine

import (
	"context"

	"github.com/codemem/engine/infrastructure/indexer"
)

// IndexFile indexes a single source file into the project namespace,
// skipping when the content hash is unchanged.
func (e *Engine) IndexFile(ctx context.Context, project, path string) (indexer.FileOutcome, error) {
	const op = "engine.index_file"
	if err := e.writable(op); err != nil {
		return indexer.FileOutcome{}, err
	}
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	outcome, err := e.indexer.IndexFile(ctx, project, path)
	if err != nil {
		return outcome, mapErr(op, err)
	}
	e.projectAggregate(project).RecordUpdate()
	return outcome, nil
}

// IndexDirectory walks root and indexes every supported file. Directory
// indexing has no per-call deadline: large repositories legitimately take
// longer than a single operation budget, and each file indexes under the
// caller's context.
func (e *Engine) IndexDirectory(ctx context.Context, project, root string, recursive bool, progress indexer.Progress) (indexer.DirectoryReport, error) {
	const op = "engine.index_directory"
	if err := e.writable(op); err != nil {
		return indexer.DirectoryReport{}, err
	}

	report, err := e.indexer.IndexDirectory(ctx, project, root, recursive, progress)
	if err != nil {
		return report, mapErr(op, err)
	}
	e.projectAggregate(project).RecordUpdate()
	e.logger.Info("directory indexed",
		"project", project, "root", root,
		"indexed", report.Indexed, "skipped", report.Skipped, "failed", report.Failed,
	)
	return report, nil
}

// Reindex re-runs the per-file pipeline; force bypasses hash-based change
// detection.
func (e *Engine) Reindex(ctx context.Context, project, path string, force bool) (indexer.FileOutcome, error) {
	const op = "engine.reindex"
	if err := e.writable(op); err != nil {
		return indexer.FileOutcome{}, err
	}
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	outcome, err := e.indexer.ReindexFile(ctx, project, path, force)
	if err != nil {
		return outcome, mapErr(op, err)
	}
	return outcome, nil
}

// DeleteProject removes every trace of a project: vector points, call
// graph, lexical entries, file table, and the in-process activity
// aggregate. Idempotent.
func (e *Engine) DeleteProject(ctx context.Context, project string) error {
	const op = "engine.delete_project"
	if err := e.writable(op); err != nil {
		return err
	}
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	if err := e.indexer.DeleteProject(ctx, project); err != nil {
		return mapErr(op, err)
	}
	e.mu.Lock()
	delete(e.projects, project)
	e.mu.Unlock()
	return nil
}

// PruneMissing drops index entries for files deleted from disk since the
// last index run.
func (e *Engine) PruneMissing(ctx context.Context, project string) (int, error) {
	const op = "engine.prune_missing"
	if err := e.writable(op); err != nil {
		return 0, err
	}
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	removed, err := e.indexer.PruneMissing(ctx, project)
	if err != nil {
		return removed, mapErr(op, err)
	}
	return removed, nil
}
