// Package indexer orchestrates the ingest pipeline: parse a file into
// semantic units and call sites, embed unit snippets in one batch, replace
// the prior units and call-graph entries for that file, refresh the BM25
// index, and record the file hash in the project file table. Change
// detection is hash-gated so re-indexing unchanged content is a no-op.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/codemem/engine/domain/callgraph"
	"github.com/codemem/engine/domain/memory"
	"github.com/codemem/engine/domain/parser"
	"github.com/codemem/engine/domain/project"
	"github.com/codemem/engine/domain/search"
	"github.com/codemem/engine/errs"
)

// GraphStore is the call-graph persistence the indexer writes through. The
// forward/reverse adjacency it serves for structural queries is rebuilt
// from these writes.
type GraphStore interface {
	UpsertNodes(ctx context.Context, project string, nodes []callgraph.FunctionNode) error
	UpsertCalls(ctx context.Context, project string, calls []callgraph.CallSite) error
	UpsertImplementations(ctx context.Context, project string, impls []callgraph.InterfaceImplementation) error
	RemoveForFile(ctx context.Context, project, filePath string) error
	DeleteProject(ctx context.Context, project string) error
}

// FileTable is the per-project file table: the source of truth for
// incremental change detection.
type FileTable interface {
	Get(ctx context.Context, proj, path string) (project.FileEntry, bool, error)
	Put(ctx context.Context, entry project.FileEntry) error
	Remove(ctx context.Context, proj, path string) error
	ListProject(ctx context.Context, proj string) ([]project.FileEntry, error)
	DeleteProject(ctx context.Context, proj string) (int64, error)
}

// DefaultExcludes are the directory-walk exclusion globs: build outputs,
// dot-directories, and common vendor directories.
var DefaultExcludes = []string{
	"**/.*/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/target/**",
	"**/build/**",
	"**/dist/**",
	"**/__pycache__/**",
	"**/*.min.js",
}

// progressInterval bounds how often the directory-walk progress callback
// fires.
const progressInterval = 250 * time.Millisecond

// Config tunes an Indexer.
type Config struct {
	// Collection is the vector store collection code units are written to.
	Collection string
	// Excludes are doublestar globs matched against walk-relative paths;
	// nil means DefaultExcludes.
	Excludes []string
	// MaxFileBytes skips files larger than this during directory walks;
	// zero disables the check (the parser still enforces its own limit).
	MaxFileBytes int64
}

// Indexer is the incremental indexing orchestrator.
type Indexer struct {
	registry parser.Registry
	embedder search.Embedder
	vectors  search.VectorStore
	graph    GraphStore
	lexical  search.BM25Store
	files    FileTable
	cfg      Config
	logger   *slog.Logger

	group singleflight.Group

	mu        sync.Mutex
	pathLocks map[string]*sync.Mutex
}

// New builds an Indexer.
func New(registry parser.Registry, embedder search.Embedder, vectors search.VectorStore, graph GraphStore, lexical search.BM25Store, files FileTable, cfg Config) *Indexer {
	if cfg.Excludes == nil {
		cfg.Excludes = DefaultExcludes
	}
	return &Indexer{
		registry:  registry,
		embedder:  embedder,
		vectors:   vectors,
		graph:     graph,
		lexical:   lexical,
		files:     files,
		cfg:       cfg,
		logger:    slog.Default().With("component", "indexer"),
		pathLocks: make(map[string]*sync.Mutex),
	}
}

// FileOutcome reports the result of indexing one file during a directory
// walk.
type FileOutcome struct {
	Path      string
	UnitCount int
	Skipped   bool
	Err       error
}

// DirectoryReport aggregates per-file outcomes; a single failed file never
// fails the walk.
type DirectoryReport struct {
	Indexed int
	Skipped int
	Failed  int
	Files   []FileOutcome
}

// Progress is the optional directory-walk progress callback, invoked at a
// bounded rate with the number of files processed so far.
type Progress func(processed, indexed, failed int)

func (ix *Indexer) lockPath(proj, path string) *sync.Mutex {
	key := proj + "\x00" + path
	ix.mu.Lock()
	defer ix.mu.Unlock()
	l, ok := ix.pathLocks[key]
	if !ok {
		l = &sync.Mutex{}
		ix.pathLocks[key] = l
	}
	return l
}

// IndexFile indexes one file, skipping when the content hash matches the
// file table entry.
func (ix *Indexer) IndexFile(ctx context.Context, proj, path string) (FileOutcome, error) {
	return ix.indexFile(ctx, proj, path, false)
}

// ReindexFile indexes one file; force bypasses hash-based change
// detection.
func (ix *Indexer) ReindexFile(ctx context.Context, proj, path string, force bool) (FileOutcome, error) {
	return ix.indexFile(ctx, proj, path, force)
}

func (ix *Indexer) indexFile(ctx context.Context, proj, path string, force bool) (FileOutcome, error) {
	key := proj + "\x00" + path
	// Concurrent requests for the same path collapse to one execution;
	// distinct paths proceed independently under their own locks.
	v, err, _ := ix.group.Do(key, func() (any, error) {
		l := ix.lockPath(proj, path)
		l.Lock()
		defer l.Unlock()
		return ix.indexFileLocked(ctx, proj, path, force)
	})
	if err != nil {
		return FileOutcome{Path: path, Err: err}, err
	}
	return v.(FileOutcome), nil
}

func (ix *Indexer) indexFileLocked(ctx context.Context, proj, path string, force bool) (FileOutcome, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return FileOutcome{}, errs.StorageError("indexer.read_file", err)
	}
	return ix.indexContent(ctx, proj, path, content, force)
}

// indexContent runs the per-file pipeline over already-read bytes. The
// write sequence is remove old -> upsert units -> upsert call graph ->
// update BM25 -> update file table, so a crash after any prefix converges
// on retry.
func (ix *Indexer) indexContent(ctx context.Context, proj, path string, content []byte, force bool) (FileOutcome, error) {
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])

	entry, exists, err := ix.files.Get(ctx, proj, path)
	if err != nil {
		return FileOutcome{}, err
	}
	if exists && entry.Hash == hash && !force {
		return FileOutcome{Path: path, UnitCount: entry.UnitCount, Skipped: true}, nil
	}

	result, parseErr := ix.registry.Parse(ctx, proj, path, content)
	if parseErr != nil && !errs.Is(parseErr, errs.KindParseError) {
		return FileOutcome{}, parseErr
	}
	if parseErr != nil {
		// Recoverable parse failure: record it for the caller's logs and
		// index nothing for this file; other files proceed.
		ix.logger.Warn("parse failed", "project", proj, "path", path, "error", parseErr)
	}

	snippets := make([]string, len(result.Units))
	for i, u := range result.Units {
		snippets[i] = u.Snippet
	}
	vectors, err := ix.embedder.Embed(ctx, snippets)
	if err != nil {
		return FileOutcome{}, err
	}

	now := time.Now().UTC()
	docs := make([]search.Document, len(result.Units))
	for i, u := range result.Units {
		docs[i] = search.Document{
			ID:             uuid.NewString(),
			Project:        proj,
			Category:       memory.CategoryCode.String(),
			Content:        u.Snippet,
			Language:       u.Language,
			FilePath:       path,
			Importance:     0.5,
			LifecycleState: string(memory.StateActive),
			CreatedAtUnix:  now.Unix(),
			UpdatedAtUnix:  now.Unix(),
			Vector:         vectors[i],
		}
	}

	if err := ix.removePrior(ctx, proj, path); err != nil {
		return FileOutcome{}, err
	}

	if len(docs) > 0 {
		if _, err := ix.vectors.Upsert(ctx, search.IndexRequest{Collection: ix.cfg.Collection, Documents: docs}); err != nil {
			return FileOutcome{}, err
		}
	}

	nodes := make([]callgraph.FunctionNode, 0, len(result.Units))
	for _, u := range result.Units {
		nodes = append(nodes, callgraph.FunctionNode{
			Project:       proj,
			QualifiedName: u.QualifiedName,
			Name:          u.Name,
			FilePath:      path,
			Language:      u.Language,
			StartLine:     u.StartLine,
			EndLine:       u.EndLine,
		})
	}
	if len(nodes) > 0 {
		if err := ix.graph.UpsertNodes(ctx, proj, nodes); err != nil {
			return FileOutcome{}, err
		}
	}
	if len(result.Calls) > 0 {
		if err := ix.graph.UpsertCalls(ctx, proj, result.Calls); err != nil {
			return FileOutcome{}, err
		}
	}
	if len(result.Impls) > 0 {
		if err := ix.graph.UpsertImplementations(ctx, proj, result.Impls); err != nil {
			return FileOutcome{}, err
		}
	}

	for _, d := range docs {
		if err := ix.lexical.Add(ctx, d.ID, d.Content); err != nil {
			return FileOutcome{}, err
		}
	}

	if err := ix.files.Put(ctx, project.FileEntry{
		Project:   proj,
		Path:      path,
		Hash:      hash,
		IndexedAt: now,
		UnitCount: len(docs),
	}); err != nil {
		return FileOutcome{}, err
	}

	ix.logger.Info("indexed file", "project", proj, "path", path, "units", len(docs))
	return FileOutcome{Path: path, UnitCount: len(docs), Err: parseErr}, nil
}

// removePrior drops the file's previous units from the vector store and
// BM25 index and its nodes and edges from the call graph.
func (ix *Indexer) removePrior(ctx context.Context, proj, path string) error {
	filter := search.New(search.WithProject(proj))
	filter.Predicates = append(filter.Predicates, search.Predicate{Field: "file_path", Op: search.OpEqual, Value: path})

	var cursor search.Cursor
	for {
		page, err := ix.vectors.Scroll(ctx, ix.cfg.Collection, filter, cursor, 256)
		if err != nil {
			return err
		}
		for _, d := range page.Documents {
			if err := ix.lexical.Remove(ctx, d.ID); err != nil {
				return err
			}
		}
		if page.Next == "" {
			break
		}
		cursor = page.Next
	}

	if _, err := ix.vectors.DeleteByFilter(ctx, ix.cfg.Collection, filter, 0); err != nil {
		return err
	}
	return ix.graph.RemoveForFile(ctx, proj, path)
}

// excluded reports whether a walk-relative file path matches any exclude
// glob.
func (ix *Indexer) excluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, pattern := range ix.cfg.Excludes {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// excludedDir prunes whole directories: a pattern like "**/vendor/**"
// excludes the vendor directory itself, not only its contents.
func (ix *Indexer) excludedDir(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, pattern := range ix.cfg.Excludes {
		base := strings.TrimSuffix(pattern, "/**")
		if ok, err := doublestar.Match(base, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// IndexDirectory walks root and indexes every supported file, honoring the
// exclude globs and size threshold. A per-file failure is recorded in the
// report and the walk continues.
func (ix *Indexer) IndexDirectory(ctx context.Context, proj, root string, recursive bool, progress Progress) (DirectoryReport, error) {
	var report DirectoryReport
	lastProgress := time.Time{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if !recursive {
				return filepath.SkipDir
			}
			if ix.excludedDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if ix.excluded(rel) {
			return nil
		}
		if ix.cfg.MaxFileBytes > 0 {
			if info, err := d.Info(); err == nil && info.Size() > ix.cfg.MaxFileBytes {
				return nil
			}
		}

		outcome, err := ix.IndexFile(ctx, proj, path)
		switch {
		case err != nil && errs.Is(err, errs.KindUnsupportedLanguage):
			// Not an error at the directory level; unsupported files are
			// simply not indexed.
		case err != nil:
			report.Failed++
			report.Files = append(report.Files, FileOutcome{Path: path, Err: err})
		case outcome.Err != nil:
			report.Failed++
			report.Files = append(report.Files, outcome)
		case outcome.Skipped:
			report.Skipped++
			report.Files = append(report.Files, outcome)
		default:
			report.Indexed++
			report.Files = append(report.Files, outcome)
		}

		if progress != nil && time.Since(lastProgress) >= progressInterval {
			lastProgress = time.Now()
			progress(len(report.Files), report.Indexed, report.Failed)
		}
		return nil
	})
	if err != nil {
		return report, errs.StorageError("indexer.index_directory", err)
	}
	if progress != nil {
		progress(len(report.Files), report.Indexed, report.Failed)
	}
	return report, nil
}

// DeleteProject removes every trace of a project: its vector store points
// via one filtered delete, its call-graph entries, its BM25 entries, and
// its file table. Idempotent.
func (ix *Indexer) DeleteProject(ctx context.Context, proj string) error {
	filter := search.New(search.WithProject(proj))

	var cursor search.Cursor
	for {
		page, err := ix.vectors.Scroll(ctx, ix.cfg.Collection, filter, cursor, 256)
		if err != nil {
			return err
		}
		for _, d := range page.Documents {
			if err := ix.lexical.Remove(ctx, d.ID); err != nil {
				return err
			}
		}
		if page.Next == "" {
			break
		}
		cursor = page.Next
	}

	if _, err := ix.vectors.DeleteByFilter(ctx, ix.cfg.Collection, filter, 0); err != nil {
		return err
	}
	if err := ix.graph.DeleteProject(ctx, proj); err != nil {
		return err
	}
	if _, err := ix.files.DeleteProject(ctx, proj); err != nil {
		return err
	}
	return nil
}

// PruneMissing removes file table entries (and their indexed units) for
// files that no longer exist on disk.
func (ix *Indexer) PruneMissing(ctx context.Context, proj string) (int, error) {
	entries, err := ix.files.ListProject(ctx, proj)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if _, statErr := os.Stat(e.Path); statErr == nil {
			continue
		}
		l := ix.lockPath(proj, e.Path)
		l.Lock()
		err := func() error {
			if err := ix.removePrior(ctx, proj, e.Path); err != nil {
				return err
			}
			return ix.files.Remove(ctx, proj, e.Path)
		}()
		l.Unlock()
		if err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
