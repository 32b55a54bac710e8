// Package engine provides a code-and-memory retrieval library: it indexes
// source repositories and free-form memories into a vector collection,
// extracts a call graph, and answers hybrid (vector + BM25) and
// structural queries.
//
// Basic usage:
//
//	eng, err := engine.New(
//	    engine.WithSQLite(".codemem/data.db"),
//	    engine.WithEmbedFunc(embedFn, "all-minilm-l6-v2", 384),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close()
//
//	// Store a memory
//	mem, err := eng.Store(ctx, engine.StoreParams{
//	    Project:    "demo",
//	    Content:    "I prefer async/await in Python",
//	    Category:   memory.CategoryPreference,
//	    Importance: 0.8,
//	})
//
//	// Hybrid search
//	results, err := eng.Retrieve(ctx, "async preferences",
//	    search.New(search.WithProject("demo")), 5)
//
//	// Index a repository and ask structural questions
//	report, err := eng.IndexDirectory(ctx, "demo", "/path/to/repo", true, nil)
//	callers, err := eng.FindCallers(ctx, "demo", "auth.authenticate", 1, 50)
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/codemem/engine/domain/project"
	"github.com/codemem/engine/domain/search"
	"github.com/codemem/engine/errs"
	"github.com/codemem/engine/infrastructure/bm25"
	"github.com/codemem/engine/infrastructure/callgraphstore"
	"github.com/codemem/engine/infrastructure/embedding"
	"github.com/codemem/engine/infrastructure/indexer"
	"github.com/codemem/engine/infrastructure/parsing"
	"github.com/codemem/engine/infrastructure/persistence"
	"github.com/codemem/engine/infrastructure/pool"
	"github.com/codemem/engine/infrastructure/retriever"
	"github.com/codemem/engine/infrastructure/vectorstore"
	"github.com/codemem/engine/internal/config"
)

// Engine is the in-process API surface of the retrieval core. Construct
// with New and release with Close.
type Engine struct {
	cfg        config.AppConfig
	collection string
	logger     *slog.Logger

	db       *gorm.DB
	vectors  search.VectorStore
	lexical  *bm25.Index
	embedder search.Embedder
	graph    *callgraphstore.Store
	files    *persistence.FileTableStore
	pool     *pool.Pool
	searcher *retriever.Retriever
	indexer  *indexer.Indexer

	mu       sync.Mutex
	projects map[string]*project.Project
}

// New wires every component of the retrieval core. An embedding
// collaborator is mandatory: pass WithEmbedFunc or WithEmbedder.
func New(opts ...Option) (*Engine, error) {
	cfg := newEngineConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.embedder == nil && cfg.embedFn == nil {
		return nil, errs.Validation("embedder", "nil (pass WithEmbedFunc or WithEmbedder)")
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx := context.Background()

	db, err := persistence.Open(persistence.Driver(cfg.app.StorageDriver), cfg.app.StorageDSN)
	if err != nil {
		return nil, errs.StorageError("engine.open_database", err)
	}

	e := &Engine{
		cfg:        cfg.app,
		collection: cfg.collection,
		logger:     logger,
		db:         db,
		projects:   make(map[string]*project.Project),
	}

	e.embedder = cfg.embedder
	if e.embedder == nil {
		var persister embedding.Persister
		if cfg.persistCache {
			p, err := embedding.NewGormPersister(ctx, db)
			if err != nil {
				return nil, err
			}
			persister = p
		}
		cache, err := embedding.New(ctx, cfg.app.EmbeddingCacheSize, cfg.app.EmbeddingModel, cfg.app.EmbeddingDimension, cfg.embedFn, persister)
		if err != nil {
			return nil, err
		}
		e.embedder = cache
	}

	factory := cfg.poolFactory
	if factory == nil {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errs.StorageError("engine.open_database", err)
		}
		factory = func(ctx context.Context) (pool.Connection, error) {
			return &dbConnection{db: sqlDB}, nil
		}
	}
	e.pool, err = pool.New(ctx, pool.Config{
		MinSize:             cfg.app.PoolMinSize,
		MaxSize:             cfg.app.PoolMaxSize,
		AcquireTimeout:      cfg.app.PoolAcquireTimeout,
		MaxAge:              cfg.app.PoolMaxAge,
		HealthCheckBudget:   50 * time.Millisecond,
		HealthCheckInterval: cfg.app.PoolHealthCheckInterval,
	}, factory)
	if err != nil {
		return nil, err
	}

	rawVectors := cfg.vectors
	if rawVectors == nil {
		store, err := vectorstore.Open(ctx, db)
		if err != nil {
			return nil, err
		}
		rawVectors = store
	}
	// Every vector-database operation holds a pool lease for exactly its
	// own critical section.
	e.vectors = &leasedStore{inner: rawVectors, pool: e.pool}

	e.graph, err = callgraphstore.Open(ctx, db)
	if err != nil {
		return nil, err
	}
	e.files, err = persistence.NewFileTableStore(ctx, db)
	if err != nil {
		return nil, err
	}

	e.lexical = bm25.New(bm25.Config{K1: cfg.app.BM25K1, B: cfg.app.BM25B, RecomputeEvery: cfg.app.BM25RecomputeEvery})
	if err := e.rebuildLexical(ctx); err != nil {
		return nil, err
	}

	e.searcher = retriever.New(e.embedder, e.vectors, e.lexical, e.collection)
	registry := parsing.NewDefault(cfg.app.MaxFileBytes)
	e.indexer = indexer.New(registry, e.embedder, e.vectors, e.graph, e.lexical, e.files, indexer.Config{
		Collection:   e.collection,
		MaxFileBytes: cfg.app.MaxFileBytes,
	})

	logger.Info("engine ready",
		"driver", cfg.app.StorageDriver,
		"collection", e.collection,
		"model", e.embedder.Model(),
		"dimension", e.embedder.Dimension(),
	)
	return e, nil
}

// rebuildLexical repopulates the BM25 index from the vector store's
// textual payloads on process start.
func (e *Engine) rebuildLexical(ctx context.Context) error {
	filter := search.New(search.WithCrossProjectConsent())
	var cursor search.Cursor
	count := 0
	for {
		page, err := e.vectors.Scroll(ctx, e.collection, filter, cursor, 512)
		if err != nil {
			return err
		}
		for _, d := range page.Documents {
			if err := e.lexical.Add(ctx, d.ID, d.Content); err != nil {
				return err
			}
			count++
		}
		if page.Next == "" {
			break
		}
		cursor = page.Next
	}
	if count > 0 {
		e.logger.Debug("lexical index rebuilt", "documents", count)
	}
	return nil
}

// Close releases the pool and the database handle.
func (e *Engine) Close() error {
	ctx := context.Background()
	_ = e.pool.Close(ctx)
	sqlDB, err := e.db.DB()
	if err != nil {
		return nil
	}
	return sqlDB.Close()
}

// writable rejects write-bearing operations while the engine is in
// read-only mode, before any resource is acquired.
func (e *Engine) writable(op string) error {
	if e.cfg.ReadOnly {
		return errs.ReadOnly(op)
	}
	return nil
}

// opCtx applies the default operation deadline when the caller supplied
// none; callers may always shorten it.
func (e *Engine) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.cfg.OperationDeadline)
}

// mapErr converts context deadline expiry into the typed timeout kind and
// annotates other typed errors with the crossing operation.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Timeout(op)
	}
	var typed *errs.Error
	if errors.As(err, &typed) {
		return typed.WithOperation(op)
	}
	return errs.Wrap(errs.KindInternal, op, err)
}

// projectAggregate returns the in-process activity aggregate for a
// project, creating it on first touch.
func (e *Engine) projectAggregate(name string) *project.Project {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.projects[name]
	if !ok {
		p = project.New(name, nowUTC())
		e.projects[name] = p
	}
	return p
}
