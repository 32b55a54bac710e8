package engine

import (
	"log/slog"

	"github.com/codemem/engine/domain/search"
	"github.com/codemem/engine/infrastructure/pool"
	"github.com/codemem/engine/internal/config"
)

// engineConfig holds construction-time configuration for an Engine. Use
// newEngineConfig() so every default comes from internal/config, the
// single source of truth.
type engineConfig struct {
	app          config.AppConfig
	collection   string
	logger       *slog.Logger
	embedFn      search.EmbedBatchFunc
	embedder     search.Embedder
	vectors      search.VectorStore
	poolFactory  pool.Factory
	persistCache bool
}

func newEngineConfig() *engineConfig {
	return &engineConfig{
		app:          config.Default(),
		collection:   "memories",
		persistCache: true,
	}
}

// Option configures Engine construction.
type Option func(*engineConfig)

// WithSQLite selects the sqlite storage backend at the given file path
// (":memory:" works for throwaway instances).
func WithSQLite(path string) Option {
	return func(c *engineConfig) {
		c.app.StorageDriver = "sqlite"
		c.app.StorageDSN = path
	}
}

// WithPostgres selects the Postgres storage backend.
func WithPostgres(dsn string) Option {
	return func(c *engineConfig) {
		c.app.StorageDriver = "postgres"
		c.app.StorageDSN = dsn
	}
}

// WithConfig replaces the entire baseline configuration, typically with
// one produced by config.Load.
func WithConfig(app config.AppConfig) Option {
	return func(c *engineConfig) { c.app = app }
}

// WithEmbedFunc supplies the external embedding collaborator plus its
// model identity. The engine wraps it in the content-addressed cache.
func WithEmbedFunc(fn search.EmbedBatchFunc, model string, dimension int) Option {
	return func(c *engineConfig) {
		c.embedFn = fn
		c.app.EmbeddingModel = model
		c.app.EmbeddingDimension = dimension
	}
}

// WithEmbedder injects a fully constructed Embedder, bypassing the
// engine-built cache. Intended for tests and callers with their own
// caching discipline.
func WithEmbedder(e search.Embedder) Option {
	return func(c *engineConfig) { c.embedder = e }
}

// WithVectorStore injects a VectorStore implementation in place of the
// engine-built gorm store, e.g. the in-memory fake in tests.
func WithVectorStore(vs search.VectorStore) Option {
	return func(c *engineConfig) { c.vectors = vs }
}

// WithCollection overrides the vector collection name.
func WithCollection(name string) Option {
	return func(c *engineConfig) { c.collection = name }
}

// WithLogger sets the structured logger the engine and its components log
// through.
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) { c.logger = logger }
}

// WithReadOnly starts the engine in read-only mode: every write-bearing
// operation fails before acquiring any resource.
func WithReadOnly() Option {
	return func(c *engineConfig) { c.app.ReadOnly = true }
}

// WithPoolFactory overrides how the client pool constructs vector-database
// connections.
func WithPoolFactory(f pool.Factory) Option {
	return func(c *engineConfig) { c.poolFactory = f }
}

// WithoutCachePersistence keeps the embedding cache purely in memory.
func WithoutCachePersistence() Option {
	return func(c *engineConfig) { c.persistCache = false }
}
