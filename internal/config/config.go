// Package config loads the engine's typed runtime configuration from the
// environment: kelseyhightower/envconfig over struct tags, plus an
// optional .env file loaded first.
package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig is the typed configuration surface for the retrieval core: pool
// sizing, lifecycle day thresholds, storage DSNs, and the read-only bit.
type AppConfig struct {
	// StorageDriver selects the persistence backend: "sqlite" or
	// "postgres".
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"sqlite"`
	// StorageDSN is the sqlite file path or postgres connection string.
	StorageDSN string `envconfig:"STORAGE_DSN" default:"codemem.db"`

	// EmbeddingModel is the model identifier used as part of the
	// embedding cache key.
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"default-embed-v1"`
	// EmbeddingDimension is D, the fixed vector dimension for
	// EmbeddingModel.
	EmbeddingDimension int `envconfig:"EMBEDDING_DIMENSION" default:"384"`
	// EmbeddingCacheSize is the LRU capacity (entry count).
	EmbeddingCacheSize int `envconfig:"EMBEDDING_CACHE_SIZE" default:"10000"`
	// EmbeddingCachePath is where the LRU persists between runs.
	EmbeddingCachePath string `envconfig:"EMBEDDING_CACHE_PATH" default:"embedding-cache.db"`

	// PoolMinSize is the number of warm connections the Client Pool
	// maintains at all times.
	PoolMinSize int `envconfig:"POOL_MIN_SIZE" default:"2"`
	// PoolMaxSize is the ceiling the Client Pool may grow to.
	PoolMaxSize int `envconfig:"POOL_MAX_SIZE" default:"10"`
	// PoolAcquireTimeout bounds how long an acquire waits when the pool
	// is at max_size with no idle connection.
	PoolAcquireTimeout time.Duration `envconfig:"POOL_ACQUIRE_TIMEOUT" default:"5s"`
	// PoolMaxAge is the age past which a connection is discarded on
	// release rather than re-queued.
	PoolMaxAge time.Duration `envconfig:"POOL_MAX_AGE" default:"30m"`
	// PoolHealthCheckInterval is the period of the background idle
	// connection validator.
	PoolHealthCheckInterval time.Duration `envconfig:"POOL_HEALTH_CHECK_INTERVAL" default:"1m"`

	// LifecycleN1 is the no-access duration after which a Memory
	// transitions active -> recent.
	LifecycleN1 time.Duration `envconfig:"LIFECYCLE_N1" default:"168h"` // 7 days
	// LifecycleN2 is the no-access duration after which a Memory
	// transitions -> archived.
	LifecycleN2 time.Duration `envconfig:"LIFECYCLE_N2" default:"720h"` // 30 days
	// LifecycleN3 is the no-access duration after which a Memory
	// transitions -> stale.
	LifecycleN3 time.Duration `envconfig:"LIFECYCLE_N3" default:"2160h"` // 90 days

	// BM25K1 and BM25B are the standard BM25 tuning parameters.
	BM25K1 float64 `envconfig:"BM25_K1" default:"1.5"`
	BM25B  float64 `envconfig:"BM25_B" default:"0.75"`
	// BM25RecomputeEvery triggers a from-scratch stats recompute after
	// this many modifications, guarding against incremental drift.
	BM25RecomputeEvery int `envconfig:"BM25_RECOMPUTE_EVERY" default:"1000"`

	// OperationDeadline is the default deadline every externally
	// triggered operation carries.
	OperationDeadline time.Duration `envconfig:"OPERATION_DEADLINE" default:"30s"`

	// ReadOnly makes every write-bearing operation fail before acquiring
	// any resource; reads stay available.
	ReadOnly bool `envconfig:"READ_ONLY" default:"false"`

	// MaxFileBytes rejects files larger than this threshold during
	// parsing with ParseTooLarge.
	MaxFileBytes int64 `envconfig:"MAX_FILE_BYTES" default:"1048576"`

	// LogLevel controls the zerolog sink wired in at the cmd/ boundary.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Default returns the baseline configuration without consulting the
// environment. Values mirror the envconfig defaults above.
func Default() AppConfig {
	return AppConfig{
		StorageDriver:           "sqlite",
		StorageDSN:              "codemem.db",
		EmbeddingModel:          "default-embed-v1",
		EmbeddingDimension:      384,
		EmbeddingCacheSize:      10000,
		EmbeddingCachePath:      "embedding-cache.db",
		PoolMinSize:             2,
		PoolMaxSize:             10,
		PoolAcquireTimeout:      5 * time.Second,
		PoolMaxAge:              30 * time.Minute,
		PoolHealthCheckInterval: time.Minute,
		LifecycleN1:             168 * time.Hour,
		LifecycleN2:             720 * time.Hour,
		LifecycleN3:             2160 * time.Hour,
		BM25K1:                  1.5,
		BM25B:                   0.75,
		BM25RecomputeEvery:      1000,
		OperationDeadline:       30 * time.Second,
		MaxFileBytes:            1 << 20,
		LogLevel:                "info",
	}
}

// Load reads a .env file if present (ignoring its absence) and then
// populates AppConfig from the environment under the given prefix.
func Load(prefix string) (AppConfig, error) {
	_ = godotenv.Load()
	var cfg AppConfig
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}
