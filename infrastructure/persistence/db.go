// Package persistence sets up the gorm handle backing the local metadata
// store: project file tables, embedding cache, call-graph tables, and the
// vector collection itself.
package persistence

import (
	"context"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Driver selects the storage backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a *gorm.DB for the given driver and DSN.
func Open(driver Driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	switch driver {
	case DriverPostgres:
		return gorm.Open(postgres.Open(dsn), cfg)
	default:
		return gorm.Open(sqlite.Open(dsn), cfg)
	}
}

// PreMigrate runs AutoMigrate for the given models, logging each model's
// table name at debug level.
func PreMigrate(ctx context.Context, db *gorm.DB, models ...any) error {
	logger := slog.Default().With("component", "persistence")
	for _, m := range models {
		if err := db.WithContext(ctx).AutoMigrate(m); err != nil {
			logger.Error("migration failed", "model", typeName(m), "error", err)
			return err
		}
		logger.Debug("migrated model", "model", typeName(m))
	}
	return nil
}

func typeName(m any) string {
	type named interface{ TableName() string }
	if n, ok := m.(named); ok {
		return n.TableName()
	}
	return "unknown"
}
