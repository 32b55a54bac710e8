package database

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// EntityMapper converts between a persisted gorm model D and a domain
// entity E, keeping gorm tags out of the domain layer.
type EntityMapper[D any, E any] interface {
	ToModel(e E) D
	ToEntity(d D) E
}

// Repository is a generic gorm-backed repository over domain entity E
// persisted as model D.
type Repository[D any, E any] struct {
	db     *gorm.DB
	mapper EntityMapper[D, E]
	table  string
}

// NewRepository builds a Repository using D's default gorm table name.
func NewRepository[D any, E any](db *gorm.DB, mapper EntityMapper[D, E]) *Repository[D, E] {
	return &Repository[D, E]{db: db, mapper: mapper}
}

// NewRepositoryForTable builds a Repository against an explicit table
// name, needed when multiple logical collections share one model shape
// (gorm's dynamic-table caveat: .Table() must be paired with a fresh
// Session to avoid leaking across calls).
func NewRepositoryForTable[D any, E any](db *gorm.DB, mapper EntityMapper[D, E], table string) *Repository[D, E] {
	return &Repository[D, E]{db: db, mapper: mapper, table: table}
}

func (r *Repository[D, E]) modelDB(ctx context.Context) *gorm.DB {
	db := r.db.WithContext(ctx)
	if r.table != "" {
		return db.Table(r.table).Session(&gorm.Session{})
	}
	return db
}

func (r *Repository[D, E]) sessionDB(ctx context.Context) *gorm.DB {
	return r.modelDB(ctx).Session(&gorm.Session{})
}

// Mapper exposes the configured EntityMapper for callers assembling
// structured scans.
func (r *Repository[D, E]) Mapper() EntityMapper[D, E] { return r.mapper }

// Create inserts a new row for e.
func (r *Repository[D, E]) Create(ctx context.Context, e E) error {
	model := r.mapper.ToModel(e)
	return r.modelDB(ctx).Create(&model).Error
}

// Save upserts a row (insert-or-replace on primary key).
func (r *Repository[D, E]) Save(ctx context.Context, e E) error {
	model := r.mapper.ToModel(e)
	return r.modelDB(ctx).Save(&model).Error
}

// Find returns all rows matching q.
func (r *Repository[D, E]) Find(ctx context.Context, q *Query) ([]E, error) {
	var models []D
	db := r.modelDB(ctx)
	if q != nil {
		db = q.Apply(db)
	}
	if err := db.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]E, 0, len(models))
	for _, m := range models {
		out = append(out, r.mapper.ToEntity(m))
	}
	return out, nil
}

// FindOne returns the first row matching q, or (zero, false, nil) if none.
func (r *Repository[D, E]) FindOne(ctx context.Context, q *Query) (E, bool, error) {
	var model D
	db := r.modelDB(ctx)
	if q != nil {
		db = q.Apply(db)
	}
	err := db.First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		var zero E
		return zero, false, nil
	}
	if err != nil {
		var zero E
		return zero, false, err
	}
	return r.mapper.ToEntity(model), true, nil
}

// Exists reports whether any row matches q.
func (r *Repository[D, E]) Exists(ctx context.Context, q *Query) (bool, error) {
	var count int64
	db := r.modelDB(ctx)
	if q != nil {
		db = q.Apply(db)
	}
	var model D
	if err := db.Model(&model).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Count returns the number of rows matching q.
func (r *Repository[D, E]) Count(ctx context.Context, q *Query) (int64, error) {
	var count int64
	db := r.modelDB(ctx)
	if q != nil {
		db = q.Apply(db)
	}
	var model D
	if err := db.Model(&model).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteBy deletes all rows matching q, returning the number deleted.
func (r *Repository[D, E]) DeleteBy(ctx context.Context, q *Query) (int64, error) {
	var model D
	db := r.modelDB(ctx)
	if q != nil {
		db = q.Apply(db)
	}
	res := db.Delete(&model)
	return res.RowsAffected, res.Error
}
