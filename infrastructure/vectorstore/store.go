package vectorstore

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"gorm.io/gorm"

	"github.com/codemem/engine/domain/search"
	"github.com/codemem/engine/errs"
	"github.com/codemem/engine/infrastructure/persistence"
)

// Store is the gorm-backed search.VectorStore implementation shared by
// the sqlite and postgres backends (see package doc for why both share
// one Go-ranked implementation rather than a pgvector-specific path).
//
// It talks to gorm directly rather than through internal/database.Repository:
// Repository's EntityMapper maps one model type to one entity type, but a
// point's storage row also carries its collection, a routing key that
// lives outside search.Document. The Query/Filter builder (buildQuery) is
// still reused for every read and delete path.
type Store struct {
	db *gorm.DB

	mu         sync.Mutex
	dimensions map[string]int
}

// Open builds a Store and migrates its tables.
func Open(ctx context.Context, db *gorm.DB) (*Store, error) {
	if err := persistence.PreMigrate(ctx, db, &pointModel{}, &collectionMetaModel{}); err != nil {
		return nil, err
	}
	return &Store{db: db, dimensions: make(map[string]int)}, nil
}

// ensureDimension locks a collection's vector dimension on first write
// and returns errs.KindDimensionMismatch on any later write whose vector
// length differs.
func (s *Store) ensureDimension(ctx context.Context, collection string, dim int) error {
	if dim == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.dimensions[collection]; ok {
		if cached != dim {
			return errs.DimensionMismatch(cached, dim)
		}
		return nil
	}
	var row collectionMetaModel
	err := s.db.WithContext(ctx).Where("collection = ?", collection).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		row = collectionMetaModel{Collection: collection, Dimension: dim}
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			return errs.StorageError("vectorstore.ensure_dimension", err)
		}
		s.dimensions[collection] = dim
		return nil
	}
	if err != nil {
		return errs.StorageError("vectorstore.ensure_dimension", err)
	}
	s.dimensions[collection] = row.Dimension
	if row.Dimension != dim {
		return errs.DimensionMismatch(row.Dimension, dim)
	}
	return nil
}

// Upsert implements search.VectorStore.
func (s *Store) Upsert(ctx context.Context, req search.IndexRequest) ([]string, error) {
	var written []string
	for _, d := range req.Documents {
		if len(d.Vector) > 0 {
			if err := s.ensureDimension(ctx, req.Collection, len(d.Vector)); err != nil {
				return written, err
			}
		}
		row, err := toModel(req.Collection, d)
		if err != nil {
			return written, errs.StorageError("vectorstore.upsert", err)
		}
		if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
			// Partial batches are permitted: report what succeeded so
			// far rather than failing the whole request.
			return written, errs.StorageError("vectorstore.upsert", err)
		}
		written = append(written, d.ID)
	}
	return written, nil
}

// Retrieve implements search.VectorStore.
func (s *Store) Retrieve(ctx context.Context, collection, id string) (search.Document, error) {
	var row pointModel
	err := s.db.WithContext(ctx).Where("collection = ? AND id = ?", collection, id).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return search.Document{}, errs.NotFound("point_not_found", "no point with id "+id+" in collection "+collection)
	}
	if err != nil {
		return search.Document{}, errs.StorageError("vectorstore.retrieve", err)
	}
	return toDocument(row), nil
}

// Search implements search.VectorStore: it pushes the filter to SQL, then
// ranks the narrowed candidate set by cosine similarity in Go (see
// package doc).
func (s *Store) Search(ctx context.Context, q search.Query) ([]search.Result, error) {
	query := buildQuery(q.Collection, q.Filter)
	var rows []pointModel
	db := query.Apply(s.db.WithContext(ctx).Model(&pointModel{}))
	if err := db.Find(&rows).Error; err != nil {
		return nil, errs.StorageError("vectorstore.search", err)
	}
	docs := make([]search.Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, toDocument(r))
	}
	return topKByCosine(q.Vector, docs, q.K), nil
}

// Update implements search.VectorStore: merges payload fields and, if
// vector is non-nil, replaces it atomically.
func (s *Store) Update(ctx context.Context, collection, id string, payload map[string]any, vector []float32) error {
	var row pointModel
	err := s.db.WithContext(ctx).Where("collection = ? AND id = ?", collection, id).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return errs.NotFound("point_not_found", "no point with id "+id+" in collection "+collection)
	}
	if err != nil {
		return errs.StorageError("vectorstore.update", err)
	}
	applyPayloadMerge(&row, payload)
	if vector != nil {
		if err := s.ensureDimension(ctx, collection, len(vector)); err != nil {
			return err
		}
		buf, err := json.Marshal(vector)
		if err != nil {
			return errs.StorageError("vectorstore.update", err)
		}
		row.VectorJSON = string(buf)
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return errs.StorageError("vectorstore.update", err)
	}
	return nil
}

func applyPayloadMerge(row *pointModel, payload map[string]any) {
	for k, v := range payload {
		switch k {
		case "category":
			row.Category, _ = v.(string)
		case "content":
			row.Content, _ = v.(string)
		case "language":
			row.Language, _ = v.(string)
		case "file_path":
			row.FilePath, _ = v.(string)
		case "lifecycle_state":
			row.LifecycleState, _ = v.(string)
		case "importance":
			if f, ok := toFloat(v); ok {
				row.Importance = f
			}
		case "access_count":
			if f, ok := toFloat(v); ok {
				row.AccessCount = int64(f)
			}
		case "updated_at_unix":
			if f, ok := toFloat(v); ok {
				row.UpdatedAtUnix = int64(f)
			}
		case "last_accessed_unix":
			if f, ok := toFloat(v); ok {
				row.LastAccessedUnix = int64(f)
			}
		case "tags":
			if tags, ok := v.([]string); ok {
				buf, _ := json.Marshal(tags)
				row.TagsJSON = string(buf)
			}
		}
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Delete implements search.VectorStore; idempotent.
func (s *Store) Delete(ctx context.Context, req search.DeleteRequest) error {
	err := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", req.Collection, req.ID).
		Delete(&pointModel{}).Error
	if err != nil {
		return errs.StorageError("vectorstore.delete", err)
	}
	return nil
}

// DeleteByFilter implements search.VectorStore. With max <= 0 it is a
// single filtered DELETE statement. With max > 0 it first selects up to
// max matching ids and then deletes exactly those ids in a second
// statement; the two statements are not run in one transaction.
func (s *Store) DeleteByFilter(ctx context.Context, collection string, filter search.Filter, max int) (int, error) {
	query := buildQuery(collection, filter)
	db := query.Apply(s.db.WithContext(ctx).Model(&pointModel{}))
	if max > 0 {
		// SQLite/Postgres both support DELETE ... WHERE id IN (SELECT
		// ... LIMIT ?) for a bounded delete; gorm's Delete doesn't
		// expose LIMIT directly, so select the bounded id set first
		// and delete exactly those ids in one statement.
		var ids []string
		if err := query.Limit(max).Apply(s.db.WithContext(ctx).Model(&pointModel{})).Pluck("id", &ids).Error; err != nil {
			return 0, errs.StorageError("vectorstore.delete_by_filter", err)
		}
		if len(ids) == 0 {
			return 0, nil
		}
		res := s.db.WithContext(ctx).Where("collection = ? AND id IN ?", collection, ids).Delete(&pointModel{})
		if res.Error != nil {
			return 0, errs.StorageError("vectorstore.delete_by_filter", res.Error)
		}
		return int(res.RowsAffected), nil
	}
	res := db.Delete(&pointModel{})
	if res.Error != nil {
		return 0, errs.StorageError("vectorstore.delete_by_filter", res.Error)
	}
	return int(res.RowsAffected), nil
}

// Scroll implements search.VectorStore's bounded pagination. The cursor
// is an opaque, monotonically increasing row offset.
func (s *Store) Scroll(ctx context.Context, collection string, filter search.Filter, cursor search.Cursor, limit int) (search.ScrollPage, error) {
	offset := 0
	if cursor != "" {
		if n, err := strconv.Atoi(string(cursor)); err == nil {
			offset = n
		}
	}
	query := buildQuery(collection, filter).OrderAsc("id").Limit(limit + 1).Offset(offset)
	var rows []pointModel
	db := query.Apply(s.db.WithContext(ctx).Model(&pointModel{}))
	if err := db.Find(&rows).Error; err != nil {
		return search.ScrollPage{}, errs.StorageError("vectorstore.scroll", err)
	}
	next := search.Cursor("")
	if len(rows) > limit {
		rows = rows[:limit]
		next = search.Cursor(strconv.Itoa(offset + limit))
	}
	docs := make([]search.Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, toDocument(r))
	}
	return search.ScrollPage{Documents: docs, Next: next}, nil
}
