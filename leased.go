package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/codemem/engine/domain/search"
	"github.com/codemem/engine/infrastructure/pool"
)

// dbConnection is the default pool.Connection: a handle over the shared
// sql.DB whose health check is a ping. Close is a no-op because the
// engine owns the underlying handle for its whole lifetime.
type dbConnection struct {
	db *sql.DB
}

func (c *dbConnection) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }
func (c *dbConnection) Close(ctx context.Context) error { return nil }

// leasedStore decorates a VectorStore so that every operation borrows a
// pool connection for exactly its critical section and releases it on all
// exit paths.
type leasedStore struct {
	inner search.VectorStore
	pool  *pool.Pool
}

func (s *leasedStore) lease(ctx context.Context, fn func() error) error {
	l, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer l.Release(ctx)
	return fn()
}

func (s *leasedStore) Upsert(ctx context.Context, req search.IndexRequest) ([]string, error) {
	var written []string
	err := s.lease(ctx, func() error {
		var innerErr error
		written, innerErr = s.inner.Upsert(ctx, req)
		return innerErr
	})
	return written, err
}

func (s *leasedStore) Retrieve(ctx context.Context, collection, id string) (search.Document, error) {
	var doc search.Document
	err := s.lease(ctx, func() error {
		var innerErr error
		doc, innerErr = s.inner.Retrieve(ctx, collection, id)
		return innerErr
	})
	return doc, err
}

func (s *leasedStore) Search(ctx context.Context, q search.Query) ([]search.Result, error) {
	var results []search.Result
	err := s.lease(ctx, func() error {
		var innerErr error
		results, innerErr = s.inner.Search(ctx, q)
		return innerErr
	})
	return results, err
}

func (s *leasedStore) Update(ctx context.Context, collection, id string, payload map[string]any, vector []float32) error {
	return s.lease(ctx, func() error {
		return s.inner.Update(ctx, collection, id, payload, vector)
	})
}

func (s *leasedStore) Delete(ctx context.Context, req search.DeleteRequest) error {
	return s.lease(ctx, func() error {
		return s.inner.Delete(ctx, req)
	})
}

func (s *leasedStore) DeleteByFilter(ctx context.Context, collection string, filter search.Filter, max int) (int, error) {
	var count int
	err := s.lease(ctx, func() error {
		var innerErr error
		count, innerErr = s.inner.DeleteByFilter(ctx, collection, filter, max)
		return innerErr
	})
	return count, err
}

func (s *leasedStore) Scroll(ctx context.Context, collection string, filter search.Filter, cursor search.Cursor, limit int) (search.ScrollPage, error) {
	var page search.ScrollPage
	err := s.lease(ctx, func() error {
		var innerErr error
		page, innerErr = s.inner.Scroll(ctx, collection, filter, cursor, limit)
		return innerErr
	})
	return page, err
}

func nowUTC() time.Time { return time.Now().UTC() }
