package vectorstore

import (
	"context"
	"sort"
	"sync"

	"github.com/codemem/engine/domain/search"
	"github.com/codemem/engine/errs"
)

// Memory is an in-process fake search.VectorStore with the same
// filter/ranking semantics as Store but no SQL dependency, so
// collaborators (retriever, indexer) can be tested without a database.
type Memory struct {
	mu         sync.Mutex
	points     map[string]map[string]search.Document // collection -> id -> doc
	dimensions map[string]int
}

// NewMemory returns an empty in-memory VectorStore.
func NewMemory() *Memory {
	return &Memory{
		points:     make(map[string]map[string]search.Document),
		dimensions: make(map[string]int),
	}
}

func (m *Memory) collection(name string) map[string]search.Document {
	c, ok := m.points[name]
	if !ok {
		c = make(map[string]search.Document)
		m.points[name] = c
	}
	return c
}

func (m *Memory) Upsert(ctx context.Context, req search.IndexRequest) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.collection(req.Collection)
	var written []string
	for _, d := range req.Documents {
		if len(d.Vector) > 0 {
			if cached, ok := m.dimensions[req.Collection]; ok && cached != len(d.Vector) {
				return written, errs.DimensionMismatch(cached, len(d.Vector))
			}
			m.dimensions[req.Collection] = len(d.Vector)
		}
		c[d.ID] = d
		written = append(written, d.ID)
	}
	return written, nil
}

func (m *Memory) Retrieve(ctx context.Context, collection, id string) (search.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.points[collection]
	if !ok {
		return search.Document{}, errs.NotFound("point_not_found", "no point with id "+id+" in collection "+collection)
	}
	d, ok := c[id]
	if !ok {
		return search.Document{}, errs.NotFound("point_not_found", "no point with id "+id+" in collection "+collection)
	}
	return d, nil
}

func (m *Memory) Search(ctx context.Context, q search.Query) ([]search.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := matchFilter(m.points[q.Collection], q.Collection, q.Filter)
	return topKByCosine(q.Vector, docs, q.K), nil
}

func (m *Memory) Update(ctx context.Context, collection, id string, payload map[string]any, vector []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.points[collection]
	if !ok {
		return errs.NotFound("point_not_found", "no point with id "+id+" in collection "+collection)
	}
	d, ok := c[id]
	if !ok {
		return errs.NotFound("point_not_found", "no point with id "+id+" in collection "+collection)
	}
	row, _ := toModel(collection, d)
	applyPayloadMerge(&row, payload)
	d = toDocument(row)
	if vector != nil {
		if cached, ok := m.dimensions[collection]; ok && cached != len(vector) {
			return errs.DimensionMismatch(cached, len(vector))
		}
		m.dimensions[collection] = len(vector)
		d.Vector = vector
	}
	c[id] = d
	return nil
}

func (m *Memory) Delete(ctx context.Context, req search.DeleteRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.points[req.Collection]; ok {
		delete(c, req.ID)
	}
	return nil
}

func (m *Memory) DeleteByFilter(ctx context.Context, collection string, filter search.Filter, max int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.points[collection]
	if !ok {
		return 0, nil
	}
	matched := matchFilter(c, collection, filter)
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	if max > 0 && len(matched) > max {
		matched = matched[:max]
	}
	for _, d := range matched {
		delete(c, d.ID)
	}
	return len(matched), nil
}

func (m *Memory) Scroll(ctx context.Context, collection string, filter search.Filter, cursor search.Cursor, limit int) (search.ScrollPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := matchFilter(m.points[collection], collection, filter)
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	start := 0
	if cursor != "" {
		for i, d := range matched {
			if d.ID > string(cursor) {
				start = i
				break
			}
			start = i + 1
		}
	}
	if start >= len(matched) {
		return search.ScrollPage{}, nil
	}
	end := start + limit
	next := search.Cursor("")
	if limit > 0 && end < len(matched) {
		next = search.Cursor(matched[end-1].ID)
	} else {
		end = len(matched)
	}
	return search.ScrollPage{Documents: matched[start:end], Next: next}, nil
}

func matchFilter(c map[string]search.Document, collection string, f search.Filter) []search.Document {
	var out []search.Document
	for _, d := range c {
		if f.Matches(d) {
			out = append(out, d)
		}
	}
	return out
}
