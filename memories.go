package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/codemem/engine/domain/memory"
	"github.com/codemem/engine/domain/search"
	"github.com/codemem/engine/errs"
	"github.com/codemem/engine/infrastructure/retriever"
)

// StoreParams carries the caller-supplied fields for Store.
type StoreParams struct {
	Project    string
	Content    string
	Category   memory.Category
	Importance float64
	Tags       []string
}

// Store creates a Memory in the active lifecycle state, embeds its
// content, and writes it to the vector collection and the lexical index.
func (e *Engine) Store(ctx context.Context, p StoreParams) (*memory.Memory, error) {
	const op = "engine.store"
	if err := e.writable(op); err != nil {
		return nil, err
	}
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	now := nowUTC()
	m, err := memory.New(uuid.NewString(), memory.Params{
		Content:    p.Content,
		Category:   p.Category,
		Importance: p.Importance,
		Tags:       p.Tags,
		Project:    p.Project,
	}, now)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, op, err)
	}

	vectors, err := e.embedder.Embed(ctx, []string{p.Content})
	if err != nil {
		return nil, mapErr(op, err)
	}
	m, err = m.Apply(memory.Delta{Embedding: vectors[0]}, now)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, op, err)
	}

	if _, err := e.vectors.Upsert(ctx, search.IndexRequest{
		Collection: e.collection,
		Documents:  []search.Document{memoryToDocument(m)},
	}); err != nil {
		return nil, mapErr(op, err)
	}
	if err := e.lexical.Add(ctx, m.ID(), m.Content()); err != nil {
		return nil, mapErr(op, err)
	}

	e.projectAggregate(p.Project).RecordUpdate()
	e.logger.Debug("stored memory", "project", p.Project, "id", m.ID(), "category", p.Category)
	return m, nil
}

// RetrieveByID fetches a single Memory and records the access (unless the
// engine is read-only, in which case the access bookkeeping is skipped).
func (e *Engine) RetrieveByID(ctx context.Context, id string) (*memory.Memory, error) {
	const op = "engine.retrieve_by_id"
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	doc, err := e.vectors.Retrieve(ctx, e.collection, id)
	if err != nil {
		return nil, mapErr(op, err)
	}
	m := documentToMemory(doc)

	if !e.cfg.ReadOnly {
		now := nowUTC()
		m.Touch(now)
		payload := map[string]any{
			"access_count":       m.AccessCount(),
			"last_accessed_unix": now.Unix(),
		}
		if err := e.vectors.Update(ctx, e.collection, id, payload, nil); err != nil {
			// Access bookkeeping is best-effort; the read still succeeds.
			e.logger.Warn("access bookkeeping failed", "id", id, "error", err)
		}
	}
	return m, nil
}

// Retrieve runs a ranked hybrid query under the filter. The fusion
// strategy is selectable per call via retriever options.
func (e *Engine) Retrieve(ctx context.Context, query string, filter search.Filter, k int, opts ...retriever.Option) ([]search.Result, error) {
	const op = "engine.retrieve"
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	results, err := e.searcher.Search(ctx, query, filter, k, opts...)
	if err != nil {
		return nil, mapErr(op, err)
	}
	if filter.Project != "" {
		e.projectAggregate(filter.Project).RecordSearch()
	}
	return results, nil
}

// Update applies a delta to a Memory. A content change invalidates the
// cached embedding and regenerates it so the stored vector always matches
// the current content.
func (e *Engine) Update(ctx context.Context, id string, delta memory.Delta) (*memory.Memory, error) {
	const op = "engine.update"
	if err := e.writable(op); err != nil {
		return nil, err
	}
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	doc, err := e.vectors.Retrieve(ctx, e.collection, id)
	if err != nil {
		return nil, mapErr(op, err)
	}
	current := documentToMemory(doc)

	if delta.ContentChanged() {
		e.embedder.Invalidate(current.Content())
		vectors, err := e.embedder.Embed(ctx, []string{*delta.Content})
		if err != nil {
			return nil, mapErr(op, err)
		}
		delta.Embedding = vectors[0]
	}

	next, err := current.Apply(delta, nowUTC())
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, op, err)
	}

	payload := map[string]any{
		"content":         next.Content(),
		"category":        next.Category().String(),
		"importance":      next.Importance(),
		"tags":            next.Tags(),
		"lifecycle_state": string(next.Lifecycle()),
		"updated_at_unix": next.UpdatedAt().Unix(),
	}
	var vector []float32
	if delta.ContentChanged() {
		vector = next.Embedding()
	}
	if err := e.vectors.Update(ctx, e.collection, id, payload, vector); err != nil {
		return nil, mapErr(op, err)
	}
	if delta.ContentChanged() {
		if err := e.lexical.Update(ctx, id, next.Content()); err != nil {
			return nil, mapErr(op, err)
		}
	}

	e.projectAggregate(next.Project()).RecordUpdate()
	return next, nil
}

// Delete removes a Memory from the collection and the lexical index.
// Idempotent: deleting an absent id succeeds.
func (e *Engine) Delete(ctx context.Context, id string) error {
	const op = "engine.delete"
	if err := e.writable(op); err != nil {
		return err
	}
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	if err := e.vectors.Delete(ctx, search.DeleteRequest{Collection: e.collection, ID: id}); err != nil {
		return mapErr(op, err)
	}
	if err := e.lexical.Remove(ctx, id); err != nil {
		return mapErr(op, err)
	}
	return nil
}

// DeleteByFilter deletes at most max matching memories and reports the
// count deleted. max == 0 deletes nothing and reports 0; a negative max
// means unbounded.
func (e *Engine) DeleteByFilter(ctx context.Context, filter search.Filter, max int) (int, error) {
	const op = "engine.delete_by_filter"
	if err := e.writable(op); err != nil {
		return 0, err
	}
	if max == 0 {
		return 0, nil
	}
	validated, err := filter.Validated()
	if err != nil {
		return 0, err
	}
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	// Walk the matching ids first so the lexical index follows the same
	// deletion; the store-level delete itself stays a single filtered
	// statement.
	var cursor search.Cursor
	seen := 0
	for {
		page, err := e.vectors.Scroll(ctx, e.collection, validated, cursor, 256)
		if err != nil {
			return 0, mapErr(op, err)
		}
		for _, d := range page.Documents {
			if max > 0 && seen >= max {
				break
			}
			if err := e.lexical.Remove(ctx, d.ID); err != nil {
				return 0, mapErr(op, err)
			}
			seen++
		}
		if page.Next == "" || (max > 0 && seen >= max) {
			break
		}
		cursor = page.Next
	}

	storeMax := max
	if storeMax < 0 {
		storeMax = 0
	}
	count, err := e.vectors.DeleteByFilter(ctx, e.collection, validated, storeMax)
	if err != nil {
		return 0, mapErr(op, err)
	}
	return count, nil
}

// List returns a filtered, paginated page of memories.
func (e *Engine) List(ctx context.Context, filter search.Filter, cursor search.Cursor, limit int) ([]*memory.Memory, search.Cursor, error) {
	const op = "engine.list"
	validated, err := filter.Validated()
	if err != nil {
		return nil, "", err
	}
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	page, err := e.vectors.Scroll(ctx, e.collection, validated, cursor, limit)
	if err != nil {
		return nil, "", mapErr(op, err)
	}
	out := make([]*memory.Memory, 0, len(page.Documents))
	for _, d := range page.Documents {
		out = append(out, documentToMemory(d))
	}
	return out, page.Next, nil
}

// RefreshLifecycles recomputes lifecycle states for a project from time
// since last access against the configured thresholds, returning how many
// memories changed state.
func (e *Engine) RefreshLifecycles(ctx context.Context, proj string) (int, error) {
	const op = "engine.refresh_lifecycles"
	if err := e.writable(op); err != nil {
		return 0, err
	}
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	filter := search.New(search.WithProject(proj))
	now := nowUTC()
	changed := 0
	var cursor search.Cursor
	for {
		page, err := e.vectors.Scroll(ctx, e.collection, filter, cursor, 256)
		if err != nil {
			return changed, mapErr(op, err)
		}
		for _, d := range page.Documents {
			m := documentToMemory(d)
			prior := m.Lifecycle()
			m.Reclassify(now, e.cfg.LifecycleN1, e.cfg.LifecycleN2, e.cfg.LifecycleN3)
			if m.Lifecycle() == prior {
				continue
			}
			payload := map[string]any{"lifecycle_state": string(m.Lifecycle())}
			if err := e.vectors.Update(ctx, e.collection, d.ID, payload, nil); err != nil {
				return changed, mapErr(op, err)
			}
			changed++
		}
		if page.Next == "" {
			break
		}
		cursor = page.Next
	}
	return changed, nil
}

// memoryToDocument flattens a Memory into the vector store payload
// schema.
func memoryToDocument(m *memory.Memory) search.Document {
	return search.Document{
		ID:               m.ID(),
		Project:          m.Project(),
		Category:         m.Category().String(),
		Content:          m.Content(),
		Tags:             m.Tags(),
		Importance:       m.Importance(),
		LifecycleState:   string(m.Lifecycle()),
		CreatedAtUnix:    m.CreatedAt().Unix(),
		UpdatedAtUnix:    m.UpdatedAt().Unix(),
		AccessCount:      m.AccessCount(),
		LastAccessedUnix: m.LastAccessed().Unix(),
		Vector:           m.Embedding(),
	}
}

// documentToMemory rehydrates a domain Memory from a stored point.
func documentToMemory(d search.Document) *memory.Memory {
	return memory.Hydrate(
		d.ID, d.Content, memory.Category(d.Category), d.Importance, d.Tags, d.Project,
		time.Unix(d.CreatedAtUnix, 0).UTC(), time.Unix(d.UpdatedAtUnix, 0).UTC(),
		d.AccessCount, time.Unix(d.LastAccessedUnix, 0).UTC(),
		memory.LifecycleState(d.LifecycleState), d.Vector,
	)
}
