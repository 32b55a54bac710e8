// Package memory defines the primitive stored unit of the retrieval core.
package memory

import (
	"fmt"
	"time"
)

// Category is the closed set of kinds a Memory may belong to.
type Category string

const (
	CategoryPreference Category = "preference"
	CategoryFact       Category = "fact"
	CategoryEvent      Category = "event"
	CategoryWorkflow   Category = "workflow"
	CategoryContext    Category = "context"
	CategoryCode       Category = "code"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryPreference, CategoryFact, CategoryEvent, CategoryWorkflow, CategoryContext, CategoryCode:
		return true
	default:
		return false
	}
}

func (c Category) String() string { return string(c) }

// LifecycleState is the coarse activity bucket used to damp search scores.
type LifecycleState string

const (
	StateActive   LifecycleState = "active"
	StateRecent   LifecycleState = "recent"
	StateArchived LifecycleState = "archived"
	StateStale    LifecycleState = "stale"
)

func (s LifecycleState) Valid() bool {
	switch s {
	case StateActive, StateRecent, StateArchived, StateStale:
		return true
	default:
		return false
	}
}

// Weight returns the lifecycle-state retrieval-score damping factor
// specified for the Hybrid Retriever.
func (s LifecycleState) Weight() float64 {
	switch s {
	case StateActive:
		return 1.0
	case StateRecent:
		return 0.7
	case StateArchived:
		return 0.3
	case StateStale:
		return 0.1
	default:
		return 1.0
	}
}

// Memory is the primitive stored unit: free-form content plus a category,
// importance, tags, project namespace, and lifecycle bookkeeping.
type Memory struct {
	id           string
	content      string
	category     Category
	importance   float64
	tags         []string
	project      string
	createdAt    time.Time
	updatedAt    time.Time
	accessCount  int64
	lastAccessed time.Time
	lifecycle    LifecycleState
	embedding    []float32
}

// Params carries the fields supplied by a caller of New; id, timestamps and
// access bookkeeping are assigned by the constructor.
type Params struct {
	Content    string
	Category   Category
	Importance float64
	Tags       []string
	Project    string
	Embedding  []float32
}

// New constructs a Memory in the active lifecycle state, stamping created/
// updated timestamps to the current UTC instant. id must already be a valid
// UUIDv4 string; callers in infrastructure generate it.
func New(id string, p Params, now time.Time) (*Memory, error) {
	if id == "" {
		return nil, fmt.Errorf("memory: id must not be empty")
	}
	if !p.Category.Valid() {
		return nil, fmt.Errorf("memory: invalid category %q", p.Category)
	}
	if p.Importance < 0 || p.Importance > 1 {
		return nil, fmt.Errorf("memory: importance %v out of range [0,1]", p.Importance)
	}
	if p.Project == "" {
		return nil, fmt.Errorf("memory: project must not be empty")
	}
	now = now.UTC()
	tags := make([]string, len(p.Tags))
	copy(tags, p.Tags)
	embedding := make([]float32, len(p.Embedding))
	copy(embedding, p.Embedding)
	return &Memory{
		id:           id,
		content:      p.Content,
		category:     p.Category,
		importance:   p.Importance,
		tags:         tags,
		project:      p.Project,
		createdAt:    now,
		updatedAt:    now,
		accessCount:  0,
		lastAccessed: now,
		lifecycle:    StateActive,
		embedding:    embedding,
	}, nil
}

// Hydrate reconstructs a Memory from persisted fields without re-validating
// timestamps against "now"; used by store adapters loading existing rows.
func Hydrate(id, content string, category Category, importance float64, tags []string, project string, createdAt, updatedAt time.Time, accessCount int64, lastAccessed time.Time, lifecycle LifecycleState, embedding []float32) *Memory {
	t := make([]string, len(tags))
	copy(t, tags)
	e := make([]float32, len(embedding))
	copy(e, embedding)
	return &Memory{
		id: id, content: content, category: category, importance: importance,
		tags: t, project: project, createdAt: createdAt.UTC(), updatedAt: updatedAt.UTC(),
		accessCount: accessCount, lastAccessed: lastAccessed.UTC(), lifecycle: lifecycle, embedding: e,
	}
}

func (m *Memory) ID() string { return m.id }
func (m *Memory) Content() string { return m.content }
func (m *Memory) Category() Category { return m.category }
func (m *Memory) Importance() float64 { return m.importance }
func (m *Memory) Project() string { return m.project }
func (m *Memory) CreatedAt() time.Time { return m.createdAt }
func (m *Memory) UpdatedAt() time.Time { return m.updatedAt }
func (m *Memory) AccessCount() int64 { return m.accessCount }
func (m *Memory) LastAccessed() time.Time { return m.lastAccessed }
func (m *Memory) Lifecycle() LifecycleState { return m.lifecycle }

func (m *Memory) Tags() []string {
	out := make([]string, len(m.tags))
	copy(out, m.tags)
	return out
}

func (m *Memory) Embedding() []float32 {
	out := make([]float32, len(m.embedding))
	copy(out, m.embedding)
	return out
}

// Delta carries the mutable fields an Update call may change. A nil pointer
// field means "leave unchanged".
type Delta struct {
	Content    *string
	Category   *Category
	Importance *float64
	Tags       []string
	TagsSet    bool
	Embedding  []float32
}

// ContentChanged reports whether the delta touches Content, which
// invalidates the cached embedding and requires regeneration.
func (d Delta) ContentChanged() bool { return d.Content != nil }

// Apply returns a new Memory with δ applied and UpdatedAt bumped to now.
// Fields not present in δ are carried over unchanged.
func (m *Memory) Apply(d Delta, now time.Time) (*Memory, error) {
	next := *m
	if d.Content != nil {
		next.content = *d.Content
	}
	if d.Category != nil {
		if !d.Category.Valid() {
			return nil, fmt.Errorf("memory: invalid category %q", *d.Category)
		}
		next.category = *d.Category
	}
	if d.Importance != nil {
		if *d.Importance < 0 || *d.Importance > 1 {
			return nil, fmt.Errorf("memory: importance %v out of range [0,1]", *d.Importance)
		}
		next.importance = *d.Importance
	}
	if d.TagsSet {
		tags := make([]string, len(d.Tags))
		copy(tags, d.Tags)
		next.tags = tags
	}
	if d.Embedding != nil {
		e := make([]float32, len(d.Embedding))
		copy(e, d.Embedding)
		next.embedding = e
	}
	now = now.UTC()
	if now.Before(next.createdAt) {
		now = next.createdAt
	}
	next.updatedAt = now
	return &next, nil
}

// Touch records an access, incrementing the counter and stamping
// lastAccessed; it does not alter updatedAt.
func (m *Memory) Touch(now time.Time) {
	m.accessCount++
	m.lastAccessed = now.UTC()
}

// Reclassify recomputes lifecycle state from the time elapsed since last
// access, using the configured N1/N2/N3 thresholds.
func (m *Memory) Reclassify(now time.Time, n1, n2, n3 time.Duration) {
	age := now.UTC().Sub(m.lastAccessed)
	switch {
	case age >= n3:
		m.lifecycle = StateStale
	case age >= n2:
		m.lifecycle = StateArchived
	case age >= n1:
		m.lifecycle = StateRecent
	default:
		m.lifecycle = StateActive
	}
}

// Validate re-checks the Memory invariants against the current state.
func (m *Memory) Validate() error {
	if m.importance < 0 || m.importance > 1 {
		return fmt.Errorf("memory %s: importance %v out of range", m.id, m.importance)
	}
	if m.updatedAt.Before(m.createdAt) {
		return fmt.Errorf("memory %s: updated_at before created_at", m.id)
	}
	if !m.category.Valid() {
		return fmt.Errorf("memory %s: invalid category %q", m.id, m.category)
	}
	if m.accessCount < 0 {
		return fmt.Errorf("memory %s: negative access_count", m.id)
	}
	return nil
}
