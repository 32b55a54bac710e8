// Package search defines the retrieval-side contracts: the filter algebra,
// query/result shapes, the VectorStore/BM25Store/Embedder collaborator
// interfaces, and the rank-fusion strategies that combine their rankings.
package search

// Operator is the closed set of predicate shapes the filter algebra
// supports: equality, set membership, range, and negation.
type Operator string

const (
	OpEqual    Operator = "eq"
	OpNotEqual Operator = "neq"
	OpIn       Operator = "in"
	OpNotIn    Operator = "not_in"
	OpGTE      Operator = "gte"
	OpLTE      Operator = "lte"
	OpGT       Operator = "gt"
	OpLT       Operator = "lt"
	OpContains Operator = "contains" // set-membership predicate for tags
	OpNot      Operator = "not"      // negation wrapping a single inner predicate
)

// Predicate is one clause of the filter algebra: a field compared with an
// operator against a value (or, for OpNot, wrapping a single inner
// predicate via Inner).
type Predicate struct {
	Field string
	Op    Operator
	Value any
	Inner *Predicate
}

// Filter is a conjunction of predicates. The SQL vector store pushes it to
// the backend as WHERE clauses; the BM25 sub-query of hybrid search and
// the in-memory vector store evaluate it in Go through Matches.
type Filter struct {
	Project           string
	AllowCrossProject bool
	Predicates        []Predicate
}

// Option configures a Filter via the functional-options pattern.
type Option func(*Filter)

// New builds a Filter from the given options.
func New(opts ...Option) Filter {
	var f Filter
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

func WithProject(project string) Option {
	return func(f *Filter) { f.Project = project }
}

// WithCrossProjectConsent sets the explicit consent flag required to
// search across projects.
func WithCrossProjectConsent() Option {
	return func(f *Filter) { f.AllowCrossProject = true }
}

func WithCategory(category string) Option {
	return func(f *Filter) {
		f.Predicates = append(f.Predicates, Predicate{Field: "category", Op: OpEqual, Value: category})
	}
}

func WithLanguage(language string) Option {
	return func(f *Filter) {
		f.Predicates = append(f.Predicates, Predicate{Field: "language", Op: OpEqual, Value: language})
	}
}

func WithLifecycleState(state string) Option {
	return func(f *Filter) {
		f.Predicates = append(f.Predicates, Predicate{Field: "lifecycle_state", Op: OpEqual, Value: state})
	}
}

func WithTag(tag string) Option {
	return func(f *Filter) {
		f.Predicates = append(f.Predicates, Predicate{Field: "tags", Op: OpContains, Value: tag})
	}
}

func WithImportanceRange(min, max float64) Option {
	return func(f *Filter) {
		f.Predicates = append(f.Predicates,
			Predicate{Field: "importance", Op: OpGTE, Value: min},
			Predicate{Field: "importance", Op: OpLTE, Value: max},
		)
	}
}

func WithExclude(field string, value any) Option {
	return func(f *Filter) {
		inner := Predicate{Field: field, Op: OpEqual, Value: value}
		f.Predicates = append(f.Predicates, Predicate{Field: field, Op: OpNot, Inner: &inner})
	}
}

// Validated enforces the cross-project consent invariant before a filter is
// used by any retrieval operation.
func (f Filter) Validated() (Filter, error) {
	if f.Project == "" && !f.AllowCrossProject {
		return Filter{}, validationErr
	}
	return f, nil
}
