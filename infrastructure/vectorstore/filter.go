package vectorstore

import (
	"fmt"

	"github.com/codemem/engine/domain/search"
	"github.com/codemem/engine/internal/database"
)

// buildQuery translates a search.Filter into an internal/database.Query,
// pushing every predicate to SQL WHERE clauses rather than filtering in
// application code.
func buildQuery(collection string, f search.Filter) *database.Query {
	q := database.NewQuery().Equal("collection", collection)
	if f.Project != "" {
		q = q.Equal("project", f.Project)
	}
	for _, p := range f.Predicates {
		q = applyPredicate(q, p, false)
	}
	return q
}

func applyPredicate(q *database.Query, p search.Predicate, negate bool) *database.Query {
	if p.Op == search.OpNot {
		if p.Inner == nil {
			return q
		}
		return applyPredicate(q, *p.Inner, !negate)
	}

	column := columnFor(p.Field)
	op := p.Op
	if negate {
		op = invert(op)
	}

	switch op {
	case search.OpEqual:
		return q.Equal(column, p.Value)
	case search.OpNotEqual:
		return q.NotEqual(column, p.Value)
	case search.OpIn:
		return q.In(column, p.Value)
	case search.OpNotIn:
		return q.NotIn(column, p.Value)
	case search.OpGTE:
		return q.GreaterThanOrEqual(column, p.Value)
	case search.OpLTE:
		return q.LessThanOrEqual(column, p.Value)
	case search.OpGT:
		return q.GreaterThan(column, p.Value)
	case search.OpLT:
		return q.LessThan(column, p.Value)
	case search.OpContains:
		return q.Like(column, fmt.Sprintf(`%%"%v"%%`, p.Value))
	default:
		return q
	}
}

// invert maps an operator to its logical negation, used when a predicate
// is nested under OpNot since the database.Query builder has no generic
// NOT-wrapping primitive.
func invert(op search.Operator) search.Operator {
	switch op {
	case search.OpEqual:
		return search.OpNotEqual
	case search.OpNotEqual:
		return search.OpEqual
	case search.OpIn:
		return search.OpNotIn
	case search.OpNotIn:
		return search.OpIn
	case search.OpGTE:
		return search.OpLT
	case search.OpLTE:
		return search.OpGT
	case search.OpGT:
		return search.OpLTE
	case search.OpLT:
		return search.OpGTE
	default:
		return op
	}
}

// columnFor maps a Filter predicate field name to its storage column;
// "tags" is the one field whose storage shape (a JSON array column)
// differs from its filter name.
func columnFor(field string) string {
	if field == "tags" {
		return "tags_json"
	}
	return field
}
