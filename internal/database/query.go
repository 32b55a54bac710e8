// Package database provides the generic persistence helpers shared by
// every gorm-backed store in the retrieval core: a fluent Filter/Query
// builder, a generic Repository[D,E], and Transaction helpers.
package database

import "gorm.io/gorm"

// FilterOperator is the closed set of comparison operators a Filter clause
// may use.
type FilterOperator string

const (
	OpEqual        FilterOperator = "eq"
	OpNotEqual     FilterOperator = "neq"
	OpGreaterThan  FilterOperator = "gt"
	OpGreaterEqual FilterOperator = "gte"
	OpLessThan     FilterOperator = "lt"
	OpLessEqual    FilterOperator = "lte"
	OpLike         FilterOperator = "like"
	OpILike        FilterOperator = "ilike"
	OpIn           FilterOperator = "in"
	OpNotIn        FilterOperator = "not_in"
	OpIsNull       FilterOperator = "is_null"
	OpIsNotNull    FilterOperator = "is_not_null"
	OpBetween      FilterOperator = "between"
)

func (o FilterOperator) String() string { return string(o) }

// Filter is a single predicate: a column, an operator, and the value(s) it
// compares against (Value for unary operators, Low/High for Between).
type Filter struct {
	Column string
	Op     FilterOperator
	Value  any
	Low    any
	High   any
}

// NewFilter constructs a simple unary filter.
func NewFilter(column string, op FilterOperator, value any) Filter {
	return Filter{Column: column, Op: op, Value: value}
}

// NewBetweenFilter constructs a range filter.
func NewBetweenFilter(column string, low, high any) Filter {
	return Filter{Column: column, Op: OpBetween, Low: low, High: high}
}

// SortDirection is ascending or descending ordering.
type SortDirection string

const (
	Asc  SortDirection = "ASC"
	Desc SortDirection = "DESC"
)

// OrderBy is one ORDER BY clause.
type OrderBy struct {
	Column    string
	Direction SortDirection
}

// Query is a fluent builder accumulating filters, ordering, and
// pagination, applied to a *gorm.DB via Apply.
type Query struct {
	filters []Filter
	orders  []OrderBy
	limit   int
	offset  int
}

// NewQuery returns an empty Query ready for chaining.
func NewQuery() *Query { return &Query{} }

func (q *Query) Where(f Filter) *Query {
	q.filters = append(q.filters, f)
	return q
}

func (q *Query) WhereBetween(column string, low, high any) *Query {
	return q.Where(NewBetweenFilter(column, low, high))
}

func (q *Query) Equal(column string, value any) *Query {
	return q.Where(NewFilter(column, OpEqual, value))
}

func (q *Query) NotEqual(column string, value any) *Query {
	return q.Where(NewFilter(column, OpNotEqual, value))
}

func (q *Query) GreaterThan(column string, value any) *Query {
	return q.Where(NewFilter(column, OpGreaterThan, value))
}

func (q *Query) GreaterThanOrEqual(column string, value any) *Query {
	return q.Where(NewFilter(column, OpGreaterEqual, value))
}

func (q *Query) LessThan(column string, value any) *Query {
	return q.Where(NewFilter(column, OpLessThan, value))
}

func (q *Query) LessThanOrEqual(column string, value any) *Query {
	return q.Where(NewFilter(column, OpLessEqual, value))
}

func (q *Query) Like(column string, pattern string) *Query {
	return q.Where(NewFilter(column, OpLike, pattern))
}

func (q *Query) ILike(column string, pattern string) *Query {
	return q.Where(NewFilter(column, OpILike, pattern))
}

func (q *Query) In(column string, values any) *Query {
	return q.Where(NewFilter(column, OpIn, values))
}

func (q *Query) NotIn(column string, values any) *Query {
	return q.Where(NewFilter(column, OpNotIn, values))
}

func (q *Query) IsNull(column string) *Query {
	return q.Where(NewFilter(column, OpIsNull, nil))
}

func (q *Query) IsNotNull(column string) *Query {
	return q.Where(NewFilter(column, OpIsNotNull, nil))
}

func (q *Query) Order(column string, dir SortDirection) *Query {
	q.orders = append(q.orders, OrderBy{Column: column, Direction: dir})
	return q
}

func (q *Query) OrderAsc(column string) *Query { return q.Order(column, Asc) }
func (q *Query) OrderDesc(column string) *Query { return q.Order(column, Desc) }

func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

func (q *Query) Offset(n int) *Query {
	q.offset = n
	return q
}

func (q *Query) Paginate(page, pageSize int) *Query {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	q.limit = pageSize
	q.offset = (page - 1) * pageSize
	return q
}

// Apply builds out the accumulated filters/ordering/pagination onto db.
func (q *Query) Apply(db *gorm.DB) *gorm.DB {
	for _, f := range q.filters {
		db = applyFilter(db, f)
	}
	for _, o := range q.orders {
		db = db.Order(o.Column + " " + string(o.Direction))
	}
	if q.limit > 0 {
		db = db.Limit(q.limit)
	}
	if q.offset > 0 {
		db = db.Offset(q.offset)
	}
	return db
}

func applyFilter(db *gorm.DB, f Filter) *gorm.DB {
	switch f.Op {
	case OpEqual:
		return db.Where(f.Column+" = ?", f.Value)
	case OpNotEqual:
		return db.Where(f.Column+" <> ?", f.Value)
	case OpGreaterThan:
		return db.Where(f.Column+" > ?", f.Value)
	case OpGreaterEqual:
		return db.Where(f.Column+" >= ?", f.Value)
	case OpLessThan:
		return db.Where(f.Column+" < ?", f.Value)
	case OpLessEqual:
		return db.Where(f.Column+" <= ?", f.Value)
	case OpLike:
		return db.Where(f.Column+" LIKE ?", f.Value)
	case OpILike:
		return db.Where("LOWER("+f.Column+") LIKE LOWER(?)", f.Value)
	case OpIn:
		return db.Where(f.Column+" IN ?", f.Value)
	case OpNotIn:
		return db.Where(f.Column+" NOT IN ?", f.Value)
	case OpIsNull:
		return db.Where(f.Column + " IS NULL")
	case OpIsNotNull:
		return db.Where(f.Column + " IS NOT NULL")
	case OpBetween:
		return db.Where(f.Column+" BETWEEN ? AND ?", f.Low, f.High)
	default:
		return db
	}
}
