package search

// Matches evaluates the filter against a single document in memory. SQL
// backends translate the same algebra into WHERE clauses; this evaluator
// serves the in-memory store and the lexical sub-query of hybrid search,
// which has no payloads of its own to filter on.
func (f Filter) Matches(d Document) bool {
	if f.Project != "" && d.Project != f.Project {
		return false
	}
	for _, p := range f.Predicates {
		if !matchesPredicate(d, p, false) {
			return false
		}
	}
	return true
}

func matchesPredicate(d Document, p Predicate, negate bool) bool {
	if p.Op == OpNot {
		if p.Inner == nil {
			return true
		}
		return matchesPredicate(d, *p.Inner, !negate)
	}
	result := evalPredicate(d, p)
	if negate {
		return !result
	}
	return result
}

func evalPredicate(d Document, p Predicate) bool {
	actual := fieldValue(d, p.Field)
	switch p.Op {
	case OpEqual:
		return actual == p.Value
	case OpNotEqual:
		return actual != p.Value
	case OpGT:
		return compareNumeric(actual, p.Value) > 0
	case OpGTE:
		return compareNumeric(actual, p.Value) >= 0
	case OpLT:
		return compareNumeric(actual, p.Value) < 0
	case OpLTE:
		return compareNumeric(actual, p.Value) <= 0
	case OpIn:
		return containsAny(p.Value, actual)
	case OpNotIn:
		return !containsAny(p.Value, actual)
	case OpContains:
		if p.Field == "tags" {
			for _, t := range d.Tags {
				if t == p.Value {
					return true
				}
			}
			return false
		}
		return false
	default:
		return true
	}
}

func fieldValue(d Document, field string) any {
	switch field {
	case "category":
		return d.Category
	case "language":
		return d.Language
	case "lifecycle_state":
		return d.LifecycleState
	case "file_path":
		return d.FilePath
	case "importance":
		return d.Importance
	case "project":
		return d.Project
	default:
		return nil
	}
}

func compareNumeric(actual, want any) int {
	a, aok := asFloat(actual)
	b, bok := asFloat(want)
	if !aok || !bok {
		return 0
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func asFloat(v any) (float64, bool) {
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

func containsAny(set any, value any) bool {
	vals, ok := set.([]string)
	if !ok {
		return false
	}
	s, ok := value.(string)
	if !ok {
		return false
	}
	for _, v := range vals {
		if v == s {
			return true
		}
	}
	return false
}
