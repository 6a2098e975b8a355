package queryir

import "fmt"

// ValidationResult contains the structural problems found in a compiled
// query.
//
// A query produced by the compiler from valid input always validates; a
// problem here means a compiler bug or a hand-built tree.
type ValidationResult struct {
	// IsValid is true when the tree can be executed.
	IsValid bool

	// Problems lists what is wrong, in traversal order.
	Problems []string
}

// Validate checks that a query tree is executable:
//  1. No nil query or filter nodes
//  2. Every LateBoundFilter reachable from the tree is bound
//  3. Every BlockJoin has a child, a parent filter and a valid score mode
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{
		problems: []string{},
	}
	v.validateQuery(query, "query")

	return ValidationResult{
		IsValid:  len(v.problems) == 0,
		Problems: v.problems,
	}
}

type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query, at string) {
	switch query := q.(type) {
	case nil:
		v.addProblem("%s: nil query", at)
	case MatchAll:
	case Term:
		if query.Value == nil {
			v.addProblem("%s: term on %q has no value", at, query.Field)
		}
	case Bool:
		for i, c := range query.Must {
			v.validateQuery(c, fmt.Sprintf("%s.must[%d]", at, i))
		}
		for i, c := range query.Should {
			v.validateQuery(c, fmt.Sprintf("%s.should[%d]", at, i))
		}
		for i, c := range query.MustNot {
			v.validateQuery(c, fmt.Sprintf("%s.must_not[%d]", at, i))
		}
		for i, f := range query.Filter {
			v.validateFilter(f, fmt.Sprintf("%s.filter[%d]", at, i))
		}
	case ConstantScore:
		v.validateFilter(query.Filter, at+".filter")
	case Filtered:
		v.validateQuery(query.Query, at+".query")
		v.validateFilter(query.Filter, at+".filter")
	case *BlockJoin:
		v.validateBlockJoin(query, at)
	default:
		v.addProblem("%s: unknown query type %T", at, q)
	}
}

func (v *validator) validateBlockJoin(join *BlockJoin, at string) {
	if join == nil {
		v.addProblem("%s: nil block join", at)
		return
	}
	if !join.ScoreMode.IsValid() {
		v.addProblem("%s: invalid score mode %q", at, join.ScoreMode)
	}
	v.validateQuery(join.Child, at+".child")
	v.validateFilter(join.Parent, at+".parent")
}

func (v *validator) validateFilter(f Filter, at string) {
	switch flt := f.(type) {
	case nil:
		v.addProblem("%s: nil filter", at)
	case MatchAllFilter, ExistsFilter, NestedTypeFilter, NonNestedFilter:
	case TermFilter:
		if flt.Value == nil {
			v.addProblem("%s: term on %q has no value", at, flt.Field)
		}
	case TermsFilter:
		for i, val := range flt.Values {
			if val == nil {
				v.addProblem("%s: terms on %q has nil value at %d", at, flt.Field, i)
			}
		}
	case AndFilter:
		for i, sub := range flt.Filters {
			v.validateFilter(sub, fmt.Sprintf("%s.and[%d]", at, i))
		}
	case OrFilter:
		for i, sub := range flt.Filters {
			v.validateFilter(sub, fmt.Sprintf("%s.or[%d]", at, i))
		}
	case NotFilter:
		v.validateFilter(flt.Filter, at+".not")
	case QueryFilter:
		v.validateQuery(flt.Query, at+".query")
	case CachedFilter:
		v.validateFilter(flt.Filter, at)
	case *LateBoundFilter:
		target, ok := flt.Bound()
		if !ok {
			v.addProblem("%s: parent filter was never bound", at)
			return
		}
		v.validateFilter(target, at)
	default:
		v.addProblem("%s: unknown filter type %T", at, f)
	}
}
