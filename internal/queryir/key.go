package queryir

import (
	"fmt"
	"strconv"

	"github.com/roach88/nestq/internal/ir"
)

// FilterKey returns the content-addressed identity of a filter.
//
// CachedFilter and LateBoundFilter key as their target, so a parent filter
// captured through a handle keys the same as the nested-type filter it was
// bound to. Keying an unbound handle fails with ErrUnbound.
func FilterKey(f Filter) (string, error) {
	d, err := filterDescriptor(f)
	if err != nil {
		return "", err
	}
	return ir.Key(ir.DomainFilter, d)
}

// QueryKey returns the content-addressed identity of a query.
func QueryKey(q Query) (string, error) {
	d, err := queryDescriptor(q)
	if err != nil {
		return "", err
	}
	return ir.Key(ir.DomainQuery, d)
}

// Describe returns the canonical descriptor a query keys by. It renders
// with ir.MarshalCanonical and is the IR form printed by nestq compile.
func Describe(q Query) (map[string]any, error) {
	return queryDescriptor(q)
}

// EqualFilters reports whether a and b are the same filter. Filters that
// cannot be keyed (unbound handles) are never equal.
func EqualFilters(a, b Filter) bool {
	ka, err := FilterKey(a)
	if err != nil {
		return false
	}
	kb, err := FilterKey(b)
	if err != nil {
		return false
	}
	return ka == kb
}

// boostString keeps floats out of canonical descriptors.
func boostString(b float64) string {
	return strconv.FormatFloat(b, 'g', -1, 64)
}

func filterDescriptor(f Filter) (map[string]any, error) {
	switch flt := f.(type) {
	case nil:
		return nil, fmt.Errorf("nil filter")
	case MatchAllFilter:
		return map[string]any{"kind": "match_all"}, nil
	case TermFilter:
		if flt.Value == nil {
			return nil, fmt.Errorf("term filter on %q has no value", flt.Field)
		}
		return map[string]any{"kind": "term", "field": flt.Field, "value": flt.Value}, nil
	case TermsFilter:
		values := make([]any, len(flt.Values))
		for i, v := range flt.Values {
			values[i] = v
		}
		return map[string]any{"kind": "terms", "field": flt.Field, "values": values}, nil
	case ExistsFilter:
		return map[string]any{"kind": "exists", "field": flt.Field}, nil
	case AndFilter:
		return compoundDescriptor("and", flt.Filters)
	case OrFilter:
		return compoundDescriptor("or", flt.Filters)
	case NotFilter:
		inner, err := filterDescriptor(flt.Filter)
		if err != nil {
			return nil, err
		}
		return map[string]any{"kind": "not", "filter": inner}, nil
	case NestedTypeFilter:
		return map[string]any{"kind": "nested_type", "path": flt.Path}, nil
	case NonNestedFilter:
		return map[string]any{"kind": "non_nested"}, nil
	case QueryFilter:
		inner, err := queryDescriptor(flt.Query)
		if err != nil {
			return nil, err
		}
		return map[string]any{"kind": "query", "query": inner}, nil
	case CachedFilter:
		return filterDescriptor(flt.Filter)
	case *LateBoundFilter:
		target, ok := flt.Bound()
		if !ok {
			return nil, ErrUnbound
		}
		return filterDescriptor(target)
	default:
		return nil, fmt.Errorf("unsupported filter type: %T", f)
	}
}

func compoundDescriptor(kind string, filters []Filter) (map[string]any, error) {
	list := make([]any, len(filters))
	for i, sub := range filters {
		d, err := filterDescriptor(sub)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", kind, i, err)
		}
		list[i] = d
	}
	return map[string]any{"kind": kind, "filters": list}, nil
}

func queryDescriptor(q Query) (map[string]any, error) {
	switch qry := q.(type) {
	case nil:
		return nil, fmt.Errorf("nil query")
	case MatchAll:
		return map[string]any{"kind": "match_all", "boost": boostString(qry.Boost)}, nil
	case Term:
		if qry.Value == nil {
			return nil, fmt.Errorf("term query on %q has no value", qry.Field)
		}
		return map[string]any{"kind": "term", "field": qry.Field, "value": qry.Value, "boost": boostString(qry.Boost)}, nil
	case Bool:
		d := map[string]any{"kind": "bool", "boost": boostString(qry.Boost)}
		for name, clauses := range map[string][]Query{"must": qry.Must, "should": qry.Should, "must_not": qry.MustNot} {
			list := make([]any, len(clauses))
			for i, c := range clauses {
				cd, err := queryDescriptor(c)
				if err != nil {
					return nil, fmt.Errorf("bool.%s[%d]: %w", name, i, err)
				}
				list[i] = cd
			}
			d[name] = list
		}
		filters := make([]any, len(qry.Filter))
		for i, f := range qry.Filter {
			fd, err := filterDescriptor(f)
			if err != nil {
				return nil, fmt.Errorf("bool.filter[%d]: %w", i, err)
			}
			filters[i] = fd
		}
		d["filter"] = filters
		return d, nil
	case ConstantScore:
		inner, err := filterDescriptor(qry.Filter)
		if err != nil {
			return nil, err
		}
		return map[string]any{"kind": "constant_score", "filter": inner, "boost": boostString(qry.Boost)}, nil
	case Filtered:
		inner, err := queryDescriptor(qry.Query)
		if err != nil {
			return nil, err
		}
		flt, err := filterDescriptor(qry.Filter)
		if err != nil {
			return nil, err
		}
		return map[string]any{"kind": "filtered", "query": inner, "filter": flt}, nil
	case *BlockJoin:
		child, err := queryDescriptor(qry.Child)
		if err != nil {
			return nil, fmt.Errorf("block_join child: %w", err)
		}
		parent, err := filterDescriptor(qry.Parent)
		if err != nil {
			return nil, fmt.Errorf("block_join parent: %w", err)
		}
		return map[string]any{
			"kind":       "block_join",
			"child":      child,
			"parent":     parent,
			"score_mode": string(qry.ScoreMode),
			"boost":      boostString(qry.Boost),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported query type: %T", q)
	}
}
