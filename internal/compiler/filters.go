package compiler

import (
	"cuelang.org/go/cue"

	"github.com/roach88/nestq/internal/ir"
	"github.com/roach88/nestq/internal/queryir"
)

// filterParser compiles the body under one filter kind. A nil filter with
// a nil error means the clause compiled to nothing.
type filterParser func(pc *ParseContext, v cue.Value) (queryir.Filter, error)

var filterParsers map[string]filterParser

func init() {
	filterParsers = map[string]filterParser{
		"match_all":   parseMatchAllFilter,
		"term":        parseTermFilter,
		"terms":       parseTermsFilter,
		"exists":      parseExistsFilter,
		"and":         parseAndFilter,
		"or":          parseOrFilter,
		"bool":        parseBoolFilter,
		"not":         parseNotFilter,
		"query":       parseQueryFilter,
		"nested":      parseNestedFilter,
		"nestedQuery": parseNestedFilter,
	}
}

// ParseInnerFilter compiles a filter body: an object whose single key names
// the filter kind. An empty object compiles to nil.
func (pc *ParseContext) ParseInnerFilter(v cue.Value) (queryir.Filter, error) {
	fields, err := structFields(v, "filter")
	if err != nil {
		return nil, err
	}
	switch len(fields) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, &CompileError{
			Code:    CodeMalformedSpec,
			Field:   "filter",
			Value:   names(fields),
			Message: "a filter body names exactly one filter",
			Pos:     v.Pos(),
		}
	}

	f := fields[0]
	parse, ok := filterParsers[f.name]
	if !ok {
		return nil, &CompileError{
			Code:    CodeUnknownQuery,
			Field:   f.name,
			Message: "no filter registered for [" + f.name + "]",
			Pos:     f.value.Pos(),
		}
	}

	exit, err := pc.enter(f.name)
	if err != nil {
		return nil, err
	}
	defer exit()
	return parse(pc, f.value)
}

func parseMatchAllFilter(_ *ParseContext, v cue.Value) (queryir.Filter, error) {
	fields, err := structFields(v, "match_all")
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		return nil, unsupported("match_all", fields[0])
	}
	return queryir.MatchAllFilter{}, nil
}

// singleField reads the {field: value} shape shared by term and terms.
func singleField(pc *ParseContext, v cue.Value, kind string) (field, error) {
	fields, err := structFields(v, kind)
	if err != nil {
		return field{}, err
	}
	if len(fields) != 1 {
		return field{}, &CompileError{
			Code:    CodeMalformedSpec,
			Field:   kind,
			Value:   names(fields),
			Message: "[" + kind + "] filter takes exactly one field",
			Pos:     v.Pos(),
		}
	}
	if err := pc.checkLeafField(fields[0]); err != nil {
		return field{}, err
	}
	return fields[0], nil
}

func parseTermFilter(pc *ParseContext, v cue.Value) (queryir.Filter, error) {
	f, err := singleField(pc, v, "term")
	if err != nil {
		return nil, err
	}
	val, err := termValue(f.value, f.name)
	if err != nil {
		return nil, err
	}
	return queryir.TermFilter{Field: f.name, Value: val}, nil
}

func parseTermsFilter(pc *ParseContext, v cue.Value) (queryir.Filter, error) {
	f, err := singleField(pc, v, "terms")
	if err != nil {
		return nil, err
	}
	if f.value.Kind() != cue.ListKind {
		return nil, &CompileError{
			Code:    CodeMalformedSpec,
			Field:   f.name,
			Message: "[terms] expects a list of values",
			Pos:     f.value.Pos(),
		}
	}
	iter, err := f.value.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	values := []ir.IRValue{}
	for iter.Next() {
		val, err := termValue(iter.Value(), f.name)
		if err != nil {
			return nil, err
		}
		values = append(values, val)
	}
	return queryir.TermsFilter{Field: f.name, Values: values}, nil
}

func parseExistsFilter(_ *ParseContext, v cue.Value) (queryir.Filter, error) {
	fields, err := structFields(v, "exists")
	if err != nil {
		return nil, err
	}
	var name string
	for _, f := range fields {
		if f.name != "field" {
			return nil, unsupported("exists", f)
		}
		if name, err = stringValue(f.value, "field"); err != nil {
			return nil, err
		}
	}
	if name == "" {
		return nil, &CompileError{
			Code:    CodeMalformedSpec,
			Field:   "exists",
			Message: "[exists] requires 'field'",
			Pos:     v.Pos(),
		}
	}
	return queryir.ExistsFilter{Field: name}, nil
}

// filterList reads [f1, f2] or {filters: [f1, f2]}, dropping bodies that
// compile to nothing.
func (pc *ParseContext) filterList(v cue.Value, kind string) ([]queryir.Filter, error) {
	list := v
	if v.Kind() == cue.StructKind {
		fields, err := structFields(v, kind)
		if err != nil {
			return nil, err
		}
		list = cue.Value{}
		for _, f := range fields {
			if f.name != "filters" {
				return nil, unsupported(kind, f)
			}
			list = f.value
		}
		if !list.Exists() {
			return nil, &CompileError{
				Code:    CodeMalformedSpec,
				Field:   kind,
				Message: "[" + kind + "] requires 'filters'",
				Pos:     v.Pos(),
			}
		}
	}
	return pc.filterClauses(field{name: kind, value: list})
}

// filterClauses compiles an object or list of filter bodies.
func (pc *ParseContext) filterClauses(f field) ([]queryir.Filter, error) {
	bodies, err := objectList(f.value, f.name)
	if err != nil {
		return nil, err
	}
	var out []queryir.Filter
	for _, b := range bodies {
		flt, err := pc.ParseInnerFilter(b)
		if err != nil {
			return nil, err
		}
		if flt != nil {
			out = append(out, flt)
		}
	}
	return out, nil
}

func parseAndFilter(pc *ParseContext, v cue.Value) (queryir.Filter, error) {
	filters, err := pc.filterList(v, "and")
	if err != nil || len(filters) == 0 {
		return nil, err
	}
	return queryir.AndFilter{Filters: filters}, nil
}

func parseOrFilter(pc *ParseContext, v cue.Value) (queryir.Filter, error) {
	filters, err := pc.filterList(v, "or")
	if err != nil || len(filters) == 0 {
		return nil, err
	}
	return queryir.OrFilter{Filters: filters}, nil
}

// parseBoolFilter compiles must and filter into a conjunction, should into
// one disjunction and must_not into negations.
func parseBoolFilter(pc *ParseContext, v cue.Value) (queryir.Filter, error) {
	fields, err := structFields(v, "bool")
	if err != nil {
		return nil, err
	}

	var all []queryir.Filter
	for _, f := range fields {
		switch f.name {
		case "must", "filter", "should", "must_not", "mustNot":
		default:
			return nil, unsupported("bool", f)
		}
		clauses, err := pc.filterClauses(f)
		if err != nil {
			return nil, err
		}

		switch f.name {
		case "must", "filter":
			all = append(all, clauses...)
		case "should":
			if len(clauses) > 0 {
				all = append(all, queryir.OrFilter{Filters: clauses})
			}
		default:
			for _, c := range clauses {
				all = append(all, queryir.NotFilter{Filter: c})
			}
		}
	}

	switch len(all) {
	case 0:
		return nil, nil
	case 1:
		return all[0], nil
	}
	return queryir.AndFilter{Filters: all}, nil
}

// parseNotFilter accepts {not: {filter: {...}}} and {not: {<filter>}}.
func parseNotFilter(pc *ParseContext, v cue.Value) (queryir.Filter, error) {
	body := v
	if inner := v.LookupPath(cue.MakePath(cue.Str("filter"))); inner.Exists() {
		fields, err := structFields(v, "not")
		if err != nil {
			return nil, err
		}
		for _, f := range fields {
			if f.name != "filter" {
				return nil, unsupported("not", f)
			}
		}
		body = inner
	}

	flt, err := pc.ParseInnerFilter(body)
	if err != nil || flt == nil {
		return nil, err
	}
	return queryir.NotFilter{Filter: flt}, nil
}

func parseQueryFilter(pc *ParseContext, v cue.Value) (queryir.Filter, error) {
	q, err := pc.ParseInnerQuery(v)
	if err != nil || q == nil {
		return nil, err
	}
	return queryir.QueryFilter{Query: q}, nil
}

func parseNestedFilter(pc *ParseContext, v cue.Value) (queryir.Filter, error) {
	spec, err := decodeNestedSpec(v)
	if err != nil {
		return nil, err
	}
	join, err := NestedJoinCompiler{}.Compile(pc, spec)
	if err != nil || join == nil {
		return nil, err
	}
	return queryir.QueryFilter{Query: join}, nil
}
