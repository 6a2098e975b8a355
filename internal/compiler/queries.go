package compiler

import (
	"cuelang.org/go/cue"

	"github.com/roach88/nestq/internal/mapping"
	"github.com/roach88/nestq/internal/queryir"
)

// queryParser compiles the body under one query kind. A nil query with a
// nil error means the clause compiled to nothing.
type queryParser func(pc *ParseContext, v cue.Value) (queryir.Query, error)

var queryParsers map[string]queryParser

func init() {
	queryParsers = map[string]queryParser{
		"match_all":      parseMatchAllQuery,
		"term":           parseTermQuery,
		"match":          parseMatchQuery,
		"bool":           parseBoolQuery,
		"constant_score": parseConstantScoreQuery,
		"filtered":       parseFilteredQuery,
		"nested":         parseNestedQuery,
		"nestedQuery":    parseNestedQuery,
	}
}

// ParseInnerQuery compiles a query body: an object whose single key names
// the query kind. An empty object compiles to nil.
func (pc *ParseContext) ParseInnerQuery(v cue.Value) (queryir.Query, error) {
	fields, err := structFields(v, "query")
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
			Field:   "query",
			Value:   names(fields),
			Message: "a query body names exactly one query",
			Pos:     v.Pos(),
		}
	}

	f := fields[0]
	parse, ok := queryParsers[f.name]
	if !ok {
		return nil, &CompileError{
			Code:    CodeUnknownQuery,
			Field:   f.name,
			Message: "no query registered for [" + f.name + "]",
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

func parseMatchAllQuery(_ *ParseContext, v cue.Value) (queryir.Query, error) {
	fields, err := structFields(v, "match_all")
	if err != nil {
		return nil, err
	}
	q := queryir.MatchAll{Boost: 1}
	for _, f := range fields {
		if f.name != "boost" {
			return nil, unsupported("match_all", f)
		}
		if q.Boost, err = numberValue(f.value, "boost"); err != nil {
			return nil, err
		}
	}
	return q, nil
}

func parseTermQuery(pc *ParseContext, v cue.Value) (queryir.Query, error) {
	return parseFieldQuery(pc, v, "term", "value")
}

// parseMatchQuery compiles match as an exact term comparison; there is no
// analysis chain.
func parseMatchQuery(pc *ParseContext, v cue.Value) (queryir.Query, error) {
	return parseFieldQuery(pc, v, "match", "query")
}

// parseFieldQuery reads {field: value} or {field: {<valueKey>: value, boost: b}}.
func parseFieldQuery(pc *ParseContext, v cue.Value, kind, valueKey string) (queryir.Query, error) {
	fields, err := structFields(v, kind)
	if err != nil {
		return nil, err
	}
	if len(fields) != 1 {
		return nil, &CompileError{
			Code:    CodeMalformedSpec,
			Field:   kind,
			Value:   names(fields),
			Message: "[" + kind + "] query takes exactly one field",
			Pos:     v.Pos(),
		}
	}
	f := fields[0]
	if err := pc.checkLeafField(f); err != nil {
		return nil, err
	}

	q := queryir.Term{Field: f.name, Boost: 1}
	if f.value.Kind() != cue.StructKind {
		if q.Value, err = termValue(f.value, f.name); err != nil {
			return nil, err
		}
		return q, nil
	}

	opts, err := structFields(f.value, f.name)
	if err != nil {
		return nil, err
	}
	for _, o := range opts {
		switch o.name {
		case valueKey:
			if q.Value, err = termValue(o.value, f.name); err != nil {
				return nil, err
			}
		case "boost":
			if q.Boost, err = numberValue(o.value, "boost"); err != nil {
				return nil, err
			}
		default:
			return nil, unsupported(kind, o)
		}
	}
	if q.Value == nil {
		return nil, &CompileError{
			Code:    CodeMalformedSpec,
			Field:   f.name,
			Message: "[" + kind + "] requires '" + valueKey + "'",
			Pos:     f.value.Pos(),
		}
	}
	return q, nil
}

// checkLeafField rejects term comparisons against object fields.
// Unmapped fields are accepted.
func (pc *ParseContext) checkLeafField(f field) error {
	if pc.mapping == nil {
		return nil
	}
	typ, ok := pc.mapping.FieldType(f.name)
	if ok && (typ == mapping.TypeNested || typ == mapping.TypeObject) {
		return &CompileError{
			Code:    CodeInvalidValue,
			Field:   f.name,
			Value:   typ,
			Message: "cannot compare an object field",
			Pos:     f.value.Pos(),
		}
	}
	return nil
}

func parseBoolQuery(pc *ParseContext, v cue.Value) (queryir.Query, error) {
	fields, err := structFields(v, "bool")
	if err != nil {
		return nil, err
	}

	q := queryir.Bool{Boost: 1}
	for _, f := range fields {
		switch f.name {
		case "must":
			if q.Must, err = pc.queryClauses(f); err != nil {
				return nil, err
			}
		case "should":
			if q.Should, err = pc.queryClauses(f); err != nil {
				return nil, err
			}
		case "must_not", "mustNot":
			if q.MustNot, err = pc.queryClauses(f); err != nil {
				return nil, err
			}
		case "filter":
			if q.Filter, err = pc.filterClauses(f); err != nil {
				return nil, err
			}
		case "boost":
			if q.Boost, err = numberValue(f.value, "boost"); err != nil {
				return nil, err
			}
		default:
			return nil, unsupported("bool", f)
		}
	}

	if len(q.Must)+len(q.Should)+len(q.MustNot)+len(q.Filter) == 0 {
		return nil, nil
	}
	return q, nil
}

// queryClauses compiles an object or list of query bodies, dropping the
// ones that compile to nothing.
func (pc *ParseContext) queryClauses(f field) ([]queryir.Query, error) {
	bodies, err := objectList(f.value, f.name)
	if err != nil {
		return nil, err
	}
	var out []queryir.Query
	for _, b := range bodies {
		q, err := pc.ParseInnerQuery(b)
		if err != nil {
			return nil, err
		}
		if q != nil {
			out = append(out, q)
		}
	}
	return out, nil
}

func parseConstantScoreQuery(pc *ParseContext, v cue.Value) (queryir.Query, error) {
	fields, err := structFields(v, "constant_score")
	if err != nil {
		return nil, err
	}

	var (
		filter queryir.Filter
		found  bool
	)
	boost := 1.0
	for _, f := range fields {
		switch f.name {
		case "filter":
			found = true
			if filter, err = pc.ParseInnerFilter(f.value); err != nil {
				return nil, err
			}
		case "query":
			found = true
			q, err := pc.ParseInnerQuery(f.value)
			if err != nil {
				return nil, err
			}
			if q != nil {
				filter = queryir.QueryFilter{Query: q}
			}
		case "boost":
			if boost, err = numberValue(f.value, "boost"); err != nil {
				return nil, err
			}
		default:
			return nil, unsupported("constant_score", f)
		}
	}

	if !found {
		return nil, &CompileError{
			Code:    CodeMalformedSpec,
			Field:   "constant_score",
			Message: "[constant_score] requires either 'filter' or 'query' field",
			Pos:     v.Pos(),
		}
	}
	if filter == nil {
		return nil, nil
	}
	return queryir.ConstantScore{Filter: filter, Boost: boost}, nil
}

func parseFilteredQuery(pc *ParseContext, v cue.Value) (queryir.Query, error) {
	fields, err := structFields(v, "filtered")
	if err != nil {
		return nil, err
	}

	var (
		q      queryir.Query = queryir.MatchAll{Boost: 1}
		filter queryir.Filter
	)
	for _, f := range fields {
		switch f.name {
		case "query":
			if q, err = pc.ParseInnerQuery(f.value); err != nil {
				return nil, err
			}
		case "filter":
			if filter, err = pc.ParseInnerFilter(f.value); err != nil {
				return nil, err
			}
		default:
			return nil, unsupported("filtered", f)
		}
	}

	// An explicit query that compiled to nothing elides the whole clause.
	if q == nil {
		return nil, nil
	}
	if filter == nil {
		return q, nil
	}
	return queryir.Filtered{Query: q, Filter: filter}, nil
}

func parseNestedQuery(pc *ParseContext, v cue.Value) (queryir.Query, error) {
	spec, err := decodeNestedSpec(v)
	if err != nil {
		return nil, err
	}
	join, err := NestedJoinCompiler{}.Compile(pc, spec)
	if err != nil || join == nil {
		return nil, err
	}
	return join, nil
}
