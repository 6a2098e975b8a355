// Package querysql compiles filter IR into parameterized SQLite queries over
// the docs table.
package querysql

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/nestq/internal/ir"
	"github.com/roach88/nestq/internal/queryir"
)

// ErrUnsupported is wrapped when a filter has no SQL form. QueryFilter is
// the only such node: the engine evaluates it itself.
var ErrUnsupported = errors.New("filter has no SQL form")

// SQLCompiler compiles filters to parameterized SQL for SQLite.
//
// Every query orders by seq ASC, so results are in block order.
// Values are always bound as parameters, never interpolated.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a filter into a query selecting the seq of every
// matching document. Returns (sql, params, error).
func (c *SQLCompiler) Compile(f queryir.Filter) (string, []any, error) {
	if f == nil {
		return "", nil, fmt.Errorf("cannot compile nil filter")
	}
	where, params, err := c.CompilePredicate(f)
	if err != nil {
		return "", nil, err
	}
	return "SELECT seq FROM docs WHERE " + where + " ORDER BY seq ASC", params, nil
}

// CompilePredicate compiles a filter to a WHERE clause fragment over docs.
func (c *SQLCompiler) CompilePredicate(f queryir.Filter) (string, []any, error) {
	switch flt := f.(type) {
	case nil:
		return "", nil, fmt.Errorf("cannot compile nil filter")
	case queryir.CachedFilter:
		return c.CompilePredicate(flt.Filter)
	case *queryir.LateBoundFilter:
		target, ok := flt.Bound()
		if !ok {
			return "", nil, queryir.ErrUnbound
		}
		return c.CompilePredicate(target)
	case queryir.MatchAllFilter:
		return "1 = 1", nil, nil
	case queryir.NestedTypeFilter:
		return "docs.path = ?", []any{flt.Path}, nil
	case queryir.NonNestedFilter:
		return "docs.path = ''", nil, nil
	case queryir.TermFilter:
		return compileTerm(flt.Field, flt.Value)
	case queryir.TermsFilter:
		return c.compileTerms(flt)
	case queryir.ExistsFilter:
		path, err := jsonPath(flt.Field)
		if err != nil {
			return "", nil, err
		}
		return "json_type(docs.fields, ?) IS NOT NULL", []any{path}, nil
	case queryir.AndFilter:
		if len(flt.Filters) == 0 {
			return "1 = 1", nil, nil // vacuous truth
		}
		return c.compileList(flt.Filters, " AND ")
	case queryir.OrFilter:
		if len(flt.Filters) == 0 {
			return "0 = 1", nil, nil
		}
		return c.compileList(flt.Filters, " OR ")
	case queryir.NotFilter:
		sql, params, err := c.CompilePredicate(flt.Filter)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sql + ")", params, nil
	case queryir.QueryFilter:
		return "", nil, fmt.Errorf("%w: query filter", ErrUnsupported)
	default:
		return "", nil, fmt.Errorf("unsupported filter type: %T", f)
	}
}

func (c *SQLCompiler) compileList(filters []queryir.Filter, sep string) (string, []any, error) {
	parts := make([]string, 0, len(filters))
	var allParams []any
	for _, f := range filters {
		sql, params, err := c.CompilePredicate(f)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		allParams = append(allParams, params...)
	}
	return strings.Join(parts, sep), allParams, nil
}

func (c *SQLCompiler) compileTerms(t queryir.TermsFilter) (string, []any, error) {
	if len(t.Values) == 0 {
		return "0 = 1", nil, nil
	}
	parts := make([]string, 0, len(t.Values))
	var allParams []any
	for _, v := range t.Values {
		sql, params, err := compileTerm(t.Field, v)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		allParams = append(allParams, params...)
	}
	if len(parts) == 1 {
		return parts[0], allParams, nil
	}
	return "(" + strings.Join(parts, " OR ") + ")", allParams, nil
}

// compileTerm matches a field holding value, either as its single value or
// as one element of a multi-valued field. The JSON type is compared too, so
// the string "1" never matches the number 1. Integer terms also match reals
// of equal value: a source 5.0 is stored as a real and still matches 5.
func compileTerm(field string, v ir.IRValue) (string, []any, error) {
	path, err := jsonPath(field)
	if err != nil {
		return "", nil, err
	}
	const each = "EXISTS (SELECT 1 FROM json_each(docs.fields, ?) WHERE "
	switch val := v.(type) {
	case ir.IRString:
		return each + "type = 'text' AND value = ?)", []any{path, string(val)}, nil
	case ir.IRInt:
		return each + "type IN ('integer', 'real') AND value = ?)", []any{path, int64(val)}, nil
	case ir.IRBool:
		return each + "type = ?)", []any{path, boolType(bool(val))}, nil
	default:
		return "", nil, fmt.Errorf("unsupported term value type for SQL parameter: %T", v)
	}
}

func boolType(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// jsonPath quotes a dotted field name as a single JSON path key, so
// "comments.author" addresses the flattened key, not a nested object.
func jsonPath(field string) (string, error) {
	if field == "" {
		return "", errors.New("empty field name")
	}
	if strings.ContainsRune(field, '"') {
		return "", fmt.Errorf("field name %q cannot contain a double quote", field)
	}
	return `$."` + field + `"`, nil
}
