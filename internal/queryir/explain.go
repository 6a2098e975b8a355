package queryir

import (
	"fmt"
	"strings"

	"github.com/roach88/nestq/internal/ir"
)

// Explain renders a query as a single line, in the spirit of Lucene's
// toString. The output is stable and is what golden files record.
func Explain(q Query) string {
	var b strings.Builder
	writeQuery(&b, q)
	return b.String()
}

// ExplainFilter renders a filter as a single line.
func ExplainFilter(f Filter) string {
	var b strings.Builder
	writeFilter(&b, f)
	return b.String()
}

func writeBoost(b *strings.Builder, boost float64) {
	if boost != 1 {
		fmt.Fprintf(b, "^%s", boostString(boost))
	}
}

func writeQuery(b *strings.Builder, q Query) {
	switch qry := q.(type) {
	case nil:
		b.WriteString("<nil>")
	case MatchAll:
		b.WriteString("*:*")
		writeBoost(b, qry.Boost)
	case Term:
		fmt.Fprintf(b, "%s:%s", qry.Field, ir.String(qry.Value))
		writeBoost(b, qry.Boost)
	case Bool:
		b.WriteByte('(')
		first := true
		sep := func() {
			if !first {
				b.WriteByte(' ')
			}
			first = false
		}
		for _, c := range qry.Must {
			sep()
			b.WriteByte('+')
			writeQuery(b, c)
		}
		for _, c := range qry.Should {
			sep()
			writeQuery(b, c)
		}
		for _, c := range qry.MustNot {
			sep()
			b.WriteByte('-')
			writeQuery(b, c)
		}
		for _, f := range qry.Filter {
			sep()
			b.WriteByte('#')
			writeFilter(b, f)
		}
		b.WriteByte(')')
		writeBoost(b, qry.Boost)
	case ConstantScore:
		b.WriteString("ConstantScore(")
		writeFilter(b, qry.Filter)
		b.WriteByte(')')
		writeBoost(b, qry.Boost)
	case Filtered:
		b.WriteString("filtered(")
		writeQuery(b, qry.Query)
		b.WriteString(")->")
		writeFilter(b, qry.Filter)
	case *BlockJoin:
		b.WriteString("ToParentBlockJoin(")
		writeQuery(b, qry.Child)
		b.WriteString(", parent=")
		writeFilter(b, qry.Parent)
		fmt.Fprintf(b, ", score_mode=%s", qry.ScoreMode)
		if qry.Name != "" {
			fmt.Fprintf(b, ", _name=%s", qry.Name)
		}
		b.WriteByte(')')
		writeBoost(b, qry.Boost)
	default:
		fmt.Fprintf(b, "<%T>", q)
	}
}

func writeFilter(b *strings.Builder, f Filter) {
	switch flt := f.(type) {
	case nil:
		b.WriteString("<nil>")
	case MatchAllFilter:
		b.WriteString("*:*")
	case TermFilter:
		fmt.Fprintf(b, "%s:%s", flt.Field, ir.String(flt.Value))
	case TermsFilter:
		values := make([]string, len(flt.Values))
		for i, v := range flt.Values {
			values[i] = ir.String(v)
		}
		fmt.Fprintf(b, "%s:(%s)", flt.Field, strings.Join(values, " "))
	case ExistsFilter:
		fmt.Fprintf(b, "_exists_:%s", flt.Field)
	case AndFilter:
		writeFilterList(b, "and", flt.Filters)
	case OrFilter:
		writeFilterList(b, "or", flt.Filters)
	case NotFilter:
		b.WriteString("not(")
		writeFilter(b, flt.Filter)
		b.WriteByte(')')
	case NestedTypeFilter:
		fmt.Fprintf(b, "nested_type(%s)", flt.Path)
	case NonNestedFilter:
		b.WriteString("non_nested")
	case QueryFilter:
		b.WriteString("query(")
		writeQuery(b, flt.Query)
		b.WriteByte(')')
	case CachedFilter:
		b.WriteString("cached(")
		writeFilter(b, flt.Filter)
		b.WriteByte(')')
	case *LateBoundFilter:
		target, ok := flt.Bound()
		if !ok {
			b.WriteString("parent(<unbound>)")
			return
		}
		b.WriteString("parent(")
		writeFilter(b, target)
		b.WriteByte(')')
	default:
		fmt.Fprintf(b, "<%T>", f)
	}
}

func writeFilterList(b *strings.Builder, name string, filters []Filter) {
	b.WriteString(name)
	b.WriteByte('(')
	for i, f := range filters {
		if i > 0 {
			b.WriteString(", ")
		}
		writeFilter(b, f)
	}
	b.WriteByte(')')
}
