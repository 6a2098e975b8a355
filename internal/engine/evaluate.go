package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/nestq/internal/docset"
	"github.com/roach88/nestq/internal/filtercache"
	"github.com/roach88/nestq/internal/queryir"
	"github.com/roach88/nestq/internal/querysql"
	"github.com/roach88/nestq/internal/store"
)

// evaluator runs one search. It is not safe for concurrent use.
type evaluator struct {
	store *store.Store
	cache *filtercache.Cache
	sql   *querysql.SQLCompiler
	gen   uint64

	all   *docset.Set
	joins map[*queryir.BlockJoin]scores
}

func newEvaluator(s *store.Store, c *filtercache.Cache, gen uint64) *evaluator {
	return &evaluator{
		store: s,
		cache: c,
		sql:   querysql.NewSQLCompiler(),
		gen:   gen,
		joins: make(map[*queryir.BlockJoin]scores),
	}
}

// filter materializes f. Cached filters go through the filter cache; other
// filters are compiled to SQL when they can be, and combined here when they
// embed a query.
func (e *evaluator) filter(ctx context.Context, f queryir.Filter) (docset.Set, error) {
	if err := ctx.Err(); err != nil {
		return docset.Set{}, err
	}

	switch flt := f.(type) {
	case nil:
		return docset.Set{}, unsupported(f)
	case queryir.CachedFilter:
		set, err := e.cache.Load(ctx, flt, e.gen, func(ctx context.Context) (docset.Set, error) {
			return e.filter(ctx, flt.Filter)
		})
		return set, unresolved(err)
	case *queryir.LateBoundFilter:
		target, ok := flt.Bound()
		if !ok {
			return docset.Set{}, unresolved(queryir.ErrUnbound)
		}
		return e.filter(ctx, target)
	case queryir.QueryFilter:
		sc, err := e.query(ctx, flt.Query)
		if err != nil {
			return docset.Set{}, err
		}
		return sc.set(), nil
	case queryir.MatchAllFilter:
		return e.allDocs(ctx)
	}

	query, params, err := e.sql.Compile(f)
	switch {
	case err == nil:
		return e.store.QueryIDs(ctx, query, params...)
	case errors.Is(err, querysql.ErrUnsupported):
		return e.combine(ctx, f)
	default:
		return docset.Set{}, unresolved(err)
	}
}

// combine evaluates compound filters whose children have no SQL form.
func (e *evaluator) combine(ctx context.Context, f queryir.Filter) (docset.Set, error) {
	switch flt := f.(type) {
	case queryir.AndFilter:
		if len(flt.Filters) == 0 {
			return e.allDocs(ctx)
		}
		out, err := e.filter(ctx, flt.Filters[0])
		if err != nil {
			return docset.Set{}, err
		}
		for _, sub := range flt.Filters[1:] {
			set, err := e.filter(ctx, sub)
			if err != nil {
				return docset.Set{}, err
			}
			out = docset.Intersect(out, set)
		}
		return out, nil
	case queryir.OrFilter:
		var out docset.Set
		for _, sub := range flt.Filters {
			set, err := e.filter(ctx, sub)
			if err != nil {
				return docset.Set{}, err
			}
			out = docset.Union(out, set)
		}
		return out, nil
	case queryir.NotFilter:
		all, err := e.allDocs(ctx)
		if err != nil {
			return docset.Set{}, err
		}
		set, err := e.filter(ctx, flt.Filter)
		if err != nil {
			return docset.Set{}, err
		}
		return docset.Difference(all, set), nil
	default:
		return docset.Set{}, unsupported(f)
	}
}

func (e *evaluator) allDocs(ctx context.Context) (docset.Set, error) {
	if e.all != nil {
		return *e.all, nil
	}
	set, err := e.store.QueryIDs(ctx, "SELECT seq FROM docs ORDER BY seq ASC")
	if err != nil {
		return docset.Set{}, err
	}
	e.all = &set
	return set, nil
}

// query scores q.
func (e *evaluator) query(ctx context.Context, q queryir.Query) (scores, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch qq := q.(type) {
	case queryir.MatchAll:
		set, err := e.allDocs(ctx)
		if err != nil {
			return nil, err
		}
		return constant(set, qq.Boost), nil
	case queryir.Term:
		set, err := e.filter(ctx, queryir.TermFilter{Field: qq.Field, Value: qq.Value})
		if err != nil {
			return nil, err
		}
		return constant(set, qq.Boost), nil
	case queryir.ConstantScore:
		set, err := e.filter(ctx, qq.Filter)
		if err != nil {
			return nil, err
		}
		return constant(set, qq.Boost), nil
	case queryir.Filtered:
		sc, err := e.query(ctx, qq.Query)
		if err != nil {
			return nil, err
		}
		set, err := e.filter(ctx, qq.Filter)
		if err != nil {
			return nil, err
		}
		return sc.restrict(set), nil
	case queryir.Bool:
		return e.boolQuery(ctx, qq)
	case *queryir.BlockJoin:
		return e.join(ctx, qq)
	default:
		return nil, unsupported(q)
	}
}

// boolQuery sums the scores of must and matching should clauses. Without
// must or filter clauses at least one should clause has to match; a bool
// holding only must_not clauses excludes them from every document.
func (e *evaluator) boolQuery(ctx context.Context, b queryir.Bool) (scores, error) {
	var base scores
	for _, q := range b.Must {
		sc, err := e.query(ctx, q)
		if err != nil {
			return nil, err
		}
		if base == nil {
			base = sc.unionSum(nil)
		} else {
			base = base.intersectSum(sc)
		}
	}
	for _, f := range b.Filter {
		set, err := e.filter(ctx, f)
		if err != nil {
			return nil, err
		}
		if base == nil {
			base = constant(set, 0)
		} else {
			base = base.restrict(set)
		}
	}

	required := len(b.Must)+len(b.Filter) > 0
	for _, q := range b.Should {
		sc, err := e.query(ctx, q)
		if err != nil {
			return nil, err
		}
		if required {
			base.addMatching(sc)
		} else {
			base = base.unionSum(sc)
		}
	}

	if base == nil {
		if len(b.MustNot) == 0 {
			return scores{}, nil
		}
		all, err := e.allDocs(ctx)
		if err != nil {
			return nil, err
		}
		base = constant(all, 1)
	}

	for _, q := range b.MustNot {
		sc, err := e.query(ctx, q)
		if err != nil {
			return nil, err
		}
		base.exclude(sc.set())
	}
	return base.scale(b.Boost), nil
}

// join maps every matching child to the first parent at or after it and
// aggregates the children's scores per parent.
func (e *evaluator) join(ctx context.Context, j *queryir.BlockJoin) (scores, error) {
	if sc, ok := e.joins[j]; ok {
		return sc, nil
	}

	children, err := e.query(ctx, j.Child)
	if err != nil {
		return nil, withPath(err, j.Path)
	}
	parents, err := e.filter(ctx, j.Parent)
	if err != nil {
		return nil, withPath(err, j.Path)
	}

	type agg struct {
		sum, max float64
		n        int
	}
	aggs := make(map[int64]*agg)
	for _, id := range children.sortedIDs() {
		p, ok := parents.NextAtOrAfter(id)
		if !ok || p == id {
			continue
		}
		score := children[id]
		a, ok := aggs[p]
		if !ok {
			aggs[p] = &agg{sum: score, max: score, n: 1}
			continue
		}
		a.sum += score
		a.max = max(a.max, score)
		a.n++
	}

	out := make(scores, len(aggs))
	for p, a := range aggs {
		var s float64
		switch j.ScoreMode {
		case queryir.ScoreModeAvg:
			s = a.sum / float64(a.n)
		case queryir.ScoreModeMax:
			s = a.max
		case queryir.ScoreModeTotal:
			s = a.sum
		case queryir.ScoreModeNone:
			s = 1
		default:
			return nil, &RuntimeError{
				Code:    ErrCodeUnsupportedQuery,
				Message: fmt.Sprintf("unknown score mode %q", j.ScoreMode),
				Path:    j.Path,
			}
		}
		out[p] = s * j.Boost
	}
	e.joins[j] = out
	return out, nil
}

// unresolved converts unbound-handle errors into UNRESOLVED_PARENT.
func unresolved(err error) error {
	if err == nil || !errors.Is(err, queryir.ErrUnbound) {
		return err
	}
	var re *RuntimeError
	if errors.As(err, &re) {
		return err
	}
	return &RuntimeError{
		Code:    ErrCodeUnresolvedParent,
		Message: "parent filter was never bound",
	}
}

func withPath(err error, path string) error {
	var re *RuntimeError
	if errors.As(err, &re) && re.Path == "" {
		re.Path = path
	}
	return err
}
