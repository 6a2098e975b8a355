package engine

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/nestq/internal/compiler"
	"github.com/roach88/nestq/internal/filtercache"
	"github.com/roach88/nestq/internal/metrics"
	"github.com/roach88/nestq/internal/store"
)

// DefaultSize is the number of hits returned when neither the caller nor
// the request names one.
const DefaultSize = 10

// Hit is one matching root document.
type Hit struct {
	ID             string          `json:"_id"`
	Seq            int64           `json:"-"`
	Score          float64         `json:"_score"`
	Source         json.RawMessage `json:"_source,omitempty"`
	MatchedQueries []string        `json:"matched_queries,omitempty"`
}

// SearchResult is the outcome of one search.
type SearchResult struct {
	InvocationID string  `json:"invocation_id,omitempty"`
	Total        int     `json:"total"`
	MaxScore     float64 `json:"max_score"`
	Hits         []Hit   `json:"hits"`
}

// Executor runs compiled queries against a store. It is safe for
// concurrent use; every search gets its own evaluator.
type Executor struct {
	store *store.Store
	cache *filtercache.Cache
	log   *zap.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *zap.Logger) ExecutorOption {
	return func(x *Executor) { x.log = l }
}

// NewExecutor creates an executor reading s and materializing filters
// through c. c must be the cache the queries were compiled against.
func NewExecutor(s *store.Store, c *filtercache.Cache, opts ...ExecutorOption) *Executor {
	x := &Executor{store: s, cache: c, log: zap.NewNop()}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Search returns the root documents matching pq. size overrides the
// request's size when positive.
//
// A query that compiled to nothing matches nothing.
func (x *Executor) Search(ctx context.Context, pq *compiler.ParsedQuery, size int) (*SearchResult, error) {
	start := time.Now()
	res, err := x.search(ctx, pq, size)
	metrics.SearchDuration.Observe(time.Since(start).Seconds())

	status := "ok"
	if err != nil {
		status = "error"
		var re *RuntimeError
		if errors.As(err, &re) {
			status = string(re.Code)
		}
		metrics.SearchTotal.WithLabelValues(status).Inc()
		x.log.Warn("search failed",
			zap.String("invocation_id", pq.InvocationID),
			zap.Error(err))
		return nil, err
	}
	metrics.SearchTotal.WithLabelValues(status).Inc()

	x.log.Debug("search",
		zap.String("invocation_id", pq.InvocationID),
		zap.Int("total", res.Total),
		zap.Int("hits", len(res.Hits)),
		zap.Duration("took", time.Since(start)))
	return res, nil
}

func (x *Executor) search(ctx context.Context, pq *compiler.ParsedQuery, size int) (*SearchResult, error) {
	if size <= 0 {
		size = pq.Size
	}
	if size <= 0 {
		size = DefaultSize
	}

	res := &SearchResult{InvocationID: pq.InvocationID, Hits: []Hit{}}
	if pq.Query == nil {
		return res, nil
	}

	gen, err := x.store.Generation(ctx)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	ev := newEvaluator(x.store, x.cache, gen)

	sc, err := ev.query(ctx, pq.Query)
	if err != nil {
		return nil, err
	}
	roots, err := ev.filter(ctx, x.cache.RootNonNestedFilter())
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for id, score := range sc {
		if roots.Contains(id) {
			hits = append(hits, Hit{Seq: id, Score: score})
		}
	}
	slices.SortFunc(hits, func(a, b Hit) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return cmp.Compare(a.Seq, b.Seq)
	})

	res.Total = len(hits)
	if len(hits) > 0 {
		res.MaxScore = hits[0].Score
	}
	if len(hits) > size {
		hits = hits[:size]
	}
	if len(hits) == 0 {
		return res, nil
	}

	seqs := make([]int64, len(hits))
	for i, h := range hits {
		seqs[i] = h.Seq
	}
	refs, err := x.store.BlocksOf(ctx, seqs)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	bySeq := make(map[int64]store.BlockRef, len(refs))
	for _, ref := range refs {
		bySeq[ref.Seq] = ref
	}

	for i := range hits {
		ref := bySeq[hits[i].Seq]
		hits[i].ID = ref.ID
		hits[i].Source = ref.Source
	}

	// A named query matches a hit when it matched any document of the
	// hit's block, so names inside nested levels are reported too.
	for _, name := range pq.NamedOrder {
		named, err := ev.query(ctx, pq.Named[name])
		if err != nil {
			return nil, err
		}
		set := named.set()
		for i := range hits {
			ref := bySeq[hits[i].Seq]
			if next, ok := set.NextAtOrAfter(ref.FirstSeq); ok && next <= ref.Seq {
				hits[i].MatchedQueries = append(hits[i].MatchedQueries, name)
			}
		}
	}

	res.Hits = hits
	return res, nil
}
