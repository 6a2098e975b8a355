package filtercache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nestq/internal/docset"
	"github.com/roach88/nestq/internal/metrics"
	"github.com/roach88/nestq/internal/queryir"
)

func counter(set docset.Set) (func(context.Context) (docset.Set, error), *int) {
	calls := 0
	return func(context.Context) (docset.Set, error) {
		calls++
		return set, nil
	}, &calls
}

func TestBitsetFilter(t *testing.T) {
	c := New(4)

	f := c.BitsetFilter(queryir.NestedTypeFilter{Path: "comments"})
	assert.Equal(t, queryir.CachedFilter{Filter: queryir.NestedTypeFilter{Path: "comments"}}, f)
	assert.Equal(t, f, c.BitsetFilter(f), "wrapping twice is a no-op")

	assert.Equal(t, queryir.CachedFilter{Filter: queryir.NonNestedFilter{}}, c.RootNonNestedFilter())
}

func TestLoad_HitAndGeneration(t *testing.T) {
	c := New(4)
	ctx := context.Background()
	fill, calls := counter(docset.New(1, 2))
	f := c.BitsetFilter(queryir.NestedTypeFilter{Path: "comments"})

	set, err := c.Load(ctx, f, 1, fill)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, set.IDs())

	_, err = c.Load(ctx, queryir.NestedTypeFilter{Path: "comments"}, 1, fill)
	require.NoError(t, err)
	assert.Equal(t, 1, *calls, "same filter with or without the cache marker shares an entry")

	_, err = c.Load(ctx, f, 2, fill)
	require.NoError(t, err)
	assert.Equal(t, 2, *calls, "a new store generation invalidates the entry")
	assert.Equal(t, 1, c.Len())
}

func TestLoad_LateBoundKey(t *testing.T) {
	c := New(4)
	ctx := context.Background()
	fill, calls := counter(docset.New(3))

	h := queryir.NewLateBoundFilter()
	parent := c.BitsetFilter(h)

	_, err := c.Load(ctx, parent, 1, fill)
	require.ErrorIs(t, err, queryir.ErrUnbound)
	assert.Equal(t, 0, *calls)

	require.NoError(t, h.Bind(c.BitsetFilter(queryir.NestedTypeFilter{Path: "a"})))
	_, err = c.Load(ctx, parent, 1, fill)
	require.NoError(t, err)

	_, err = c.Load(ctx, queryir.NestedTypeFilter{Path: "a"}, 1, fill)
	require.NoError(t, err)
	assert.Equal(t, 1, *calls, "a bound handle shares the entry of its target")
}

func TestLoad_ErrorsNotCached(t *testing.T) {
	c := New(4)
	boom := errors.New("boom")

	_, err := c.Load(context.Background(), queryir.MatchAllFilter{}, 1, func(context.Context) (docset.Set, error) {
		return docset.Set{}, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())
}

func TestLoad_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2)
	ctx := context.Background()
	fill, calls := counter(docset.New(1))

	a := queryir.NestedTypeFilter{Path: "a"}
	b := queryir.NestedTypeFilter{Path: "b"}
	d := queryir.NestedTypeFilter{Path: "d"}

	for _, f := range []queryir.Filter{a, b, a, d} {
		_, err := c.Load(ctx, f, 1, fill)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, *calls)
	assert.Equal(t, 2, c.Len())

	_, err := c.Load(ctx, a, 1, fill)
	require.NoError(t, err)
	assert.Equal(t, 3, *calls, "a was used recently and survives")

	_, err = c.Load(ctx, b, 1, fill)
	require.NoError(t, err)
	assert.Equal(t, 4, *calls, "b was evicted")

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestLoad_Concurrent(t *testing.T) {
	c := New(8)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f := queryir.NestedTypeFilter{Path: fmt.Sprintf("p%d", i%4)}
			set, err := c.Load(ctx, f, 1, func(context.Context) (docset.Set, error) {
				return docset.New(int64(i % 4)), nil
			})
			assert.NoError(t, err)
			assert.Equal(t, []int64{int64(i % 4)}, set.IDs())
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 4, c.Len())
}

func TestEntriesGauge_SumsAcrossCaches(t *testing.T) {
	ctx := context.Background()
	base := promtest.ToFloat64(metrics.FilterCacheEntries)
	fill, _ := counter(docset.New(1))

	a, b := New(2), New(4)
	for _, p := range []string{"x", "y", "z"} {
		_, err := a.Load(ctx, queryir.NestedTypeFilter{Path: p}, 1, fill)
		require.NoError(t, err)
		_, err = b.Load(ctx, queryir.NestedTypeFilter{Path: p}, 1, fill)
		require.NoError(t, err)
	}
	require.Equal(t, 2, a.Len())
	require.Equal(t, 3, b.Len())
	assert.Equal(t, base+5, promtest.ToFloat64(metrics.FilterCacheEntries))

	a.Purge()
	assert.Equal(t, base+3, promtest.ToFloat64(metrics.FilterCacheEntries))
	b.Purge()
	assert.Equal(t, base, promtest.ToFloat64(metrics.FilterCacheEntries))
}
