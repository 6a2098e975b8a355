package engine

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/nestq/internal/compiler"
	"github.com/roach88/nestq/internal/filtercache"
	"github.com/roach88/nestq/internal/mapping"
	"github.com/roach88/nestq/internal/store"
)

const testMapping = `
properties:
  title: {type: keyword}
  comments:
    type: nested
    properties:
      author: {type: keyword}
      stars: {type: long}
      replies:
        type: nested
        properties:
          author: {type: keyword}
`

var testDocs = []Document{
	{ID: "p1", Source: json.RawMessage(`{
		"title": "go",
		"comments": [
			{"author": "alice", "stars": 5, "replies": [{"author": "bob"}]},
			{"author": "bob", "stars": 3}
		]}`)},
	{ID: "p2", Source: json.RawMessage(`{
		"title": "rust",
		"comments": [{"author": "alice", "stars": 1}]}`)},
	{ID: "p3", Source: json.RawMessage(`{"title": "zig"}`)},
}

type testEnv struct {
	store   *store.Store
	cache   *filtercache.Cache
	parser  *compiler.Parser
	indexer *Indexer
	exec    *Executor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	m, err := mapping.Parse([]byte(testMapping))
	require.NoError(t, err)

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	cache := filtercache.New(64)
	env := &testEnv{
		store:   s,
		cache:   cache,
		parser:  compiler.NewParser(m, cache),
		indexer: NewIndexer(m, s, nil),
		exec:    NewExecutor(s, cache),
	}

	n, err := env.indexer.IndexAll(context.Background(), testDocs)
	require.NoError(t, err)
	require.Equal(t, len(testDocs), n)
	return env
}

func (env *testEnv) search(t *testing.T, src string) *SearchResult {
	t.Helper()
	pq, err := env.parser.Parse([]byte(src), "query.json")
	require.NoError(t, err)
	res, err := env.exec.Search(context.Background(), pq, 0)
	require.NoError(t, err)
	return res
}

// scoresByID flattens hits for comparison.
func scoresByID(res *SearchResult) map[string]float64 {
	out := make(map[string]float64, len(res.Hits))
	for _, h := range res.Hits {
		out[h.ID] = h.Score
	}
	return out
}

func hitIDs(res *SearchResult) []string {
	ids := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		ids = append(ids, h.ID)
	}
	return ids
}
