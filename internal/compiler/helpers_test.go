package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/nestq/internal/filtercache"
	"github.com/roach88/nestq/internal/mapping"
	"github.com/roach88/nestq/internal/queryir"
)

const testMapping = `
properties:
  title: {type: text}
  meta:
    properties:
      lang: {type: keyword}
  comments:
    type: nested
    properties:
      author: {type: keyword}
      text: {type: text}
      replies:
        type: nested
        properties:
          author: {type: keyword}
          likes:
            type: nested
            properties:
              user: {type: keyword}
`

func testParser(t *testing.T, opts ...Option) *Parser {
	t.Helper()
	m, err := mapping.Parse([]byte(testMapping))
	require.NoError(t, err)
	return NewParser(m, filtercache.New(64), opts...)
}

func mustParse(t *testing.T, p *Parser, src string) *ParsedQuery {
	t.Helper()
	pq, err := p.Parse([]byte(src), "query.json")
	require.NoError(t, err)
	return pq
}

func asJoin(t *testing.T, q queryir.Query) *queryir.BlockJoin {
	t.Helper()
	join, ok := q.(*queryir.BlockJoin)
	require.True(t, ok, "expected *BlockJoin, got %T", q)
	return join
}

// childFilter returns the nested-type restriction of a join's child.
func childFilter(t *testing.T, join *queryir.BlockJoin) queryir.Filter {
	t.Helper()
	f, ok := join.Child.(queryir.Filtered)
	require.True(t, ok, "join child must be Filtered, got %T", join.Child)
	return f.Filter
}

func childQuery(t *testing.T, join *queryir.BlockJoin) queryir.Query {
	t.Helper()
	f, ok := join.Child.(queryir.Filtered)
	require.True(t, ok, "join child must be Filtered, got %T", join.Child)
	return f.Query
}

var rootFilter = queryir.CachedFilter{Filter: queryir.NonNestedFilter{}}
