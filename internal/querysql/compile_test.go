package querysql

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nestq/internal/ir"
	"github.com/roach88/nestq/internal/mapping"
	"github.com/roach88/nestq/internal/queryir"
	"github.com/roach88/nestq/internal/store"
)

func TestCompile_Shapes(t *testing.T) {
	c := NewSQLCompiler()

	tests := []struct {
		name   string
		filter queryir.Filter
		where  string
		params []any
	}{
		{"match_all", queryir.MatchAllFilter{}, "1 = 1", nil},
		{"nested type", queryir.NestedTypeFilter{Path: "comments"}, "docs.path = ?", []any{"comments"}},
		{"non nested", queryir.NonNestedFilter{}, "docs.path = ''", nil},
		{
			"string term",
			queryir.TermFilter{Field: "comments.author", Value: ir.IRString("alice")},
			"EXISTS (SELECT 1 FROM json_each(docs.fields, ?) WHERE type = 'text' AND value = ?)",
			[]any{`$."comments.author"`, "alice"},
		},
		{
			"int term",
			queryir.TermFilter{Field: "n", Value: ir.IRInt(5)},
			"EXISTS (SELECT 1 FROM json_each(docs.fields, ?) WHERE type IN ('integer', 'real') AND value = ?)",
			[]any{`$."n"`, int64(5)},
		},
		{
			"bool term",
			queryir.TermFilter{Field: "flag", Value: ir.IRBool(false)},
			"EXISTS (SELECT 1 FROM json_each(docs.fields, ?) WHERE type = ?)",
			[]any{`$."flag"`, "false"},
		},
		{"empty terms", queryir.TermsFilter{Field: "a"}, "0 = 1", nil},
		{"empty and", queryir.AndFilter{}, "1 = 1", nil},
		{"empty or", queryir.OrFilter{}, "0 = 1", nil},
		{
			"exists",
			queryir.ExistsFilter{Field: "title"},
			"json_type(docs.fields, ?) IS NOT NULL",
			[]any{`$."title"`},
		},
		{
			"not",
			queryir.NotFilter{Filter: queryir.NonNestedFilter{}},
			"NOT (docs.path = '')",
			nil,
		},
		{
			"cached and",
			queryir.CachedFilter{Filter: queryir.AndFilter{Filters: []queryir.Filter{
				queryir.NestedTypeFilter{Path: "a"},
				queryir.NonNestedFilter{},
			}}},
			"(docs.path = ?) AND (docs.path = '')",
			[]any{"a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, params, err := c.CompilePredicate(tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.where, where)
			assert.Equal(t, tt.params, params)
		})
	}
}

func TestCompile_AlwaysOrdersBySeq(t *testing.T) {
	sql, params, err := NewSQLCompiler().Compile(queryir.TermFilter{Field: "a", Value: ir.IRString("secret")})
	require.NoError(t, err)
	assert.Contains(t, sql, "ORDER BY seq ASC")
	assert.NotContains(t, sql, "secret", "values must be parameterized")
	assert.Contains(t, params, "secret")
}

func TestCompile_LateBound(t *testing.T) {
	c := NewSQLCompiler()

	h := queryir.NewLateBoundFilter()
	_, _, err := c.CompilePredicate(h)
	assert.ErrorIs(t, err, queryir.ErrUnbound)

	require.NoError(t, h.Bind(queryir.CachedFilter{Filter: queryir.NestedTypeFilter{Path: "comments"}}))
	where, params, err := c.CompilePredicate(queryir.CachedFilter{Filter: h})
	require.NoError(t, err)
	assert.Equal(t, "docs.path = ?", where)
	assert.Equal(t, []any{"comments"}, params)
}

func TestCompile_Errors(t *testing.T) {
	c := NewSQLCompiler()

	_, _, err := c.Compile(nil)
	assert.Error(t, err)

	_, _, err = c.CompilePredicate(queryir.QueryFilter{Query: queryir.MatchAll{Boost: 1}})
	assert.ErrorIs(t, err, ErrUnsupported)

	_, _, err = c.CompilePredicate(queryir.TermFilter{Field: `a"b`, Value: ir.IRInt(1)})
	assert.Error(t, err)

	_, _, err = c.CompilePredicate(queryir.TermFilter{Field: "a", Value: ir.IRArray{}})
	assert.Error(t, err)
}

// TestCompile_AgainstStore runs compiled filters against a real block.
func TestCompile_AgainstStore(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	docs := []mapping.Doc{
		{Path: "comments", Fields: map[string]any{"comments.author": "alice", "comments.stars": json.Number("5")}},
		{Path: "comments", Fields: map[string]any{"comments.author": "bob", "comments.stars": json.Number("1")}},
		{Fields: map[string]any{
			"title": "go", "tags": []any{"db", "search"}, "draft": true,
			"rating": json.Number("7.0"), "weight": json.Number("2.5"),
		}},
	}
	require.NoError(t, s.IndexBlock(ctx, "p1", json.RawMessage(`{}`), docs))
	block, err := s.ReadBlock(ctx, "p1")
	require.NoError(t, err)
	seq := func(i int) int64 { return block[i].Seq }

	c := NewSQLCompiler()
	tests := []struct {
		name   string
		filter queryir.Filter
		want   []int64
	}{
		{"term string", queryir.TermFilter{Field: "comments.author", Value: ir.IRString("bob")}, []int64{seq(1)}},
		{"term int", queryir.TermFilter{Field: "comments.stars", Value: ir.IRInt(5)}, []int64{seq(0)}},
		{"term int matches whole real", queryir.TermFilter{Field: "rating", Value: ir.IRInt(7)}, []int64{seq(2)}},
		{"term int skips fractional real", queryir.TermFilter{Field: "weight", Value: ir.IRInt(2)}, nil},
		{"term string never matches number", queryir.TermFilter{Field: "comments.stars", Value: ir.IRString("5")}, nil},
		{"multi-valued", queryir.TermFilter{Field: "tags", Value: ir.IRString("search")}, []int64{seq(2)}},
		{"bool", queryir.TermFilter{Field: "draft", Value: ir.IRBool(true)}, []int64{seq(2)}},
		{"terms", queryir.TermsFilter{Field: "comments.author", Values: []ir.IRValue{ir.IRString("alice"), ir.IRString("bob")}}, []int64{seq(0), seq(1)}},
		{"exists", queryir.ExistsFilter{Field: "title"}, []int64{seq(2)}},
		{"nested type", queryir.NestedTypeFilter{Path: "comments"}, []int64{seq(0), seq(1)}},
		{"non nested", queryir.NonNestedFilter{}, []int64{seq(2)}},
		{"not", queryir.NotFilter{Filter: queryir.NonNestedFilter{}}, []int64{seq(0), seq(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params, err := c.Compile(tt.filter)
			require.NoError(t, err)
			ids, err := s.QueryIDs(ctx, sql, params...)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Zero(t, ids.Len())
				return
			}
			assert.Equal(t, tt.want, ids.IDs())
		})
	}
}
