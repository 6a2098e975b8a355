package compiler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nestq/internal/ir"
	"github.com/roach88/nestq/internal/queryir"
)

func TestParse_Queries(t *testing.T) {
	p := testParser(t)

	tests := []struct {
		name string
		src  string
		want queryir.Query
	}{
		{
			"match_all",
			`{"match_all": {}}`,
			queryir.MatchAll{Boost: 1},
		},
		{
			"boosted match_all",
			`{"match_all": {"boost": 3}}`,
			queryir.MatchAll{Boost: 3},
		},
		{
			"term short form",
			`{"term": {"title": "go"}}`,
			queryir.Term{Field: "title", Value: ir.IRString("go"), Boost: 1},
		},
		{
			"term long form",
			`{"term": {"n": {"value": 7, "boost": 0.5}}}`,
			queryir.Term{Field: "n", Value: ir.IRInt(7), Boost: 0.5},
		},
		{
			"match long form",
			`{"match": {"flag": {"query": true}}}`,
			queryir.Term{Field: "flag", Value: ir.IRBool(true), Boost: 1},
		},
		{
			"bool",
			`{"bool": {"must": {"term": {"a": "x"}}, "must_not": [{"term": {"b": "y"}}], "filter": {"exists": {"field": "c"}}, "boost": 2}}`,
			queryir.Bool{
				Must:    []queryir.Query{queryir.Term{Field: "a", Value: ir.IRString("x"), Boost: 1}},
				MustNot: []queryir.Query{queryir.Term{Field: "b", Value: ir.IRString("y"), Boost: 1}},
				Filter:  []queryir.Filter{queryir.ExistsFilter{Field: "c"}},
				Boost:   2,
			},
		},
		{
			"filtered without query",
			`{"filtered": {"filter": {"terms": {"tag": ["a", "b"]}}}}`,
			queryir.Filtered{
				Query:  queryir.MatchAll{Boost: 1},
				Filter: queryir.TermsFilter{Field: "tag", Values: []ir.IRValue{ir.IRString("a"), ir.IRString("b")}},
			},
		},
		{
			"filtered without filter",
			`{"filtered": {"query": {"term": {"a": 1}}}}`,
			queryir.Term{Field: "a", Value: ir.IRInt(1), Boost: 1},
		},
		{
			"constant_score over query",
			`{"constant_score": {"query": {"match_all": {}}, "boost": 4}}`,
			queryir.ConstantScore{Filter: queryir.QueryFilter{Query: queryir.MatchAll{Boost: 1}}, Boost: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pq := mustParse(t, p, tt.src)
			assert.Equal(t, tt.want, pq.Query)
		})
	}
}

func TestParse_Filters(t *testing.T) {
	p := testParser(t)

	tests := []struct {
		name string
		src  string
		want queryir.Filter
	}{
		{"match_all", `{"match_all": {}}`, queryir.MatchAllFilter{}},
		{"term", `{"term": {"a": "x"}}`, queryir.TermFilter{Field: "a", Value: ir.IRString("x")}},
		{"empty terms", `{"terms": {"a": []}}`, queryir.TermsFilter{Field: "a", Values: []ir.IRValue{}}},
		{
			"and list",
			`{"and": [{"term": {"a": "x"}}, {}, {"exists": {"field": "b"}}]}`,
			queryir.AndFilter{Filters: []queryir.Filter{
				queryir.TermFilter{Field: "a", Value: ir.IRString("x")},
				queryir.ExistsFilter{Field: "b"},
			}},
		},
		{
			"or object",
			`{"or": {"filters": [{"term": {"a": 1}}, {"term": {"a": 2}}]}}`,
			queryir.OrFilter{Filters: []queryir.Filter{
				queryir.TermFilter{Field: "a", Value: ir.IRInt(1)},
				queryir.TermFilter{Field: "a", Value: ir.IRInt(2)},
			}},
		},
		{
			"not wrapped",
			`{"not": {"filter": {"term": {"a": "x"}}}}`,
			queryir.NotFilter{Filter: queryir.TermFilter{Field: "a", Value: ir.IRString("x")}},
		},
		{
			"not bare",
			`{"not": {"term": {"a": "x"}}}`,
			queryir.NotFilter{Filter: queryir.TermFilter{Field: "a", Value: ir.IRString("x")}},
		},
		{
			"bool",
			`{"bool": {"must": {"term": {"a": "x"}}, "should": [{"term": {"b": 1}}, {"term": {"b": 2}}], "must_not": {"exists": {"field": "c"}}}}`,
			queryir.AndFilter{Filters: []queryir.Filter{
				queryir.TermFilter{Field: "a", Value: ir.IRString("x")},
				queryir.OrFilter{Filters: []queryir.Filter{
					queryir.TermFilter{Field: "b", Value: ir.IRInt(1)},
					queryir.TermFilter{Field: "b", Value: ir.IRInt(2)},
				}},
				queryir.NotFilter{Filter: queryir.ExistsFilter{Field: "c"}},
			}},
		},
		{"single bool clause", `{"bool": {"must": {"match_all": {}}}}`, queryir.MatchAllFilter{}},
		{"query", `{"query": {"term": {"a": "x"}}}`, queryir.QueryFilter{Query: queryir.Term{Field: "a", Value: ir.IRString("x"), Boost: 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pq := mustParse(t, p, `{"constant_score": {"filter": `+tt.src+`}}`)
			cs, ok := pq.Query.(queryir.ConstantScore)
			require.True(t, ok, "got %T", pq.Query)
			assert.Equal(t, tt.want, cs.Filter)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	p := testParser(t)

	tests := []struct {
		name string
		src  string
		code ErrorCode
	}{
		{"syntax", `{"term": `, CodeMalformedSpec},
		{"unknown query", `{"fuzzy": {"a": "x"}}`, CodeUnknownQuery},
		{"unknown filter", `{"constant_score": {"filter": {"geo": {}}}}`, CodeUnknownQuery},
		{"two kinds", `{"term": {"a": "x"}, "match_all": {}}`, CodeMalformedSpec},
		{"float term", `{"term": {"a": 1.5}}`, CodeInvalidValue},
		{"null term", `{"term": {"a": null}}`, CodeInvalidValue},
		{"object field", `{"term": {"comments": "x"}}`, CodeInvalidValue},
		{"term without value", `{"term": {"a": {"boost": 2}}}`, CodeMalformedSpec},
		{"bool unknown", `{"bool": {"minimum_should_match": 1}}`, CodeUnsupportedField},
		{"constant_score empty", `{"constant_score": {"boost": 2}}`, CodeMalformedSpec},
		{"terms not a list", `{"constant_score": {"filter": {"terms": {"a": "x"}}}}`, CodeMalformedSpec},
		{"exists without field", `{"constant_score": {"filter": {"exists": {}}}}`, CodeMalformedSpec},
		{"clause not an object", `{"bool": {"must": "x"}}`, CodeMalformedSpec},
		{"request field", `{"query": {"match_all": {}}, "from": 10}`, CodeUnsupportedField},
		{"negative size", `{"query": {"match_all": {}}, "size": -1}`, CodeInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse([]byte(tt.src), "q.json")
			require.Error(t, err)
			assert.Equal(t, tt.code, CodeOf(err), "got %v", err)
		})
	}
}

func TestParse_DepthGuard(t *testing.T) {
	p := testParser(t, WithMaxDepth(3))

	mustParse(t, p, `{"bool": {"must": {"bool": {"must": {"match_all": {}}}}}}`)

	_, err := p.Parse([]byte(`{"bool": {"must": {"bool": {"must": {"bool": {"must": {"match_all": {}}}}}}}}`), "q.json")
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeDepthExceeded))
}

func TestParse_RequestWrapper(t *testing.T) {
	p := testParser(t, WithIDGenerator(NewFixedGenerator("inv-1", "inv-2")))

	pq := mustParse(t, p, `{"query": {"match_all": {}}, "size": 5}`)
	assert.Equal(t, queryir.MatchAll{Boost: 1}, pq.Query)
	assert.Equal(t, 5, pq.Size)
	assert.Equal(t, "inv-1", pq.InvocationID)

	pq = mustParse(t, p, `{"match_all": {}}`)
	assert.Equal(t, 0, pq.Size)
	assert.Equal(t, "inv-2", pq.InvocationID)
}

func TestParse_CUESyntax(t *testing.T) {
	p := testParser(t)

	pq := mustParse(t, p, `
		nested: {
			path: "comments"
			query: term: "comments.author": "alice"
		}
	`)
	join := asJoin(t, pq.Query)
	assert.Equal(t, "comments", join.Path)
}

func TestParse_SyntaxErrorPosition(t *testing.T) {
	p := testParser(t)

	_, err := p.Parse([]byte("{\n  \"term\": {\"a\": }\n}"), "broken.json")
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "cue", ce.Field)
	assert.Equal(t, "broken.json", ce.Pos.Filename())
	assert.Equal(t, 2, ce.Pos.Line())
}

func TestFixedGenerator_Exhausted(t *testing.T) {
	g := NewFixedGenerator("a")
	assert.Equal(t, "a", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestUUIDv7Generator(t *testing.T) {
	id := UUIDv7Generator{}.Generate()
	assert.Len(t, id, 36)
	assert.NotEqual(t, id, UUIDv7Generator{}.Generate())
}

// TestExplainGolden compiles every query under testdata/queries and
// compares its explain output with the golden file of the same name.
func TestExplainGolden(t *testing.T) {
	p := testParser(t)
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	files, err := filepath.Glob("testdata/queries/*.json")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".json")
		t.Run(name, func(t *testing.T) {
			src, err := os.ReadFile(file)
			require.NoError(t, err)

			pq, err := p.Parse(src, file)
			require.NoError(t, err)

			g.Assert(t, name, []byte(queryir.Explain(pq.Query)+"\n"))
		})
	}
}
