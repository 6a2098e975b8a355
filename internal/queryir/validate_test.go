package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nestq/internal/ir"
)

func TestValidate_ValidJoin(t *testing.T) {
	h := NewLateBoundFilter()
	require.NoError(t, h.Bind(CachedFilter{Filter: NestedTypeFilter{Path: "comments"}}))

	inner := &BlockJoin{
		Child:     Term{Field: "comments.replies.author", Value: ir.IRString("bob"), Boost: 1},
		Parent:    CachedFilter{Filter: h},
		ScoreMode: ScoreModeAvg,
		Boost:     1,
	}
	outer := &BlockJoin{
		Child:     Filtered{Query: inner, Filter: CachedFilter{Filter: NestedTypeFilter{Path: "comments"}}},
		Parent:    CachedFilter{Filter: NonNestedFilter{}},
		ScoreMode: ScoreModeTotal,
		Boost:     1,
	}

	result := Validate(outer)

	assert.True(t, result.IsValid)
	assert.Empty(t, result.Problems)
}

func TestValidate_UnboundParent(t *testing.T) {
	join := &BlockJoin{
		Child:     MatchAll{Boost: 1},
		Parent:    CachedFilter{Filter: NewLateBoundFilter()},
		ScoreMode: ScoreModeAvg,
		Boost:     1,
	}

	result := Validate(join)

	assert.False(t, result.IsValid)
	require.Len(t, result.Problems, 1)
	assert.Contains(t, result.Problems[0], "never bound")
	assert.Contains(t, result.Problems[0], "query.parent")
}

func TestValidate_MissingParts(t *testing.T) {
	result := Validate(&BlockJoin{ScoreMode: "weird"})

	assert.False(t, result.IsValid)
	require.Len(t, result.Problems, 3)
	assert.Contains(t, result.Problems[0], "invalid score mode")
	assert.Contains(t, result.Problems[1], "query.child: nil query")
	assert.Contains(t, result.Problems[2], "query.parent: nil filter")
}

func TestValidate_NilQuery(t *testing.T) {
	result := Validate(nil)

	assert.False(t, result.IsValid)
	assert.Equal(t, []string{"query: nil query"}, result.Problems)
}

func TestValidate_BoolPaths(t *testing.T) {
	q := Bool{
		Must:   []Query{MatchAll{Boost: 1}, nil},
		Filter: []Filter{TermFilter{Field: "x"}},
		Boost:  1,
	}

	result := Validate(q)

	require.Len(t, result.Problems, 2)
	assert.Contains(t, result.Problems[0], "query.must[1]")
	assert.Contains(t, result.Problems[1], "query.filter[0]")
}
