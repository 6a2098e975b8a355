package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nestq/internal/mapping"
)

func TestIndexBlock_WritesChildrenBeforeRoot(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.IndexBlock(ctx, "p1", json.RawMessage(`{"title":"a"}`), testBlock("a", "alice", "bob")))

	docs, err := s.ReadBlock(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, "comments", docs[0].Path)
	assert.Equal(t, "alice", docs[0].Fields["comments.author"])
	assert.Equal(t, "comments", docs[1].Path)
	assert.Equal(t, "", docs[2].Path)
	assert.Equal(t, "a", docs[2].Fields["title"])

	for i := 1; i < len(docs); i++ {
		assert.Equal(t, docs[i-1].Seq+1, docs[i].Seq, "block must be contiguous")
	}
}

func TestIndexBlock_ReindexAppends(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.IndexBlock(ctx, "p1", json.RawMessage(`{}`), testBlock("one", "alice")))
	require.NoError(t, s.IndexBlock(ctx, "p2", json.RawMessage(`{}`), testBlock("two", "bob")))
	require.NoError(t, s.IndexBlock(ctx, "p1", json.RawMessage(`{"v":2}`), testBlock("three", "carol", "dave")))

	p1, err := s.ReadBlock(ctx, "p1")
	require.NoError(t, err)
	p2, err := s.ReadBlock(ctx, "p2")
	require.NoError(t, err)

	require.Len(t, p1, 3)
	assert.Greater(t, p1[0].Seq, p2[len(p2)-1].Seq, "re-indexed block goes after existing blocks")
	assert.Equal(t, "three", p1[2].Fields["title"])

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Blocks)
	assert.Equal(t, int64(5), st.Docs)

	src, ok, err := s.ReadSource(ctx, "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"v":2}`, string(src))
}

func TestIndexBlock_Rejects(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	assert.Error(t, s.IndexBlock(ctx, "", nil, testBlock("a")))
	assert.Error(t, s.IndexBlock(ctx, "p1", nil, nil))
	assert.Error(t, s.IndexBlock(ctx, "p1", nil, []mapping.Doc{{Path: "comments"}}))

	gen, err := s.Generation(ctx)
	require.NoError(t, err)
	assert.Zero(t, gen, "rejected writes must not move the generation")
}

func TestGeneration_MovesOnEveryWrite(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	gen0, err := s.Generation(ctx)
	require.NoError(t, err)

	require.NoError(t, s.IndexBlock(ctx, "p1", json.RawMessage(`{}`), testBlock("a")))
	gen1, err := s.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, gen0+1, gen1)

	existed, err := s.DeleteBlock(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, existed)
	gen2, err := s.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, gen1+1, gen2)

	existed, err = s.DeleteBlock(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, existed)
	gen3, err := s.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, gen2, gen3)
}

func TestDeleteBlock_RemovesDocs(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.IndexBlock(ctx, "p1", json.RawMessage(`{}`), testBlock("a", "x", "y")))
	_, err := s.DeleteBlock(ctx, "p1")
	require.NoError(t, err)

	docs, err := s.ReadBlock(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, ok, err := s.ReadSource(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, ok)
}
