package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryIDs(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.IndexBlock(ctx, "p1", json.RawMessage(`{}`), testBlock("a", "alice", "bob")))
	require.NoError(t, s.IndexBlock(ctx, "p2", json.RawMessage(`{}`), testBlock("b", "alice")))

	ids, err := s.QueryIDs(ctx, `SELECT seq FROM docs WHERE path = ? ORDER BY seq ASC`, "comments")
	require.NoError(t, err)
	assert.Equal(t, 3, ids.Len())

	roots, err := s.QueryIDs(ctx, `SELECT seq FROM docs WHERE path = '' ORDER BY seq ASC`)
	require.NoError(t, err)
	assert.Equal(t, 2, roots.Len())

	// Unordered results are still returned as a valid set.
	desc, err := s.QueryIDs(ctx, `SELECT seq FROM docs ORDER BY seq DESC`)
	require.NoError(t, err)
	assert.Equal(t, 5, desc.Len())
	assert.IsIncreasing(t, desc.IDs())
}

func TestQueryIDs_JSONFields(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.IndexBlock(ctx, "p1", json.RawMessage(`{}`), testBlock("a", "alice", "bob")))

	ids, err := s.QueryIDs(ctx, `
		SELECT seq FROM docs
		WHERE EXISTS (SELECT 1 FROM json_each(docs.fields, ?) WHERE value = ?)
		ORDER BY seq ASC`, `$."comments.author"`, "bob")
	require.NoError(t, err)
	require.Equal(t, 1, ids.Len())

	docs, err := s.ReadBlock(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, docs[1].Seq, ids.IDs()[0])
}

func TestBlocksOf(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.IndexBlock(ctx, "p1", json.RawMessage(`{"n":1}`), testBlock("a", "alice")))
	require.NoError(t, s.IndexBlock(ctx, "p2", json.RawMessage(`{"n":2}`), testBlock("b")))

	p1, err := s.ReadBlock(ctx, "p1")
	require.NoError(t, err)
	p2, err := s.ReadBlock(ctx, "p2")
	require.NoError(t, err)

	// The nested doc of p1 is not a root and is skipped.
	refs, err := s.BlocksOf(ctx, []int64{p2[0].Seq, p1[0].Seq, p1[1].Seq})
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "p1", refs[0].ID)
	assert.Equal(t, p1[0].Seq, refs[0].FirstSeq)
	assert.Equal(t, p1[1].Seq, refs[0].Seq)
	assert.JSONEq(t, `{"n":1}`, string(refs[0].Source))
	assert.Equal(t, "p2", refs[1].ID)

	none, err := s.BlocksOf(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFieldsRoundTripKeepsLargeIntegers(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	docs := testBlock("a")
	docs[0].Fields["big"] = json.Number("9007199254740993")
	require.NoError(t, s.IndexBlock(ctx, "p1", json.RawMessage(`{}`), docs))

	got, err := s.ReadBlock(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), got[0].Fields["big"])
}
