package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/nestq/internal/engine"
	"github.com/roach88/nestq/internal/mapping"
	"github.com/roach88/nestq/internal/store"
)

// OpenStore opens a store in a fresh temp dir and closes it on cleanup.
func OpenStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// ParseMapping parses a YAML mapping or fails the test.
func ParseMapping(t testing.TB, src string) *mapping.Mapping {
	t.Helper()
	m, err := mapping.Parse([]byte(src))
	require.NoError(t, err)
	return m
}

// IndexDocs indexes docs into s and requires all of them to succeed.
func IndexDocs(t testing.TB, m *mapping.Mapping, s *store.Store, docs ...engine.Document) {
	t.Helper()
	n, err := engine.NewIndexer(m, s, nil).IndexAll(context.Background(), docs)
	require.NoError(t, err)
	require.Equal(t, len(docs), n)
}
