package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/nestq/internal/mapping"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testBlock builds a two-comment block: comment docs first, root last.
func testBlock(title string, authors ...string) []mapping.Doc {
	docs := make([]mapping.Doc, 0, len(authors)+1)
	for _, a := range authors {
		docs = append(docs, mapping.Doc{
			Path:   "comments",
			Fields: map[string]any{"comments.author": a},
		})
	}
	return append(docs, mapping.Doc{Fields: map[string]any{"title": title}})
}
