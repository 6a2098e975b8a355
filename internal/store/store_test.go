package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.db")

	for range 3 {
		s, err := Open(path)
		require.NoError(t, err)
		require.NoError(t, s.Close())
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	for _, table := range []string{"blocks", "docs", "meta"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %q missing after reopen", table)
	}

	// seeded once, not per open
	var rows int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM meta WHERE key = 'generation'").Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.IndexBlock(t.Context(), "a", nil, testBlock("go", "alice")))
	st, err := s.Stats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Docs)
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	assert.Error(t, err)
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{}
	assert.NoError(t, s.Close())
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name, want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
		{"user_version", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.pragma(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpen_Options(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "blocks.db"),
		WithBusyTimeout(250*time.Millisecond),
		WithSynchronous("FULL"))
	require.NoError(t, err)
	defer s.Close()

	got, err := s.pragma("busy_timeout")
	require.NoError(t, err)
	assert.Equal(t, "250", got)

	got, err = s.pragma("synchronous")
	require.NoError(t, err)
	assert.Equal(t, "2", got) // FULL
}

func TestMigrate_UpgradesOldDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.db.Exec("DROP INDEX idx_docs_path")
	require.NoError(t, err)
	_, err = s.db.Exec("PRAGMA user_version = 0")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	assert.Contains(t, tableIndexes(t, s.db, "docs"), "idx_docs_path")
	v, err := s.pragma("user_version")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
	assert.Equal(t, 1, schemaVersion())
}

func TestSchema_Columns(t *testing.T) {
	s := createTestStore(t)

	tests := map[string][]string{
		"blocks": {"id", "source", "first_seq", "last_seq"},
		"docs":   {"seq", "block_id", "path", "fields"},
		"meta":   {"key", "value"},
	}
	for table, expected := range tests {
		assert.Subset(t, tableColumns(t, s.db, table), expected, "table %s", table)
	}
}

func TestSchema_DocsIndexes(t *testing.T) {
	s := createTestStore(t)
	assert.Subset(t, tableIndexes(t, s.db, "docs"), []string{"idx_docs_block", "idx_docs_path"})
}

func tableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM pragma_table_info(?)", table)
	require.NoError(t, err)
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		columns = append(columns, name)
	}
	require.NoError(t, rows.Err())
	return columns
}

func tableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	require.NoError(t, err)
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		indexes = append(indexes, name)
	}
	require.NoError(t, rows.Err())
	return indexes
}
