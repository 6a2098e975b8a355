package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migration upgrades a database whose user_version is below version.
type migration struct {
	version int
	name    string
	stmts   []string
}

// migrations run in order. schema.sql always describes the latest layout,
// so a migration only has to bring databases created by older builds up to it.
var migrations = []migration{
	{
		version: 1,
		name:    "docs path index",
		stmts:   []string{`CREATE INDEX IF NOT EXISTS idx_docs_path ON docs(path, seq)`},
	},
}

// schemaVersion is the user_version of a fully migrated database.
func schemaVersion() int {
	return migrations[len(migrations)-1].version
}

// Store holds indexed document blocks in SQLite.
type Store struct {
	db *sql.DB
}

// Option tunes how Open configures the connection.
type Option func(*openConfig)

type openConfig struct {
	busyTimeout time.Duration
	synchronous string
}

// WithBusyTimeout sets how long a write waits for the lock. Default 5s.
func WithBusyTimeout(d time.Duration) Option {
	return func(c *openConfig) { c.busyTimeout = d }
}

// WithSynchronous sets PRAGMA synchronous (OFF, NORMAL, FULL). Default NORMAL.
func WithSynchronous(mode string) Option {
	return func(c *openConfig) { c.synchronous = mode }
}

// Open creates or opens the block store at path, ":memory:" included.
// Reopening an existing store is safe; pending migrations are applied.
func Open(path string, opts ...Option) (*Store, error) {
	cfg := openConfig{busyTimeout: 5 * time.Second, synchronous: "NORMAL"}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: a single writer, and ":memory:" stays one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := initialize(db, cfg); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initialize(db *sql.DB, cfg openConfig) error {
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = " + cfg.synchronous,
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout.Milliseconds()),
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return migrate(db)
}

// migrate applies every migration above the stored user_version, each in
// its own transaction together with the version bump.
func migrate(db *sql.DB) error {
	var current int
	if err := db.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		for _, stmt := range m.stmts {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
			}
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): set user_version: %w", m.version, m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying connection pool. Health checks ping it.
func (s *Store) DB() *sql.DB {
	return s.db
}

// pragma reads the current value of a PRAGMA.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("read pragma %s: %w", name, err)
	}
	return value, nil
}
