package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/nestq/internal/mapping"
)

// IndexBlock writes the block of source document id. docs must be in block
// order (mapping.Flatten output): nested documents first, root last.
//
// An existing block with the same id is deleted first, so the new block is
// appended after every other block. The whole write is one transaction and
// bumps the generation.
func (s *Store) IndexBlock(ctx context.Context, id string, source json.RawMessage, docs []mapping.Doc) error {
	if id == "" {
		return errors.New("index block: empty id")
	}
	if len(docs) == 0 || docs[len(docs)-1].Path != "" {
		return fmt.Errorf("index block %s: last document must be the root document", id)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index block %s: begin: %w", id, err)
	}
	defer tx.Rollback()

	if _, err := deleteBlock(ctx, tx, id); err != nil {
		return fmt.Errorf("index block %s: %w", id, err)
	}

	// first_seq and last_seq are filled in once the docs are written.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO blocks (id, source, first_seq, last_seq) VALUES (?, ?, 0, 0)`,
		id, string(source),
	); err != nil {
		return fmt.Errorf("index block %s: insert block: %w", id, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO docs (block_id, path, fields) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index block %s: prepare: %w", id, err)
	}
	defer stmt.Close()

	var first, last int64
	for i, doc := range docs {
		fieldsJSON, err := marshalFields(doc.Fields)
		if err != nil {
			return fmt.Errorf("index block %s: doc %d: %w", id, i, err)
		}
		res, err := stmt.ExecContext(ctx, id, doc.Path, fieldsJSON)
		if err != nil {
			return fmt.Errorf("index block %s: doc %d: %w", id, i, err)
		}
		seq, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("index block %s: doc %d: %w", id, i, err)
		}
		if i == 0 {
			first = seq
		}
		last = seq
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE blocks SET first_seq = ?, last_seq = ? WHERE id = ?`,
		first, last, id,
	); err != nil {
		return fmt.Errorf("index block %s: update range: %w", id, err)
	}

	if err := bumpGeneration(ctx, tx); err != nil {
		return fmt.Errorf("index block %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index block %s: commit: %w", id, err)
	}
	return nil
}

// DeleteBlock removes a block and its documents. It reports whether the
// block existed; the generation only moves when it did.
func (s *Store) DeleteBlock(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("delete block %s: begin: %w", id, err)
	}
	defer tx.Rollback()

	existed, err := deleteBlock(ctx, tx, id)
	if err != nil {
		return false, fmt.Errorf("delete block %s: %w", id, err)
	}
	if !existed {
		return false, nil
	}
	if err := bumpGeneration(ctx, tx); err != nil {
		return false, fmt.Errorf("delete block %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("delete block %s: commit: %w", id, err)
	}
	return true, nil
}

func deleteBlock(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	if _, err := tx.ExecContext(ctx, `DELETE FROM docs WHERE block_id = ?`, id); err != nil {
		return false, fmt.Errorf("delete docs: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM blocks WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete block: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete block: %w", err)
	}
	return n > 0, nil
}

func bumpGeneration(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `UPDATE meta SET value = value + 1 WHERE key = 'generation'`); err != nil {
		return fmt.Errorf("bump generation: %w", err)
	}
	return nil
}
