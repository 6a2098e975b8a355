package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/nestq/internal/docset"
)

// DocRecord is one stored document.
type DocRecord struct {
	Seq     int64
	BlockID string
	Path    string
	Fields  map[string]any
}

// BlockRef identifies the block a root document belongs to. The block's
// documents span [FirstSeq, Seq].
type BlockRef struct {
	Seq      int64
	FirstSeq int64
	ID       string
	Source   json.RawMessage
}

// Stats summarizes the store contents.
type Stats struct {
	Blocks     int64  `json:"blocks"`
	Docs       int64  `json:"docs"`
	Generation uint64 `json:"generation"`
}

// Generation returns the current write generation.
func (s *Store) Generation(ctx context.Context) (uint64, error) {
	var gen int64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'generation'`).Scan(&gen)
	if err != nil {
		return 0, fmt.Errorf("read generation: %w", err)
	}
	return uint64(gen), nil
}

// QueryIDs runs a query selecting a single seq column and returns the ids
// as a set. The query must order by seq ASC.
func (s *Store) QueryIDs(ctx context.Context, query string, args ...any) (docset.Set, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return docset.Set{}, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()

	var (
		ids    []int64
		sorted = true
	)
	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return docset.Set{}, fmt.Errorf("scan id: %w", err)
		}
		if n := len(ids); n > 0 && ids[n-1] >= seq {
			sorted = false
		}
		ids = append(ids, seq)
	}
	if err := rows.Err(); err != nil {
		return docset.Set{}, fmt.Errorf("iterate ids: %w", err)
	}
	if !sorted {
		return docset.New(ids...), nil
	}
	return docset.FromSorted(ids), nil
}

// ReadBlock returns the documents of a block in block order.
func (s *Store) ReadBlock(ctx context.Context, id string) ([]DocRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, block_id, path, fields
		FROM docs
		WHERE block_id = ?
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("read block %s: %w", id, err)
	}
	defer rows.Close()

	var docs []DocRecord
	for rows.Next() {
		var (
			rec        DocRecord
			fieldsJSON string
		)
		if err := rows.Scan(&rec.Seq, &rec.BlockID, &rec.Path, &fieldsJSON); err != nil {
			return nil, fmt.Errorf("read block %s: scan: %w", id, err)
		}
		if rec.Fields, err = unmarshalFields(fieldsJSON); err != nil {
			return nil, fmt.Errorf("read block %s: seq %d: %w", id, rec.Seq, err)
		}
		docs = append(docs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read block %s: %w", id, err)
	}
	return docs, nil
}

// ReadSource returns the source document a block was indexed from.
func (s *Store) ReadSource(ctx context.Context, id string) (json.RawMessage, bool, error) {
	var source string
	err := s.db.QueryRowContext(ctx, `SELECT source FROM blocks WHERE id = ?`, id).Scan(&source)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read source %s: %w", id, err)
	}
	return json.RawMessage(source), true, nil
}

// BlocksOf resolves root document seqs to their blocks. Seqs that are not
// root documents are skipped. Results are ordered by seq.
func (s *Store) BlocksOf(ctx context.Context, seqs []int64) ([]BlockRef, error) {
	if len(seqs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(seqs)), ",")
	args := make([]any, len(seqs))
	for i, seq := range seqs {
		args[i] = seq
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT d.seq, b.first_seq, b.id, b.source
		FROM docs d
		JOIN blocks b ON b.id = d.block_id
		WHERE d.path = '' AND d.seq IN (`+placeholders+`)
		ORDER BY d.seq ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("blocks of: %w", err)
	}
	defer rows.Close()

	var refs []BlockRef
	for rows.Next() {
		var (
			ref    BlockRef
			source string
		)
		if err := rows.Scan(&ref.Seq, &ref.FirstSeq, &ref.ID, &source); err != nil {
			return nil, fmt.Errorf("blocks of: scan: %w", err)
		}
		ref.Source = json.RawMessage(source)
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("blocks of: %w", err)
	}
	return refs, nil
}

// Stats counts blocks and documents.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blocks`).Scan(&st.Blocks); err != nil {
		return Stats{}, fmt.Errorf("count blocks: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM docs`).Scan(&st.Docs); err != nil {
		return Stats{}, fmt.Errorf("count docs: %w", err)
	}
	gen, err := s.Generation(ctx)
	if err != nil {
		return Stats{}, err
	}
	st.Generation = gen
	return st, nil
}
