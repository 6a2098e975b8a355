package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/roach88/nestq/internal/mapping"
	"github.com/roach88/nestq/internal/metrics"
	"github.com/roach88/nestq/internal/store"
)

// ErrInvalidDocument marks documents rejected before anything is written.
// IndexAll checks a whole batch first, so one invalid document leaves the
// store untouched.
var ErrInvalidDocument = errors.New("invalid document")

// Document is a source document to index.
type Document struct {
	ID     string          `json:"_id"`
	Source json.RawMessage `json:"_source"`
}

// Indexer flattens source documents into blocks and writes them.
type Indexer struct {
	mapping *mapping.Mapping
	store   *store.Store
	log     *zap.Logger
}

// NewIndexer creates an indexer. A nil logger discards output.
func NewIndexer(m *mapping.Mapping, s *store.Store, log *zap.Logger) *Indexer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Indexer{mapping: m, store: s, log: log}
}

// block is a validated document, flattened and ready to write.
type block struct {
	id     string
	source []byte
	docs   []mapping.Doc
}

func (ix *Indexer) prepare(doc Document) (block, error) {
	if doc.ID == "" {
		return block{}, fmt.Errorf("index: %w: document has no _id", ErrInvalidDocument)
	}

	dec := json.NewDecoder(bytes.NewReader(doc.Source))
	dec.UseNumber()
	var source map[string]any
	if err := dec.Decode(&source); err != nil {
		return block{}, fmt.Errorf("index %s: %w: decode source: %w", doc.ID, ErrInvalidDocument, err)
	}
	if source == nil {
		return block{}, fmt.Errorf("index %s: %w: _source must be an object", doc.ID, ErrInvalidDocument)
	}

	docs, err := ix.mapping.Flatten(source)
	if err != nil {
		return block{}, fmt.Errorf("index %s: %w: %w", doc.ID, ErrInvalidDocument, err)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, doc.Source); err != nil {
		return block{}, fmt.Errorf("index %s: %w: %w", doc.ID, ErrInvalidDocument, err)
	}
	return block{id: doc.ID, source: compact.Bytes(), docs: docs}, nil
}

func (ix *Indexer) write(ctx context.Context, b block) error {
	if err := ix.store.IndexBlock(ctx, b.id, b.source, b.docs); err != nil {
		return err
	}
	metrics.IndexedBlocksTotal.Inc()
	ix.log.Debug("indexed block",
		zap.String("id", b.id),
		zap.Int("docs", len(b.docs)))
	return nil
}

// Index writes the block of one document, replacing any block with the
// same id.
func (ix *Indexer) Index(ctx context.Context, doc Document) error {
	b, err := ix.prepare(doc)
	if err != nil {
		return err
	}
	return ix.write(ctx, b)
}

// IndexAll validates every document, then writes them in order and returns
// how many were written. An invalid document fails the batch with nothing
// written. Each block commits on its own, so a store error part way leaves
// the first n blocks indexed.
func (ix *Indexer) IndexAll(ctx context.Context, docs []Document) (int, error) {
	blocks := make([]block, 0, len(docs))
	for i, doc := range docs {
		b, err := ix.prepare(doc)
		if err != nil {
			return 0, fmt.Errorf("document %d: %w", i, err)
		}
		blocks = append(blocks, b)
	}

	for i, b := range blocks {
		if err := ix.write(ctx, b); err != nil {
			return i, err
		}
	}
	return len(blocks), nil
}

// DecodeDocuments reads a JSON array of {"_id": ..., "_source": {...}}.
func DecodeDocuments(r io.Reader) ([]Document, error) {
	var docs []Document
	if err := json.NewDecoder(r).Decode(&docs); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	return docs, nil
}
