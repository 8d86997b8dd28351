package store

import (
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codegraph/indexer/internal/store/model"
)

// DefaultBatchSize is used when import.node_batch / import.relationship_batch
// is left unset (spec §4.3: "typical batch 500-5000 rows").
const DefaultBatchSize = 1000

// Writer buffers cache mutations behind a mutex and commits them in
// batches, adapted from the teacher's AsyncStagingManager
// (mcp/async_staging.go). It runs no goroutine of its own: a Put call
// that fills a batch flushes it synchronously in the caller's goroutine,
// so a Pass-1 worker waits for that database round trip, and flushes
// from different goroutines are not serialized by the Writer.
type Writer struct {
	db        *gorm.DB
	batchSize int

	mu      sync.Mutex
	symbols []model.Symbol
	refs    []model.Reference
	cfgRefs []model.ConfigReference
}

// NewWriter wraps db with batching. batchSize <= 0 uses DefaultBatchSize.
func NewWriter(db *gorm.DB, batchSize int) *Writer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Writer{db: db, batchSize: batchSize}
}

// PutSymbols stages symbols for an idempotent upsert. Safe for concurrent
// callers; flushes synchronously once batchSize rows have accumulated.
func (w *Writer) PutSymbols(rows []model.Symbol) error {
	w.mu.Lock()
	w.symbols = append(w.symbols, rows...)
	pending := len(w.symbols) >= w.batchSize
	w.mu.Unlock()
	if pending {
		return w.FlushSymbols()
	}
	return nil
}

// PutReferences stages references for an idempotent insert.
func (w *Writer) PutReferences(rows []model.Reference) error {
	w.mu.Lock()
	w.refs = append(w.refs, rows...)
	pending := len(w.refs) >= w.batchSize
	w.mu.Unlock()
	if pending {
		return w.FlushReferences()
	}
	return nil
}

// PutConfigReferences stages config-mediated reference rows (C6).
func (w *Writer) PutConfigReferences(rows []model.ConfigReference) error {
	w.mu.Lock()
	w.cfgRefs = append(w.cfgRefs, rows...)
	pending := len(w.cfgRefs) >= w.batchSize
	w.mu.Unlock()
	if pending {
		return w.FlushConfigReferences()
	}
	return nil
}

// FlushSymbols commits any buffered symbol rows. A second run against the
// same rows inserts zero new rows: the upsert is keyed on id (the
// fingerprint of language, kind, qualified_name and file_path) and on
// conflict only refreshes the mutable columns (spec §3, §8 "Idempotence").
func (w *Writer) FlushSymbols() error {
	w.mu.Lock()
	batch := w.symbols
	w.symbols = nil
	w.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	return w.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"modifiers", "signature", "declared_types", "docblock"}),
	}).CreateInBatches(batch, w.batchSize).Error
}

// FlushReferences commits any buffered reference rows. Duplicate
// (source_id, target_id, kind, line, column) rows are silently dropped by
// the unique index, matching the uniqueness property of spec §8.
func (w *Writer) FlushReferences() error {
	w.mu.Lock()
	batch := w.refs
	w.refs = nil
	w.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	return w.db.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(batch, w.batchSize).Error
}

// FlushConfigReferences commits buffered config-reference rows. Duplicate
// (config_file, config_key, class_name, registration_kind) rows are
// silently dropped by the unique index, so a re-scan of an unchanged
// config file never duplicates its config references (spec §3, §8
// "Idempotence").
func (w *Writer) FlushConfigReferences() error {
	w.mu.Lock()
	batch := w.cfgRefs
	w.cfgRefs = nil
	w.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	return w.db.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(batch, w.batchSize).Error
}

// Flush commits every buffered table. Call once at the end of a phase.
func (w *Writer) Flush() error {
	if err := w.FlushSymbols(); err != nil {
		return err
	}
	if err := w.FlushReferences(); err != nil {
		return err
	}
	return w.FlushConfigReferences()
}
