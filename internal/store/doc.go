// Package store provides SQLite-backed storage for indexed document blocks.
//
// A block is one source document flattened by its mapping: each nested
// object becomes its own document, and the documents are written
// contiguously with children before the parent they are nested in and the
// root document last. Block joins rely on that order: the parent of a
// nested document is the first parent-level document at or after it.
//
// # Ordering
//
//   - docs.seq is a logical position, never a timestamp
//   - every document query orders by seq ASC
//   - re-indexing a block deletes it and appends it again, in one transaction
//
// # Generations
//
// Every write bumps a generation counter. Filter caches tag their entries
// with the generation they were filled at and drop them once it moves.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
