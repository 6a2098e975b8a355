// Package engine executes compiled queries against the block store.
//
// A search evaluates the query IR bottom-up. Leaf filters are compiled to
// SQL and materialized as doc-id sets through the filter cache; queries
// produce a score per matching document.
//
// Block joins rely on the block order the store guarantees: the nested
// documents of a parent are written right before it, so the parent of a
// child document is the first document at or after it matching the join's
// parent filter.
//
// ORDERING:
// Hits sort by score descending, then by seq ascending. The same store
// contents and the same query always give the same hits in the same order.
package engine
