// Package ir provides the value and identity primitives shared by the query
// IR, the filter cache and the block store.
//
// This package imports nothing internal. Everything else builds on it.
//
// Key design constraints:
//   - NO float types in term values - use int64 for numbers
//   - Canonical JSON (RFC 8785 ordering, NFC strings) is the only encoding
//     used for identity; two filters are the same filter iff their canonical
//     forms are byte-identical
package ir
