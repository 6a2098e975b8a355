// Package harness runs conformance scenarios against the compiler and the
// search engine.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	mapping: mapping.yaml          # path relative to the scenario, or inline
//	documents:
//	  - _id: p1
//	    _source: { title: go, comments: [{ author: alice }] }
//	steps:
//	  - name: alice_comments
//	    query: |
//	      {"nested": {"path": "comments", "query": {"term": {"comments.author": "alice"}}}}
//	    expect:
//	      hits: [p1]
//	      total: 1
//	      scores: { p1: 1 }
//	      matched_queries: { p1: [alice] }
//	      explain: "ToParentBlockJoin(...)"
//	  - name: not_nested
//	    query: { nested: { path: title, query: { match_all: {} } } }
//	    expect:
//	      error: NOT_NESTED
//
// A query is CUE text (so JSON works) or an inline YAML object.
//
// # Expectations
//
//   - hits: hit ids in rank order
//   - total: number of matching root documents
//   - scores: exact score per hit id
//   - matched_queries: named queries per hit id
//   - explain: the compiled query's explain string
//   - error: the compile or runtime error code the step must fail with
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory SQLite store with fixed
// invocation ids, so results are identical across runs and can be compared
// against golden files.
package harness
