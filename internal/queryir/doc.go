// Package queryir provides the query intermediate representation (IR) that
// the nested-query compiler produces and the execution engine consumes.
//
// ARCHITECTURE:
//
//	[query body (CUE/JSON)] → [compiler] → [Query IR] → [engine + SQL backend]
//
// The IR has two sealed node families:
//
//   - Query: scoring nodes (MatchAll, Term, Bool, ConstantScore, Filtered,
//     BlockJoin)
//   - Filter: non-scoring document predicates (MatchAllFilter, TermFilter,
//     TermsFilter, ExistsFilter, AndFilter, OrFilter, NotFilter,
//     NestedTypeFilter, NonNestedFilter, QueryFilter, CachedFilter,
//     LateBoundFilter)
//
// SEALED INTERFACES:
//
// Query and Filter use the marker method pattern, so backends can switch
// exhaustively:
//
//	switch q := query.(type) {
//	case Term:
//	    // Handle term
//	case *BlockJoin:
//	    // Handle join
//	default:
//	    // Unknown node - backend error
//	}
//
// BLOCK JOINS:
//
// A BlockJoin matches parent documents whose block contains at least one
// child matching Child. Parent identifies the parent documents of the
// level; child documents precede their parent in the store.
//
// LATE BINDING:
//
// The parent filter of a nested level inside another nested level is the
// enclosing level's nested-type filter, which is only known after the
// enclosing level's path has been resolved - after the inner level has been
// compiled. LateBoundFilter is the forward reference used for that: its
// identity is captured early, its target is bound exactly once, and reading
// the target before binding is a contract violation.
//
// IDENTITY:
//
// Two filters are the same filter iff FilterKey returns the same key.
// CachedFilter and LateBoundFilter are transparent for identity: they key
// as their target.
package queryir
