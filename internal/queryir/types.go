package queryir

import "github.com/roach88/nestq/internal/ir"

// Query represents a scoring query node.
//
// This is a sealed interface - only types in this package implement it.
// Every Query matches a set of documents and assigns each a score.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// MatchAll matches every document with a constant score of Boost.
type MatchAll struct {
	Boost float64
}

func (MatchAll) queryNode() {}

// Term matches documents whose Field equals Value exactly.
//
// Fields are full dotted paths ("comments.author"); a nested document
// carries its fields under the full path of its nested type.
type Term struct {
	Field string
	Value ir.IRValue
	Boost float64
}

func (Term) queryNode() {}

// Bool combines clauses.
//
// Semantics:
//
//	must      all must match, scores are summed
//	should    if there is no must/filter clause at least one must match;
//	          matching should clauses add to the score
//	must_not  none may match, no score
//	filter    all must match, no score
//
// A Bool without any clause matches nothing.
type Bool struct {
	Must    []Query
	Should  []Query
	MustNot []Query
	Filter  []Filter
	Boost   float64
}

func (Bool) queryNode() {}

// ConstantScore matches the documents of Filter with a score of Boost.
type ConstantScore struct {
	Filter Filter
	Boost  float64
}

func (ConstantScore) queryNode() {}

// Filtered restricts Query to the documents matching Filter. The score is
// the score of Query.
type Filtered struct {
	Query  Query
	Filter Filter
}

func (Filtered) queryNode() {}

// BlockJoin is the join node a nested query compiles to.
//
// Semantics: each document matching Child contributes to the first
// document at or after it that matches Parent. Parents are scored by
// aggregating their contributing children's scores per ScoreMode, times
// Boost.
//
// A BlockJoin is immutable once built; it is referenced by pointer so a
// named join keeps its identity in the named-query registry.
type BlockJoin struct {
	Child     Query     // child predicate, already restricted to the nested type
	Parent    Filter    // documents identifying this level's parents
	ScoreMode ScoreMode // aggregation of child scores
	Boost     float64
	Name      string // optional _name
	Path      string // nested path, for explain output
}

func (*BlockJoin) queryNode() {}

// Filter represents a non-scoring document predicate.
//
// This is a sealed interface - only types in this package implement it.
type Filter interface {
	filterNode() // Marker method - seals interface to this package
}

// MatchAllFilter matches every document.
type MatchAllFilter struct{}

func (MatchAllFilter) filterNode() {}

// TermFilter matches documents whose Field equals Value.
type TermFilter struct {
	Field string
	Value ir.IRValue
}

func (TermFilter) filterNode() {}

// TermsFilter matches documents whose Field equals any of Values.
type TermsFilter struct {
	Field  string
	Values []ir.IRValue
}

func (TermsFilter) filterNode() {}

// ExistsFilter matches documents that carry Field.
type ExistsFilter struct {
	Field string
}

func (ExistsFilter) filterNode() {}

// AndFilter matches documents matching all Filters (empty = all documents).
type AndFilter struct {
	Filters []Filter
}

func (AndFilter) filterNode() {}

// OrFilter matches documents matching any of Filters (empty = none).
type OrFilter struct {
	Filters []Filter
}

func (OrFilter) filterNode() {}

// NotFilter matches documents not matching Filter.
type NotFilter struct {
	Filter Filter
}

func (NotFilter) filterNode() {}

// NestedTypeFilter matches the documents of the nested type at Path.
type NestedTypeFilter struct {
	Path string
}

func (NestedTypeFilter) filterNode() {}

// NonNestedFilter matches root (non-nested) documents.
type NonNestedFilter struct{}

func (NonNestedFilter) filterNode() {}

// QueryFilter uses the documents matched by Query as a filter.
type QueryFilter struct {
	Query Query
}

func (QueryFilter) filterNode() {}

// CachedFilter marks Filter as materialized through the bitset filter cache.
// It does not change what matches.
type CachedFilter struct {
	Filter Filter
}

func (CachedFilter) filterNode() {}
