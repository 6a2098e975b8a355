package compiler

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/nestq/internal/metrics"
	"github.com/roach88/nestq/internal/queryir"
)

// NestedJoinCompiler turns one nested query into a block join.
//
// Each level pushes its own parent handle on the parse's scope stack before
// compiling its body, so nested queries found inside the body use this
// level's documents as their parents. The handle is bound to this level's
// nested-type filter once the path has been resolved, which happens after
// the body has been compiled.
type NestedJoinCompiler struct{}

// Compile builds the join for spec. It returns (nil, nil) when both bodies
// compile to nothing: the caller drops the clause.
//
// The scope entered here is exited on every return path.
func (NestedJoinCompiler) Compile(pc *ParseContext, spec NestedSpec) (*queryir.BlockJoin, error) {
	if !spec.HasPath {
		return nil, missingPath(spec.Pos)
	}
	if !spec.Query.Exists() && !spec.Filter.Exists() {
		return nil, &CompileError{
			Code:    CodeMalformedSpec,
			Field:   "nested",
			Message: "[nested] requires either 'query' or 'filter' field",
			Pos:     spec.Pos,
		}
	}

	outer := pc.scope.Current()
	tok := pc.scope.Enter()
	defer pc.scope.Exit(tok)
	self := pc.scope.Current()

	var (
		inner  queryir.Query
		filter queryir.Filter
		err    error
	)
	if spec.Query.Exists() {
		if inner, err = pc.ParseInnerQuery(spec.Query); err != nil {
			return nil, err
		}
	}
	if spec.Filter.Exists() {
		if filter, err = pc.ParseInnerFilter(spec.Filter); err != nil {
			return nil, err
		}
	}

	om, ok := pc.mapping.Resolve(spec.Path)
	if !ok {
		return nil, &CompileError{
			Code:    CodeUnknownPath,
			Field:   "path",
			Value:   spec.Path,
			Message: "[nested] failed to find nested object under path",
			Pos:     spec.Pos,
		}
	}
	if !om.IsNested() {
		return nil, &CompileError{
			Code:    CodeNotNested,
			Field:   "path",
			Value:   spec.Path,
			Message: "[nested] object under path is not of nested type",
			Pos:     spec.Pos,
		}
	}

	childFilter := pc.filters.BitsetFilter(om.NestedTypeFilter())
	if err := pc.scope.Resolve(self, childFilter); err != nil {
		return nil, fmt.Errorf("bind nested scope %q: %w", spec.Path, err)
	}

	if inner == nil && filter == nil {
		pc.log.Debug("nested clause elided",
			zap.String("path", om.Path),
			zap.Int("depth", pc.scope.Depth()))
		return nil, nil
	}

	switch {
	case inner != nil && filter != nil:
		inner = queryir.Bool{
			Must:  []queryir.Query{inner, queryir.ConstantScore{Filter: filter, Boost: 1}},
			Boost: 1,
		}
	case filter != nil:
		inner = queryir.ConstantScore{Filter: filter, Boost: 1}
	}

	var parentFilter queryir.Filter
	if outer == nil {
		parentFilter = pc.filters.RootNonNestedFilter()
	} else {
		parentFilter = pc.filters.BitsetFilter(outer)
	}

	join := &queryir.BlockJoin{
		Child:     queryir.Filtered{Query: inner, Filter: childFilter},
		Parent:    parentFilter,
		ScoreMode: spec.ScoreMode,
		Boost:     spec.Boost,
		Name:      spec.Name,
		Path:      om.Path,
	}
	if spec.Name != "" {
		pc.Register(spec.Name, join)
	}

	metrics.NestedJoinsTotal.WithLabelValues(string(spec.ScoreMode)).Inc()
	pc.log.Debug("compiled nested level",
		zap.String("path", om.Path),
		zap.Int("depth", pc.scope.Depth()),
		zap.String("score_mode", string(spec.ScoreMode)),
		zap.Bool("root_parent", outer == nil))

	return join, nil
}
