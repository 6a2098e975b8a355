package compiler

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/roach88/nestq/internal/mapping"
	"github.com/roach88/nestq/internal/queryir"
	"github.com/roach88/nestq/internal/scope"
)

// DefaultMaxDepth bounds how deeply query bodies may nest.
const DefaultMaxDepth = 64

// PathResolver resolves dotted paths against the index mapping.
// *mapping.Mapping implements it.
type PathResolver interface {
	Resolve(path string) (*mapping.ObjectMapper, bool)
	FieldType(path string) (string, bool)
}

// Materializer wraps filters so the executor materializes them once and
// reuses the doc-id set. *filtercache.Cache implements it.
type Materializer interface {
	BitsetFilter(f queryir.Filter) queryir.Filter
	RootNonNestedFilter() queryir.Filter
}

// ParseContext is the state of one top-level parse: its scope stack, its
// named queries, and its depth guard. It is created by Parser.Parse and is
// never shared between parses.
type ParseContext struct {
	scope    *scope.Stack
	mapping  PathResolver
	filters  Materializer
	log      *zap.Logger
	id       string
	maxDepth int
	depth    int

	named      map[string]queryir.Query
	namedOrder []string
}

// NewParseContext creates the context for one parse. A maxDepth of zero
// selects DefaultMaxDepth; a nil logger discards output.
func NewParseContext(m PathResolver, f Materializer, log *zap.Logger, invocationID string, maxDepth int) *ParseContext {
	if log == nil {
		log = zap.NewNop()
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &ParseContext{
		scope:    scope.New(),
		mapping:  m,
		filters:  f,
		log:      log.With(zap.String("invocation_id", invocationID)),
		id:       invocationID,
		maxDepth: maxDepth,
		named:    make(map[string]queryir.Query),
	}
}

// Scope returns the parse's scope stack.
func (pc *ParseContext) Scope() *scope.Stack {
	return pc.scope
}

// InvocationID returns the id of this parse.
func (pc *ParseContext) InvocationID() string {
	return pc.id
}

// Register records q under name. A later registration of the same name
// replaces the earlier one.
func (pc *ParseContext) Register(name string, q queryir.Query) {
	if _, ok := pc.named[name]; !ok {
		pc.namedOrder = append(pc.namedOrder, name)
	}
	pc.named[name] = q
}

// Named returns the registered query for name.
func (pc *ParseContext) Named(name string) (queryir.Query, bool) {
	q, ok := pc.named[name]
	return q, ok
}

// enter increments the body depth and returns the matching exit.
func (pc *ParseContext) enter(field string) (func(), error) {
	if pc.depth >= pc.maxDepth {
		return nil, &CompileError{
			Code:    CodeDepthExceeded,
			Field:   field,
			Message: "query nests too deeply",
			Value:   strconv.Itoa(pc.maxDepth),
		}
	}
	pc.depth++
	return func() { pc.depth-- }, nil
}
