package compiler

import (
	"fmt"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"go.uber.org/zap"

	"github.com/roach88/nestq/internal/metrics"
	"github.com/roach88/nestq/internal/queryir"
)

// ParsedQuery is the result of one top-level parse.
type ParsedQuery struct {
	// Query is nil when every clause compiled to nothing.
	Query queryir.Query

	// Named holds the queries registered with _name, in registration order.
	Named      map[string]queryir.Query
	NamedOrder []string

	InvocationID string

	// Size is the requested number of hits; 0 when the request names none.
	Size int
}

// Parser compiles query documents. A Parser is safe for concurrent use:
// every Parse call builds its own ParseContext, CUE context and scope stack.
type Parser struct {
	mapping  PathResolver
	filters  Materializer
	log      *zap.Logger
	ids      IDGenerator
	maxDepth int
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(p *Parser) { p.log = l }
}

// WithIDGenerator sets the invocation id source. The default is UUIDv7.
func WithIDGenerator(g IDGenerator) Option {
	return func(p *Parser) { p.ids = g }
}

// WithMaxDepth bounds body nesting. Zero keeps DefaultMaxDepth.
func WithMaxDepth(n int) Option {
	return func(p *Parser) { p.maxDepth = n }
}

// NewParser creates a parser resolving paths against m and materializing
// filters through f.
func NewParser(m PathResolver, f Materializer, opts ...Option) *Parser {
	p := &Parser{
		mapping:  m,
		filters:  f,
		log:      zap.NewNop(),
		ids:      UUIDv7Generator{},
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse compiles a query document. The document is CUE, so plain JSON is
// accepted. It is either a request {"query": {...}, "size": n} or a bare
// query body.
func (p *Parser) Parse(src []byte, filename string) (*ParsedQuery, error) {
	start := time.Now()

	v := cuecontext.New().CompileBytes(src, cue.Filename(filename))
	var (
		pq  *ParsedQuery
		err error
	)
	if err = v.Err(); err != nil {
		err = formatCUEError(err)
	} else {
		pq, err = p.ParseValue(v)
	}

	metrics.CompileDuration.Observe(time.Since(start).Seconds())
	result := "ok"
	if err != nil {
		result = string(CodeOf(err))
		if result == "" {
			result = "error"
		}
	}
	metrics.CompileTotal.WithLabelValues(result).Inc()
	return pq, err
}

// ParseValue compiles an already-built CUE value.
func (p *Parser) ParseValue(v cue.Value) (*ParsedQuery, error) {
	pc := NewParseContext(p.mapping, p.filters, p.log, p.ids.Generate(), p.maxDepth)

	body, size, err := splitRequest(v)
	if err != nil {
		return nil, err
	}

	q, err := pc.ParseInnerQuery(body)
	if err != nil {
		pc.log.Debug("compile failed", zap.Error(err))
		return nil, err
	}
	if d := pc.scope.Depth(); d != 0 {
		return nil, fmt.Errorf("scope stack not restored after parse: depth %d", d)
	}
	if q != nil {
		if res := queryir.Validate(q); !res.IsValid {
			return nil, fmt.Errorf("compiled query is invalid: %s", strings.Join(res.Problems, "; "))
		}
	}

	pc.log.Debug("compiled query",
		zap.Int("named", len(pc.namedOrder)),
		zap.Bool("elided", q == nil))

	return &ParsedQuery{
		Query:        q,
		Named:        pc.named,
		NamedOrder:   pc.namedOrder,
		InvocationID: pc.id,
		Size:         size,
	}, nil
}

// splitRequest separates the query body from request options.
func splitRequest(v cue.Value) (cue.Value, int, error) {
	if !v.LookupPath(cue.MakePath(cue.Str("query"))).Exists() {
		return v, 0, nil
	}

	fields, err := structFields(v, "request")
	if err != nil {
		return cue.Value{}, 0, err
	}
	var (
		body cue.Value
		size int
	)
	for _, f := range fields {
		switch f.name {
		case "query":
			body = f.value
		case "size":
			n, err := intValue(f.value, "size")
			if err != nil {
				return cue.Value{}, 0, err
			}
			if n < 0 {
				return cue.Value{}, 0, &CompileError{
					Code:    CodeInvalidValue,
					Field:   "size",
					Value:   fmt.Sprint(n),
					Message: "size must not be negative",
					Pos:     f.value.Pos(),
				}
			}
			size = int(n)
		default:
			return cue.Value{}, 0, &CompileError{
				Code:    CodeUnsupportedField,
				Field:   f.name,
				Message: "search request does not support [" + f.name + "]",
				Pos:     f.value.Pos(),
			}
		}
	}
	return body, size, nil
}
