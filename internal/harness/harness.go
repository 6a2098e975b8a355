package harness

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/nestq/internal/compiler"
	"github.com/roach88/nestq/internal/engine"
	"github.com/roach88/nestq/internal/filtercache"
	"github.com/roach88/nestq/internal/queryir"
	"github.com/roach88/nestq/internal/store"
)

// Harness holds the components one scenario runs against.
type Harness struct {
	parser *compiler.Parser
	exec   *engine.Executor
	logger *zap.Logger
}

// Option configures Run.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger routes compiler and engine logs to l. The default discards
// them.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Execution flow:
//  1. Load the mapping and open an in-memory store
//  2. Index the documents
//  3. Compile and search every step, checking its expectations
//
// Run only returns an error when the scenario cannot be set up. Failed
// expectations are reported in the result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	m, err := scenario.loadMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to load mapping: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	docs, err := scenario.documents()
	if err != nil {
		return nil, err
	}
	if _, err := engine.NewIndexer(m, st, o.logger).IndexAll(ctx, docs); err != nil {
		return nil, fmt.Errorf("failed to index documents: %w", err)
	}

	ids := make([]string, len(scenario.Steps))
	for i, step := range scenario.Steps {
		ids[i] = scenario.Name + "/" + step.Name
	}

	cache := filtercache.New(filtercache.DefaultMaxEntries)
	h := &Harness{
		parser: compiler.NewParser(m, cache,
			compiler.WithLogger(o.logger),
			compiler.WithIDGenerator(compiler.NewFixedGenerator(ids...))),
		exec:   engine.NewExecutor(st, cache, engine.WithLogger(o.logger)),
		logger: o.logger,
	}

	result := NewResult()
	for _, step := range scenario.Steps {
		sr, err := h.runStep(ctx, step)
		if err != nil {
			return nil, err
		}
		result.Steps = append(result.Steps, sr)
		for _, msg := range checkStep(step, sr) {
			result.AddError(msg)
		}
	}
	return result, nil
}

// runStep compiles and executes one step. Compile and runtime errors are
// recorded by code; other errors abort the scenario.
func (h *Harness) runStep(ctx context.Context, step Step) (StepResult, error) {
	sr := StepResult{Name: step.Name, Hits: []HitSummary{}}

	src, err := step.querySource()
	if err != nil {
		return sr, err
	}

	pq, err := h.parser.Parse(src, step.Name+".cue")
	if err != nil {
		if code := compiler.CodeOf(err); code != "" {
			sr.Error = string(code)
			return sr, nil
		}
		return sr, fmt.Errorf("step %s: %w", step.Name, err)
	}
	if pq.Query != nil {
		sr.Explain = queryir.Explain(pq.Query)
	}

	res, err := h.exec.Search(ctx, pq, step.Size)
	if err != nil {
		var re *engine.RuntimeError
		if errors.As(err, &re) {
			sr.Error = string(re.Code)
			return sr, nil
		}
		return sr, fmt.Errorf("step %s: %w", step.Name, err)
	}

	sr.Total = res.Total
	for _, hit := range res.Hits {
		sr.Hits = append(sr.Hits, HitSummary{
			ID:             hit.ID,
			Score:          hit.Score,
			MatchedQueries: hit.MatchedQueries,
		})
	}
	h.logger.Debug("step done",
		zap.String("step", step.Name),
		zap.Int("total", sr.Total))
	return sr, nil
}
