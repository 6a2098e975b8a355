package harness

import (
	"context"
	"strconv"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/nestq/internal/ir"
)

// Snapshot renders a result as canonical JSON. Scores are written as
// strings: canonical JSON carries no floats.
func Snapshot(name string, result *Result) ([]byte, error) {
	steps := make([]any, len(result.Steps))
	for i, sr := range result.Steps {
		hits := make([]any, len(sr.Hits))
		for j, h := range sr.Hits {
			hit := map[string]any{
				"id":    h.ID,
				"score": strconv.FormatFloat(h.Score, 'g', -1, 64),
			}
			if len(h.MatchedQueries) > 0 {
				matched := make([]any, len(h.MatchedQueries))
				for k, q := range h.MatchedQueries {
					matched[k] = q
				}
				hit["matched_queries"] = matched
			}
			hits[j] = hit
		}

		step := map[string]any{
			"name":  sr.Name,
			"total": sr.Total,
			"hits":  hits,
		}
		if sr.Explain != "" {
			step["explain"] = sr.Explain
		}
		if sr.Error != "" {
			step["error"] = sr.Error
		}
		steps[i] = step
	}

	return ir.MarshalCanonical(map[string]any{
		"scenario_name": name,
		"steps":         steps,
	})
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, snapshot)
	return nil
}
