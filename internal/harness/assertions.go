package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an expectation fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Step     string
	Type     string
	Expected string
	Actual   string
	Result   StepResult
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "step %s: assertion failed: %s\n", e.Step, e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Result.Explain != "" {
		fmt.Fprintf(&buf, "\nQuery: %s\n", e.Result.Explain)
	}
	if len(e.Result.Hits) > 0 {
		fmt.Fprintf(&buf, "Hits:\n")
		for i, h := range e.Result.Hits {
			fmt.Fprintf(&buf, "  [%d] %s %g %v\n", i+1, h.ID, h.Score, h.MatchedQueries)
		}
	}
	return buf.String()
}

// checkStep evaluates a step's expectations and returns one message per
// failure.
func checkStep(step Step, sr StepResult) []string {
	var errs []string
	fail := func(kind, expected, actual string) {
		errs = append(errs, (&AssertionError{
			Step:     step.Name,
			Type:     kind,
			Expected: expected,
			Actual:   actual,
			Result:   sr,
		}).Error())
	}

	exp := step.Expect
	if exp.Error != "" || sr.Error != "" {
		if exp.Error != sr.Error {
			fail("error", orNone(exp.Error), orNone(sr.Error))
		}
		return errs
	}

	byID := make(map[string]HitSummary, len(sr.Hits))
	ids := make([]string, len(sr.Hits))
	for i, h := range sr.Hits {
		byID[h.ID] = h
		ids[i] = h.ID
	}

	if exp.Hits != nil && !slices.Equal(exp.Hits, ids) {
		fail("hits", fmt.Sprint(exp.Hits), fmt.Sprint(ids))
	}
	if exp.Total != nil && *exp.Total != sr.Total {
		fail("total", fmt.Sprint(*exp.Total), fmt.Sprint(sr.Total))
	}
	for _, id := range sortedKeys(exp.Scores) {
		h, ok := byID[id]
		if !ok {
			fail("scores", fmt.Sprintf("%s scored %g", id, exp.Scores[id]), id+" not in hits")
			continue
		}
		if h.Score != exp.Scores[id] {
			fail("scores", fmt.Sprintf("%s scored %g", id, exp.Scores[id]), fmt.Sprintf("%g", h.Score))
		}
	}
	for _, id := range sortedKeys(exp.MatchedQueries) {
		want := exp.MatchedQueries[id]
		got := byID[id].MatchedQueries
		if !slices.Equal(want, got) {
			fail("matched_queries", fmt.Sprintf("%s matched %v", id, want), fmt.Sprint(got))
		}
	}
	if exp.Explain != "" && exp.Explain != sr.Explain {
		fail("explain", exp.Explain, sr.Explain)
	}
	return errs
}

func orNone(s string) string {
	if s == "" {
		return "no error"
	}
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
