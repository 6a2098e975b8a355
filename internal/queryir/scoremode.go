package queryir

import (
	"errors"
	"fmt"
)

// ScoreMode defines how the scores of a parent's matching children are
// combined into the parent's score.
type ScoreMode string

const (
	// ScoreModeAvg averages child scores (default).
	ScoreModeAvg ScoreMode = "avg"

	// ScoreModeMax takes the highest child score.
	ScoreModeMax ScoreMode = "max"

	// ScoreModeTotal sums child scores. "sum" is accepted as a synonym.
	ScoreModeTotal ScoreMode = "total"

	// ScoreModeNone ignores child scores; matching parents score a constant.
	ScoreModeNone ScoreMode = "none"
)

// ErrInvalidScoreMode is wrapped by ParseScoreMode errors.
var ErrInvalidScoreMode = errors.New("invalid score mode")

// DefaultScoreMode returns the mode used when a nested query names none.
func DefaultScoreMode() ScoreMode {
	return ScoreModeAvg
}

// ParseScoreMode maps a score_mode string to a ScoreMode.
// Matching is case-sensitive; "sum" and "total" are the same mode.
func ParseScoreMode(s string) (ScoreMode, error) {
	switch s {
	case "avg":
		return ScoreModeAvg, nil
	case "max":
		return ScoreModeMax, nil
	case "total", "sum":
		return ScoreModeTotal, nil
	case "none":
		return ScoreModeNone, nil
	default:
		return "", fmt.Errorf("%w %q: must be avg, max, total, sum or none", ErrInvalidScoreMode, s)
	}
}

// IsValid reports whether m is one of the defined modes.
func (m ScoreMode) IsValid() bool {
	switch m {
	case ScoreModeAvg, ScoreModeMax, ScoreModeTotal, ScoreModeNone:
		return true
	}
	return false
}
