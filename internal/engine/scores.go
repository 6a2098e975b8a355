package engine

import (
	"slices"

	"github.com/roach88/nestq/internal/docset"
)

// scores maps a matching doc seq to its score.
type scores map[int64]float64

func constant(set docset.Set, score float64) scores {
	out := make(scores, set.Len())
	for _, id := range set.IDs() {
		out[id] = score
	}
	return out
}

// set returns the matching docs.
func (s scores) set() docset.Set {
	return docset.FromSorted(s.sortedIDs())
}

func (s scores) sortedIDs() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// intersectSum keeps docs present in both, summing their scores.
func (s scores) intersectSum(o scores) scores {
	out := make(scores)
	for id, v := range s {
		if w, ok := o[id]; ok {
			out[id] = v + w
		}
	}
	return out
}

// unionSum keeps docs present in either, summing the scores of docs in both.
func (s scores) unionSum(o scores) scores {
	out := make(scores, len(s)+len(o))
	for id, v := range s {
		out[id] = v
	}
	for id, v := range o {
		out[id] += v
	}
	return out
}

// addMatching adds o's score to the docs s already holds.
func (s scores) addMatching(o scores) {
	for id, v := range o {
		if _, ok := s[id]; ok {
			s[id] += v
		}
	}
}

func (s scores) restrict(set docset.Set) scores {
	out := make(scores)
	for id, v := range s {
		if set.Contains(id) {
			out[id] = v
		}
	}
	return out
}

func (s scores) exclude(set docset.Set) {
	for _, id := range set.IDs() {
		delete(s, id)
	}
}

func (s scores) scale(boost float64) scores {
	if boost == 1 {
		return s
	}
	for id := range s {
		s[id] *= boost
	}
	return s
}
