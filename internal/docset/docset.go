// Package docset implements immutable sorted sets of document sequence
// numbers, the materialized form of a filter.
package docset

import (
	"slices"
	"sort"
)

// Set is a sorted set of distinct doc ids. The zero Set is empty.
type Set struct {
	ids []int64
}

// New builds a set from ids in any order; duplicates are dropped.
func New(ids ...int64) Set {
	out := slices.Clone(ids)
	slices.Sort(out)
	return Set{ids: slices.Compact(out)}
}

// FromSorted wraps ids that are already strictly ascending, as returned by
// an ORDER BY seq query. The slice is not copied.
func FromSorted(ids []int64) Set {
	return Set{ids: ids}
}

// Len returns the number of ids.
func (s Set) Len() int {
	return len(s.ids)
}

// IDs returns the ids in ascending order. The result must not be modified.
func (s Set) IDs() []int64 {
	return s.ids
}

// Contains reports whether id is in the set.
func (s Set) Contains(id int64) bool {
	_, found := slices.BinarySearch(s.ids, id)
	return found
}

// NextAtOrAfter returns the smallest id >= id.
func (s Set) NextAtOrAfter(id int64) (int64, bool) {
	i := sort.Search(len(s.ids), func(i int) bool { return s.ids[i] >= id })
	if i == len(s.ids) {
		return 0, false
	}
	return s.ids[i], true
}

// Intersect returns the ids present in both sets.
func Intersect(a, b Set) Set {
	var out []int64
	i, j := 0, 0
	for i < len(a.ids) && j < len(b.ids) {
		switch {
		case a.ids[i] < b.ids[j]:
			i++
		case a.ids[i] > b.ids[j]:
			j++
		default:
			out = append(out, a.ids[i])
			i++
			j++
		}
	}
	return Set{ids: out}
}

// Union returns the ids present in either set.
func Union(a, b Set) Set {
	out := make([]int64, 0, len(a.ids)+len(b.ids))
	i, j := 0, 0
	for i < len(a.ids) && j < len(b.ids) {
		switch {
		case a.ids[i] < b.ids[j]:
			out = append(out, a.ids[i])
			i++
		case a.ids[i] > b.ids[j]:
			out = append(out, b.ids[j])
			j++
		default:
			out = append(out, a.ids[i])
			i++
			j++
		}
	}
	out = append(out, a.ids[i:]...)
	out = append(out, b.ids[j:]...)
	return Set{ids: out}
}

// Difference returns the ids of a that are not in b.
func Difference(a, b Set) Set {
	var out []int64
	j := 0
	for _, id := range a.ids {
		for j < len(b.ids) && b.ids[j] < id {
			j++
		}
		if j < len(b.ids) && b.ids[j] == id {
			continue
		}
		out = append(out, id)
	}
	return Set{ids: out}
}
