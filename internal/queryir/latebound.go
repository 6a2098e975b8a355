package queryir

import "errors"

// ErrUnbound is returned when a LateBoundFilter is read before it has been
// bound to its target.
var ErrUnbound = errors.New("late-bound filter read before binding")

// ErrAlreadyBound is returned when a LateBoundFilter is bound twice.
var ErrAlreadyBound = errors.New("late-bound filter already bound")

// LateBoundFilter is a forward reference to a filter that is not known yet.
//
// A nested level creates one before compiling its body, so deeper levels can
// capture it as their parent filter; the level binds it once its own path
// has been resolved. Only the pointer is shared early - the target is read
// at execution time, after binding.
//
// Not safe for concurrent use; a handle lives inside one parse.
type LateBoundFilter struct {
	target Filter
	bound  bool
}

func (*LateBoundFilter) filterNode() {}

// NewLateBoundFilter creates an unbound handle.
func NewLateBoundFilter() *LateBoundFilter {
	return &LateBoundFilter{}
}

// Bind sets the target. It must be called exactly once, with a non-nil
// filter.
func (f *LateBoundFilter) Bind(target Filter) error {
	if f.bound {
		return ErrAlreadyBound
	}
	if target == nil {
		return errors.New("late-bound filter cannot be bound to nil")
	}
	f.target = target
	f.bound = true
	return nil
}

// Bound returns the target and whether the handle has been bound.
func (f *LateBoundFilter) Bound() (Filter, bool) {
	return f.target, f.bound
}

// Target returns the bound target. It panics if the handle is unbound:
// valid input never reaches that state.
func (f *LateBoundFilter) Target() Filter {
	if !f.bound {
		panic(ErrUnbound)
	}
	return f.target
}

// Unwrap strips CachedFilter and bound LateBoundFilter wrappers and returns
// the underlying predicate. An unbound handle is returned as is.
func Unwrap(f Filter) Filter {
	for {
		switch w := f.(type) {
		case CachedFilter:
			f = w.Filter
		case *LateBoundFilter:
			target, ok := w.Bound()
			if !ok {
				return w
			}
			f = target
		default:
			return f
		}
	}
}
