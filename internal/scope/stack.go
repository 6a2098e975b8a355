// Package scope tracks which parent filter is visible to a nested query
// while its enclosing nested queries are still being compiled.
package scope

import (
	"errors"

	"github.com/roach88/nestq/internal/queryir"
)

// ErrNilHandle is returned by Resolve when given no handle.
var ErrNilHandle = errors.New("scope: nil parent handle")

// Stack is a LIFO of parent-filter handles, one per nested level currently
// being compiled. The top of the stack is the handle a nested query found
// now would use as its parent.
//
// A Stack belongs to one top-level parse and is not safe for concurrent use.
type Stack struct {
	handles []*queryir.LateBoundFilter
}

// Token restores a Stack to the state it had before Enter. It remembers
// the handle Enter pushed, so it only ever pops that level.
type Token struct {
	depth  int
	handle *queryir.LateBoundFilter
}

// New returns an empty Stack, positioned at the document root.
func New() *Stack {
	return &Stack{}
}

// Enter pushes a fresh unbound handle and returns the token that undoes it.
// Callers defer Exit(token) immediately.
func (s *Stack) Enter() Token {
	h := queryir.NewLateBoundFilter()
	tok := Token{depth: len(s.handles), handle: h}
	s.handles = append(s.handles, h)
	return tok
}

// Current returns the innermost handle, or nil at the document root.
func (s *Stack) Current() *queryir.LateBoundFilter {
	if len(s.handles) == 0 {
		return nil
	}
	return s.handles[len(s.handles)-1]
}

// Resolve binds h to its filter. A handle is bound exactly once.
func (s *Stack) Resolve(h *queryir.LateBoundFilter, f queryir.Filter) error {
	if h == nil {
		return ErrNilHandle
	}
	return h.Bind(f)
}

// Exit restores the stack to the state captured by tok. A stale token,
// whose level was already exited, is a no-op even if a sibling has since
// entered at the same depth.
func (s *Stack) Exit(tok Token) {
	if tok.handle == nil || tok.depth >= len(s.handles) || s.handles[tok.depth] != tok.handle {
		return
	}
	clear(s.handles[tok.depth:])
	s.handles = s.handles[:tok.depth]
}

// Depth reports the number of nested levels currently entered.
func (s *Stack) Depth() int {
	return len(s.handles)
}
