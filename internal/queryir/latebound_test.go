package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLateBoundFilter_BindOnce(t *testing.T) {
	h := NewLateBoundFilter()

	_, ok := h.Bound()
	assert.False(t, ok, "new handle is unbound")

	require.NoError(t, h.Bind(NestedTypeFilter{Path: "comments"}))

	target, ok := h.Bound()
	require.True(t, ok)
	assert.Equal(t, NestedTypeFilter{Path: "comments"}, target)
	assert.Equal(t, NestedTypeFilter{Path: "comments"}, h.Target())

	err := h.Bind(NestedTypeFilter{Path: "other"})
	assert.ErrorIs(t, err, ErrAlreadyBound)
	assert.Equal(t, NestedTypeFilter{Path: "comments"}, h.Target(), "second bind must not replace the target")
}

func TestLateBoundFilter_BindNil(t *testing.T) {
	h := NewLateBoundFilter()
	assert.Error(t, h.Bind(nil))

	_, ok := h.Bound()
	assert.False(t, ok)
}

func TestLateBoundFilter_TargetPanicsWhenUnbound(t *testing.T) {
	h := NewLateBoundFilter()
	assert.PanicsWithValue(t, ErrUnbound, func() { _ = h.Target() })
}

func TestUnwrap(t *testing.T) {
	h := NewLateBoundFilter()
	require.NoError(t, h.Bind(CachedFilter{Filter: NestedTypeFilter{Path: "a"}}))

	assert.Equal(t, NestedTypeFilter{Path: "a"}, Unwrap(CachedFilter{Filter: h}))
	assert.Equal(t, NonNestedFilter{}, Unwrap(NonNestedFilter{}))

	unbound := NewLateBoundFilter()
	assert.Same(t, unbound, Unwrap(CachedFilter{Filter: unbound}))
}
