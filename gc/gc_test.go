package gc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlang/weft/gc"
	"github.com/weftlang/weft/object"
)

func TestCollectFreesUnreachable(t *testing.T) {
	heap := &object.Heap{}
	c := gc.New(heap)

	kept := object.NewTable()
	heap.Link(kept)

	garbage := object.NewTable()
	heap.Link(garbage)

	require.Equal(t, 2, heap.Count())

	stats := c.Collect(func(mark func(object.Value)) {
		mark(object.FromObject(kept))
	})

	assert.Equal(t, 1, stats.Freed)
	assert.Equal(t, 1, heap.Count())
	assert.Same(t, kept, heap.Head())
}

func TestCollectMarksTransitively(t *testing.T) {
	heap := &object.Heap{}
	c := gc.New(heap)

	inner := object.NewTable()
	heap.Link(inner)
	outer := object.NewTable()
	outer.Set("child", object.FromObject(inner))
	heap.Link(outer)

	c.Collect(func(mark func(object.Value)) {
		mark(object.FromObject(outer))
	})

	assert.Equal(t, 2, heap.Count())
}

func TestCollectIdempotent(t *testing.T) {
	heap := &object.Heap{}
	c := gc.New(heap)
	heap.Link(object.NewTable())

	roots := func(func(object.Value)) {}
	first := c.Collect(roots)
	second := c.Collect(roots)

	assert.Equal(t, 1, first.Freed)
	assert.Equal(t, 0, second.Freed)
	assert.Equal(t, 0, heap.Count())
}

func TestShouldCollectThreshold(t *testing.T) {
	heap := &object.Heap{}
	c := &gc.Collector{Heap: heap, Threshold: 100}

	for i := 0; i < 10; i++ {
		heap.Link(object.NewTable())
	}
	assert.True(t, c.ShouldCollect())

	c.Collect(func(func(object.Value)) {})
	assert.False(t, c.ShouldCollect())
}

func TestCollectArrayAndFunctionChildren(t *testing.T) {
	heap := &object.Heap{}
	c := gc.New(heap)

	leaf := object.NewTable()
	heap.Link(leaf)

	arr := object.NewArray()
	arr.Append(object.FromObject(leaf))
	heap.Link(arr)

	fn := object.NewFunction(0, 0, "f")
	fn.Self = leaf
	heap.Link(fn)

	c.Collect(func(mark func(object.Value)) {
		mark(object.FromObject(arr))
		mark(object.FromObject(fn))
	})

	assert.Equal(t, 3, heap.Count())
}
