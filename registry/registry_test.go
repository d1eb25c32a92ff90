package registry

import (
	"testing"

	"github.com/floooh/oryol-animation/idalloc"
	"github.com/stretchr/testify/assert"
)

func TestCreateIsIdempotentViaLookup(t *testing.T) {
	r := New(16)
	loc := Locator{Name: "walk.anim"}
	id := idalloc.Make(1, 0, 1)

	_, ok := r.Lookup(loc)
	assert.False(t, ok)

	r.Add(loc, id, r.PushLabel())
	got, ok := r.Lookup(loc)
	assert.True(t, ok)
	assert.Equal(t, id, got)
}

func TestRemoveByLabelReturnsOnlyTaggedIds(t *testing.T) {
	r := New(16)
	labelA := r.PushLabel()
	idA := idalloc.Make(1, 0, 1)
	r.Add(Locator{Name: "a"}, idA, labelA)
	r.PopLabel()

	labelB := r.PushLabel()
	idB := idalloc.Make(1, 1, 1)
	r.Add(Locator{Name: "b"}, idB, labelB)
	r.PopLabel()

	removed := r.Remove(labelA)
	assert.ElementsMatch(t, []idalloc.ID{idA}, removed)

	_, ok := r.Lookup(Locator{Name: "b"})
	assert.True(t, ok, "label B's resource must survive removing label A")
}

func TestRemoveLabelAllClearsEverything(t *testing.T) {
	r := New(16)
	l := r.PushLabel()
	r.Add(Locator{Name: "a"}, idalloc.Make(1, 0, 1), l)
	r.Add(Locator{Name: "b"}, idalloc.Make(1, 1, 1), l)
	r.PopLabel()

	removed := r.Remove(LabelAll)
	assert.Len(t, removed, 2)
	_, ok := r.Lookup(Locator{Name: "a"})
	assert.False(t, ok)
}

func TestRemoveUnknownLabelIsNotAnError(t *testing.T) {
	r := New(16)
	removed := r.Remove(Label(999))
	assert.Empty(t, removed)
}

func TestLabelStackPushPopRoundTrips(t *testing.T) {
	r := New(16)
	l := r.PushLabel()
	assert.Equal(t, l, r.PeekLabel())
	popped := r.PopLabel()
	assert.Equal(t, l, popped)
	assert.Equal(t, LabelAll, r.PeekLabel())
}
