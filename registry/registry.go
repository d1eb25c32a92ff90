// Package registry implements the resource registry and label stack: a
// bidirectional map from an interned locator (name plus optional
// signature) to a resource id, with each entry tagged by the label that
// was active when it was created, so a whole group of resources can be
// torn down together by label.
package registry

import "github.com/floooh/oryol-animation/idalloc"

// Locator is the registry key. Name is the interned resource name;
// Signature is an optional content hash (zero means "unused") letting the
// same name be registered more than once under different content, as the
// host's locator/name-resolution service would produce upstream.
type Locator struct {
	Name      string
	Signature uint64
}

// Label groups resources registered between a push and its matching pop.
// LabelAll is a sentinel that matches every registered resource.
type Label uint32

// LabelAll matches and clears every registered resource when passed to Remove.
const LabelAll Label = 0

// Registry is the locator -> id map plus the LIFO label stack.
type Registry struct {
	ids    map[Locator]idalloc.ID
	labels map[idalloc.ID]Label
	stack  []Label
	next   Label
}

// New creates a Registry with the given initial capacity hint.
func New(capacity int) *Registry {
	return &Registry{
		ids:    make(map[Locator]idalloc.ID, capacity),
		labels: make(map[idalloc.ID]Label, capacity),
		next:   1,
	}
}

// Lookup returns the id registered under loc, if any. Creation operations
// call this first so that repeated creation with the same locator is
// idempotent rather than producing a duplicate registration.
func (r *Registry) Lookup(loc Locator) (idalloc.ID, bool) {
	id, ok := r.ids[loc]
	return id, ok
}

// Add registers id under loc, tagged with label. Callers must have
// already confirmed via Lookup that loc isn't already registered;
// duplicate locators are a caller error, not reported here.
func (r *Registry) Add(loc Locator, id idalloc.ID, label Label) {
	r.ids[loc] = id
	r.labels[id] = label
}

// Remove deletes every entry tagged with label (or, for LabelAll, every
// entry) and returns the ids that were removed. Removing an unknown label
// is not an error; it simply removes nothing.
func (r *Registry) Remove(label Label) []idalloc.ID {
	if label == LabelAll {
		removed := make([]idalloc.ID, 0, len(r.ids))
		for _, id := range r.ids {
			removed = append(removed, id)
		}
		r.ids = make(map[Locator]idalloc.ID)
		r.labels = make(map[idalloc.ID]Label)
		return removed
	}
	var removed []idalloc.ID
	for loc, id := range r.ids {
		if r.labels[id] == label {
			removed = append(removed, id)
			delete(r.ids, loc)
			delete(r.labels, id)
		}
	}
	return removed
}

// PushLabel allocates a fresh label, pushes it and returns it.
func (r *Registry) PushLabel() Label {
	l := r.next
	r.next++
	r.stack = append(r.stack, l)
	return l
}

// PushExistingLabel pushes a label obtained from an earlier PushLabel call
// (letting a caller re-enter a previously used label's scope).
func (r *Registry) PushExistingLabel(label Label) {
	r.stack = append(r.stack, label)
}

// PopLabel pops and returns the top of the label stack, or LabelAll if the
// stack is empty.
func (r *Registry) PopLabel() Label {
	if len(r.stack) == 0 {
		return LabelAll
	}
	n := len(r.stack) - 1
	l := r.stack[n]
	r.stack = r.stack[:n]
	return l
}

// PeekLabel returns the top of the label stack without popping it.
func (r *Registry) PeekLabel() Label {
	if len(r.stack) == 0 {
		return LabelAll
	}
	return r.stack[len(r.stack)-1]
}
