package pool

import "github.com/floooh/oryol-animation/idalloc"

// SlotPool is a fixed-capacity, generation-tagged store of T (libraries,
// skeletons, instances). Alloc hands out a fresh id and a pointer to the
// zero-valued slot; Lookup only returns the slot when the supplied id's
// generation still matches the slot's current occupant.
type SlotPool[T any] struct {
	alloc *idalloc.Allocator
	slots []slotEntry[T]
}

type slotEntry[T any] struct {
	id   idalloc.ID
	used bool
	val  T
}

// NewSlotPool creates a SlotPool for the given type tag and capacity.
func NewSlotPool[T any](typeTag uint8, capacity int) *SlotPool[T] {
	return &SlotPool[T]{
		alloc: idalloc.New(typeTag, capacity),
		slots: make([]slotEntry[T], 0, capacity),
	}
}

// Alloc reserves a slot and returns its id and a pointer to the zeroed
// value for the caller to fill in, or ok=false if the pool is full.
func (p *SlotPool[T]) Alloc() (idalloc.ID, *T, bool) {
	id, ok := p.alloc.Alloc()
	if !ok {
		return idalloc.Invalid, nil, false
	}
	slot := int(id.Slot())
	for slot >= len(p.slots) {
		p.slots = append(p.slots, slotEntry[T]{})
	}
	var zero T
	p.slots[slot] = slotEntry[T]{id: id, used: true, val: zero}
	return id, &p.slots[slot].val, true
}

// Lookup returns a pointer to the slot value for id, or ok=false if id is
// stale or unknown.
func (p *SlotPool[T]) Lookup(id idalloc.ID) (*T, bool) {
	slot := int(id.Slot())
	if slot >= len(p.slots) || !p.slots[slot].used || p.slots[slot].id != id {
		return nil, false
	}
	return &p.slots[slot].val, true
}

// Has reports whether id currently resolves to a live slot.
func (p *SlotPool[T]) Has(id idalloc.ID) bool {
	_, ok := p.Lookup(id)
	return ok
}

// ForEach calls f for every currently allocated slot, in slot order.
func (p *SlotPool[T]) ForEach(f func(id idalloc.ID, v *T)) {
	for i := range p.slots {
		if p.slots[i].used {
			f(p.slots[i].id, &p.slots[i].val)
		}
	}
}

// Free recycles the slot referenced by id. Freeing a stale or unknown id
// is a no-op.
func (p *SlotPool[T]) Free(id idalloc.ID) {
	slot := int(id.Slot())
	if slot >= len(p.slots) || !p.slots[slot].used || p.slots[slot].id != id {
		return
	}
	p.slots[slot].used = false
	var zero T
	p.slots[slot].val = zero
	p.alloc.Free(id)
}
