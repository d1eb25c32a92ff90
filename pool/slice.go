// Package pool implements the three storage primitives the animation core
// is built on: a generation-tagged slot pool for typed resources, a
// fixed-capacity growing-forbidden array for clips/curves/matrices, and a
// raw value arena addressed by integer offset for keys/samples. All three
// share the Slice descriptor for referencing a subrange, which knows how
// to fix itself up when a preceding range is physically removed.
package pool

// Slice is a (start, length) view into a shared Array or Arena. Compaction
// elsewhere (see manager.destroyLibrary) removes a range from the backing
// storage and then walks every surviving Slice to fix up its Start.
type Slice struct {
	Start  int
	Length int
}

// End returns the exclusive end offset of the slice.
func (s Slice) End() int {
	return s.Start + s.Length
}

// Empty reports whether the slice covers no elements.
func (s Slice) Empty() bool {
	return s.Length == 0
}

// FixupRemove adjusts the slice after [removedStart, removedStart+removedLen)
// was physically deleted from the arena it indexes into:
//   - a slice starting at or after the removed range shifts left by removedLen
//   - a slice starting strictly before the removed range is untouched
//   - a slice starting inside the removed range is a programming error: it
//     must have belonged to whatever owned the range being removed
func (s *Slice) FixupRemove(removedStart, removedLen int) {
	if removedLen == 0 {
		return
	}
	removedEnd := removedStart + removedLen
	switch {
	case s.Start >= removedEnd:
		s.Start -= removedLen
	case s.Start < removedStart:
		// lies entirely before the removed range, untouched
	default:
		panic("pool: slice start falls inside a removed range")
	}
}
