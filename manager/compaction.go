package manager

import (
	"github.com/floooh/oryol-animation/idalloc"
	"github.com/floooh/oryol-animation/pool"
)

// destroyLibrary physically removes a library's clip, curve and key
// ranges from their shared pools and rewrites every surviving owner's
// slice descriptor so it keeps pointing at the right data.
//
// Order matters: the clips array is compacted first, while the
// destroyed library's own clip rows are still in it, so the later
// curve/key fixup passes only ever walk surviving clips.
func (m *Manager) destroyLibrary(id idalloc.ID) {
	lib, ok := m.libs.Lookup(id)
	if !ok {
		return
	}
	clipsRange := lib.Clips
	curvesRange := lib.Curves
	keysRange := lib.Keys

	m.libs.Free(id)

	m.clips.RemoveRange(clipsRange.Start, clipsRange.Length)
	m.fixupLibraryClips(clipsRange)

	m.curves.RemoveRange(curvesRange.Start, curvesRange.Length)
	m.fixupLibraryCurves(curvesRange)
	m.fixupClipCurves(curvesRange)

	m.removeKeysRange(keysRange)
	m.fixupLibraryKeys(keysRange)
	m.fixupClipKeys(keysRange)
}

// destroySkeleton physically removes a skeleton's bind-pose /
// inverse-bind-pose matrix range and rewrites every
// surviving skeleton's Matrices descriptor.
func (m *Manager) destroySkeleton(id idalloc.ID) {
	sk, ok := m.skels.Lookup(id)
	if !ok {
		return
	}
	matRange := sk.Matrices

	m.skels.Free(id)

	m.matrices.RemoveRange(matRange.Start, matRange.Length)
	m.skels.ForEach(func(_ idalloc.ID, other *Skeleton) {
		other.Matrices.FixupRemove(matRange.Start, matRange.Length)
	})
}

func (m *Manager) fixupLibraryClips(removed pool.Slice) {
	m.libs.ForEach(func(_ idalloc.ID, lib *Library) {
		lib.Clips.FixupRemove(removed.Start, removed.Length)
	})
}

func (m *Manager) fixupLibraryCurves(removed pool.Slice) {
	m.libs.ForEach(func(_ idalloc.ID, lib *Library) {
		lib.Curves.FixupRemove(removed.Start, removed.Length)
	})
}

func (m *Manager) fixupLibraryKeys(removed pool.Slice) {
	m.libs.ForEach(func(_ idalloc.ID, lib *Library) {
		lib.Keys.FixupRemove(removed.Start, removed.Length)
	})
}

func (m *Manager) fixupClipCurves(removed pool.Slice) {
	for i := 0; i < m.clips.Len(); i++ {
		c := m.clips.At(i)
		c.Curves.FixupRemove(removed.Start, removed.Length)
	}
}

func (m *Manager) fixupClipKeys(removed pool.Slice) {
	for i := 0; i < m.clips.Len(); i++ {
		c := m.clips.At(i)
		c.Keys.FixupRemove(removed.Start, removed.Length)
	}
}

func (m *Manager) removeKeysRange(r pool.Slice) {
	if r.Length == 0 {
		return
	}
	if m.keyElem == KeyQuantizedInt16 {
		m.keysI16.RemoveRange(r.Start, r.Length)
	} else {
		m.keysF32.RemoveRange(r.Start, r.Length)
	}
}
