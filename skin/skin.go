// Package skin implements the skin-matrix builder: it turns a sampled
// per-bone pose vector (translation, quaternion, scale) plus a
// skeleton's hierarchy and inverse bind poses into world-space skin
// matrices ready for GPU vertex skinning.
package skin

import (
	"github.com/floooh/oryol-animation/assert"
	"github.com/floooh/oryol-animation/manager"
	"github.com/floooh/oryol-animation/math32"
)

// SampleStride is the number of floats one bone's sample occupies:
// translation (3) + quaternion (4) + scale (3).
const SampleStride = 10

// Builder composes local bone matrices through a skeleton's hierarchy
// and multiplies by inverse bind poses to produce skin matrices. It
// owns reusable hierarchy-order scratch tables so Build never
// allocates once warmed up to a skeleton's bone count.
type Builder struct {
	world []math32.Matrix4
}

// NewBuilder creates a Builder whose scratch table is pre-sized for
// skeletons with up to maxBones bones.
func NewBuilder(maxBones int) *Builder {
	return &Builder{world: make([]math32.Matrix4, maxBones)}
}

// Build reads sk's bone hierarchy and mgr's inverse bind pose matrices,
// samples from samples (NumBones*SampleStride floats, bone-major), and
// writes NumBones skin matrices into out.
//
// Bones are iterated in storage order, which the skeleton invariant
// parent[i] < i guarantees is hierarchy order: a bone's parent has
// always already been written to the scratch table.
func (b *Builder) Build(mgr *manager.Manager, sk *manager.Skeleton, samples []float32, out []manager.Matrix) {
	n := sk.NumBones()
	assert.That(len(samples) >= n*SampleStride, "sample vector shorter than skeleton requires")
	assert.That(len(out) >= n, "skin matrix output shorter than skeleton requires")

	if cap(b.world) < n {
		b.world = make([]math32.Matrix4, n)
	}
	world := b.world[:n]

	invBindPose := sk.InvBindPose()
	var pos math32.Vector3
	var rot math32.Quaternion
	var scale math32.Vector3
	var local, skin math32.Matrix4
	for i, bone := range sk.Bones {
		off := i * SampleStride
		pos.Set(samples[off+0], samples[off+1], samples[off+2])
		rot.Set(samples[off+3], samples[off+4], samples[off+5], samples[off+6])
		scale.Set(samples[off+7], samples[off+8], samples[off+9])
		local.Compose(&pos, &rot, &scale)

		if bone.Parent < 0 {
			world[i] = local
		} else {
			world[i].MultiplyMatrices(&world[bone.Parent], &local)
		}

		invBP := matrix4From4x3(mgr.Matrix4x3(invBindPose.Start + i))
		skin.MultiplyMatrices(&world[i], &invBP)
		out[i] = matrix4x3From4(&skin)
	}
}

// matrix4From4x3 expands a row-major 4x3 affine matrix into a column-major
// math32.Matrix4 with the implicit bottom row [0 0 0 1], matching the
// layout math32.Matrix4.Set documents (column-major storage, elements
// addressed row by row).
func matrix4From4x3(m *manager.Matrix) math32.Matrix4 {
	var out math32.Matrix4
	out.Set(
		m[0], m[1], m[2], m[3],
		m[4], m[5], m[6], m[7],
		m[8], m[9], m[10], m[11],
		0, 0, 0, 1,
	)
	return out
}

// matrix4x3From4 narrows a math32.Matrix4 back to the row-major 4x3
// convention every other matrix in this module uses, dropping the
// (always [0 0 0 1]) bottom row.
func matrix4x3From4(m *math32.Matrix4) manager.Matrix {
	return manager.Matrix{
		m[0], m[4], m[8], m[12],
		m[1], m[5], m[9], m[13],
		m[2], m[6], m[10], m[14],
	}
}
