// Package manager implements the pooled resource model: libraries,
// skeletons and instances, their backing clip/curve/key/matrix storage,
// and the compaction algorithm that keeps those pools dense after a
// library or skeleton is destroyed.
package manager

import (
	"github.com/floooh/oryol-animation/idalloc"
	"github.com/floooh/oryol-animation/pool"
	"github.com/floooh/oryol-animation/registry"
)

// CurveFormat is the shape of one animated curve's value.
type CurveFormat int

const (
	Float CurveFormat = iota
	Float2
	Float3
	Float4
	Quaternion
)

// NumValues returns the dimensionality of the format: the number of
// float components one sampled value occupies.
func (f CurveFormat) NumValues() int {
	switch f {
	case Float:
		return 1
	case Float2:
		return 2
	case Float3:
		return 3
	case Float4, Quaternion:
		return 4
	default:
		return 0
	}
}

// KeyElementType selects the on-disk representation of a library's key
// arena. QuantizedInt16 trades precision for bandwidth: values are
// stored premultiplied by 1/32767 magnitude and decoded during sampling.
type KeyElementType int

const (
	KeyFloat32 KeyElementType = iota
	KeyQuantizedInt16
)

// Curve describes one animated channel within a clip.
type Curve struct {
	Format CurveFormat
	// Static collapses the curve to a constant value with no key storage.
	Static      bool
	StaticValue [4]float32
	// KeyStride is Format.NumValues() for a non-static curve, 0 for static.
	KeyStride int
	// KeyIndex is this curve's column offset within its clip's key row.
	KeyIndex int
	// Magnitude scales a raw key element before interpolation. Always 1
	// for KeyFloat32 storage; for KeyQuantizedInt16 it is the per-curve
	// premultiplier baked in at creation time (see §9 Quantization).
	Magnitude float32
}

// CurveSetup is the creation-time description of one curve within a
// ClipSetup.
type CurveSetup struct {
	Format      CurveFormat
	Static      bool
	StaticValue [4]float32
	// Magnitude is only meaningful when the owning library uses
	// KeyQuantizedInt16 storage; ignored (and normalized to 1) otherwise.
	Magnitude float32
}

// Clip is an ordered collection of curves sharing a length and cadence.
type Clip struct {
	Name string
	// Length is the number of keys (>= 1).
	Length int
	// KeyDuration is the per-key duration in seconds (> 0).
	KeyDuration float32
	// KeyStride is the sum of stride of this clip's non-static curves:
	// the number of floats in one row of Keys.
	KeyStride int
	// Curves is this clip's slice into the library's Curves range.
	Curves pool.Slice
	// Keys is this clip's slice into the library's Keys range: a
	// KeyStride x Length row-major table.
	Keys pool.Slice
}

// ClipSetup is the creation-time description of one clip.
type ClipSetup struct {
	Name        string
	Length      int
	KeyDuration float32
	Curves      []CurveSetup
}

// Library is a collection of clips sharing a curve layout.
type Library struct {
	Locator registry.Locator
	// Layout is the ordered list of curve formats shared by every clip.
	Layout []CurveFormat
	// SampleStride is the sum of stride of Layout: the length of one
	// sampled pose vector for an instance of this library.
	SampleStride int
	KeyElem      KeyElementType
	// Clips is this library's slice into the global clips array.
	Clips pool.Slice
	// Curves is this library's slice into the global curves array.
	Curves pool.Slice
	// Keys is this library's slice into the keys arena; the union of
	// its clips' Keys slices.
	Keys pool.Slice
	// ClipIndex maps a clip name to its index relative to Clips.Start.
	ClipIndex map[string]int
}

// LibrarySetup is the creation-time contract for CreateLibrary. The key
// storage representation (float32 vs quantized int16) is a manager-wide
// setting (AnimSetup.KeyElem), not chosen per library.
type LibrarySetup struct {
	Locator registry.Locator
	Layout  []CurveFormat
	Clips   []ClipSetup
}

// Bone is one entry in a skeleton's parent-indexed hierarchy.
type Bone struct {
	Name   string
	Parent int // -1 for root
}

// Skeleton is a bone hierarchy with bind and inverse-bind poses.
type Skeleton struct {
	Locator registry.Locator
	Bones   []Bone
	// Matrices is this skeleton's slice into the global matrix pool:
	// NumBones bind-pose matrices followed by NumBones inverse-bind-pose
	// matrices, each a 4x3 row-major matrix (12 floats).
	Matrices pool.Slice
}

// NumBones returns the bone count.
func (sk *Skeleton) NumBones() int {
	return len(sk.Bones)
}

// BindPose returns sk.Matrices' first half.
func (sk *Skeleton) BindPose() pool.Slice {
	return pool.Slice{Start: sk.Matrices.Start, Length: sk.NumBones()}
}

// InvBindPose returns sk.Matrices' second half.
func (sk *Skeleton) InvBindPose() pool.Slice {
	return pool.Slice{Start: sk.Matrices.Start + sk.NumBones(), Length: sk.NumBones()}
}

// BoneSetup is the creation-time description of one bone.
type BoneSetup struct {
	Name         string
	Parent       int
	BindPose     [12]float32
	InvBindPose  [12]float32
}

// SkeletonSetup is the creation-time contract for CreateSkeleton.
type SkeletonSetup struct {
	Locator registry.Locator
	Bones   []BoneSetup
}

// Instance is a playable binding of a library with an optional skeleton.
type Instance struct {
	Library  idalloc.ID
	Skeleton idalloc.ID // idalloc.Invalid when none
}
