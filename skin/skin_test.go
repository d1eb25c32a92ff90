package skin

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/floooh/oryol-animation/manager"
	"github.com/floooh/oryol-animation/registry"
)

var identity = manager.Matrix{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
}

func newManagerWithSkeleton(t *testing.T, bones []manager.BoneSetup) (*manager.Manager, *manager.Skeleton) {
	t.Helper()
	mgr := manager.New(manager.Setup{
		MaxNumLibs:         1,
		MaxNumSkeletons:    1,
		MaxNumInstances:    1,
		ClipPoolCapacity:   1,
		CurvePoolCapacity:  1,
		KeyPoolCapacity:    1,
		MatrixPoolCapacity: 16,
		RegistryCapacity:   4,
		KeyElem:            manager.KeyFloat32,
	})
	id, err := mgr.CreateSkeleton(manager.SkeletonSetup{
		Locator: registry.Locator{Name: "skel"},
		Bones:   bones,
	}, registry.LabelAll)
	if err != nil {
		t.Fatalf("CreateSkeleton: %v", err)
	}
	return mgr, mgr.Skeleton(id)
}

func identityBone(name string, parent int) manager.BoneSetup {
	return manager.BoneSetup{
		Name:        name,
		Parent:      parent,
		BindPose:    [12]float32(identity),
		InvBindPose: [12]float32(identity),
	}
}

func identitySample(tx, ty, tz float32) []float32 {
	return []float32{tx, ty, tz, 0, 0, 0, 1, 1, 1, 1}
}

func TestBuildRootBoneTranslationOnly(t *testing.T) {
	mgr, sk := newManagerWithSkeleton(t, []manager.BoneSetup{identityBone("root", -1)})

	samples := identitySample(5, 0, 0)
	out := make([]manager.Matrix, 1)

	b := NewBuilder(8)
	b.Build(mgr, sk, samples, out)

	assert.InDelta(t, float32(5), out[0][3], 1e-6)
	assert.InDelta(t, float32(0), out[0][7], 1e-6)
	assert.InDelta(t, float32(0), out[0][11], 1e-6)
}

func TestBuildChildComposesWithParentTranslation(t *testing.T) {
	mgr, sk := newManagerWithSkeleton(t, []manager.BoneSetup{
		identityBone("root", -1),
		identityBone("child", 0),
	})

	samples := append(identitySample(5, 0, 0), identitySample(0, 2, 0)...)
	out := make([]manager.Matrix, 2)

	b := NewBuilder(8)
	b.Build(mgr, sk, samples, out)

	assert.InDelta(t, float32(5), out[0][3], 1e-6)
	assert.InDelta(t, float32(5), out[1][3], 1e-6)
	assert.InDelta(t, float32(2), out[1][7], 1e-6)
}

func TestBuildAppliesScaleToLocalAxes(t *testing.T) {
	mgr, sk := newManagerWithSkeleton(t, []manager.BoneSetup{identityBone("root", -1)})

	samples := []float32{0, 0, 0, 0, 0, 0, 1, 2, 3, 4}
	out := make([]manager.Matrix, 1)

	b := NewBuilder(8)
	b.Build(mgr, sk, samples, out)

	assert.InDelta(t, float32(2), out[0][0], 1e-6)
	assert.InDelta(t, float32(3), out[0][5], 1e-6)
	assert.InDelta(t, float32(4), out[0][10], 1e-6)
}
