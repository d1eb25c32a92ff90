package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floooh/oryol-animation/idalloc"
	"github.com/floooh/oryol-animation/manager"
	"github.com/floooh/oryol-animation/registry"
	"github.com/floooh/oryol-animation/sequencer"
)

func newTestManager(t *testing.T) *manager.Manager {
	t.Helper()
	return manager.New(manager.Setup{
		MaxNumLibs:         4,
		MaxNumSkeletons:    4,
		MaxNumInstances:    16,
		ClipPoolCapacity:   8,
		CurvePoolCapacity:  16,
		KeyPoolCapacity:    256,
		MatrixPoolCapacity: 1024,
		RegistryCapacity:   32,
		KeyElem:            manager.KeyFloat32,
	})
}

func identityBoneSetup(name string, parent int) manager.BoneSetup {
	var m [12]float32
	m[0], m[5], m[10] = 1, 1, 1
	return manager.BoneSetup{Name: name, Parent: parent, BindPose: m, InvBindPose: m}
}

func skeletonWithBones(t *testing.T, mgr *manager.Manager, name string, numBones int) idalloc.ID {
	t.Helper()
	bones := make([]manager.BoneSetup, numBones)
	for i := range bones {
		bones[i] = identityBoneSetup("bone", -1)
	}
	id, err := mgr.CreateSkeleton(manager.SkeletonSetup{Locator: registry.Locator{Name: name}, Bones: bones}, registry.LabelAll)
	require.NoError(t, err)
	return id
}

func simpleLibrary(t *testing.T, mgr *manager.Manager, name string) idalloc.ID {
	t.Helper()
	id, err := mgr.CreateLibrary(manager.LibrarySetup{
		Locator: registry.Locator{Name: name},
		Layout:  []manager.CurveFormat{manager.Float3, manager.Quaternion, manager.Float3},
		Clips: []manager.ClipSetup{
			{
				Name:        "clip",
				Length:      2,
				KeyDuration: 1,
				Curves: []manager.CurveSetup{
					{Format: manager.Float3},
					{Format: manager.Quaternion, Static: true, StaticValue: [4]float32{0, 0, 0, 1}},
					{Format: manager.Float3, Static: true, StaticValue: [4]float32{1, 1, 1, 0}},
				},
			},
		},
	}, registry.LabelAll)
	require.NoError(t, err)
	return id
}

// TestSkinMatrixTablePacking is scenario S6.
func TestSkinMatrixTablePacking(t *testing.T) {
	mgr := newTestManager(t)
	libID := simpleLibrary(t, mgr, "lib")
	skelID := skeletonWithBones(t, mgr, "skel100", 100)

	orch := New(mgr, Setup{
		MaxActiveInstances:    16,
		SamplePoolCapacity:    4096,
		SkinMatrixTableWidth:  1024,
		SkinMatrixTableHeight: 64,
		SequencerCapacity:     4,
	})

	var instIDs []idalloc.ID
	for i := 0; i < 4; i++ {
		instID, err := mgr.CreateInstance(libID, skelID)
		require.NoError(t, err)
		instIDs = append(instIDs, instID)
	}

	orch.NewFrame()
	for _, id := range instIDs {
		require.True(t, orch.AddActiveInstance(id))
	}

	assert.Equal(t, 2*1024*4*4, orch.SkinMatrixTableByteSize())

	infos := orch.ActiveInstanceInfos()
	require.Len(t, infos, 4)
	assert.InDelta(t, (0.0+0.5)/1024.0, infos[0].U, 1e-6)
	assert.InDelta(t, (300.0+0.5)/1024.0, infos[1].U, 1e-6)
	assert.InDelta(t, (600.0+0.5)/1024.0, infos[2].U, 1e-6)
	assert.InDelta(t, (0.0+0.5)/1024.0, infos[3].U, 1e-6)
	assert.InDelta(t, (1.0+0.5)/64.0, infos[3].V, 1e-6)
}

func TestEvaluateAdvancesCurrentTimeAndClearsInFrame(t *testing.T) {
	mgr := newTestManager(t)
	libID := simpleLibrary(t, mgr, "lib2")
	instID, err := mgr.CreateInstance(libID, idalloc.Invalid)
	require.NoError(t, err)

	orch := New(mgr, Setup{
		MaxActiveInstances:    4,
		SamplePoolCapacity:    256,
		SkinMatrixTableWidth:  64,
		SkinMatrixTableHeight: 4,
		SequencerCapacity:     4,
	})

	orch.NewFrame()
	require.True(t, orch.AddActiveInstance(instID))
	assert.True(t, orch.InFrame())

	orch.Evaluate(0.016)

	assert.False(t, orch.InFrame())
	assert.InDelta(t, 0.016, orch.CurrentTime(), 1e-6)
}

func TestPlayStopRoundTrip(t *testing.T) {
	mgr := newTestManager(t)
	libID := simpleLibrary(t, mgr, "lib3")
	instID, err := mgr.CreateInstance(libID, idalloc.Invalid)
	require.NoError(t, err)

	orch := New(mgr, Setup{
		MaxActiveInstances:    4,
		SamplePoolCapacity:    256,
		SkinMatrixTableWidth:  64,
		SkinMatrixTableHeight: 4,
		SequencerCapacity:     4,
	})

	jobID := orch.Play(instID, sequencer.Job{ClipIndex: 0, TrackIndex: 0, MixWeight: 1, Duration: -1})
	assert.NotEqual(t, sequencer.InvalidJobID, jobID)

	orch.Stop(instID, jobID, false)
}
