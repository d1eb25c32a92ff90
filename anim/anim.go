// Package anim is the public facade: a thin, process-wide wrapper
// around the manager, sequencer and frame packages exposing the
// Setup/Discard lifecycle, resource creation and lookup, and the
// per-frame play/stop/evaluate entry points.
package anim

import (
	"gopkg.in/yaml.v2"

	"github.com/floooh/oryol-animation/assert"
	"github.com/floooh/oryol-animation/frame"
	"github.com/floooh/oryol-animation/idalloc"
	"github.com/floooh/oryol-animation/manager"
	"github.com/floooh/oryol-animation/registry"
	"github.com/floooh/oryol-animation/sequencer"
)

// ID is a resource handle: a library, skeleton, or instance id.
type ID = idalloc.ID

// Invalid is the zero id, never returned by a successful creation.
var Invalid = idalloc.Invalid

// Label groups resources created between a PushLabel/PopLabel pair for
// bulk destruction.
type Label = registry.Label

// LabelAll matches and clears every registered resource when passed to Destroy.
const LabelAll = registry.LabelAll

// Locator is the name-plus-signature registry key resources are shared by.
type Locator = registry.Locator

// JobID identifies one scheduled playback returned by Play.
type JobID = sequencer.JobID

// InvalidJobID is returned when a job could not be scheduled.
const InvalidJobID = sequencer.InvalidJobID

// Job describes one scheduled clip playback passed to Play.
type Job = sequencer.Job

// LibrarySetup is the creation-time contract for CreateLibrary.
type LibrarySetup = manager.LibrarySetup

// SkeletonSetup is the creation-time contract for CreateSkeleton.
type SkeletonSetup = manager.SkeletonSetup

// Library is the read-only view returned by the Library accessor.
type Library = manager.Library

// Skeleton is the read-only view returned by the Skeleton accessor.
type Skeleton = manager.Skeleton

// InstanceInfo is the per-active-instance shader-sampling hint exposed
// after Evaluate.
type InstanceInfo = frame.InstanceInfo

// AnimSetup configures every pool capacity the facade owns. Zero
// fields are not auto-defaulted: use DefaultAnimSetup to start from
// the documented defaults and override only what differs.
type AnimSetup struct {
	MaxNumLibs                 int
	MaxNumSkeletons            int
	MaxNumInstances            int
	MaxNumActiveInstances      int
	ClipPoolCapacity           int
	CurvePoolCapacity          int
	KeyPoolCapacity            int
	SamplePoolCapacity         int
	MatrixPoolCapacity         int
	SkinMatrixTableWidth       int
	SkinMatrixTableHeight      int
	ResourceLabelStackCapacity int
	ResourceRegistryCapacity   int
	MaxBones                   int
	KeyElem                    manager.KeyElementType
	// SequencerCapacity is the per-instance item-list bound; the
	// original module hard-codes this at 16.
	SequencerCapacity int
}

// DefaultAnimSetup returns the documented default capacities.
func DefaultAnimSetup() AnimSetup {
	s := AnimSetup{
		MaxNumLibs:                 16,
		MaxNumSkeletons:            16,
		MaxNumInstances:            128,
		MaxNumActiveInstances:      128,
		KeyPoolCapacity:            4 * 1024 * 1024,
		SamplePoolCapacity:         4 * 1024 * 1024,
		MatrixPoolCapacity:         1024,
		SkinMatrixTableWidth:       1024,
		SkinMatrixTableHeight:      64,
		ResourceLabelStackCapacity: 256,
		ResourceRegistryCapacity:   256,
		MaxBones:                   256,
		KeyElem:                    manager.KeyFloat32,
		SequencerCapacity:          16,
	}
	s.ClipPoolCapacity = s.MaxNumLibs * 64
	s.CurvePoolCapacity = s.ClipPoolCapacity * 256
	return s
}

// LoadSetupYAML decodes an AnimSetup from YAML, starting from the
// documented defaults so a config file only needs to mention the
// capacities it wants to override.
func LoadSetupYAML(data []byte) (AnimSetup, error) {
	setup := DefaultAnimSetup()
	if err := yaml.Unmarshal(data, &setup); err != nil {
		return AnimSetup{}, err
	}
	return setup, nil
}

type facade struct {
	mgr  *manager.Manager
	orch *frame.Orchestrator
}

var current *facade

// Setup creates the process-wide state block. Calling Setup while
// already valid is a programming error.
func Setup(setup AnimSetup) {
	assert.That(current == nil, "anim: Setup called while already valid")
	mgr := manager.New(manager.Setup{
		MaxNumLibs:         setup.MaxNumLibs,
		MaxNumSkeletons:    setup.MaxNumSkeletons,
		MaxNumInstances:    setup.MaxNumInstances,
		ClipPoolCapacity:   setup.ClipPoolCapacity,
		CurvePoolCapacity:  setup.CurvePoolCapacity,
		KeyPoolCapacity:    setup.KeyPoolCapacity,
		MatrixPoolCapacity: setup.MatrixPoolCapacity,
		RegistryCapacity:   setup.ResourceRegistryCapacity,
		KeyElem:            setup.KeyElem,
	})
	orch := frame.New(mgr, frame.Setup{
		MaxActiveInstances:    setup.MaxNumActiveInstances,
		SamplePoolCapacity:    setup.SamplePoolCapacity,
		SkinMatrixTableWidth:  setup.SkinMatrixTableWidth,
		SkinMatrixTableHeight: setup.SkinMatrixTableHeight,
		SequencerCapacity:     setup.SequencerCapacity,
	})
	current = &facade{mgr: mgr, orch: orch}
}

// Discard tears down the process-wide state block. Calling Discard
// while not valid is a programming error.
func Discard() {
	assert.That(current != nil, "anim: Discard called while not valid")
	current = nil
}

// IsValid reports whether Setup has run without a matching Discard.
func IsValid() bool {
	return current != nil
}

// SetDebug gates the programmer-error assertions threaded through
// manager, sequencer, skin and frame (slice arithmetic bounds,
// out-of-frame calls, malformed write_keys byte counts). Off by
// default; enable it in development builds.
func SetDebug(enabled bool) {
	assert.Enabled = enabled
}

// Debug reports whether SetDebug(true) is currently in effect.
func Debug() bool {
	return assert.Enabled
}

// PushLabel allocates a fresh label and pushes it; every resource
// created until the matching PopLabel is tagged with it.
func PushLabel() Label {
	return current.mgr.Registry.PushLabel()
}

// PushExistingLabel re-enters a previously allocated label's scope.
func PushExistingLabel(label Label) {
	current.mgr.Registry.PushExistingLabel(label)
}

// PopLabel pops and returns the top of the label stack.
func PopLabel() Label {
	return current.mgr.Registry.PopLabel()
}

// CreateLibrary creates (or returns the existing) library for setup,
// tagged with the currently active label.
func CreateLibrary(setup LibrarySetup) (ID, error) {
	return current.mgr.CreateLibrary(setup, current.mgr.Registry.PeekLabel())
}

// CreateSkeleton creates (or returns the existing) skeleton for setup,
// tagged with the currently active label.
func CreateSkeleton(setup SkeletonSetup) (ID, error) {
	return current.mgr.CreateSkeleton(setup, current.mgr.Registry.PeekLabel())
}

// CreateInstance binds a library (and optional skeleton) into a new
// playable instance.
func CreateInstance(lib, skel ID) (ID, error) {
	return current.mgr.CreateInstance(lib, skel)
}

// Lookup resolves a locator to its id, if registered.
func Lookup(loc Locator) (ID, bool) {
	return current.mgr.Registry.Lookup(loc)
}

// Destroy tears down every resource tagged with label.
func Destroy(label Label) {
	current.mgr.Destroy(label)
}

// HasLibrary reports whether id resolves to a live library.
func HasLibrary(id ID) bool {
	return current.mgr.HasLibrary(id)
}

// GetLibrary returns the library for id, or a shared empty default if
// id is stale or unknown.
func GetLibrary(id ID) *Library {
	return current.mgr.Library(id)
}

// HasSkeleton reports whether id resolves to a live skeleton.
func HasSkeleton(id ID) bool {
	return current.mgr.HasSkeleton(id)
}

// GetSkeleton returns the skeleton for id, or a shared empty default if
// id is stale or unknown.
func GetSkeleton(id ID) *Skeleton {
	return current.mgr.Skeleton(id)
}

// WriteKeys copies buf verbatim into library id's key slice.
func WriteKeys(id ID, buf []byte) {
	current.mgr.WriteKeys(id, buf)
}

// NewFrame resets every per-frame allocation and opens a new frame.
func NewFrame() {
	current.orch.NewFrame()
}

// AddActiveInstance admits instance id into the current frame.
func AddActiveInstance(id ID) bool {
	return current.orch.AddActiveInstance(id)
}

// Evaluate runs the per-frame evaluation pipeline and closes the frame.
func Evaluate(frameDuration float32) {
	current.orch.Evaluate(frameDuration)
}

// SkinMatrixTableByteSize returns the valid byte size of the packed
// skin-matrix table as of the current frame's admissions.
func SkinMatrixTableByteSize() int {
	return current.orch.SkinMatrixTableByteSize()
}

// ActiveInstanceInfos returns the shader-sampling hints for every
// skinned active instance admitted this frame.
func ActiveInstanceInfos() []InstanceInfo {
	return current.orch.ActiveInstanceInfos()
}

// SkinMatrixTableData returns the raw skin-matrix table for upload.
func SkinMatrixTableData() []float32 {
	return current.orch.TableData()
}

// Play schedules job on instance id, returning its job id or
// InvalidJobID if the instance's sequencer is full.
func Play(instance ID, job Job) JobID {
	return current.orch.Play(instance, job)
}

// Stop fades out or invalidates the item matching jobID on instance.
func Stop(instance ID, jobID JobID, allowFadeOut bool) {
	current.orch.Stop(instance, jobID, allowFadeOut)
}

// StopTrack applies Stop's rule to every item on track.
func StopTrack(instance ID, track int, allowFadeOut bool) {
	current.orch.StopTrack(instance, track, allowFadeOut)
}

// StopAll applies Stop's rule to every item on instance.
func StopAll(instance ID, allowFadeOut bool) {
	current.orch.StopAll(instance, allowFadeOut)
}
