// Package frame implements the Frame Orchestrator: the public
// new_frame -> add_active_instance* -> evaluate(dt) entry sequence that
// drives per-frame sequencer evaluation, curve sampling and skin-matrix
// generation for every instance the host submits.
package frame

import (
	"github.com/floooh/oryol-animation/assert"
	"github.com/floooh/oryol-animation/idalloc"
	"github.com/floooh/oryol-animation/manager"
	"github.com/floooh/oryol-animation/pool"
	"github.com/floooh/oryol-animation/sequencer"
	"github.com/floooh/oryol-animation/skin"
	"github.com/floooh/oryol-animation/util/logger"
)

var log = logger.New("FRM", logger.Default)

// Setup configures the Orchestrator's fixed per-frame capacities.
type Setup struct {
	MaxActiveInstances    int
	SamplePoolCapacity    int
	SkinMatrixTableWidth  int // vec4-pixel columns
	SkinMatrixTableHeight int // rows
	SequencerCapacity     int // items per instance's sequencer
}

// InstanceInfo is the per-active-instance record exposed after
// Evaluate: a shader-sampling hint for the packed skin-matrix table.
type InstanceInfo struct {
	Instance idalloc.ID
	U, V, Z  float32
}

// Orchestrator owns current_time, the sample arena, the skin-matrix
// table, and the lazily-created per-instance sequencers.
type Orchestrator struct {
	mgr *manager.Manager

	setup      Setup
	sequencers map[idalloc.ID]*sequencer.Sequencer
	builder    *skin.Builder

	currentTime float32
	inFrame     bool
	nextJobID   sequencer.JobID

	active       []idalloc.ID
	sampleArena  *pool.Arena[float32]
	sampleSlices map[idalloc.ID]pool.Slice
	skinSlices   map[idalloc.ID]pool.Slice

	tableWidth  int
	tableHeight int
	tableData   []float32
	row, col    int
	byteSize    int
	infos       []InstanceInfo
}

// New creates an Orchestrator wrapping mgr with the given capacities.
func New(mgr *manager.Manager, setup Setup) *Orchestrator {
	return &Orchestrator{
		mgr:          mgr,
		setup:        setup,
		sequencers:   make(map[idalloc.ID]*sequencer.Sequencer),
		builder:      skin.NewBuilder(256),
		sampleArena:  pool.NewArena[float32](setup.SamplePoolCapacity),
		sampleSlices: make(map[idalloc.ID]pool.Slice),
		skinSlices:   make(map[idalloc.ID]pool.Slice),
		tableWidth:   setup.SkinMatrixTableWidth,
		tableHeight:  setup.SkinMatrixTableHeight,
		tableData:    make([]float32, setup.SkinMatrixTableWidth*setup.SkinMatrixTableHeight*4),
	}
}

func (o *Orchestrator) sequencerFor(instID idalloc.ID) *sequencer.Sequencer {
	seq, ok := o.sequencers[instID]
	if !ok {
		seq = sequencer.New(o.setup.SequencerCapacity)
		o.sequencers[instID] = seq
	}
	return seq
}

// CurrentTime returns the orchestrator's running clock.
func (o *Orchestrator) CurrentTime() float32 {
	return o.currentTime
}

// InFrame reports whether NewFrame has run without a matching Evaluate.
func (o *Orchestrator) InFrame() bool {
	return o.inFrame
}

// NewFrame resets every per-frame allocation: the active-instance list,
// the sample arena cursor, the skin-matrix table cursor and info list,
// and sets the in-frame flag.
func (o *Orchestrator) NewFrame() {
	o.active = o.active[:0]
	o.sampleArena.Reset()
	for k := range o.sampleSlices {
		delete(o.sampleSlices, k)
	}
	for k := range o.skinSlices {
		delete(o.skinSlices, k)
	}
	o.row, o.col = 0, 0
	o.byteSize = 0
	o.infos = o.infos[:0]
	o.inFrame = true
}

// rowStride is the number of floats in one row of the skin-matrix table.
func (o *Orchestrator) rowStride() int {
	return o.tableWidth * 4
}

// reserveTablePixels finds where a block of numPixels vec4 "pixels"
// would land, without mutating cursor state. ok is false if the block
// fits in neither the current row nor any further row.
func (o *Orchestrator) reserveTablePixels(numPixels int) (row, col int, ok bool) {
	if o.col+numPixels <= o.tableWidth {
		return o.row, o.col, true
	}
	if numPixels > o.tableWidth || o.row+1 >= o.tableHeight {
		return 0, 0, false
	}
	return o.row + 1, 0, true
}

// AddActiveInstance admits instID into this frame's active-instance
// list, reserving its sample slice (and, if it has a skeleton, its
// skin-matrix block) up front. Must only be called while in a frame.
// Fails with no partial effect if any admission check fails.
func (o *Orchestrator) AddActiveInstance(instID idalloc.ID) bool {
	assert.That(o.inFrame, "AddActiveInstance called outside a frame")

	if len(o.active) >= o.setup.MaxActiveInstances {
		return false
	}
	inst := o.mgr.Instance(instID)
	lib := o.mgr.Library(inst.Library)

	if o.sampleArena.Remaining() < lib.SampleStride {
		return false
	}

	hasSkeleton := inst.Skeleton.IsValid() && o.mgr.HasSkeleton(inst.Skeleton)
	var sk *manager.Skeleton
	var needPixels, row int
	if hasSkeleton {
		sk = o.mgr.Skeleton(inst.Skeleton)
		needPixels = sk.NumBones() * 3
		var ok bool
		row, _, ok = o.reserveTablePixels(needPixels)
		if !ok {
			return false
		}
	}

	o.active = append(o.active, instID)

	sampleSlice, ok := o.sampleArena.Reserve(lib.SampleStride)
	if !ok {
		// Unreachable given the Remaining() check above, but guards
		// against admission control and the arena falling out of sync.
		o.active = o.active[:len(o.active)-1]
		return false
	}
	o.sampleSlices[instID] = sampleSlice

	if hasSkeleton {
		if row != o.row {
			o.row = row
			o.col = 0
		}
		offset := o.row*o.rowStride() + o.col*4
		o.skinSlices[instID] = pool.Slice{Start: offset, Length: sk.NumBones() * 12}

		u := (float32(o.col) + 0.5) / float32(o.tableWidth)
		v := (float32(o.row) + 0.5) / float32(o.tableHeight)
		o.infos = append(o.infos, InstanceInfo{Instance: instID, U: u, V: v, Z: float32(o.tableWidth)})

		o.col += needPixels
		o.byteSize = (o.row + 1) * o.rowStride() * 4
	}

	return true
}

// Evaluate runs the garbage-collect/sample/skin pipeline for every
// active instance, then advances current_time by frameDuration and
// clears the in-frame flag.
func (o *Orchestrator) Evaluate(frameDuration float32) {
	assert.That(o.inFrame, "Evaluate called outside a frame")

	for _, instID := range o.active {
		o.sequencerFor(instID).GarbageCollect(o.currentTime)
	}
	for _, instID := range o.active {
		inst := o.mgr.Instance(instID)
		lib := o.mgr.Library(inst.Library)
		samples := o.sampleArena.View(o.sampleSlices[instID])
		o.sequencerFor(instID).Eval(o.mgr, lib, o.currentTime, samples)
	}
	for _, instID := range o.active {
		inst := o.mgr.Instance(instID)
		if !inst.Skeleton.IsValid() || !o.mgr.HasSkeleton(inst.Skeleton) {
			continue
		}
		sk := o.mgr.Skeleton(inst.Skeleton)
		samples := o.sampleArena.View(o.sampleSlices[instID])
		skinSlice := o.skinSlices[instID]
		out := make([]manager.Matrix, sk.NumBones())
		o.builder.Build(o.mgr, sk, samples, out)
		dst := o.tableData[skinSlice.Start:skinSlice.End()]
		for i, m := range out {
			copy(dst[i*12:i*12+12], m[:])
		}
	}

	o.currentTime += frameDuration
	o.inFrame = false
}

// Play garbage-collects instID's sequencer, then schedules job on it,
// returning the allocated job id or sequencer.InvalidJobID if the
// sequencer's item list is full.
func (o *Orchestrator) Play(instID idalloc.ID, job sequencer.Job) sequencer.JobID {
	seq := o.sequencerFor(instID)
	seq.GarbageCollect(o.currentTime)

	inst := o.mgr.Instance(instID)
	lib := o.mgr.Library(inst.Library)
	clip := o.mgr.ClipAt(lib.Clips.Start + job.ClipIndex)
	clipDuration := float32(clip.Length) * clip.KeyDuration

	o.nextJobID++
	jobID := o.nextJobID
	if !seq.Add(o.currentTime, jobID, job, clipDuration) {
		log.Warn("Play: sequencer item list exhausted")
		return sequencer.InvalidJobID
	}
	return jobID
}

// Stop passes through to instID's sequencer, then garbage-collects it.
func (o *Orchestrator) Stop(instID idalloc.ID, jobID sequencer.JobID, allowFadeOut bool) {
	seq := o.sequencerFor(instID)
	seq.Stop(o.currentTime, jobID, allowFadeOut)
	seq.GarbageCollect(o.currentTime)
}

// StopTrack passes through to instID's sequencer, then garbage-collects it.
func (o *Orchestrator) StopTrack(instID idalloc.ID, track int, allowFadeOut bool) {
	seq := o.sequencerFor(instID)
	seq.StopTrack(o.currentTime, track, allowFadeOut)
	seq.GarbageCollect(o.currentTime)
}

// StopAll passes through to instID's sequencer, then garbage-collects it.
func (o *Orchestrator) StopAll(instID idalloc.ID, allowFadeOut bool) {
	seq := o.sequencerFor(instID)
	seq.StopAll(o.currentTime, allowFadeOut)
	seq.GarbageCollect(o.currentTime)
}

// SkinMatrixTableByteSize returns the valid byte size of the packed
// skin-matrix table as of the last AddActiveInstance call this frame.
func (o *Orchestrator) SkinMatrixTableByteSize() int {
	return o.byteSize
}

// ActiveInstanceInfos returns the shader-sampling hints recorded for
// every active instance with a skeleton this frame.
func (o *Orchestrator) ActiveInstanceInfos() []InstanceInfo {
	return o.infos
}

// TableData returns the raw skin-matrix table backing store, sized
// width*height*4 floats, for the host to upload to the GPU.
func (o *Orchestrator) TableData() []float32 {
	return o.tableData
}
