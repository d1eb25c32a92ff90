package manager

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/floooh/oryol-animation/assert"
	"github.com/floooh/oryol-animation/idalloc"
	"github.com/floooh/oryol-animation/math32"
	"github.com/floooh/oryol-animation/pool"
	"github.com/floooh/oryol-animation/registry"
	"github.com/floooh/oryol-animation/util/logger"
)

// Resource type tags used to stamp ids handed out by each slot pool.
const (
	TypeLibrary uint8 = iota + 1
	TypeSkeleton
	TypeInstance
)

// Errors returned by the creation operations. Both are reported without
// any partial mutation of a pool: validation runs fully before anything
// is appended.
var (
	ErrPoolExhausted  = errors.New("manager: pool exhausted")
	ErrLayoutMismatch = errors.New("manager: clip curve count does not match library layout")
)

var log = logger.New("MGR", logger.Default)

// Setup configures the fixed capacities of every pool the manager owns.
type Setup struct {
	MaxNumLibs       int
	MaxNumSkeletons  int
	MaxNumInstances  int
	ClipPoolCapacity int
	CurvePoolCapacity int
	KeyPoolCapacity  int
	MatrixPoolCapacity int
	RegistryCapacity int
	KeyElem          KeyElementType
}

// Matrix is a row-major 4x3 affine matrix: 3 rows of 4 floats, the
// implicit bottom row being [0 0 0 1].
type Matrix [12]float32

// Manager is the CompactingPoolManager: it owns the slot pools for
// libraries, skeletons and instances, the growing-forbidden arrays for
// clips/curves/matrices, the keys arena, and the resource registry. It
// is the sole mutator of all of these; see compaction.go for the
// invariant it keeps after a library or skeleton is destroyed.
type Manager struct {
	Registry *registry.Registry

	libs  *pool.SlotPool[Library]
	skels *pool.SlotPool[Skeleton]
	insts *pool.SlotPool[Instance]

	clips   *pool.Array[Clip]
	curves  *pool.Array[Curve]
	matrices *pool.Array[Matrix]

	keyElem KeyElementType
	keysF32 *pool.Arena[float32]
	keysI16 *pool.Arena[int16]
}

// New creates a Manager with the pools sized per setup.
func New(setup Setup) *Manager {
	m := &Manager{
		Registry: registry.New(setup.RegistryCapacity),
		libs:     pool.NewSlotPool[Library](TypeLibrary, setup.MaxNumLibs),
		skels:    pool.NewSlotPool[Skeleton](TypeSkeleton, setup.MaxNumSkeletons),
		insts:    pool.NewSlotPool[Instance](TypeInstance, setup.MaxNumInstances),
		clips:    pool.NewArray[Clip](setup.ClipPoolCapacity),
		curves:   pool.NewArray[Curve](setup.CurvePoolCapacity),
		matrices: pool.NewArray[Matrix](setup.MatrixPoolCapacity),
		keyElem:  setup.KeyElem,
	}
	if setup.KeyElem == KeyQuantizedInt16 {
		m.keysI16 = pool.NewArena[int16](setup.KeyPoolCapacity)
	} else {
		m.keysF32 = pool.NewArena[float32](setup.KeyPoolCapacity)
	}
	return m
}

// NumKeysUsed returns the used-prefix length of the keys arena.
func (m *Manager) NumKeysUsed() int {
	if m.keyElem == KeyQuantizedInt16 {
		return m.keysI16.Used()
	}
	return m.keysF32.Used()
}

// Shared zero-valued fallbacks returned by the typed accessors below so
// a caller holding a stale or unknown id reads deterministic zeros
// instead of dereferencing nil.
var (
	emptyLibrary  Library
	emptySkeleton Skeleton
	emptyInstance Instance
)

// HasLibrary reports whether id resolves to a live library.
func (m *Manager) HasLibrary(id idalloc.ID) bool {
	return m.libs.Has(id)
}

// Library returns the library for id, or a shared empty Library if id
// is stale or unknown.
func (m *Manager) Library(id idalloc.ID) *Library {
	if l, ok := m.libs.Lookup(id); ok {
		return l
	}
	return &emptyLibrary
}

// HasSkeleton reports whether id resolves to a live skeleton.
func (m *Manager) HasSkeleton(id idalloc.ID) bool {
	return m.skels.Has(id)
}

// Skeleton returns the skeleton for id, or a shared empty Skeleton if
// id is stale or unknown.
func (m *Manager) Skeleton(id idalloc.ID) *Skeleton {
	if s, ok := m.skels.Lookup(id); ok {
		return s
	}
	return &emptySkeleton
}

// HasInstance reports whether id resolves to a live instance.
func (m *Manager) HasInstance(id idalloc.ID) bool {
	return m.insts.Has(id)
}

// Instance returns the instance for id, or a shared empty Instance if
// id is stale or unknown.
func (m *Manager) Instance(id idalloc.ID) *Instance {
	if i, ok := m.insts.Lookup(id); ok {
		return i
	}
	return &emptyInstance
}

// ClipAt returns a pointer to the clip at a global clip-pool index.
func (m *Manager) ClipAt(index int) *Clip {
	return m.clips.At(index)
}

// CurveAt returns a pointer to the curve at a global curve-pool index.
func (m *Manager) CurveAt(index int) *Curve {
	return m.curves.At(index)
}

// KeyFloat returns the raw key element at global offset off, decoded to
// float32 but without any curve-specific magnitude applied.
func (m *Manager) KeyFloat(off int) float32 {
	if m.keyElem == KeyQuantizedInt16 {
		return float32(m.keysI16.View(pool.Slice{Start: off, Length: 1})[0])
	}
	return m.keysF32.View(pool.Slice{Start: off, Length: 1})[0]
}

// Matrix4x3 returns a pointer to the matrix at a global matrix-pool index.
func (m *Manager) Matrix4x3(index int) *Matrix {
	return m.matrices.At(index)
}

// CreateLibrary creates (or, if locator already resolves, returns) a
// library per setup. See §4.2.1: validation runs fully before any pool
// is mutated.
func (m *Manager) CreateLibrary(setup LibrarySetup, label registry.Label) (idalloc.ID, error) {
	if id, ok := m.Registry.Lookup(setup.Locator); ok {
		return id, nil
	}

	numLayout := len(setup.Layout)
	numClips := len(setup.Clips)
	for _, cs := range setup.Clips {
		if len(cs.Curves) != numLayout {
			log.Warn("CreateLibrary: clip curve count does not match layout")
			return idalloc.Invalid, ErrLayoutMismatch
		}
		for i, crv := range cs.Curves {
			if crv.Format != setup.Layout[i] {
				log.Warn("CreateLibrary: clip curve format does not match layout")
				return idalloc.Invalid, ErrLayoutMismatch
			}
		}
	}

	numKeysNeeded := 0
	for _, cs := range setup.Clips {
		for _, crv := range cs.Curves {
			if !crv.Static {
				numKeysNeeded += cs.Length * crv.Format.NumValues()
			}
		}
	}

	if m.clips.Remaining() < numClips {
		log.Warn("CreateLibrary: clip pool exhausted")
		return idalloc.Invalid, ErrPoolExhausted
	}
	if m.curves.Remaining() < numLayout*numClips {
		log.Warn("CreateLibrary: curve pool exhausted")
		return idalloc.Invalid, ErrPoolExhausted
	}
	keysRemaining := m.keysRemaining()
	if keysRemaining < numKeysNeeded {
		log.Warn("CreateLibrary: key pool exhausted")
		return idalloc.Invalid, ErrPoolExhausted
	}

	id, lib, ok := m.libs.Alloc()
	if !ok {
		log.Warn("CreateLibrary: library slot pool exhausted")
		return idalloc.Invalid, ErrPoolExhausted
	}

	lib.Locator = setup.Locator
	lib.Layout = append([]CurveFormat(nil), setup.Layout...)
	lib.KeyElem = m.keyElem
	lib.ClipIndex = make(map[string]int, numClips)
	sampleStride := 0
	for _, f := range setup.Layout {
		sampleStride += f.NumValues()
	}
	lib.SampleStride = sampleStride

	clipsStart := m.clips.Len()
	curvesStart := m.curves.Len()
	keysStart := m.usedKeys()

	keyCursor := keysStart
	for clipRel, cs := range setup.Clips {
		lib.ClipIndex[cs.Name] = clipRel

		curveRowStride := 0
		curveSetupsWithKeyIndex := make([]Curve, numLayout)
		for i, crvSetup := range cs.Curves {
			crv := Curve{
				Format:      crvSetup.Format,
				Static:      crvSetup.Static,
				StaticValue: crvSetup.StaticValue,
				Magnitude:   1,
			}
			if !crv.Static {
				crv.KeyStride = crv.Format.NumValues()
				crv.KeyIndex = curveRowStride
				curveRowStride += crv.KeyStride
				if m.keyElem == KeyQuantizedInt16 && crvSetup.Magnitude != 0 {
					crv.Magnitude = crvSetup.Magnitude
				}
			}
			curveSetupsWithKeyIndex[i] = crv
		}

		curveSlice, _ := m.curves.Append(curveSetupsWithKeyIndex...)

		clipKeyStart := keyCursor
		numRows := cs.Length
		m.reserveKeys(curveRowStride * numRows)
		for row := 0; row < numRows; row++ {
			off := clipKeyStart + row*curveRowStride
			for _, crv := range curveSetupsWithKeyIndex {
				if crv.Static {
					continue
				}
				for c := 0; c < crv.KeyStride; c++ {
					m.setKeyFloat(off+crv.KeyIndex+c, crv.StaticValue[c], crv.Magnitude)
				}
			}
		}
		keyCursor += curveRowStride * numRows

		clip := Clip{
			Name:        cs.Name,
			Length:      cs.Length,
			KeyDuration: cs.KeyDuration,
			KeyStride:   curveRowStride,
			Curves:      curveSlice,
			Keys:        pool.Slice{Start: clipKeyStart, Length: curveRowStride * numRows},
		}
		m.clips.Append(clip)
	}

	lib.Clips = pool.Slice{Start: clipsStart, Length: numClips}
	lib.Curves = pool.Slice{Start: curvesStart, Length: numLayout * numClips}
	lib.Keys = pool.Slice{Start: keysStart, Length: keyCursor - keysStart}

	m.Registry.Add(setup.Locator, id, label)
	return id, nil
}

// CreateSkeleton creates (or returns the existing) skeleton per setup.
func (m *Manager) CreateSkeleton(setup SkeletonSetup, label registry.Label) (idalloc.ID, error) {
	if id, ok := m.Registry.Lookup(setup.Locator); ok {
		return id, nil
	}

	numBones := len(setup.Bones)
	if m.matrices.Remaining() < numBones*2 {
		log.Warn("CreateSkeleton: matrix pool exhausted")
		return idalloc.Invalid, ErrPoolExhausted
	}

	id, sk, ok := m.skels.Alloc()
	if !ok {
		log.Warn("CreateSkeleton: skeleton slot pool exhausted")
		return idalloc.Invalid, ErrPoolExhausted
	}

	sk.Locator = setup.Locator
	sk.Bones = make([]Bone, numBones)
	bindPoses := make([]Matrix, numBones)
	invBindPoses := make([]Matrix, numBones)
	for i, b := range setup.Bones {
		sk.Bones[i] = Bone{Name: b.Name, Parent: b.Parent}
		bindPoses[i] = Matrix(b.BindPose)
		invBindPoses[i] = Matrix(b.InvBindPose)
	}

	start := m.matrices.Len()
	m.matrices.Append(bindPoses...)
	m.matrices.Append(invBindPoses...)
	sk.Matrices = pool.Slice{Start: start, Length: numBones * 2}

	m.Registry.Add(setup.Locator, id, label)
	return id, nil
}

// CreateInstance allocates an instance slot binding libID (and
// optionally skelID). No sample/skin-matrix storage is reserved here;
// that happens per-frame in frame.Orchestrator.AddActiveInstance.
func (m *Manager) CreateInstance(libID, skelID idalloc.ID) (idalloc.ID, error) {
	id, inst, ok := m.insts.Alloc()
	if !ok {
		log.Warn("CreateInstance: instance slot pool exhausted")
		return idalloc.Invalid, ErrPoolExhausted
	}
	inst.Library = libID
	inst.Skeleton = skelID
	return id, nil
}

// Destroy removes every id registered under label from the registry and
// dispatches each to its type-specific destructor, in registry return
// order.
func (m *Manager) Destroy(label registry.Label) {
	ids := m.Registry.Remove(label)
	for _, id := range ids {
		switch id.Type() {
		case TypeLibrary:
			m.destroyLibrary(id)
		case TypeSkeleton:
			m.destroySkeleton(id)
		case TypeInstance:
			m.destroyInstance(id)
		}
	}
}

func (m *Manager) destroyInstance(id idalloc.ID) {
	m.insts.Free(id)
}

// WriteKeys copies buf verbatim into the library's key slice. buf's
// length must exactly equal lib.Keys.Length * sizeof(key element);
// a mismatch is a programming error per §4.2.6, asserted only in debug
// builds (assert.Enabled) and otherwise left unreported.
func (m *Manager) WriteKeys(id idalloc.ID, buf []byte) {
	lib, ok := m.libs.Lookup(id)
	if !ok {
		log.Warn("WriteKeys: unknown library id")
		return
	}
	elemSize := 4
	if m.keyElem == KeyQuantizedInt16 {
		elemSize = 2
	}
	assert.That(len(buf) == lib.Keys.Length*elemSize, "WriteKeys byte count must match library key size")
	if len(buf) != lib.Keys.Length*elemSize {
		return
	}
	if m.keyElem == KeyQuantizedInt16 {
		dst := m.keysI16.View(lib.Keys)
		for i := range dst {
			dst[i] = int16(binary.LittleEndian.Uint16(buf[2*i:]))
		}
	} else {
		dst := m.keysF32.View(lib.Keys)
		for i := range dst {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
		}
	}
}

func (m *Manager) keysRemaining() int {
	if m.keyElem == KeyQuantizedInt16 {
		return m.keysI16.Remaining()
	}
	return m.keysF32.Remaining()
}

func (m *Manager) usedKeys() int {
	if m.keyElem == KeyQuantizedInt16 {
		return m.keysI16.Used()
	}
	return m.keysF32.Used()
}

func (m *Manager) reserveKeys(n int) {
	if m.keyElem == KeyQuantizedInt16 {
		m.keysI16.Reserve(n)
	} else {
		m.keysF32.Reserve(n)
	}
}

// setKeyFloat seeds one raw key element with the rest-pose fallback
// value v, encoding through magnitude for quantized storage so that
// KeyFloat()*curve.Magnitude reproduces v until write_keys overrides it.
func (m *Manager) setKeyFloat(off int, v float32, magnitude float32) {
	if m.keyElem == KeyQuantizedInt16 {
		raw := int16(math32.Round(v / magnitude))
		m.keysI16.View(pool.Slice{Start: off, Length: 1})[0] = raw
		return
	}
	m.keysF32.View(pool.Slice{Start: off, Length: 1})[0] = v
}
