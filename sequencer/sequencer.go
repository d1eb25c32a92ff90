// Package sequencer implements the per-instance priority-blending
// sequencer: an ordered list of scheduled animation jobs that clips its
// neighbors on insertion, fades at track boundaries, and produces a
// mixed sample vector at any query time.
package sequencer

import (
	"math"

	"github.com/floooh/oryol-animation/assert"
	"github.com/floooh/oryol-animation/manager"
	"github.com/floooh/oryol-animation/math32"
)

// JobID is a process-wide monotonic counter, distinct from the
// generation-tagged resource ids the manager hands out: jobs are never
// pooled or recycled, so a flat counter is all identity they need.
type JobID uint32

// InvalidJobID is returned when a job could not be scheduled.
const InvalidJobID JobID = 0

const epsilon = 1e-6

// Job is the creation-time contract for Sequencer.Add, one scheduled
// playback of a clip.
type Job struct {
	ClipIndex           int
	TrackIndex           int
	MixWeight            float32
	StartTime            float32
	Duration             float32
	DurationIsLoopCount  bool
	FadeIn               float32
	FadeOut              float32
}

// Item is one scheduled or running job in a Sequencer's item list.
type Item struct {
	JobID      JobID
	Valid      bool
	ClipIndex  int
	TrackIndex int
	MixWeight  float32
	AbsStart   float32
	AbsFadeIn  float32
	AbsFadeOut float32
	AbsEnd     float32
}

// Sequencer holds a bounded ordered list of items for one animation
// instance.
type Sequencer struct {
	items    []Item
	capacity int
}

// New creates a Sequencer with the given item-list capacity.
func New(capacity int) *Sequencer {
	return &Sequencer{
		items:    make([]Item, 0, capacity),
		capacity: capacity,
	}
}

// Len returns the current item count, valid and invalid alike.
func (s *Sequencer) Len() int {
	return len(s.items)
}

// Items returns the backing item list in (track, abs_start) order, for
// inspection by tests and callers that need to enumerate jobs.
func (s *Sequencer) Items() []Item {
	return s.items
}

// Add inserts a new item for job, ordered by (track, abs_start), and
// clips any overlapping neighbor on the same track. Returns false
// without effect if the list is already at capacity.
func (s *Sequencer) Add(currentTime float32, jobID JobID, job Job, clipDuration float32) bool {
	assert.That(job.TrackIndex >= 0, "job track index must be >= 0")
	if len(s.items) >= s.capacity {
		return false
	}

	absStart := currentTime + job.StartTime
	absFadeIn := absStart + job.FadeIn

	var absEnd float32
	switch {
	case job.Duration <= 0:
		absEnd = float32(math.Inf(1))
	case job.DurationIsLoopCount:
		absEnd = absStart + job.Duration*clipDuration
	default:
		absEnd = absStart + job.Duration
	}
	absFadeOut := absEnd - job.FadeOut

	insertAt := len(s.items)
	for i := range s.items {
		it := &s.items[i]
		if !it.Valid {
			continue
		}
		if job.TrackIndex < it.TrackIndex || (job.TrackIndex == it.TrackIndex && absStart <= it.AbsStart) {
			insertAt = i
			break
		}
	}

	newItem := Item{
		JobID:      jobID,
		Valid:      true,
		ClipIndex:  job.ClipIndex,
		TrackIndex: job.TrackIndex,
		MixWeight:  job.MixWeight,
		AbsStart:   absStart,
		AbsFadeIn:  absFadeIn,
		AbsFadeOut: absFadeOut,
		AbsEnd:     absEnd,
	}

	s.items = append(s.items, Item{})
	copy(s.items[insertAt+1:], s.items[insertAt:])
	s.items[insertAt] = newItem

	for i := range s.items {
		if i == insertAt {
			continue
		}
		it := &s.items[i]
		if !it.Valid || it.TrackIndex != job.TrackIndex {
			continue
		}
		if i < insertAt {
			if it.AbsEnd >= newItem.AbsFadeIn {
				it.AbsFadeOut = newItem.AbsStart
				it.AbsEnd = newItem.AbsFadeIn
			}
		} else {
			if it.AbsStart <= newItem.AbsFadeOut {
				it.AbsStart = newItem.AbsFadeOut
				it.AbsFadeIn = newItem.AbsEnd
			}
		}
		if it.AbsStart >= it.AbsEnd {
			it.Valid = false
		}
	}

	return true
}

// Stop invalidates or fades out the item matching jobID, if any.
func (s *Sequencer) Stop(currentTime float32, jobID JobID, allowFadeOut bool) {
	for i := range s.items {
		it := &s.items[i]
		if it.JobID != jobID {
			continue
		}
		stopItem(it, currentTime, allowFadeOut)
		return
	}
}

// StopTrack applies the stop rule to every valid item on track.
func (s *Sequencer) StopTrack(currentTime float32, track int, allowFadeOut bool) {
	for i := range s.items {
		it := &s.items[i]
		if !it.Valid || it.TrackIndex != track {
			continue
		}
		stopItem(it, currentTime, allowFadeOut)
	}
}

// StopAll applies the stop rule to every valid item.
func (s *Sequencer) StopAll(currentTime float32, allowFadeOut bool) {
	for i := range s.items {
		it := &s.items[i]
		if !it.Valid {
			continue
		}
		stopItem(it, currentTime, allowFadeOut)
	}
}

func stopItem(it *Item, currentTime float32, allowFadeOut bool) {
	if currentTime < it.AbsStart {
		it.Valid = false
		return
	}
	if currentTime < it.AbsEnd {
		if allowFadeOut {
			tail := it.AbsEnd - it.AbsFadeOut
			it.AbsFadeOut = currentTime
			it.AbsEnd = currentTime + tail
		} else {
			it.AbsFadeOut = currentTime
			it.AbsEnd = currentTime
		}
	}
	if it.AbsStart >= it.AbsEnd {
		it.Valid = false
	}
}

// GarbageCollect removes every item that is invalid or has already
// ended, traversing from the end so removal shifts the least data.
func (s *Sequencer) GarbageCollect(currentTime float32) {
	for i := len(s.items) - 1; i >= 0; i-- {
		it := s.items[i]
		if !it.Valid || it.AbsEnd < currentTime {
			s.items = append(s.items[:i], s.items[i+1:]...)
		}
	}
}

// Eval samples and mixes every active item against lib's clips at
// currentTime, writing lib.SampleStride floats into out in curve-layout
// order. out must already be sized to lib.SampleStride.
func (s *Sequencer) Eval(mgr *manager.Manager, lib *manager.Library, currentTime float32, out []float32) {
	for i := range out {
		out[i] = 0
	}

	processed := 0
	for idx := range s.items {
		it := &s.items[idx]
		if !it.Valid || currentTime < it.AbsStart || currentTime >= it.AbsEnd {
			continue
		}

		clip := mgr.ClipAt(lib.Clips.Start + it.ClipIndex)

		var key0, key1 int
		var keyPos float32
		if clip.Length > 0 {
			clipTime := currentTime - it.AbsStart
			k0f := math32.Floor(clipTime / clip.KeyDuration)
			keyPos = (clipTime - k0f*clip.KeyDuration) / clip.KeyDuration
			key0 = clampKeyLoop(int(k0f), clip.Length)
			key1 = clampKeyLoop(key0+1, clip.Length)
		}

		w := float32(1)
		if processed > 0 {
			w = effectiveWeight(it, currentTime)
		}

		sampleOffset := 0
		for ci := 0; ci < clip.Curves.Length; ci++ {
			curve := mgr.CurveAt(clip.Curves.Start + ci)
			n := curve.Format.NumValues()

			var vals [4]float32
			if curve.Static {
				vals = curve.StaticValue
			} else {
				row0 := clip.Keys.Start + key0*clip.KeyStride + curve.KeyIndex
				row1 := clip.Keys.Start + key1*clip.KeyStride + curve.KeyIndex
				for c := 0; c < n; c++ {
					a := mgr.KeyFloat(row0+c) * curve.Magnitude
					b := mgr.KeyFloat(row1+c) * curve.Magnitude
					vals[c] = a + (b-a)*keyPos
				}
			}

			if processed == 0 {
				copy(out[sampleOffset:sampleOffset+n], vals[:n])
			} else {
				for c := 0; c < n; c++ {
					out[sampleOffset+c] += (vals[c] - out[sampleOffset+c]) * w
				}
			}
			sampleOffset += n
		}
		processed++
	}
}

// effectiveWeight computes an item's mix weight at currentTime, scaled
// by its fade-in/fade-out envelope per §4.3.5.
func effectiveWeight(it *Item, t float32) float32 {
	w := it.MixWeight
	if t < it.AbsFadeIn {
		denom := it.AbsFadeIn - it.AbsStart
		if math32.Abs(denom) > epsilon {
			w *= (t - it.AbsStart) / denom
		}
	}
	if t > it.AbsFadeOut {
		denom := it.AbsEnd - it.AbsFadeOut
		if math32.Abs(denom) > epsilon {
			w *= (it.AbsEnd - t) / denom
		}
	}
	return math32.Clamp(w, 0, 1)
}

// clampKeyLoop reduces k modulo length, always returning a non-negative
// index; this is the sequencer's hard-coded Loop wrap mode.
func clampKeyLoop(k, length int) int {
	if length <= 0 {
		return 0
	}
	k %= length
	if k < 0 {
		k += length
	}
	return k
}
