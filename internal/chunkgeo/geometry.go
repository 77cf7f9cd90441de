// Package chunkgeo provides chunk boundary and context-window arithmetic.
//
// Chunks are ChunkDuration seconds long and start ChunkInterval seconds
// apart, so adjacent chunks share an OverlapDuration region:
//
//	chunk 0:  0s-15s
//	chunk 1: 10s-25s  (5s overlap with chunk 0)
//	chunk 2: 20s-35s  (5s overlap with chunk 1)
//
// An extra ContextDuration of audio is loaded on each side of a chunk to
// feed stateful DSP and trimmed off before caching or emission.
package chunkgeo

import "math"

// Chunk timing constants in seconds. These are the single source of truth
// for chunk arithmetic; conf mirrors them for the wire surface.
const (
	ChunkDuration   = 15.0
	ChunkInterval   = 10.0
	OverlapDuration = ChunkDuration - ChunkInterval
	ContextDuration = 5.0
)

// Geometry computes chunk windows for one track.
type Geometry struct {
	totalDuration float64
	sampleRate    int
	totalChunks   int
}

// New creates a Geometry for a track of totalDuration seconds at sampleRate Hz.
func New(totalDuration float64, sampleRate int) *Geometry {
	total := int(math.Ceil(totalDuration / ChunkInterval))
	if total < 1 {
		total = 1
	}
	return &Geometry{
		totalDuration: totalDuration,
		sampleRate:    sampleRate,
		totalChunks:   total,
	}
}

// TotalChunks returns the number of chunks needed to cover the track.
func (g *Geometry) TotalChunks() int {
	return g.totalChunks
}

// TotalDuration returns the track duration in seconds.
func (g *Geometry) TotalDuration() float64 {
	return g.totalDuration
}

// SampleRate returns the track sample rate in Hz.
func (g *Geometry) SampleRate() int {
	return g.sampleRate
}

// IsLast reports whether chunkIndex is the final chunk.
func (g *Geometry) IsLast(chunkIndex int) bool {
	return chunkIndex == g.totalChunks-1
}

// Boundaries returns (loadStart, loadEnd, coreStart, coreEnd) in seconds for
// a chunk. With withContext the load window extends ContextDuration on each
// side, clamped to the track.
func (g *Geometry) Boundaries(chunkIndex int, withContext bool) (loadStart, loadEnd, coreStart, coreEnd float64) {
	coreStart = float64(chunkIndex) * ChunkInterval
	coreEnd = math.Min(coreStart+ChunkDuration, g.totalDuration)

	if withContext {
		loadStart = math.Max(0, coreStart-ContextDuration)
		loadEnd = math.Min(g.totalDuration, coreEnd+ContextDuration)
	} else {
		loadStart = coreStart
		loadEnd = coreEnd
	}
	return loadStart, loadEnd, coreStart, coreEnd
}

// BoundariesSamples returns the Boundaries window as frame indices.
func (g *Geometry) BoundariesSamples(chunkIndex int, withContext bool) (loadStart, loadEnd, coreStart, coreEnd int) {
	ls, le, cs, ce := g.Boundaries(chunkIndex, withContext)
	sr := float64(g.sampleRate)
	return int(ls * sr), int(le * sr), int(cs * sr), int(ce * sr)
}

// ContextTrimSamples returns the frame counts to drop from the leading and
// trailing edges of a processed buffer. Chunk 0 has no leading context and
// the last chunk has no trailing context.
func (g *Geometry) ContextTrimSamples(chunkIndex int) (trimStart, trimEnd int) {
	contextSamples := int(ContextDuration * float64(g.sampleRate))
	if chunkIndex > 0 {
		trimStart = contextSamples
	}
	if !g.IsLast(chunkIndex) {
		trimEnd = contextSamples
	}
	return trimStart, trimEnd
}

// OverlapSamples returns the number of frames adjacent chunks share.
func (g *Geometry) OverlapSamples() int {
	return int(OverlapDuration * float64(g.sampleRate))
}

// SegmentBoundaries returns the (start, end) frame indices that slice the
// emitted core segment out of a processed buffer of processedSamples frames.
// The leading context is dropped for every chunk after the first; the last
// chunk's end is derived from the remaining track duration.
func (g *Geometry) SegmentBoundaries(chunkIndex, processedSamples int) (start, end int) {
	contextSamples := int(ContextDuration * float64(g.sampleRate))

	if chunkIndex > 0 {
		start = contextSamples
	}

	if g.IsLast(chunkIndex) {
		chunkStart := float64(chunkIndex) * ChunkInterval
		remaining := math.Max(0, g.totalDuration-chunkStart)
		end = start + int(remaining*float64(g.sampleRate))
	} else {
		end = start + int(ChunkDuration*float64(g.sampleRate))
	}

	if end > processedSamples {
		end = processedSamples
	}
	if start > processedSamples {
		start = processedSamples
	}
	return start, end
}

// ChunkForPosition returns the index of the chunk whose stride interval
// contains the playback position, clamped to the valid range.
func (g *Geometry) ChunkForPosition(positionS float64) int {
	if positionS <= 0 {
		return 0
	}
	idx := int(positionS / ChunkInterval)
	if idx >= g.totalChunks {
		idx = g.totalChunks - 1
	}
	return idx
}
