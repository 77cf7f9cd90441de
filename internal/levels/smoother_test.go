package levels

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matiaszanolli/auralis-go/internal/dsp"
)

func toneAt(amp float64, frames int) []float32 {
	out := make([]float32, frames)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*440*float64(i)/44100))
	}
	return out
}

func TestFirstChunkEstablishesBaseline(t *testing.T) {
	t.Parallel()

	s := NewSmoother(1.5, nil)
	chunk := toneAt(0.3, 4410)
	before := append([]float32(nil), chunk...)

	gain, adjusted := s.SmoothTransition(chunk, 0)
	assert.Zero(t, gain)
	assert.False(t, adjusted)
	assert.Equal(t, before, chunk, "first chunk is emitted unchanged")
	assert.Len(t, s.History(), 1)
}

func TestSmallTransitionUnchanged(t *testing.T) {
	t.Parallel()

	s := NewSmoother(1.5, nil)
	s.SmoothTransition(toneAt(0.3, 4410), 0)

	chunk := toneAt(0.32, 4410) // about +0.56 dB
	before := append([]float32(nil), chunk...)
	gain, adjusted := s.SmoothTransition(chunk, 1)
	assert.Zero(t, gain)
	assert.False(t, adjusted)
	assert.Equal(t, before, chunk)
}

func TestLargeJumpClampedToCap(t *testing.T) {
	t.Parallel()

	s := NewSmoother(1.5, nil)
	s.SmoothTransition(toneAt(0.1, 4410), 0)

	// +12 dB jump gets pulled back to exactly +1.5 dB.
	chunk := toneAt(0.4, 4410)
	gain, adjusted := s.SmoothTransition(chunk, 1)
	assert.True(t, adjusted)
	assert.Less(t, gain, 0.0)

	history := s.History()
	require.Len(t, history, 2)
	assert.InDelta(t, 1.5, history[1]-history[0], 0.01)
}

func TestLargeDropClampedToCap(t *testing.T) {
	t.Parallel()

	s := NewSmoother(1.5, nil)
	s.SmoothTransition(toneAt(0.4, 4410), 0)

	chunk := toneAt(0.05, 4410)
	gain, adjusted := s.SmoothTransition(chunk, 1)
	assert.True(t, adjusted)
	assert.Greater(t, gain, 0.0)

	history := s.History()
	assert.InDelta(t, -1.5, history[1]-history[0], 0.01)
}

// Smoother bound property: consecutive recorded RMS values never differ by
// more than the cap.
func TestHistoryBoundProperty(t *testing.T) {
	t.Parallel()

	s := NewSmoother(1.5, nil)
	amps := []float64{0.05, 0.4, 0.06, 0.5, 0.45, 0.02, 0.3, 0.31, 0.9, 0.1}
	for i, amp := range amps {
		s.SmoothTransition(toneAt(amp, 4410), i)
	}

	history := s.History()
	require.Len(t, history, len(amps))
	for i := 1; i < len(history); i++ {
		assert.LessOrEqual(t, math.Abs(history[i]-history[i-1]), 1.5+0.01,
			"transition %d", i)
	}
}

func TestHistoryLengthTracksEmittedChunks(t *testing.T) {
	t.Parallel()

	s := NewSmoother(1.5, nil)
	for i := 0; i < 7; i++ {
		s.SmoothTransition(toneAt(0.1+0.1*float64(i%3), 4410), i)
	}
	assert.Len(t, s.History(), 7)
	assert.Len(t, s.GainAdjustments(), 7)
}

func TestSmootherNeverResizesChunk(t *testing.T) {
	t.Parallel()

	s := NewSmoother(1.5, nil)
	s.SmoothTransition(toneAt(0.05, 4410), 0)
	chunk := toneAt(0.5, 4410)
	s.SmoothTransition(chunk, 1)
	assert.Len(t, chunk, 4410)
}

func TestReset(t *testing.T) {
	t.Parallel()

	s := NewSmoother(1.5, nil)
	s.SmoothTransition(toneAt(0.3, 4410), 0)
	s.SmoothTransition(toneAt(0.3, 4410), 1)
	s.Reset()
	assert.Empty(t, s.History())

	// Next chunk re-establishes the baseline without adjustment.
	chunk := toneAt(0.9, 4410)
	gain, adjusted := s.SmoothTransition(chunk, 0)
	assert.Zero(t, gain)
	assert.False(t, adjusted)
}

func TestStatistics(t *testing.T) {
	t.Parallel()

	s := NewSmoother(1.5, nil)
	assert.Zero(t, s.Statistics().TotalChunks)

	s.SmoothTransition(toneAt(0.05, 4410), 0)
	s.SmoothTransition(toneAt(0.5, 4410), 1) // forces an adjustment

	stats := s.Statistics()
	assert.Equal(t, 2, stats.TotalChunks)
	assert.Equal(t, 1, stats.TotalAdjustments)
	assert.Greater(t, stats.MaxGainAdjustment, 0.01)
	assert.LessOrEqual(t, stats.MinRMS, stats.MaxRMS)
}

func TestAdjustedRMSMatchesRecorded(t *testing.T) {
	t.Parallel()

	s := NewSmoother(1.5, nil)
	s.SmoothTransition(toneAt(0.1, 4410), 0)
	chunk := toneAt(0.4, 4410)
	s.SmoothTransition(chunk, 1)

	history := s.History()
	assert.InDelta(t, history[1], dsp.RMSDb(chunk), 1e-6,
		"recorded RMS is measured after the gain is applied")
}
