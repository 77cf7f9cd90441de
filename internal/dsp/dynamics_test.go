package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompressorGainDb(t *testing.T) {
	t.Parallel()

	// Well below threshold: no reduction.
	assert.Zero(t, compressorGainDb(-40, -20, 4))

	// Well above threshold: slope follows the ratio.
	got := compressorGainDb(-8, -20, 4)
	assert.InDelta(t, (1.0/4-1)*12, got, 1e-9)

	// Inside the knee: between the two slopes.
	knee := compressorGainDb(-20, -20, 4)
	assert.Less(t, knee, 0.0)
	assert.Greater(t, knee, (1.0/4-1)*kneeWidthDb/2)
}

func TestApplyCompressorReducesLoudMaterial(t *testing.T) {
	t.Parallel()

	loud := sine(44100, 44100, 440, 0.9)
	out := applyCompressor(loud, 1, 44100, -20, 4, 1.0)
	assert.Less(t, RMSDb(out), RMSDb(loud))
}

func TestApplyCompressorMixZeroIsIdentity(t *testing.T) {
	t.Parallel()

	in := sine(4410, 44100, 440, 0.9)
	assert.Equal(t, in, applyCompressor(in, 1, 44100, -20, 4, 0))
}

func TestApplyCompressorWetDryMonotonic(t *testing.T) {
	t.Parallel()

	in := sine(44100, 44100, 440, 0.9)
	half := applyCompressor(in, 1, 44100, -20, 4, 0.5)
	full := applyCompressor(in, 1, 44100, -20, 4, 1.0)
	assert.Greater(t, RMSDb(half), RMSDb(full))
	assert.Less(t, RMSDb(half), RMSDb(in))
}

func TestUpwardExpanderLiftsQuietMaterial(t *testing.T) {
	t.Parallel()

	quiet := sine(44100, 44100, 440, 0.05)
	out := applyUpwardExpander(quiet, 1, 44100, -12, 1.0)
	assert.Greater(t, RMSDb(out), RMSDb(quiet))

	// Lift never exceeds the 6 dB cap.
	assert.LessOrEqual(t, RMSDb(out), RMSDb(quiet)+6.5)
}

func TestUpwardExpanderBoostDb(t *testing.T) {
	t.Parallel()

	assert.Zero(t, upwardExpanderBoostDb(-10, -12))
	assert.InDelta(t, 2.0, upwardExpanderBoostDb(-16, -12), 1e-9)
	assert.InDelta(t, 6.0, upwardExpanderBoostDb(-40, -12), 1e-9)
}

func TestLimiterCapsPeaks(t *testing.T) {
	t.Parallel()

	in := sine(44100, 44100, 440, 0.99)
	out := applyLimiter(in, 1, 44100, -6, 1.0)

	threshold := math.Pow(10, -6.0/20)
	var peak float64
	for _, s := range out {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	// Look-ahead plus instant attack holds peaks essentially at the
	// threshold; release tails allow a hair over.
	assert.LessOrEqual(t, peak, threshold*1.02)
}

func TestLimiterBelowThresholdIsTransparent(t *testing.T) {
	t.Parallel()

	in := sine(44100, 44100, 440, 0.1)
	out := applyLimiter(in, 1, 44100, -6, 1.0)
	assert.InDelta(t, RMSDb(in), RMSDb(out), 0.1)
}
