package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLowpassAttenuatesHighFrequencies(t *testing.T) {
	t.Parallel()

	high := sine(44100, 44100, 8000, 0.5)
	out := lowpassBand(high, 1, 120, 44100)
	assert.Less(t, RMSDb(out), RMSDb(high)-30,
		"8 kHz content must be far below a 120 Hz lowpass")

	low := sine(44100, 44100, 50, 0.5)
	out = lowpassBand(low, 1, 120, 44100)
	assert.InDelta(t, RMSDb(low), RMSDb(out), 3.0,
		"50 Hz content passes a 120 Hz lowpass nearly unchanged")
}

func TestHighpassAttenuatesLowFrequencies(t *testing.T) {
	t.Parallel()

	low := sine(44100, 44100, 100, 0.5)
	out := highpassBand(low, 1, 6000, 44100)
	assert.Less(t, RMSDb(out), RMSDb(low)-30)

	high := sine(44100, 44100, 12000, 0.5)
	out = highpassBand(high, 1, 6000, 44100)
	assert.InDelta(t, RMSDb(high), RMSDb(out), 3.0)
}

func TestBandpassSelectsBand(t *testing.T) {
	t.Parallel()

	inBand := sine(44100, 44100, 1000, 0.5)
	out := bandpassBand(inBand, 1, 500, 2000, 44100)
	assert.InDelta(t, RMSDb(inBand), RMSDb(out), 3.0)

	below := sine(44100, 44100, 60, 0.5)
	out = bandpassBand(below, 1, 500, 2000, 44100)
	assert.Less(t, RMSDb(out), RMSDb(below)-20)

	above := sine(44100, 44100, 15000, 0.5)
	out = bandpassBand(above, 1, 500, 2000, 44100)
	assert.Less(t, RMSDb(out), RMSDb(above)-20)
}

// Filters keep the buffer's element type and length; per-channel state does
// not leak across channels.
func TestFilterBandShapeAndChannelIsolation(t *testing.T) {
	t.Parallel()

	frames := 4096
	left := sine(frames, 44100, 100, 0.5)
	interleaved := make([]float32, frames*2)
	for i := 0; i < frames; i++ {
		interleaved[2*i] = left[i]
		interleaved[2*i+1] = 0 // silent right channel
	}

	out := lowpassBand(interleaved, 2, 120, 44100)
	assert.Len(t, out, len(interleaved))

	var rightEnergy float64
	for i := 0; i < frames; i++ {
		rightEnergy += float64(out[2*i+1]) * float64(out[2*i+1])
	}
	assert.Zero(t, rightEnergy, "silent channel must stay silent")
}

func TestAddBandZeroBoostIsIdentity(t *testing.T) {
	t.Parallel()

	dry := sine(1024, 44100, 440, 0.5)
	band := lowpassBand(dry, 1, 120, 44100)
	out := addBand(dry, band, 0)
	assert.Equal(t, dry, out)
}

func TestParallelEQBoostRaisesBand(t *testing.T) {
	t.Parallel()

	bass := sine(44100, 44100, 80, 0.3)
	params := ProcessingParameters{BassAdjustment: 6.0, EQIntensity: 1.0}
	out := applyParallelEQ(bass, 1, 44100, params, 1.0)
	assert.Greater(t, RMSDb(out), RMSDb(bass)+2.0)

	// A band the content does not occupy leaves it nearly untouched.
	params = ProcessingParameters{TrebleAdjustment: 6.0, EQIntensity: 1.0}
	out = applyParallelEQ(bass, 1, 44100, params, 1.0)
	assert.InDelta(t, RMSDb(bass), RMSDb(out), 1.0)
}
