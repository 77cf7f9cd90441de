package dsp

import "math"

// Parallel EQ band edges in Hz. Bands are extracted with gentle 2nd-order
// Butterworth slopes and added back to the dry signal, which preserves
// phase coherence better than serial EQ.
const (
	bassShelfHz   = 120.0
	lowMidLowHz   = 120.0
	lowMidHighHz  = 500.0
	midLowHz      = 500.0
	midHighHz     = 2000.0
	highMidLowHz  = 2000.0
	highMidHighHz = 6000.0
	trebleShelfHz = 6000.0
)

// addBand mixes an extracted band back into the dry signal at boost dB. A
// boost of 0 dB adds nothing; negative boosts subtract the band (parallel
// cut).
func addBand(dry, band []float32, boostDb float64) []float32 {
	if boostDb == 0 {
		return dry
	}
	boostDiff := float32(math.Pow(10, boostDb/20) - 1.0)
	out := make([]float32, len(dry))
	for i := range dry {
		out[i] = dry[i] + band[i]*boostDiff
	}
	return out
}

// applyParallelEQ runs the five-band parallel EQ. Band gains are the
// parameter adjustments scaled by EQ intensity and the user intensity.
func applyParallelEQ(samples []float32, channels, sampleRate int, params ProcessingParameters, intensity float64) []float32 {
	scale := params.EQIntensity * intensity
	if scale == 0 {
		return samples
	}

	out := samples
	if db := params.BassAdjustment * scale; db != 0 {
		band := lowpassBand(out, channels, bassShelfHz, sampleRate)
		out = addBand(out, band, db)
	}
	if db := params.LowMidAdjustment * scale; db != 0 {
		band := bandpassBand(out, channels, lowMidLowHz, lowMidHighHz, sampleRate)
		out = addBand(out, band, db)
	}
	if db := params.MidAdjustment * scale; db != 0 {
		band := bandpassBand(out, channels, midLowHz, midHighHz, sampleRate)
		out = addBand(out, band, db)
	}
	if db := params.HighMidAdjustment * scale; db != 0 {
		band := bandpassBand(out, channels, highMidLowHz, highMidHighHz, sampleRate)
		out = addBand(out, band, db)
	}
	if db := params.TrebleAdjustment * scale; db != 0 {
		band := highpassBand(out, channels, trebleShelfHz, sampleRate)
		out = addBand(out, band, db)
	}
	return out
}
