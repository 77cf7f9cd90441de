package dsp

import "math"

// biquad holds one second-order filter section. Coefficients and state run
// in float64; samples enter and leave as float32, so the widening is
// explicit at this boundary and the buffer element type never changes.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	z1, z2     float64
}

// process filters one sample using transposed direct form II.
func (f *biquad) process(x float64) float64 {
	y := f.b0*x + f.z1
	f.z1 = f.b1*x - f.a1*y + f.z2
	f.z2 = f.b2*x - f.a2*y
	return y
}

// clampFreq keeps a cutoff within (0, Nyquist) the way the frequency is
// normalized for design.
func clampFreq(freqHz float64, sampleRate int) float64 {
	nyquist := float64(sampleRate) / 2
	return math.Min(0.99*nyquist, math.Max(0.01*nyquist, freqHz))
}

// newButterLowpass designs a 2nd-order Butterworth low-pass section via the
// bilinear transform.
func newButterLowpass(freqHz float64, sampleRate int) biquad {
	k := math.Tan(math.Pi * clampFreq(freqHz, sampleRate) / float64(sampleRate))
	norm := 1.0 / (1.0 + math.Sqrt2*k + k*k)
	return biquad{
		b0: k * k * norm,
		b1: 2 * k * k * norm,
		b2: k * k * norm,
		a1: 2 * (k*k - 1) * norm,
		a2: (1 - math.Sqrt2*k + k*k) * norm,
	}
}

// newButterHighpass designs a 2nd-order Butterworth high-pass section.
func newButterHighpass(freqHz float64, sampleRate int) biquad {
	k := math.Tan(math.Pi * clampFreq(freqHz, sampleRate) / float64(sampleRate))
	norm := 1.0 / (1.0 + math.Sqrt2*k + k*k)
	return biquad{
		b0: norm,
		b1: -2 * norm,
		b2: norm,
		a1: 2 * (k*k - 1) * norm,
		a2: (1 - math.Sqrt2*k + k*k) * norm,
	}
}

// filterBand extracts a frequency band from interleaved samples, running an
// independent filter chain per channel. The result has the input's length
// and element type.
func filterBand(samples []float32, channels int, design func() []biquad) []float32 {
	out := make([]float32, len(samples))
	for c := 0; c < channels; c++ {
		chain := design()
		for i := c; i < len(samples); i += channels {
			x := float64(samples[i])
			for s := range chain {
				x = chain[s].process(x)
			}
			out[i] = float32(x)
		}
	}
	return out
}

// lowpassBand extracts content below freqHz.
func lowpassBand(samples []float32, channels int, freqHz float64, sampleRate int) []float32 {
	return filterBand(samples, channels, func() []biquad {
		return []biquad{newButterLowpass(freqHz, sampleRate)}
	})
}

// highpassBand extracts content above freqHz.
func highpassBand(samples []float32, channels int, freqHz float64, sampleRate int) []float32 {
	return filterBand(samples, channels, func() []biquad {
		return []biquad{newButterHighpass(freqHz, sampleRate)}
	})
}

// bandpassBand extracts content between lowHz and highHz as a
// high-pass/low-pass cascade.
func bandpassBand(samples []float32, channels int, lowHz, highHz float64, sampleRate int) []float32 {
	if lowHz >= highHz {
		lowHz, highHz = highHz*0.9, lowHz*1.1
	}
	return filterBand(samples, channels, func() []biquad {
		return []biquad{
			newButterHighpass(lowHz, sampleRate),
			newButterLowpass(highHz, sampleRate),
		}
	})
}
