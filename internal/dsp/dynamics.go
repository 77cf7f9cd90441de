package dsp

import "math"

// Envelope follower time constants. The follower runs on the linked
// per-frame peak so stereo images do not wander under gain changes.
const (
	compAttackS  = 0.010
	compReleaseS = 0.100
	kneeWidthDb  = 6.0
)

// envelopeCoeff converts a time constant to a one-pole smoothing
// coefficient.
func envelopeCoeff(seconds float64, sampleRate int) float64 {
	if seconds <= 0 {
		return 0
	}
	return math.Exp(-1.0 / (seconds * float64(sampleRate)))
}

// frameLevel returns the peak absolute sample across a frame's channels.
func frameLevel(samples []float32, frame, channels int) float64 {
	var peak float64
	base := frame * channels
	for c := 0; c < channels; c++ {
		if a := math.Abs(float64(samples[base+c])); a > peak {
			peak = a
		}
	}
	return peak
}

// compressorGainDb computes the soft-knee gain reduction for a level in dB.
func compressorGainDb(levelDb, thresholdDb, ratio float64) float64 {
	if ratio <= 1 {
		return 0
	}
	over := levelDb - thresholdDb
	switch {
	case over <= -kneeWidthDb/2:
		return 0
	case over < kneeWidthDb/2:
		// Quadratic knee interpolation between unity and the ratio slope.
		x := over + kneeWidthDb/2
		return (1/ratio - 1) * x * x / (2 * kneeWidthDb)
	default:
		return (1/ratio - 1) * over
	}
}

// applyCompressor runs a soft-knee feed-forward compressor with a wet/dry
// mix. A mix of 0 returns the input unchanged.
func applyCompressor(samples []float32, channels, sampleRate int, thresholdDb, ratio, mix float64) []float32 {
	if mix <= 0 || ratio <= 1 {
		return samples
	}
	if mix > 1 {
		mix = 1
	}

	attack := envelopeCoeff(compAttackS, sampleRate)
	release := envelopeCoeff(compReleaseS, sampleRate)

	frames := len(samples) / channels
	out := make([]float32, len(samples))
	var env float64

	for i := 0; i < frames; i++ {
		level := frameLevel(samples, i, channels)
		if level > env {
			env = attack*env + (1-attack)*level
		} else {
			env = release*env + (1-release)*level
		}

		levelDb := 20 * math.Log10(env+rmsEpsilon)
		gain := math.Pow(10, compressorGainDb(levelDb, thresholdDb, ratio)/20)
		wet := mix*gain + (1 - mix)

		base := i * channels
		for c := 0; c < channels; c++ {
			out[base+c] = samples[base+c] * float32(wet)
		}
	}
	return out
}

// upwardExpanderBoostDb computes the upward gain for a level below the
// threshold: quiet passages are lifted toward the threshold, restoring
// dynamics crushed by heavy mastering. The lift is half the deficit, capped
// at 6 dB.
func upwardExpanderBoostDb(levelDb, thresholdDb float64) float64 {
	if levelDb >= thresholdDb {
		return 0
	}
	return math.Min((thresholdDb-levelDb)*0.5, 6.0)
}

// applyUpwardExpander lifts material below the threshold with a wet/dry
// mix. The compressor and expander never run together; the chunk processor
// picks one from the expansion amount.
func applyUpwardExpander(samples []float32, channels, sampleRate int, thresholdDb, mix float64) []float32 {
	if mix <= 0 {
		return samples
	}
	if mix > 1 {
		mix = 1
	}

	attack := envelopeCoeff(compAttackS, sampleRate)
	release := envelopeCoeff(compReleaseS, sampleRate)

	frames := len(samples) / channels
	out := make([]float32, len(samples))
	var env float64

	for i := 0; i < frames; i++ {
		level := frameLevel(samples, i, channels)
		if level > env {
			env = attack*env + (1-attack)*level
		} else {
			env = release*env + (1-release)*level
		}

		levelDb := 20 * math.Log10(env+rmsEpsilon)
		gain := math.Pow(10, upwardExpanderBoostDb(levelDb, thresholdDb)/20)
		wet := mix*gain + (1 - mix)

		base := i * channels
		for c := 0; c < channels; c++ {
			out[base+c] = samples[base+c] * float32(wet)
		}
	}
	return out
}
