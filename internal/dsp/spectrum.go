package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

const rmsEpsilon = 1e-10

// RMS returns the root-mean-square of samples.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// RMSDb returns the RMS level of samples in dB.
func RMSDb(samples []float32) float64 {
	return 20 * math.Log10(RMS(samples)+rmsEpsilon)
}

// PeakDb returns the absolute peak level of samples in dB.
func PeakDb(samples []float32) float64 {
	var peak float64
	for _, s := range samples {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	return 20 * math.Log10(peak+rmsEpsilon)
}

// CrestDb returns the crest factor (peak over RMS) of samples in dB.
func CrestDb(samples []float32) float64 {
	return PeakDb(samples) - RMSDb(samples)
}

// SpectralCentroid returns the power-weighted mean frequency of a mono
// buffer in Hz. The transform runs over the whole buffer so the centroid
// sees the same audio the level and crest features do; weighting by power
// keeps the unwindowed transform's leakage from pulling a pure tone's
// centroid away from its frequency.
func SpectralCentroid(mono []float32, sampleRate int) float64 {
	n := len(mono)
	if n < 2 {
		return 0
	}

	in := make([]float64, n)
	for i, s := range mono {
		in[i] = float64(s)
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, in)

	binHz := float64(sampleRate) / float64(n)
	var weighted, total float64
	for i, c := range coeffs {
		power := real(c)*real(c) + imag(c)*imag(c)
		weighted += float64(i) * binHz * power
		total += power
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

// energyLevel buckets an RMS level into the categorical energy dimension.
func energyLevel(rmsDb float64) float64 {
	switch {
	case rmsDb < -20:
		return 0.3 // low
	case rmsDb < -12:
		return 0.5 // medium
	default:
		return 0.8 // high
	}
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

// AnalyzeSpectrumPosition extracts the five spectrum features from an
// interleaved buffer. Multichannel input is downmixed for analysis only.
//
// Scales: RMS -30 dB..-10 dB maps to input level 0..1; crest 6 dB..18 dB to
// dynamic range 0..1; centroid 1 kHz..4 kHz to spectral balance 0..1.
func AnalyzeSpectrumPosition(samples []float32, sampleRate, channels int) SpectrumPosition {
	mono := samples
	if channels > 1 {
		frames := len(samples) / channels
		mono = make([]float32, frames)
		for i := 0; i < frames; i++ {
			var sum float32
			for c := 0; c < channels; c++ {
				sum += samples[i*channels+c]
			}
			mono[i] = sum / float32(channels)
		}
	}

	rmsDb := RMSDb(mono)
	crestDb := CrestDb(mono)
	centroid := SpectralCentroid(mono, sampleRate)

	inputLevel := clamp01((rmsDb + 30.0) / 20.0)
	dynamicRange := clamp01((crestDb - 6.0) / 12.0)
	spectralBalance := clamp01((centroid - 1000.0) / 3000.0)
	energy := energyLevel(rmsDb)

	// High dynamic range + centered spectrum reads as sparse (classical);
	// low dynamic range + wide spectrum as dense (electronic/metal).
	density := clamp01(0.5 + (1.0-dynamicRange)*0.3 + (spectralBalance-0.5)*0.2)

	return SpectrumPosition{
		InputLevel:      inputLevel,
		DynamicRange:    dynamicRange,
		SpectralBalance: spectralBalance,
		Energy:          energy,
		Density:         density,
	}
}

// CalculateParameters interpolates processing parameters for a spectrum
// position. Weights are inverse-distance to each anchor, the user's preset
// weight is doubled, and content modifiers are applied on top.
func CalculateParameters(position SpectrumPosition, userPreset Preset) ProcessingParameters {
	weights := presetWeights(position, userPreset)

	var result ProcessingParameters
	for preset, w := range weights {
		result.scaleAdd(presetAnchors[preset].Parameters, w)
	}

	return applyContentModifiers(result, position, userPreset)
}

// presetWeights computes normalized inverse-distance weights for every
// anchor.
func presetWeights(position SpectrumPosition, userPreset Preset) map[Preset]float64 {
	weights := make(map[Preset]float64, len(presetAnchors))
	var totalWeight float64

	for preset, anchor := range presetAnchors {
		a := anchor.Position
		dist := math.Sqrt(
			(position.InputLevel-a.InputLevel)*(position.InputLevel-a.InputLevel) +
				(position.DynamicRange-a.DynamicRange)*(position.DynamicRange-a.DynamicRange) +
				(position.SpectralBalance-a.SpectralBalance)*(position.SpectralBalance-a.SpectralBalance) +
				(position.Energy-a.Energy)*(position.Energy-a.Energy) +
				(position.Density-a.Density)*(position.Density-a.Density))

		// Closer anchors dominate; epsilon avoids division by zero.
		w := 1.0 / (dist + 0.1)
		if preset == userPreset {
			w *= 2.0
		}
		weights[preset] = w
		totalWeight += w
	}

	for preset := range weights {
		weights[preset] /= totalWeight
	}
	return weights
}
