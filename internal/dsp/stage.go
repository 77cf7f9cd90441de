package dsp

import (
	"math"

	"github.com/matiaszanolli/auralis-go/internal/errors"
)

const component = "dsp"

// Request describes one chunk transform. CoreStart/CoreEnd are frame
// indices of the core region within the buffer; the final output gain
// targets the core's RMS, not the context's.
type Request struct {
	Preset     Preset
	Intensity  float64
	SampleRate int
	Channels   int
	CoreStart  int
	CoreEnd    int
}

// Process masters one context-inclusive chunk. The output has the same
// shape and sample rate as the input. The same input, preset, and intensity
// always produce the same output.
func Process(samples []float32, req Request) ([]float32, error) {
	if len(samples) == 0 {
		return nil, errors.Newf("empty input buffer").
			Component(component).
			Category(errors.CategoryValidation).
			Build()
	}
	if req.Channels < 1 || req.SampleRate < 1 {
		return nil, errors.Newf("invalid shape: %d channels at %d Hz", req.Channels, req.SampleRate).
			Component(component).
			Category(errors.CategoryValidation).
			Build()
	}
	if !req.Preset.Valid() {
		return nil, errors.Newf("unknown preset %q", string(req.Preset)).
			Component(component).
			Category(errors.CategoryValidation).
			Context("preset", string(req.Preset)).
			Build()
	}
	intensity := math.Min(1, math.Max(0, req.Intensity))

	position := AnalyzeSpectrumPosition(samples, req.SampleRate, req.Channels)
	params := CalculateParameters(position, req.Preset)

	out := applyGainDb(samples, params.InputGain)
	out = applyParallelEQ(out, req.Channels, req.SampleRate, params, intensity)

	// Compression and expansion are mutually exclusive: the content rules
	// zero one of the amounts.
	if params.ExpansionAmount > 0 {
		out = applyUpwardExpander(out, req.Channels, req.SampleRate,
			params.CompressionThreshold, params.ExpansionAmount*intensity)
	} else {
		out = applyCompressor(out, req.Channels, req.SampleRate,
			params.CompressionThreshold, params.CompressionRatio,
			params.CompressionAmount*intensity)
	}

	out = applyLimiter(out, req.Channels, req.SampleRate,
		params.LimiterThreshold, params.LimiterAmount*intensity)

	out = normalizeCoreRMS(out, req, params.OutputTargetRMS, intensity)

	for _, s := range out {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			return nil, errors.Newf("transform produced non-finite samples").
				Component(component).
				Category(errors.CategoryDSP).
				Context("preset", string(req.Preset)).
				Build()
		}
	}
	return out, nil
}

// applyGainDb scales samples by a dB gain; 0 dB returns the input.
func applyGainDb(samples []float32, gainDb float64) []float32 {
	if gainDb == 0 {
		return samples
	}
	gain := float32(math.Pow(10, gainDb/20))
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = s * gain
	}
	return out
}

// normalizeCoreRMS brings the core region's RMS to the target, scaled by
// intensity so partial settings land between dry and target.
func normalizeCoreRMS(samples []float32, req Request, targetDb, intensity float64) []float32 {
	coreStart := req.CoreStart * req.Channels
	coreEnd := req.CoreEnd * req.Channels
	if coreStart < 0 {
		coreStart = 0
	}
	if coreEnd > len(samples) || coreEnd <= coreStart {
		coreEnd = len(samples)
	}

	currentDb := RMSDb(samples[coreStart:coreEnd])
	if currentDb <= -120 {
		return samples // silence, nothing to normalize
	}

	gainDb := (targetDb - currentDb) * intensity
	return applyGainDb(samples, gainDb)
}
