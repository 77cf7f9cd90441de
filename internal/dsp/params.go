// Package dsp implements the per-chunk mastering transform: content
// analysis onto a five-dimensional spectrum, preset anchor interpolation,
// content-aware parameter modifiers, and the parallel-EQ/dynamics/limiter
// signal path. Every function here is deterministic and side-effect free.
package dsp

// Preset names a mastering anchor on the processing spectrum.
type Preset string

const (
	PresetAdaptive Preset = "adaptive"
	PresetGentle   Preset = "gentle"
	PresetWarm     Preset = "warm"
	PresetBright   Preset = "bright"
	PresetPunchy   Preset = "punchy"
)

// Presets lists every selectable preset in a stable order.
func Presets() []Preset {
	return []Preset{PresetAdaptive, PresetGentle, PresetWarm, PresetBright, PresetPunchy}
}

// Valid reports whether p names a known preset.
func (p Preset) Valid() bool {
	switch p {
	case PresetAdaptive, PresetGentle, PresetWarm, PresetBright, PresetPunchy:
		return true
	}
	return false
}

// SpectrumPosition locates audio content on the processing spectrum.
// Each dimension ranges from 0.0 to 1.0.
type SpectrumPosition struct {
	InputLevel      float64 // 0.0 = very quiet, 1.0 = very loud
	DynamicRange    float64 // 0.0 = highly compressed, 1.0 = very dynamic
	SpectralBalance float64 // 0.0 = very dark, 1.0 = very bright
	Energy          float64 // 0.0 = calm/ambient, 1.0 = energetic
	Density         float64 // 0.0 = sparse, 1.0 = dense/complex
}

// ProcessingParameters are the calculated settings for one chunk. EQ
// adjustments are in dB; amounts are 0.0-1.0 wet blends.
type ProcessingParameters struct {
	BassAdjustment    float64
	LowMidAdjustment  float64
	MidAdjustment     float64
	HighMidAdjustment float64
	TrebleAdjustment  float64

	CompressionRatio     float64
	CompressionThreshold float64 // dB
	CompressionAmount    float64

	ExpansionAmount float64

	LimiterThreshold float64 // dB
	LimiterAmount    float64

	InputGain       float64 // dB
	OutputTargetRMS float64 // dB

	EQIntensity       float64
	DynamicsIntensity float64
}

// scaleAdd accumulates weighted anchor parameters into p.
func (p *ProcessingParameters) scaleAdd(a ProcessingParameters, w float64) {
	p.BassAdjustment += a.BassAdjustment * w
	p.LowMidAdjustment += a.LowMidAdjustment * w
	p.MidAdjustment += a.MidAdjustment * w
	p.HighMidAdjustment += a.HighMidAdjustment * w
	p.TrebleAdjustment += a.TrebleAdjustment * w
	p.CompressionRatio += a.CompressionRatio * w
	p.CompressionThreshold += a.CompressionThreshold * w
	p.CompressionAmount += a.CompressionAmount * w
	p.ExpansionAmount += a.ExpansionAmount * w
	p.LimiterThreshold += a.LimiterThreshold * w
	p.LimiterAmount += a.LimiterAmount * w
	p.InputGain += a.InputGain * w
	p.OutputTargetRMS += a.OutputTargetRMS * w
	p.EQIntensity += a.EQIntensity * w
	p.DynamicsIntensity += a.DynamicsIntensity * w
}
