package dsp

// Anchor pairs a spectrum position with the full parameter vector a preset
// represents. Presets act as anchor points for interpolation rather than
// rigid configurations; adding one is a source edit here.
type Anchor struct {
	Position   SpectrumPosition
	Parameters ProcessingParameters
}

// presetAnchors is the closed anchor table. Interpolation weights fall off
// with Euclidean distance from these positions.
var presetAnchors = map[Preset]Anchor{
	PresetAdaptive: {
		Position: SpectrumPosition{
			InputLevel:      0.5, // center/neutral
			DynamicRange:    0.8, // prefer preserving dynamics
			SpectralBalance: 0.5,
			Energy:          0.5,
			Density:         0.5,
		},
		Parameters: ProcessingParameters{
			BassAdjustment:       0.0,
			LowMidAdjustment:     0.0,
			MidAdjustment:        0.0,
			HighMidAdjustment:    0.0,
			TrebleAdjustment:     0.0,
			CompressionRatio:     1.5,
			CompressionThreshold: -26.0,
			CompressionAmount:    0.25,
			ExpansionAmount:      0.0,
			LimiterThreshold:     -4.0,
			LimiterAmount:        0.25,
			InputGain:            0.0,
			OutputTargetRMS:      -16.0,
			EQIntensity:          0.4,
			DynamicsIntensity:    0.25,
		},
	},
	PresetGentle: {
		Position: SpectrumPosition{
			InputLevel:      0.6, // well-leveled
			DynamicRange:    0.8, // preserve dynamics
			SpectralBalance: 0.6, // balanced, slightly bright
			Energy:          0.4,
			Density:         0.5,
		},
		Parameters: ProcessingParameters{
			BassAdjustment:       0.3,
			LowMidAdjustment:     0.0,
			MidAdjustment:        0.0,
			HighMidAdjustment:    0.2,
			TrebleAdjustment:     0.5,
			CompressionRatio:     1.8,
			CompressionThreshold: -20.0,
			CompressionAmount:    0.5,
			ExpansionAmount:      0.0,
			LimiterThreshold:     -2.0,
			LimiterAmount:        0.5,
			InputGain:            0.0,
			OutputTargetRMS:      -15.0,
			EQIntensity:          0.6,
			DynamicsIntensity:    0.5,
		},
	},
	PresetWarm: {
		Position: SpectrumPosition{
			InputLevel:      0.55,
			DynamicRange:    0.7,
			SpectralBalance: 0.35, // dark, low-mid weighted
			Energy:          0.45,
			Density:         0.55,
		},
		Parameters: ProcessingParameters{
			BassAdjustment:       1.2,
			LowMidAdjustment:     0.8,
			MidAdjustment:        0.2,
			HighMidAdjustment:    -0.3,
			TrebleAdjustment:     -0.8,
			CompressionRatio:     2.0,
			CompressionThreshold: -22.0,
			CompressionAmount:    0.45,
			ExpansionAmount:      0.0,
			LimiterThreshold:     -3.0,
			LimiterAmount:        0.45,
			InputGain:            0.0,
			OutputTargetRMS:      -15.5,
			EQIntensity:          0.65,
			DynamicsIntensity:    0.45,
		},
	},
	PresetBright: {
		Position: SpectrumPosition{
			InputLevel:      0.55,
			DynamicRange:    0.7,
			SpectralBalance: 0.75, // airy, presence forward
			Energy:          0.55,
			Density:         0.5,
		},
		Parameters: ProcessingParameters{
			BassAdjustment:       0.2,
			LowMidAdjustment:     -0.4,
			MidAdjustment:        0.3,
			HighMidAdjustment:    1.5,
			TrebleAdjustment:     2.0,
			CompressionRatio:     2.0,
			CompressionThreshold: -21.0,
			CompressionAmount:    0.5,
			ExpansionAmount:      0.0,
			LimiterThreshold:     -2.5,
			LimiterAmount:        0.5,
			InputGain:            0.0,
			OutputTargetRMS:      -14.5,
			EQIntensity:          0.7,
			DynamicsIntensity:    0.5,
		},
	},
	PresetPunchy: {
		Position: SpectrumPosition{
			InputLevel:      0.5,
			DynamicRange:    0.5, // controlled dynamics
			SpectralBalance: 0.6, // balanced with presence
			Energy:          0.8, // high energy
			Density:         0.7, // complex/busy
		},
		Parameters: ProcessingParameters{
			BassAdjustment:       1.8,
			LowMidAdjustment:     0.5,
			MidAdjustment:        0.0,
			HighMidAdjustment:    1.5,
			TrebleAdjustment:     0.8,
			CompressionRatio:     2.5,
			CompressionThreshold: -18.0,
			CompressionAmount:    0.65,
			ExpansionAmount:      0.0,
			LimiterThreshold:     -2.0,
			LimiterAmount:        0.65,
			InputGain:            0.0,
			OutputTargetRMS:      -14.0,
			EQIntensity:          0.75,
			DynamicsIntensity:    0.65,
		},
	},
}

// AnchorFor returns the anchor for a preset. The adaptive anchor doubles as
// the fallback for unknown names.
func AnchorFor(p Preset) Anchor {
	if a, ok := presetAnchors[p]; ok {
		return a
	}
	return presetAnchors[PresetAdaptive]
}

// TargetRMSFor returns the output RMS target a preset aims for, used when
// content rules blend their own recommendation against the user's choice.
func TargetRMSFor(p Preset) float64 {
	return AnchorFor(p).Parameters.OutputTargetRMS
}
