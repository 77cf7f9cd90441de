// Package predictor defines the preset-prediction collaborator the cache
// worker consumes. The streaming core only uses predictions to prioritize
// warming; correctness never depends on their accuracy.
package predictor

import "sync"

// Prediction pairs a preset with a confidence score in [0, 1].
type Prediction struct {
	Preset string
	Score  float64
}

// Predictor suggests presets a listener is likely to switch to next.
type Predictor interface {
	PredictNextPresets(currentPreset string) []Prediction
}

// Static returns fixed neighbor predictions per preset. It stands in for
// the learning system, which lives outside the streaming core.
type Static struct {
	neighbors map[string][]Prediction
}

// NewStatic builds the default static predictor. Scores reflect common
// switching behavior: listeners mostly nudge between adjacent-character
// presets.
func NewStatic() *Static {
	return &Static{
		neighbors: map[string][]Prediction{
			"adaptive": {{Preset: "gentle", Score: 0.4}, {Preset: "punchy", Score: 0.3}},
			"gentle":   {{Preset: "adaptive", Score: 0.4}, {Preset: "warm", Score: 0.3}},
			"warm":     {{Preset: "gentle", Score: 0.4}, {Preset: "adaptive", Score: 0.2}},
			"bright":   {{Preset: "punchy", Score: 0.35}, {Preset: "adaptive", Score: 0.25}},
			"punchy":   {{Preset: "bright", Score: 0.35}, {Preset: "adaptive", Score: 0.3}},
		},
	}
}

// PredictNextPresets implements Predictor.
func (s *Static) PredictNextPresets(currentPreset string) []Prediction {
	return s.neighbors[currentPreset]
}

// Recorder tracks observed preset switches and predicts from frequencies.
// It wraps Static as a cold-start fallback.
type Recorder struct {
	mu       sync.Mutex
	counts   map[string]map[string]int
	fallback Predictor
}

// NewRecorder creates a frequency-based predictor backed by fallback.
func NewRecorder(fallback Predictor) *Recorder {
	return &Recorder{
		counts:   make(map[string]map[string]int),
		fallback: fallback,
	}
}

// RecordSwitch notes one observed from->to preset change.
func (r *Recorder) RecordSwitch(from, to string) {
	if from == "" || to == "" || from == to {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.counts[from]
	if !ok {
		m = make(map[string]int)
		r.counts[from] = m
	}
	m[to]++
}

// PredictNextPresets returns the two most frequent switch targets, scored
// by relative frequency. Unseen presets defer to the fallback.
func (r *Recorder) PredictNextPresets(currentPreset string) []Prediction {
	r.mu.Lock()
	m := r.counts[currentPreset]
	var total int
	for _, n := range m {
		total += n
	}
	type pair struct {
		preset string
		count  int
	}
	pairs := make([]pair, 0, len(m))
	for p, n := range m {
		pairs = append(pairs, pair{p, n})
	}
	r.mu.Unlock()

	if total == 0 {
		if r.fallback != nil {
			return r.fallback.PredictNextPresets(currentPreset)
		}
		return nil
	}

	// Top two by count; ties broken by name for determinism.
	for i := 0; i < len(pairs); i++ {
		for j := i + 1; j < len(pairs); j++ {
			if pairs[j].count > pairs[i].count ||
				(pairs[j].count == pairs[i].count && pairs[j].preset < pairs[i].preset) {
				pairs[i], pairs[j] = pairs[j], pairs[i]
			}
		}
	}
	if len(pairs) > 2 {
		pairs = pairs[:2]
	}

	out := make([]Prediction, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, Prediction{Preset: p.preset, Score: float64(p.count) / float64(total)})
	}
	return out
}
