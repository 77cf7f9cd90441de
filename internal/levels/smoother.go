// Package levels limits inter-chunk RMS jumps for a streaming session.
// Each session owns exactly one Smoother; there is no cross-task access.
package levels

import (
	"log/slog"
	"math"

	"github.com/matiaszanolli/auralis-go/internal/dsp"
)

// DefaultMaxLevelChangeDB caps the allowed RMS change between consecutive
// chunks.
const DefaultMaxLevelChangeDB = 1.5

// Smoother tracks RMS levels across emitted chunks and applies gain when a
// transition would exceed the cap. It never reorders, drops, or extends a
// chunk.
type Smoother struct {
	maxLevelChangeDB float64
	rmsHistory       []float64 // RMS of each emitted chunk in dB, post adjustment
	gainHistory      []float64 // gain applied to each chunk in dB
	log              *slog.Logger
}

// Statistics summarizes a session's level history.
type Statistics struct {
	MeanRMS           float64
	MinRMS            float64
	MaxRMS            float64
	TotalAdjustments  int
	TotalChunks       int
	MaxGainAdjustment float64
}

// NewSmoother creates a Smoother with the given cap. A non-positive cap
// falls back to the default.
func NewSmoother(maxLevelChangeDB float64, log *slog.Logger) *Smoother {
	if maxLevelChangeDB <= 0 {
		maxLevelChangeDB = DefaultMaxLevelChangeDB
	}
	if log == nil {
		log = slog.Default()
	}
	return &Smoother{
		maxLevelChangeDB: maxLevelChangeDB,
		log:              log.With("component", "level_smoother"),
	}
}

// Reset clears history for a new track.
func (s *Smoother) Reset() {
	s.rmsHistory = s.rmsHistory[:0]
	s.gainHistory = s.gainHistory[:0]
}

// History returns a copy of the recorded RMS levels in dB.
func (s *Smoother) History() []float64 {
	out := make([]float64, len(s.rmsHistory))
	copy(out, s.rmsHistory)
	return out
}

// GainAdjustments returns a copy of the applied gains in dB.
func (s *Smoother) GainAdjustments() []float64 {
	out := make([]float64, len(s.gainHistory))
	copy(out, s.gainHistory)
	return out
}

// SmoothTransition records the chunk's RMS and, when the jump from the
// previous chunk exceeds the cap, scales the chunk in place so the
// transition lands exactly on the cap. Returns the gain applied in dB and
// whether the chunk was adjusted.
func (s *Smoother) SmoothTransition(chunk []float32, chunkIndex int) (gainDb float64, adjusted bool) {
	currentRMS := dsp.RMSDb(chunk)

	if len(s.rmsHistory) == 0 {
		s.rmsHistory = append(s.rmsHistory, currentRMS)
		s.gainHistory = append(s.gainHistory, 0)
		s.log.Debug("established level baseline",
			"chunk_index", chunkIndex,
			"rms_db", currentRMS)
		return 0, false
	}

	previousRMS := s.rmsHistory[len(s.rmsHistory)-1]
	levelDiff := currentRMS - previousRMS

	if math.Abs(levelDiff) <= s.maxLevelChangeDB {
		s.rmsHistory = append(s.rmsHistory, currentRMS)
		s.gainHistory = append(s.gainHistory, 0)
		return 0, false
	}

	targetDiff := s.maxLevelChangeDB
	if levelDiff < 0 {
		targetDiff = -s.maxLevelChangeDB
	}
	gainDb = targetDiff - levelDiff

	gain := float32(math.Pow(10, gainDb/20))
	for i := range chunk {
		chunk[i] *= gain
	}

	adjustedRMS := dsp.RMSDb(chunk)
	s.rmsHistory = append(s.rmsHistory, adjustedRMS)
	s.gainHistory = append(s.gainHistory, gainDb)

	s.log.Info("smoothed level transition",
		"chunk_index", chunkIndex,
		"original_rms_db", currentRMS,
		"adjusted_rms_db", adjustedRMS,
		"gain_db", gainDb)

	return gainDb, true
}

// Statistics returns summary statistics over the recorded history.
func (s *Smoother) Statistics() Statistics {
	stats := Statistics{TotalChunks: len(s.rmsHistory)}
	if len(s.rmsHistory) == 0 {
		return stats
	}

	stats.MinRMS = s.rmsHistory[0]
	stats.MaxRMS = s.rmsHistory[0]
	var sum float64
	for _, r := range s.rmsHistory {
		sum += r
		stats.MinRMS = math.Min(stats.MinRMS, r)
		stats.MaxRMS = math.Max(stats.MaxRMS, r)
	}
	stats.MeanRMS = sum / float64(len(s.rmsHistory))

	for _, g := range s.gainHistory {
		if math.Abs(g) > 0.01 {
			stats.TotalAdjustments++
		}
		stats.MaxGainAdjustment = math.Max(stats.MaxGainAdjustment, math.Abs(g))
	}
	return stats
}
