// Package chunkcache implements the two-tier chunk cache. Tier 1 holds the
// hot working set for the playing track (current and next chunk, original
// and processed); Tier 2 holds warm full-track payloads for the current and
// previous tracks. The cache owns every payload file it references and is
// the only component allowed to delete them.
package chunkcache

import (
	"fmt"
	"math"
	"path/filepath"
)

// PresetNone marks the unprocessed original chunk in cache keys. Processed
// and unprocessed entries never collide even when the audio is identical.
const PresetNone = "none"

// Key identifies one cached chunk payload. Signature embeds file identity
// so a changed track file makes old entries unreachable instead of serving
// stale audio.
type Key struct {
	TrackID    int64
	Signature  string
	Preset     string  // PresetNone for the unprocessed original
	Intensity  float64 // quantized to 2 decimal places
	ChunkIndex int
}

// QuantizeIntensity rounds an intensity to 2 decimal places so
// near-identical user settings collide deterministically.
func QuantizeIntensity(intensity float64) float64 {
	return math.Round(intensity*100) / 100
}

// NewKey builds a normalized key. An empty preset maps to PresetNone.
func NewKey(trackID int64, signature, preset string, intensity float64, chunkIndex int) Key {
	if preset == "" {
		preset = PresetNone
	}
	return Key{
		TrackID:    trackID,
		Signature:  signature,
		Preset:     preset,
		Intensity:  QuantizeIntensity(intensity),
		ChunkIndex: chunkIndex,
	}
}

// IsOriginal reports whether the key refers to an unprocessed chunk.
func (k Key) IsOriginal() bool {
	return k.Preset == PresetNone
}

// Filename returns the payload file name for the key.
func (k Key) Filename() string {
	return fmt.Sprintf("track_%d_%s_%s_%.2f_chunk_%d.wav",
		k.TrackID, k.Signature, k.Preset, k.Intensity, k.ChunkIndex)
}

// Path returns the payload path inside cacheDir.
func (k Key) Path(cacheDir string) string {
	return filepath.Join(cacheDir, k.Filename())
}

func (k Key) String() string {
	return k.Filename()
}
