package processor

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matiaszanolli/auralis-go/internal/audiofile"
	"github.com/matiaszanolli/auralis-go/internal/chunkcache"
	"github.com/matiaszanolli/auralis-go/internal/errors"
)

// writeTrack creates an 18-second mono WAV (two chunks at the default
// geometry) and returns its Track.
func writeTrack(t *testing.T, seconds float64, sampleRate int) Track {
	t.Helper()
	frames := int(seconds * float64(sampleRate))
	samples := make([]float32, frames)
	for i := range samples {
		samples[i] = float32(0.3 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
	}
	path := filepath.Join(t.TempDir(), "track.wav")
	require.NoError(t, audiofile.WriteWAV(path, samples, sampleRate, 1, audiofile.PCM16))
	return Track{ID: 1, Path: path, Signature: "testsig", DurationS: seconds}
}

func TestProcessChunkOriginal(t *testing.T) {
	t.Parallel()

	track := writeTrack(t, 18.0, 44100)
	p := New(t.TempDir(), audiofile.PCM16, nil)

	res, err := p.ProcessChunk(context.Background(), track, chunkcache.PresetNone, 1.0, 0)
	require.NoError(t, err)

	// Chunk 0 of an 18 s track covers 0-15 s.
	assert.Equal(t, 15*44100, res.CoreFrames)
	assert.Equal(t, 44100, res.SampleRate)
	assert.Equal(t, 1, res.Channels)
	assert.FileExists(t, res.PayloadPath)

	info, err := audiofile.Open(res.PayloadPath)
	require.NoError(t, err)
	assert.Equal(t, res.CoreFrames, info.FrameCount)
}

func TestProcessChunkLastChunkShort(t *testing.T) {
	t.Parallel()

	track := writeTrack(t, 18.0, 44100)
	p := New(t.TempDir(), audiofile.PCM16, nil)

	res, err := p.ProcessChunk(context.Background(), track, chunkcache.PresetNone, 1.0, 1)
	require.NoError(t, err)

	// Chunk 1 covers 10-18 s: 8 seconds.
	assert.Equal(t, 8*44100, res.CoreFrames)
}

func TestProcessChunkFrameCoverage(t *testing.T) {
	t.Parallel()

	track := writeTrack(t, 18.0, 44100)
	p := New(t.TempDir(), audiofile.PCM16, nil)

	var total int
	for k := 0; k < 2; k++ {
		res, err := p.ProcessChunk(context.Background(), track, chunkcache.PresetNone, 1.0, k)
		require.NoError(t, err)
		total += res.CoreFrames
	}
	// Core frames across both chunks cover the track plus the 5 s overlap.
	assert.Equal(t, 18*44100+5*44100, total)
}

func TestProcessChunkProcessed(t *testing.T) {
	t.Parallel()

	track := writeTrack(t, 18.0, 44100)
	p := New(t.TempDir(), audiofile.PCM16, nil)

	res, err := p.ProcessChunk(context.Background(), track, "adaptive", 1.0, 0)
	require.NoError(t, err)
	assert.Equal(t, 15*44100, res.CoreFrames)
	assert.Contains(t, res.PayloadPath, "adaptive")
	assert.FileExists(t, res.PayloadPath)
}

func TestProcessChunkDeterminism(t *testing.T) {
	t.Parallel()

	track := writeTrack(t, 18.0, 44100)
	p := New(t.TempDir(), audiofile.PCM16, nil)

	a, err := p.ProcessChunk(context.Background(), track, "adaptive", 1.0, 0)
	require.NoError(t, err)
	b, err := p.ProcessChunk(context.Background(), track, "adaptive", 1.0, 0)
	require.NoError(t, err)
	assert.Equal(t, a.PCM, b.PCM, "processing is a pure function of its inputs")
}

func TestProcessChunkMissingFile(t *testing.T) {
	t.Parallel()

	p := New(t.TempDir(), audiofile.PCM16, nil)
	track := Track{ID: 9, Path: filepath.Join(t.TempDir(), "gone.wav"), Signature: "x", DurationS: 30}

	_, err := p.ProcessChunk(context.Background(), track, chunkcache.PresetNone, 1.0, 0)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
}

func TestProcessChunkIndexOutOfRange(t *testing.T) {
	t.Parallel()

	track := writeTrack(t, 18.0, 44100)
	p := New(t.TempDir(), audiofile.PCM16, nil)

	_, err := p.ProcessChunk(context.Background(), track, chunkcache.PresetNone, 1.0, 5)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestProcessChunkCancelledContext(t *testing.T) {
	t.Parallel()

	track := writeTrack(t, 18.0, 44100)
	p := New(t.TempDir(), audiofile.PCM16, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.ProcessChunk(ctx, track, "adaptive", 1.0, 0)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryTimeout))
}

func TestProcessChunkPayloadPathLayout(t *testing.T) {
	t.Parallel()

	track := writeTrack(t, 18.0, 44100)
	cacheDir := t.TempDir()
	p := New(cacheDir, audiofile.PCM16, nil)

	res, err := p.ProcessChunk(context.Background(), track, "punchy", 0.8, 1)
	require.NoError(t, err)
	assert.Equal(t,
		filepath.Join(cacheDir, "track_1_testsig_punchy_0.80_chunk_1.wav"),
		res.PayloadPath)
}
