// Package processor composes chunk geometry, audio I/O, the DSP stage, and
// the cache payload encoder into process_chunk. Output is a pure function
// of (track signature, preset, intensity, chunk index); per-session level
// smoothing happens at emission time, never here.
package processor

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/matiaszanolli/auralis-go/internal/audiofile"
	"github.com/matiaszanolli/auralis-go/internal/chunkcache"
	"github.com/matiaszanolli/auralis-go/internal/chunkgeo"
	"github.com/matiaszanolli/auralis-go/internal/dsp"
	"github.com/matiaszanolli/auralis-go/internal/errors"
	"github.com/matiaszanolli/auralis-go/internal/logging"
	"github.com/matiaszanolli/auralis-go/internal/observability"
)

const component = "processor"

// Track identifies the audio file a chunk is cut from.
type Track struct {
	ID        int64
	Path      string
	Signature string
	DurationS float64
}

// Result is one processed chunk: the emitted core PCM plus the cache
// payload written for it.
type Result struct {
	Key         chunkcache.Key
	PayloadPath string
	PCM         []float32
	SampleRate  int
	Channels    int
	CoreFrames  int
}

// Processor turns (track, preset, intensity, chunk index) into mastered
// core PCM and a WAV payload under the cache directory.
type Processor struct {
	cacheDir string
	subtype  audiofile.Subtype
	metrics  *observability.Metrics
	log      *slog.Logger
}

// New creates a Processor writing payloads into cacheDir.
func New(cacheDir string, subtype audiofile.Subtype, metrics *observability.Metrics) *Processor {
	log := logging.ForService("processor")
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		cacheDir: cacheDir,
		subtype:  subtype,
		metrics:  metrics,
		log:      log.With("component", "chunk_processor"),
	}
}

// ProcessChunk masters one chunk. For preset none the DSP stage is skipped
// and the original audio is trimmed and encoded as-is. The context is
// checked between stages; callers impose timeouts by cancelling it.
func (p *Processor) ProcessChunk(ctx context.Context, track Track, preset string, intensity float64, chunkIndex int) (*Result, error) {
	start := time.Now()

	info, err := audiofile.Open(track.Path)
	if err != nil {
		p.metrics.RecordChunkProcessError(string(errors.CategoryFileIO))
		return nil, err
	}

	geo := chunkgeo.New(track.DurationS, info.SampleRate)
	if chunkIndex < 0 || chunkIndex >= geo.TotalChunks() {
		return nil, errors.Newf("chunk index %d out of range, track has %d chunks", chunkIndex, geo.TotalChunks()).
			Component(component).
			Category(errors.CategoryValidation).
			Context("track_id", track.ID).
			Build()
	}

	loadStart, loadEnd, coreStart, coreEnd := geo.BoundariesSamples(chunkIndex, true)
	pcm, info, err := audiofile.ReadRange(track.Path, loadStart, loadEnd-loadStart, false)
	if err != nil {
		p.metrics.RecordChunkProcessError(string(errors.CategoryFileIO))
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, cancelled(err, track.ID, chunkIndex)
	}

	if preset != chunkcache.PresetNone && preset != "" {
		pcm, err = dsp.Process(pcm, dsp.Request{
			Preset:     dsp.Preset(preset),
			Intensity:  intensity,
			SampleRate: info.SampleRate,
			Channels:   info.Channels,
			CoreStart:  coreStart - loadStart,
			CoreEnd:    coreEnd - loadStart,
		})
		if err != nil {
			p.metrics.RecordChunkProcessError(string(errors.CategoryDSP))
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, cancelled(err, track.ID, chunkIndex)
	}

	segStart, segEnd := geo.SegmentBoundaries(chunkIndex, len(pcm)/info.Channels)
	core := pcm[segStart*info.Channels : segEnd*info.Channels]

	key := chunkcache.NewKey(track.ID, track.Signature, preset, intensity, chunkIndex)
	payloadPath := key.Path(p.cacheDir)
	if err := audiofile.WriteWAV(payloadPath, core, info.SampleRate, info.Channels, p.subtype); err != nil {
		// WriteWAV removes its own temp file; make sure no partial final
		// file survives either.
		_ = os.Remove(payloadPath + ".tmp")
		p.metrics.RecordChunkProcessError(string(errors.CategoryFileIO))
		return nil, err
	}

	p.metrics.ObserveChunkProcess(orNone(preset), time.Since(start).Seconds())
	p.log.Debug("processed chunk",
		"track_id", track.ID,
		"chunk_index", chunkIndex,
		"preset", orNone(preset),
		"frames", segEnd-segStart,
		"duration_ms", time.Since(start).Milliseconds())

	return &Result{
		Key:         key,
		PayloadPath: payloadPath,
		PCM:         core,
		SampleRate:  info.SampleRate,
		Channels:    info.Channels,
		CoreFrames:  segEnd - segStart,
	}, nil
}

func cancelled(err error, trackID int64, chunkIndex int) error {
	return errors.New(err).
		Component(component).
		Category(errors.CategoryTimeout).
		Context("track_id", trackID).
		Context("chunk_index", chunkIndex).
		Build()
}

func orNone(preset string) string {
	if preset == "" {
		return chunkcache.PresetNone
	}
	return preset
}
