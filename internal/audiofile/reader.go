// Package audiofile reads decoded PCM from WAV files and encodes PCM back
// to disk. It is the only component that touches track audio on disk; cache
// payloads are written through it as well.
package audiofile

import (
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/matiaszanolli/auralis-go/internal/errors"
)

const component = "audiofile"

// Info describes a WAV file header.
type Info struct {
	SampleRate int
	Channels   int
	BitDepth   int
	FrameCount int
}

// Duration returns the file duration in seconds.
func (i Info) Duration() float64 {
	if i.SampleRate == 0 {
		return 0
	}
	return float64(i.FrameCount) / float64(i.SampleRate)
}

// Open reads the WAV header of the file at path without decoding PCM.
func Open(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, errors.New(err).
			Component(component).
			Category(errors.CategoryFileIO).
			Context("operation", "open_header").
			Context("path", path).
			Build()
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return Info{}, errors.Newf("not a valid WAV file: %s", path).
			Component(component).
			Category(errors.CategoryDecode).
			Context("path", path).
			Build()
	}

	if err := decoder.FwdToPCM(); err != nil {
		return Info{}, errors.New(err).
			Component(component).
			Category(errors.CategoryDecode).
			Context("operation", "locate_pcm_chunk").
			Context("path", path).
			Build()
	}

	bytesPerFrame := int(decoder.NumChans) * int(decoder.BitDepth) / 8
	if bytesPerFrame == 0 {
		return Info{}, errors.Newf("WAV header reports zero frame size: %s", path).
			Component(component).
			Category(errors.CategoryDecode).
			Context("path", path).
			Build()
	}

	return Info{
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
		BitDepth:   int(decoder.BitDepth),
		FrameCount: int(decoder.PCMSize) / bytesPerFrame,
	}, nil
}

// ReadRange reads nFrames frames of interleaved f32 PCM starting at
// startFrame. A read that runs past the end returns the frames that exist;
// a start at or past the end is an error. When downmix is set the result is
// averaged to mono regardless of the file's channel count.
func ReadRange(path string, startFrame, nFrames int, downmix bool) ([]float32, Info, error) {
	info, err := Open(path)
	if err != nil {
		return nil, Info{}, err
	}
	if startFrame < 0 {
		return nil, Info{}, errors.Newf("negative start frame %d", startFrame).
			Component(component).
			Category(errors.CategoryValidation).
			Build()
	}
	if startFrame >= info.FrameCount {
		return nil, Info{}, errors.Newf("start frame %d past end of file (%d frames)", startFrame, info.FrameCount).
			Component(component).
			Category(errors.CategoryFileIO).
			Context("path", path).
			Context("start_frame", startFrame).
			Context("frame_count", info.FrameCount).
			Build()
	}
	if startFrame+nFrames > info.FrameCount {
		nFrames = info.FrameCount - startFrame
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, Info{}, errors.New(err).
			Component(component).
			Category(errors.CategoryFileIO).
			Context("operation", "open_pcm").
			Context("path", path).
			Build()
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, Info{}, errors.Newf("not a valid WAV file: %s", path).
			Component(component).
			Category(errors.CategoryDecode).
			Context("path", path).
			Build()
	}

	divisor, err := sampleDivisor(int(decoder.BitDepth))
	if err != nil {
		return nil, Info{}, err
	}

	channels := info.Channels
	buf := &audio.IntBuffer{
		Data:   make([]int, 8192*channels),
		Format: &audio.Format{SampleRate: info.SampleRate, NumChannels: channels},
	}

	// The decoder only reads forward, so leading frames are decoded and
	// discarded.
	skipSamples := startFrame * channels
	wantSamples := nFrames * channels
	out := make([]float32, 0, wantSamples)

	for wantSamples > 0 {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return nil, Info{}, errors.New(err).
				Component(component).
				Category(errors.CategoryDecode).
				Context("operation", "read_pcm").
				Context("path", path).
				Build()
		}
		if n == 0 {
			break
		}

		data := buf.Data[:n]
		if skipSamples > 0 {
			if skipSamples >= len(data) {
				skipSamples -= len(data)
				continue
			}
			data = data[skipSamples:]
			skipSamples = 0
		}
		if len(data) > wantSamples {
			data = data[:wantSamples]
		}
		for _, sample := range data {
			out = append(out, float32(sample)/divisor)
		}
		wantSamples -= len(data)
	}

	if downmix && channels > 1 {
		out = downmixMono(out, channels)
		info.Channels = 1
	}
	return out, info, nil
}

// sampleDivisor returns the int-to-float32 conversion divisor for a WAV bit
// depth.
func sampleDivisor(bitDepth int) (float32, error) {
	switch bitDepth {
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, errors.Newf("unsupported WAV bit depth %d", bitDepth).
			Component(component).
			Category(errors.CategoryDecode).
			Context("bit_depth", bitDepth).
			Build()
	}
}

// downmixMono averages interleaved channels into a mono buffer.
func downmixMono(samples []float32, channels int) []float32 {
	frames := len(samples) / channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
