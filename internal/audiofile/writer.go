package audiofile

import (
	"math"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/matiaszanolli/auralis-go/internal/errors"
)

// Subtype selects the PCM encoding for written WAV files.
type Subtype string

const (
	PCM16 Subtype = "PCM_16"
	PCM24 Subtype = "PCM_24"
)

// bitDepth returns the encoder bit depth for the subtype.
func (s Subtype) bitDepth() (int, error) {
	switch s {
	case PCM16:
		return 16, nil
	case PCM24:
		return 24, nil
	default:
		return 0, errors.Newf("unsupported WAV subtype %q", string(s)).
			Component(component).
			Category(errors.CategoryValidation).
			Build()
	}
}

// WriteWAV encodes interleaved f32 samples to a WAV file at path. The write
// is atomic: data goes to a temp file which is fsynced and renamed into
// place, so a crash never leaves a half-written file visible.
func WriteWAV(path string, samples []float32, sampleRate, channels int, subtype Subtype) error {
	if len(samples) == 0 {
		return errors.Newf("cannot encode empty sample buffer").
			Component(component).
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}
	for _, s := range samples {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			return errors.Newf("sample buffer contains non-finite values").
				Component(component).
				Category(errors.CategoryDSP).
				Context("path", path).
				Build()
		}
	}

	bitDepth, err := subtype.bitDepth()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.New(err).
			Component(component).
			Category(errors.CategoryFileIO).
			Context("operation", "create_output_directory").
			Context("path", filepath.Dir(path)).
			Build()
	}

	tempPath := path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return errors.New(err).
			Component(component).
			Category(errors.CategoryFileIO).
			Context("operation", "create_temp_file").
			Context("path", tempPath).
			Build()
	}

	// Ensure cleanup on error
	success := false
	defer func() {
		if !success {
			_ = f.Close()
			_ = os.Remove(tempPath)
		}
	}()

	encoder := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)

	scale := float64(int(1)<<(bitDepth-1)) - 1
	intData := make([]int, len(samples))
	for i, s := range samples {
		v := math.Round(float64(s) * scale)
		if v > scale {
			v = scale
		} else if v < -scale-1 {
			v = -scale - 1
		}
		intData[i] = int(v)
	}

	buf := &audio.IntBuffer{
		Data:           intData,
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: channels},
		SourceBitDepth: bitDepth,
	}
	if err := encoder.Write(buf); err != nil {
		return errors.New(err).
			Component(component).
			Category(errors.CategoryFileIO).
			Context("operation", "write_wav_pcm").
			Context("path", tempPath).
			Build()
	}
	if err := encoder.Close(); err != nil {
		return errors.New(err).
			Component(component).
			Category(errors.CategoryFileIO).
			Context("operation", "finalize_wav_header").
			Context("path", tempPath).
			Build()
	}
	if err := f.Sync(); err != nil {
		return errors.New(err).
			Component(component).
			Category(errors.CategoryFileIO).
			Context("operation", "fsync_temp_file").
			Context("path", tempPath).
			Build()
	}
	if err := f.Close(); err != nil {
		return errors.New(err).
			Component(component).
			Category(errors.CategoryFileIO).
			Context("operation", "close_temp_file").
			Context("path", tempPath).
			Build()
	}

	if err := os.Rename(tempPath, path); err != nil {
		return errors.New(err).
			Component(component).
			Category(errors.CategoryFileIO).
			Context("operation", "rename_wav_file").
			Context("from", tempPath).
			Context("to", path).
			Build()
	}

	success = true
	return nil
}
