// Package conf handles loading and validation of application settings
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Settings holds the full application configuration
type Settings struct {
	Debug bool // true to enable debug logging

	Main struct {
		Name string // instance name, used in logs
	}

	Chunk struct {
		Duration        float64 // seconds of audio a processed chunk contains
		Interval        float64 // stride between consecutive chunks in seconds
		OverlapDuration float64 // region shared by adjacent chunks in seconds
		ContextDuration float64 // extra audio loaded on each side for stateful DSP
	}

	Streaming struct {
		MaxConcurrentStreams int     // global stream permit count
		SendQueueMaxsize     int     // bounded send queue capacity per session
		XfadeMs              int     // boundary crossfade length in milliseconds
		MaxLevelChangeDB     float64 // inter-chunk RMS jump cap in dB
		FrameBytes           int     // size of a framed PCM sub-message in bytes
		BindAddress          string  // host:port for the HTTP/WebSocket server
		MaxMessageBytes      int64   // inbound transport message cap
		MessagesPerSecond    int     // per-connection inbound rate limit
	}

	Cache struct {
		Dir        string // payload directory, defaults to OS temp + auralis_chunks
		Tier1Bytes int64  // hot tier ceiling
		Tier2Bytes int64  // warm tier ceiling
		WAVSubtype string // PCM_16 or PCM_24
	}

	Worker struct {
		CheckIntervalS   int // seconds between worker wakes
		Priority0Timeout int // seconds
		Priority1Timeout int // seconds
		Priority2Timeout int // seconds
		Priority3Timeout int // seconds, shared by priorities 3 and 4
	}

	Monitor struct {
		Enabled        bool
		CheckIntervalS int // seconds between memory samples
	}

	Library struct {
		DBPath string // sqlite database path for the track registry
	}
}

// Load reads configuration from file, environment, and defaults.
func Load() (*Settings, error) {
	setDefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if configDir, err := os.UserConfigDir(); err == nil {
		viper.AddConfigPath(filepath.Join(configDir, "auralis"))
	}
	viper.SetEnvPrefix("AURALIS")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return settings, nil
}
