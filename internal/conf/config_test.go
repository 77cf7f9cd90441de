package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultSettings(t *testing.T) *Settings {
	t.Helper()
	s := &Settings{}
	s.Chunk.Duration = 15
	s.Chunk.Interval = 10
	s.Chunk.OverlapDuration = 5
	s.Chunk.ContextDuration = 5
	s.Streaming.MaxConcurrentStreams = 4
	s.Streaming.SendQueueMaxsize = 8
	s.Streaming.XfadeMs = 200
	s.Streaming.MaxLevelChangeDB = 1.5
	s.Cache.Tier1Bytes = 18 * mb
	s.Cache.Tier2Bytes = 81 * mb
	s.Cache.WAVSubtype = "PCM_16"
	s.Worker.CheckIntervalS = 1
	require.NoError(t, s.Validate())
	return s
}

func TestValidateDefaultsPass(t *testing.T) {
	defaultSettings(t)
}

func TestValidateRejectsBadChunkTiming(t *testing.T) {
	s := defaultSettings(t)
	s.Chunk.Interval = 20
	assert.Error(t, s.Validate())

	s = defaultSettings(t)
	s.Chunk.OverlapDuration = 3
	assert.Error(t, s.Validate())

	s = defaultSettings(t)
	s.Chunk.Duration = 0
	assert.Error(t, s.Validate())
}

func TestValidateRejectsBadStreaming(t *testing.T) {
	s := defaultSettings(t)
	s.Streaming.MaxConcurrentStreams = 0
	assert.Error(t, s.Validate())

	s = defaultSettings(t)
	s.Streaming.SendQueueMaxsize = 0
	assert.Error(t, s.Validate())

	s = defaultSettings(t)
	s.Streaming.MaxLevelChangeDB = -1
	assert.Error(t, s.Validate())
}

func TestValidateRejectsBadCache(t *testing.T) {
	s := defaultSettings(t)
	s.Cache.WAVSubtype = "PCM_32"
	assert.Error(t, s.Validate())

	s = defaultSettings(t)
	s.Cache.Tier1Bytes = 0
	assert.Error(t, s.Validate())
}
