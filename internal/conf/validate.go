package conf

import (
	"fmt"
)

// Validate checks settings for values the core cannot run with.
func (s *Settings) Validate() error {
	if s.Chunk.Duration <= 0 || s.Chunk.Interval <= 0 {
		return fmt.Errorf("chunk duration and interval must be positive, got %.1f/%.1f",
			s.Chunk.Duration, s.Chunk.Interval)
	}
	if s.Chunk.Interval > s.Chunk.Duration {
		return fmt.Errorf("chunk interval %.1f exceeds chunk duration %.1f",
			s.Chunk.Interval, s.Chunk.Duration)
	}
	if s.Chunk.OverlapDuration != s.Chunk.Duration-s.Chunk.Interval {
		return fmt.Errorf("overlap duration %.1f must equal duration-interval %.1f",
			s.Chunk.OverlapDuration, s.Chunk.Duration-s.Chunk.Interval)
	}
	if s.Chunk.ContextDuration < 0 {
		return fmt.Errorf("context duration must be non-negative, got %.1f", s.Chunk.ContextDuration)
	}
	if s.Streaming.MaxConcurrentStreams < 1 {
		return fmt.Errorf("maxconcurrentstreams must be at least 1, got %d", s.Streaming.MaxConcurrentStreams)
	}
	if s.Streaming.SendQueueMaxsize < 1 {
		return fmt.Errorf("sendqueuemaxsize must be at least 1, got %d", s.Streaming.SendQueueMaxsize)
	}
	if s.Streaming.XfadeMs < 0 {
		return fmt.Errorf("xfadems must be non-negative, got %d", s.Streaming.XfadeMs)
	}
	if s.Streaming.MaxLevelChangeDB <= 0 {
		return fmt.Errorf("maxlevelchangedb must be positive, got %.2f", s.Streaming.MaxLevelChangeDB)
	}
	if s.Cache.Tier1Bytes <= 0 || s.Cache.Tier2Bytes <= 0 {
		return fmt.Errorf("cache tier ceilings must be positive")
	}
	switch s.Cache.WAVSubtype {
	case "PCM_16", "PCM_24":
	default:
		return fmt.Errorf("unsupported wav subtype %q, want PCM_16 or PCM_24", s.Cache.WAVSubtype)
	}
	if s.Worker.CheckIntervalS < 1 {
		return fmt.Errorf("worker check interval must be at least 1 s, got %d", s.Worker.CheckIntervalS)
	}
	return nil
}
