// Package streaming implements the client-facing streaming controller: the
// per-session state machine that serializes mastered chunks onto a duplex
// transport with crossfading, backpressure, and cancellation.
package streaming

import (
	"encoding/json"
)

// Message is the wire envelope. Every transport message is a JSON object
// with a type tag and a data payload.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Inbound message types.
const (
	TypePlay         = "play"
	TypeSeek         = "seek"
	TypePause        = "pause"
	TypeStop         = "stop"
	TypeCancel       = "cancel"
	TypePresetChange = "preset_change"
	TypePing         = "ping"
	// TypeCacheStatus and TypeCacheStats both request the cache snapshot;
	// the reply echoes the requested type.
	TypeCacheStatus = "cache_status"
	TypeCacheStats  = "cache_stats"
)

// Outbound message types.
const (
	TypeStreamStart = "stream_start"
	TypeAudioChunk  = "audio_chunk"
	TypeStreamEnd   = "stream_end"
	TypeStreamError = "stream_error"
	TypePong        = "pong"
	TypeError       = "error"
)

// Error codes carried by stream_error and error messages.
const (
	CodeBusy            = "busy"
	CodeNotFound        = "not_found"
	CodeProcessing      = "processing_failed"
	CodeInvalidJSON     = "invalid_json"
	CodeValidation      = "validation_error"
	CodeRateLimited     = "rate_limited"
	CodeMessageTooLarge = "message_too_large"
)

// PlayRequest starts a stream.
type PlayRequest struct {
	TrackID   int64   `json:"track_id"`
	Preset    string  `json:"preset"`
	Intensity float64 `json:"intensity"`
}

// SeekRequest restarts a stream at a position.
type SeekRequest struct {
	TrackID   int64   `json:"track_id"`
	PositionS float64 `json:"position_s"`
}

// PresetChangeRequest restarts the current stream with a new preset.
type PresetChangeRequest struct {
	Preset    string  `json:"preset"`
	Intensity float64 `json:"intensity"`
}

// StreamStart announces a stream's shape before the first audio chunk.
type StreamStart struct {
	TrackID       int64   `json:"track_id"`
	Preset        string  `json:"preset"`
	Intensity     float64 `json:"intensity"`
	SampleRate    int     `json:"sample_rate"`
	Channels      int     `json:"channels"`
	TotalChunks   int     `json:"total_chunks"`
	TotalDuration float64 `json:"total_duration"`
	StreamType    string  `json:"stream_type"`
}

// AudioChunk carries one framed sub-message of a chunk: PCM f32,
// little-endian, interleaved, base64-encoded.
type AudioChunk struct {
	ChunkIndex  int    `json:"chunk_index"`
	FrameIndex  int64  `json:"frame_index"`
	TotalChunks int    `json:"total_chunks"`
	SamplesB64  string `json:"samples_b64"`
	SampleCount int    `json:"sample_count"`
}

// StreamEnd closes a completed stream.
type StreamEnd struct {
	TrackID      int64   `json:"track_id"`
	TotalSamples int64   `json:"total_samples"`
	Duration     float64 `json:"duration"`
}

// CacheStats is the cache snapshot sent for cache_status/cache_stats
// requests and served on the stats API.
type CacheStats struct {
	Tier1Entries int     `json:"tier1_entries"`
	Tier2Entries int     `json:"tier2_entries"`
	Tier1Bytes   int64   `json:"tier1_bytes"`
	Tier2Bytes   int64   `json:"tier2_bytes"`
	Tier1Ceiling int64   `json:"tier1_ceiling"`
	Tier2Ceiling int64   `json:"tier2_ceiling"`
	Tier1Hits    int64   `json:"tier1_hits"`
	Tier2Hits    int64   `json:"tier2_hits"`
	Misses       int64   `json:"misses"`
	HitRate      float64 `json:"hit_rate"`
}

// StreamError reports a failed stream, optionally with a position the
// client can resume from.
type StreamError struct {
	Error            string   `json:"error"`
	Code             string   `json:"code"`
	RecoveryPosition *float64 `json:"recovery_position,omitempty"`
}

// NewMessage marshals a payload into an envelope. Marshaling our own
// payload types cannot fail; a failure here is a programming error.
func NewMessage(msgType string, payload any) Message {
	data, err := json.Marshal(payload)
	if err != nil {
		panic("streaming: unmarshalable outbound payload: " + err.Error())
	}
	return Message{Type: msgType, Data: data}
}
