package streaming

import (
	"context"
	"os"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/matiaszanolli/auralis-go/internal/audiofile"
	"github.com/matiaszanolli/auralis-go/internal/chunkcache"
	"github.com/matiaszanolli/auralis-go/internal/chunkgeo"
	"github.com/matiaszanolli/auralis-go/internal/errors"
	"github.com/matiaszanolli/auralis-go/internal/levels"
	"github.com/matiaszanolli/auralis-go/internal/processor"
)

// State names a session's lifecycle phase.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateStreaming
	StateEnding
	StateCancelled
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateStreaming:
		return "streaming"
	case StateEnding:
		return "ending"
	case StateCancelled:
		return "cancelled"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Session streams one track to one client. Its lifecycle is
// Idle -> Starting -> Streaming -> Ending -> Idle, with Starting -> Error
// and Streaming -> Cancelled side exits. Every exit path funnels through a
// single cleanup routine.
type Session struct {
	ID        string
	trackID   int64
	preset    string
	intensity float64
	positionS float64

	ctrl      *Controller
	transport Transport
	state     atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	currentChunk atomic.Int32

	sendQ      chan Message
	senderDone chan struct{}
	sendFailed atomic.Bool

	smoother *levels.Smoother
	xfade    *crossfader
	frames   *framer
}

func newSession(c *Controller, transport Transport, trackID int64, preset string, intensity float64, positionS float64) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:        uuid.NewString(),
		trackID:   trackID,
		preset:    preset,
		intensity: chunkcache.QuantizeIntensity(intensity),
		positionS: positionS,
		ctrl:      c,
		transport: transport,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		sendQ:     make(chan Message, c.cfg.SendQueueMaxsize),
		smoother:  levels.NewSmoother(c.cfg.MaxLevelChangeDB, c.log),
	}
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Stop requests cancellation; the session unwinds through normal cleanup.
func (s *Session) Stop() {
	s.cancel()
}

// Done closes when the session has fully cleaned up.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Position returns the start of the chunk currently being emitted, in
// seconds. Preset changes restart from here.
func (s *Session) Position() float64 {
	return float64(s.currentChunk.Load()) * chunkgeo.ChunkInterval
}

// TrackID returns the track this session streams.
func (s *Session) TrackID() int64 {
	return s.trackID
}

// alive reports whether the client is still reachable and the session has
// not been cancelled.
func (s *Session) alive() bool {
	return s.ctx.Err() == nil && !s.sendFailed.Load() && s.transport.Connected()
}

// run drives the whole session. It is the only goroutine that touches the
// smoother, crossfader, and framer.
func (s *Session) run() {
	defer close(s.done)
	c := s.ctrl

	s.state.Store(int32(StateStarting))

	// 1. Global concurrency permit.
	if !c.acquirePermit(s.ctx) {
		c.metrics.RecordStreamError(CodeBusy)
		s.sendDirect(NewMessage(TypeStreamError, StreamError{
			Error: "no stream slot available",
			Code:  CodeBusy,
		}))
		s.state.Store(int32(StateIdle))
		return
	}

	// 2. Resolve the track through the library collaborator.
	track, ok := c.tracks.GetTrack(s.trackID)
	if !ok {
		c.permits.Release(1)
		c.metrics.RecordStreamError(CodeNotFound)
		s.sendDirect(NewMessage(TypeStreamError, StreamError{
			Error: "unknown track",
			Code:  CodeNotFound,
		}))
		s.state.Store(int32(StateError))
		return
	}

	// 3. Open the file and announce the stream.
	info, err := audiofile.Open(track.Path)
	if err != nil {
		c.permits.Release(1)
		c.metrics.RecordStreamError(CodeNotFound)
		s.sendDirect(NewMessage(TypeStreamError, StreamError{
			Error: err.Error(),
			Code:  CodeNotFound,
		}))
		s.state.Store(int32(StateError))
		return
	}

	geo := chunkgeo.New(track.DurationS, info.SampleRate)
	s.xfade = newCrossfader(c.cfg.XfadeMs*info.SampleRate/1000, info.Channels)
	s.frames = newFramer(c.cfg.FrameBytes)

	c.register(s)
	c.metrics.StreamStarted()
	c.cache.PinTrack(s.trackID, true)

	// Every exit path from here runs the same cleanup.
	defer s.cleanup()

	s.senderDone = make(chan struct{})
	go s.sender()

	if !s.enqueue(NewMessage(TypeStreamStart, StreamStart{
		TrackID:       s.trackID,
		Preset:        s.preset,
		Intensity:     s.intensity,
		SampleRate:    info.SampleRate,
		Channels:      info.Channels,
		TotalChunks:   geo.TotalChunks(),
		TotalDuration: track.DurationS,
		StreamType:    "chunked",
	})) {
		s.state.Store(int32(StateCancelled))
		return
	}

	s.state.Store(int32(StateStreaming))
	c.log.Info("stream started",
		"session_id", s.ID,
		"track_id", s.trackID,
		"preset", s.preset,
		"total_chunks", geo.TotalChunks())

	startChunk := geo.ChunkForPosition(s.positionS)
	var totalFrames int64

	for k := startChunk; k < geo.TotalChunks(); k++ {
		// Liveness check 1 (outer).
		if !s.alive() {
			s.state.Store(int32(StateCancelled))
			return
		}

		// Advance the playback window first so cache routing and worker
		// warming both see this chunk as current.
		s.currentChunk.Store(int32(k))
		s.updateWarming(track, k)

		emitted, err := s.obtainChunk(track, info, geo, k)
		if err != nil {
			if errors.IsCategory(err, errors.CategoryCancellation) {
				s.state.Store(int32(StateCancelled))
				return
			}
			recovery := float64(k) * chunkgeo.ChunkInterval
			c.metrics.RecordStreamError(CodeProcessing)
			s.enqueue(NewMessage(TypeStreamError, StreamError{
				Error:            err.Error(),
				Code:             CodeProcessing,
				RecoveryPosition: &recovery,
			}))
			s.state.Store(int32(StateError))
			return
		}
		if emitted == nil {
			// Disconnected between the outer check and processing.
			s.state.Store(int32(StateCancelled))
			return
		}

		// Liveness check 2 (inner): do not push frames for a dead client.
		if !s.alive() {
			s.state.Store(int32(StateCancelled))
			return
		}

		s.smoother.SmoothTransition(emitted, k)
		s.xfade.apply(emitted)

		if !s.emitFrames(emitted, k, geo.TotalChunks(), &totalFrames) {
			s.state.Store(int32(StateCancelled))
			return
		}
		c.metrics.RecordChunkEmitted()
	}

	s.state.Store(int32(StateEnding))
	s.enqueue(NewMessage(TypeStreamEnd, StreamEnd{
		TrackID:      s.trackID,
		TotalSamples: totalFrames,
		Duration:     track.DurationS,
	}))
	c.log.Info("stream completed",
		"session_id", s.ID,
		"track_id", s.trackID,
		"total_frames", totalFrames)
	s.state.Store(int32(StateIdle))
}

// obtainChunk returns the emitted PCM for chunk k: the stride interval for
// interior chunks, the full remainder for the last. A nil slice with nil
// error means the client vanished before processing started (no DSP work
// is wasted on it).
func (s *Session) obtainChunk(track processor.Track, info audiofile.Info, geo *chunkgeo.Geometry, k int) ([]float32, error) {
	c := s.ctrl

	preset := s.preset
	key := chunkcache.NewKey(track.ID, track.Signature, preset, s.intensity, k)

	var core []float32
	var channels int

	if path, _, ok := c.cache.Get(key); ok {
		payloadInfo, err := audiofile.Open(path)
		if err == nil {
			core, _, err = audiofile.ReadRange(path, 0, payloadInfo.FrameCount, false)
			if err != nil {
				core = nil
			}
			channels = payloadInfo.Channels
		}
	}

	if core == nil {
		// TOCTOU re-check before spending DSP time.
		if !s.alive() {
			return nil, nil
		}
		res, err := c.proc.ProcessChunk(s.ctx, track, preset, s.intensity, k)
		if err != nil {
			if s.ctx.Err() != nil {
				return nil, errors.New(err).
					Component("streaming").
					Category(errors.CategoryCancellation).
					Build()
			}
			return nil, err
		}
		channels = res.Channels
		core = res.PCM

		entry := &chunkcache.Entry{
			Key:         res.Key,
			Path:        res.PayloadPath,
			SampleRate:  res.SampleRate,
			Channels:    res.Channels,
			SampleCount: res.CoreFrames,
			SizeBytes:   payloadSize(res.PayloadPath),
			Probability: 1.0,
		}
		if err := c.cache.Put(entry, chunkcache.TierAuto); err != nil {
			// An oversized entry streams uncached; the session goes on.
			c.log.Warn("chunk not cached", "key", res.Key.String(), "error", err)
		}
	}

	// Trim the core to the emitted stride so consecutive chunks are
	// contiguous: [k*interval, (k+1)*interval), remainder for the last.
	emitSeconds := chunkgeo.ChunkInterval
	if geo.IsLast(k) {
		emitSeconds = track.DurationS - float64(k)*chunkgeo.ChunkInterval
	}
	emitFrames := int(emitSeconds * float64(info.SampleRate))
	if channels == 0 {
		channels = info.Channels
	}
	if limit := len(core) / channels; emitFrames > limit {
		emitFrames = limit
	}
	return core[:emitFrames*channels], nil
}

// emitFrames frames the emitted PCM into fixed-size sub-messages and
// pushes them onto the bounded send queue. Returns false if the session
// was cancelled mid-chunk.
func (s *Session) emitFrames(emitted []float32, chunkIndex, totalChunks int, totalFrames *int64) bool {
	okAll := true
	emit := func(payload string, sampleCount int) {
		if !okAll {
			return
		}
		msg := NewMessage(TypeAudioChunk, AudioChunk{
			ChunkIndex:  chunkIndex,
			FrameIndex:  *totalFrames,
			TotalChunks: totalChunks,
			SamplesB64:  payload,
			SampleCount: sampleCount,
		})
		if !s.enqueue(msg) {
			okAll = false
			return
		}
		*totalFrames += int64(sampleCount / s.xfade.channels)
	}

	s.frames.push(emitted, emit)
	s.frames.flush(emit)
	return okAll
}

// enqueue pushes a message onto the bounded send queue, blocking for
// natural backpressure. Returns false when the session is cancelled or the
// sender is gone.
func (s *Session) enqueue(msg Message) bool {
	select {
	case s.sendQ <- msg:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// sender drains the queue onto the transport. It keeps draining after a
// send failure so producers never block on a dead queue; the failure flag
// stops the producer at its next liveness check.
func (s *Session) sender() {
	defer close(s.senderDone)
	for msg := range s.sendQ {
		if s.sendFailed.Load() {
			continue
		}
		if err := s.transport.Send(msg); err != nil {
			s.sendFailed.Store(true)
		}
	}
}

// sendDirect bypasses the queue for pre-registration errors.
func (s *Session) sendDirect(msg Message) {
	_ = s.transport.Send(msg)
}

// updateWarming tells the cache and worker where playback is.
func (s *Session) updateWarming(track processor.Track, currentChunk int) {
	position := float64(currentChunk) * chunkgeo.ChunkInterval
	s.ctrl.cache.UpdatePlaybackPosition(track.ID, track.Signature, currentChunk, s.preset, s.intensity)
	if s.ctrl.warm != nil {
		s.ctrl.warm.UpdatePlayback(track, position, s.preset, s.intensity, true)
	}
}

// cleanup is the single exit routine: every session-ending path releases
// the crossfade tail, the framer, the registry entry, the pin, and the
// permit exactly once.
func (s *Session) cleanup() {
	s.cancel()
	close(s.sendQ)
	<-s.senderDone

	s.xfade.clear()
	s.frames.reset()
	s.smoother.Reset()
	s.ctrl.cache.PinTrack(s.trackID, false)
	if s.ctrl.warm != nil {
		s.ctrl.warm.UpdatePlayback(processor.Track{}, 0, "", 0, false)
	}
	s.ctrl.unregister(s)
	s.ctrl.metrics.StreamEnded()
	s.ctrl.permits.Release(1)
	s.ctrl.log.Debug("session cleaned up",
		"session_id", s.ID,
		"track_id", s.trackID,
		"final_state", s.State().String())
}

func payloadSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}
