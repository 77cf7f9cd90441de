package streaming

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/matiaszanolli/auralis-go/internal/chunkcache"
	"github.com/matiaszanolli/auralis-go/internal/logging"
	"github.com/matiaszanolli/auralis-go/internal/observability"
	"github.com/matiaszanolli/auralis-go/internal/processor"
	"github.com/matiaszanolli/auralis-go/internal/worker"
)

// Transport is the duplex channel a session emits to. Connected must be
// cheap; the session polls it at both liveness checkpoints.
type Transport interface {
	Send(msg Message) error
	Connected() bool
}

// TrackSource resolves track ids to playable files. The core never opens
// user-provided paths directly.
type TrackSource interface {
	GetTrack(id int64) (processor.Track, bool)
}

// Config carries the streaming knobs.
type Config struct {
	MaxConcurrentStreams int
	SendQueueMaxsize     int
	XfadeMs              int
	MaxLevelChangeDB     float64
	FrameBytes           int
	// AcquireTimeout bounds the wait for a stream permit.
	AcquireTimeout time.Duration
}

// DefaultConfig returns the standard streaming configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentStreams: 4,
		SendQueueMaxsize:     8,
		XfadeMs:              200,
		MaxLevelChangeDB:     1.5,
		FrameBytes:           32768,
		AcquireTimeout:       2 * time.Second,
	}
}

// Controller owns the global stream permit pool and the active session
// registry. One controller serves every connection.
type Controller struct {
	cfg     Config
	cache   *chunkcache.Cache
	proc    *processor.Processor
	warm    *worker.Worker // may be nil in tests
	tracks  TrackSource
	permits *semaphore.Weighted
	metrics *observability.Metrics
	log     *slog.Logger

	mu            sync.Mutex
	activeStreams map[int64]*Session
}

// NewController creates a streaming controller.
func NewController(cfg Config, cache *chunkcache.Cache, proc *processor.Processor, warm *worker.Worker, tracks TrackSource, metrics *observability.Metrics) *Controller {
	log := logging.ForService("streaming")
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxConcurrentStreams < 1 {
		cfg.MaxConcurrentStreams = 1
	}
	if cfg.SendQueueMaxsize < 1 {
		cfg.SendQueueMaxsize = 1
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = 2 * time.Second
	}
	return &Controller{
		cfg:           cfg,
		cache:         cache,
		proc:          proc,
		warm:          warm,
		tracks:        tracks,
		permits:       semaphore.NewWeighted(int64(cfg.MaxConcurrentStreams)),
		metrics:       metrics,
		log:           log.With("component", "stream_controller"),
		activeStreams: make(map[int64]*Session),
	}
}

// StartStream begins streaming a track from positionS. Any session already
// streaming the track is stopped first: seeks and preset changes restart
// the session at the chunk containing the position.
func (c *Controller) StartStream(transport Transport, trackID int64, preset string, intensity float64, positionS float64) *Session {
	c.StopTrack(trackID)

	s := newSession(c, transport, trackID, preset, intensity, positionS)
	go s.run()
	return s
}

// StopTrack ends the session streaming trackID, if any, and waits for its
// cleanup to finish.
func (c *Controller) StopTrack(trackID int64) {
	c.mu.Lock()
	s := c.activeStreams[trackID]
	c.mu.Unlock()
	if s != nil {
		s.Stop()
		<-s.Done()
	}
}

// StopAll ends every active session.
func (c *Controller) StopAll() {
	c.mu.Lock()
	sessions := make([]*Session, 0, len(c.activeStreams))
	for _, s := range c.activeStreams {
		sessions = append(sessions, s)
	}
	c.mu.Unlock()
	for _, s := range sessions {
		s.Stop()
		<-s.Done()
	}
}

// CacheStats snapshots the chunk cache for the stats surface.
func (c *Controller) CacheStats() CacheStats {
	stats := c.cache.Stats()
	return CacheStats{
		Tier1Entries: stats.Tier1Entries,
		Tier2Entries: stats.Tier2Entries,
		Tier1Bytes:   stats.Tier1Bytes,
		Tier2Bytes:   stats.Tier2Bytes,
		Tier1Ceiling: stats.Tier1Ceiling,
		Tier2Ceiling: stats.Tier2Ceiling,
		Tier1Hits:    stats.Tier1Hits,
		Tier2Hits:    stats.Tier2Hits,
		Misses:       stats.Misses,
		HitRate:      stats.HitRate(),
	}
}

// ActiveCount returns the number of registered sessions.
func (c *Controller) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.activeStreams)
}

// AvailablePermits reports how many stream permits are free. Test hook for
// the cleanup contract.
func (c *Controller) AvailablePermits() int {
	free := 0
	for int64(free) < int64(c.cfg.MaxConcurrentStreams) && c.permits.TryAcquire(1) {
		free++
	}
	for i := 0; i < free; i++ {
		c.permits.Release(1)
	}
	return free
}

func (c *Controller) register(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeStreams[s.trackID] = s
}

func (c *Controller) unregister(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeStreams[s.trackID] == s {
		delete(c.activeStreams, s.trackID)
	}
}

// acquirePermit blocks up to the configured timeout for a stream slot.
func (c *Controller) acquirePermit(ctx context.Context) bool {
	acquireCtx, cancel := context.WithTimeout(ctx, c.cfg.AcquireTimeout)
	defer cancel()
	return c.permits.Acquire(acquireCtx, 1) == nil
}
