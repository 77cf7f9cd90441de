// Package worker runs the background cache warming task. A single worker
// wakes on a timer, computes the missing cache keys for the playing track
// in priority order, and materializes them through the chunk processor. It
// never blocks or cancels the streaming controller; every failure is
// logged and swallowed.
package worker

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/matiaszanolli/auralis-go/internal/chunkcache"
	"github.com/matiaszanolli/auralis-go/internal/chunkgeo"
	"github.com/matiaszanolli/auralis-go/internal/logging"
	"github.com/matiaszanolli/auralis-go/internal/observability"
	"github.com/matiaszanolli/auralis-go/internal/predictor"
	"github.com/matiaszanolli/auralis-go/internal/processor"
)

// DefaultCheckInterval is the wake period.
const DefaultCheckInterval = time.Second

// minPredictionScore filters low-confidence preset predictions out of the
// warming queue.
const minPredictionScore = 0.15

// tier2Lookahead is the exclusive end offset, from the current chunk, of
// the Tier 2 fill for the current preset (offsets 2..9).
const tier2Lookahead = 10

// Timeouts holds the per-priority processing budgets.
type Timeouts struct {
	Priority0 time.Duration
	Priority1 time.Duration
	Priority2 time.Duration
	Priority3 time.Duration // shared by priorities 3 and 4
}

// DefaultTimeouts returns the standard 20/30/60/90 s budgets.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Priority0: 20 * time.Second,
		Priority1: 30 * time.Second,
		Priority2: 60 * time.Second,
		Priority3: 90 * time.Second,
	}
}

func (t Timeouts) forPriority(priority int) time.Duration {
	switch priority {
	case 0:
		return t.Priority0
	case 1:
		return t.Priority1
	case 2:
		return t.Priority2
	default:
		return t.Priority3
	}
}

// workItem is one missing cache key with its warming priority.
type workItem struct {
	priority   int
	preset     string // chunkcache.PresetNone for originals
	chunkIndex int
	tierHint   chunkcache.Tier
	score      float64
}

// playback is the worker's view of the active session.
type playback struct {
	track     processor.Track
	positionS float64
	preset    string
	intensity float64
	active    bool
}

// Worker is the process-wide cache warming task.
type Worker struct {
	cache     *chunkcache.Cache
	proc      *processor.Processor
	predict   predictor.Predictor
	timeouts  Timeouts
	interval  time.Duration
	metrics *observability.Metrics
	log     *slog.Logger

	mu       sync.Mutex
	state    playback
	paused   bool
	throttle bool // reduced throughput under memory pressure

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Worker.
func New(cache *chunkcache.Cache, proc *processor.Processor, predict predictor.Predictor, timeouts Timeouts, interval time.Duration, metrics *observability.Metrics) *Worker {
	log := logging.ForService("worker")
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	return &Worker{
		cache:    cache,
		proc:     proc,
		predict:  predict,
		timeouts: timeouts,
		interval: interval,
		metrics:  metrics,
		log:      log.With("component", "cache_worker"),
	}
}

// Start launches the worker loop. Calling Start twice is a no-op.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.loop(ctx)
	w.log.Info("cache worker started", "interval", w.interval)
}

// Stop cancels the loop and waits for the in-flight item to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done

	w.mu.Lock()
	w.cancel = nil
	w.done = nil
	w.mu.Unlock()
	w.log.Info("cache worker stopped")
}

// Pause idles the worker after its current item; Resume restarts it.
func (w *Worker) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.paused {
		w.paused = true
		w.log.Info("cache worker paused")
	}
}

// Resume lifts a pause.
func (w *Worker) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.paused {
		w.paused = false
		w.log.Info("cache worker resumed")
	}
}

// Paused reports the pause flag.
func (w *Worker) Paused() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.paused
}

// SetThrottled reduces per-wake throughput, used by the degradation policy.
func (w *Worker) SetThrottled(throttled bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.throttle = throttled
}

// UpdatePlayback tells the worker what to warm. Passing active=false idles
// it.
func (w *Worker) UpdatePlayback(track processor.Track, positionS float64, preset string, intensity float64, active bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = playback{
		track:     track,
		positionS: positionS,
		preset:    preset,
		intensity: chunkcache.QuantizeIntensity(intensity),
		active:    active,
	}
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.wake(ctx)
		}
	}
}

// wake runs one warming pass: at most one Priority-0/1 item plus, when the
// urgent queue is empty, up to two Priority-3/4 items.
func (w *Worker) wake(ctx context.Context) {
	w.mu.Lock()
	state := w.state
	paused := w.paused
	throttled := w.throttle
	w.mu.Unlock()

	if paused || !state.active {
		return
	}
	if _, err := os.Stat(state.track.Path); err != nil {
		w.log.Warn("track file unavailable, skipping warm pass",
			"track_id", state.track.ID, "error", err)
		return
	}

	items := w.missingItems(state)
	if len(items) == 0 {
		return
	}

	urgent := items[0].priority <= 2
	budget := 1
	if !urgent {
		budget = 2
		if throttled {
			budget = 1
		}
	}

	for i := 0; i < len(items) && budget > 0; i++ {
		if ctx.Err() != nil {
			return
		}
		item := items[i]
		if urgent && item.priority > 2 {
			break // one urgent item per wake, background fill waits
		}
		w.processItem(ctx, state, item)
		budget--
	}
}

// missingItems builds the prioritized list of cache keys the playing track
// is missing.
//
// Priority 0: original and current-preset processed for the current chunk.
// Priority 1: the same pair for the next chunk.
// Priority 2: predicted presets for current and next.
// Priority 3: current preset, chunks current+2..current+9, into Tier 2.
// Priority 4: originals for the rest of the track, into Tier 2.
func (w *Worker) missingItems(state playback) []workItem {
	geo := chunkgeo.New(state.track.DurationS, 44100)
	current := geo.ChunkForPosition(state.positionS)
	total := geo.TotalChunks()

	var items []workItem
	add := func(priority int, preset string, chunkIdx int, tier chunkcache.Tier, score float64) {
		if chunkIdx < 0 || chunkIdx >= total {
			return
		}
		key := chunkcache.NewKey(state.track.ID, state.track.Signature, preset, state.intensity, chunkIdx)
		if found, _ := w.cache.Contains(key); found {
			return
		}
		items = append(items, workItem{
			priority:   priority,
			preset:     preset,
			chunkIndex: chunkIdx,
			tierHint:   tier,
			score:      score,
		})
	}

	for offset := 0; offset <= 1; offset++ {
		add(offset, chunkcache.PresetNone, current+offset, chunkcache.Tier1, 1.0)
		add(offset, state.preset, current+offset, chunkcache.Tier1, 1.0)
	}

	if w.predict != nil {
		predictions := w.predict.PredictNextPresets(state.preset)
		if len(predictions) > 2 {
			predictions = predictions[:2]
		}
		for _, pred := range predictions {
			if pred.Score < minPredictionScore || pred.Preset == state.preset {
				continue
			}
			add(2, pred.Preset, current, chunkcache.Tier1, pred.Score)
			add(2, pred.Preset, current+1, chunkcache.Tier1, pred.Score)
		}
	}

	for offset := 2; offset < tier2Lookahead; offset++ {
		add(3, state.preset, current+offset, chunkcache.Tier2, 0.6)
	}

	for idx := 0; idx < total; idx++ {
		add(4, chunkcache.PresetNone, idx, chunkcache.Tier2, 0.5)
	}

	return items
}

// processItem materializes one chunk under its priority timeout. Timeouts
// drop the item silently; other failures are logged and swallowed.
func (w *Worker) processItem(ctx context.Context, state playback, item workItem) {
	timeout := w.timeouts.forPriority(item.priority)
	itemCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	priorityLabel := priorityName(item.priority)

	res, err := w.proc.ProcessChunk(itemCtx, state.track, item.preset, state.intensity, item.chunkIndex)
	if err != nil {
		if itemCtx.Err() != nil {
			w.metrics.RecordWorkerItem(priorityLabel, "timeout")
			return // dropped silently per the priority discipline
		}
		w.metrics.RecordWorkerItem(priorityLabel, "error")
		w.log.Warn("failed to warm chunk",
			"priority", priorityLabel,
			"track_id", state.track.ID,
			"chunk_index", item.chunkIndex,
			"preset", item.preset,
			"error", err)
		return
	}

	entry := &chunkcache.Entry{
		Key:         res.Key,
		Path:        res.PayloadPath,
		SampleRate:  res.SampleRate,
		Channels:    res.Channels,
		SampleCount: res.CoreFrames,
		SizeBytes:   fileSize(res.PayloadPath),
		Probability: item.score,
	}
	if err := w.cache.Put(entry, item.tierHint); err != nil {
		w.metrics.RecordWorkerItem(priorityLabel, "cache_error")
		w.log.Warn("failed to cache warmed chunk",
			"priority", priorityLabel,
			"key", res.Key.String(),
			"error", err)
		return
	}

	w.metrics.RecordWorkerItem(priorityLabel, "ok")
	w.log.Debug("warmed chunk",
		"priority", priorityLabel,
		"track_id", state.track.ID,
		"chunk_index", item.chunkIndex,
		"preset", item.preset)
}

func priorityName(p int) string {
	switch p {
	case 0:
		return "p0"
	case 1:
		return "p1"
	case 2:
		return "p2"
	case 3:
		return "p3"
	default:
		return "p4"
	}
}

func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}
