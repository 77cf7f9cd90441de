package chunkcache

import (
	"container/list"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/matiaszanolli/auralis-go/internal/errors"
	"github.com/matiaszanolli/auralis-go/internal/observability"
)

const component = "chunkcache"

// Tier names the cache level an entry lives in.
type Tier string

const (
	Tier1 Tier = "tier1"
	Tier2 Tier = "tier2"
	// TierAuto routes a put to Tier 1 when the key covers the playing
	// track's current or next chunk, else Tier 2.
	TierAuto Tier = "auto"
)

// tier1MaxEntries bounds the hot tier by count: {current, next} x
// {original, processed} plus up to two predicted-preset entries.
const tier1MaxEntries = 6

// Entry is one cached chunk payload. The cache owns the file at Path.
type Entry struct {
	Key          Key
	Path         string
	SampleRate   int
	Channels     int
	SampleCount  int
	SizeBytes    int64
	CreatedAt    time.Time
	LastAccessAt time.Time
	AccessCount  int64
	Tier         Tier
	Probability  float64 // prediction confidence, 1.0 for demanded entries
}

// tierState holds one tier's map, LRU order, and byte accounting.
type tierState struct {
	entries map[Key]*list.Element // value: *Entry
	lru     *list.List            // front = most recent
	size    int64
	ceiling int64
	hits    int64
}

func newTierState(ceiling int64) *tierState {
	return &tierState{
		entries: make(map[Key]*list.Element),
		lru:     list.New(),
		ceiling: ceiling,
	}
}

// playbackState tracks what "current" means for Tier 1 routing.
type playbackState struct {
	trackID      int64
	signature    string
	preset       string
	intensity    float64
	currentChunk int
	active       bool
}

// Cache is the process-wide two-tier chunk cache. All operations are
// thread-safe; no operation holds the lock across file I/O.
type Cache struct {
	mu       sync.Mutex
	dir      string
	tier1    *tierState
	tier2    *tierState
	playback playbackState
	// pinnedTrack protects the streaming session's own Tier-2 originals
	// from cross-track LRU while it is emitting.
	pinnedTrack   int64
	pinnedActive  bool
	misses  int64
	log     *slog.Logger
	metrics *observability.Metrics
}

// Stats reports cache occupancy, configuration, and lookup outcomes.
type Stats struct {
	Tier1Entries int
	Tier2Entries int
	Tier1Bytes   int64
	Tier2Bytes   int64
	Tier1Ceiling int64
	Tier2Ceiling int64
	Tier1Hits    int64
	Tier2Hits    int64
	Misses       int64
}

// HitRate returns the fraction of lookups served from either tier, 0 when
// nothing has been looked up yet.
func (s Stats) HitRate() float64 {
	total := s.Tier1Hits + s.Tier2Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Tier1Hits+s.Tier2Hits) / float64(total)
}

// New creates a cache rooted at dir with the given byte ceilings. Existing
// WAV payloads in dir are truncated: their keys are not recoverable across
// restarts and content is reproducible from track signatures. Foreign
// non-WAV files are left untouched.
func New(dir string, tier1Ceiling, tier2Ceiling int64, log *slog.Logger, metrics *observability.Metrics) (*Cache, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.New(err).
			Component(component).
			Category(errors.CategoryFileIO).
			Context("operation", "create_cache_dir").
			Context("path", dir).
			Build()
	}

	c := &Cache{
		dir:     dir,
		tier1:   newTierState(tier1Ceiling),
		tier2:   newTierState(tier2Ceiling),
		log:     log.With("component", "chunk_cache"),
		metrics: metrics,
	}
	c.truncateStalePayloads()
	return c, nil
}

// Dir returns the payload directory.
func (c *Cache) Dir() string {
	return c.dir
}

// truncateStalePayloads removes leftover chunk WAVs from a previous run.
func (c *Cache) truncateStalePayloads() {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.log.Warn("cannot scan cache directory", "path", c.dir, "error", err)
		return
	}
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "track_") || !strings.HasSuffix(name, ".wav") {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, name)); err == nil {
			removed++
		}
	}
	if removed > 0 {
		c.log.Info("truncated stale cache payloads", "count", removed)
	}
}

// Get returns the payload path and tier for a key, updating access
// metadata. Returns ok=false on a miss.
func (c *Cache) Get(key Key) (path string, tier Tier, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ts := range []struct {
		state *tierState
		tier  Tier
	}{{c.tier1, Tier1}, {c.tier2, Tier2}} {
		if el, found := ts.state.entries[key]; found {
			entry := el.Value.(*Entry)
			entry.LastAccessAt = time.Now()
			entry.AccessCount++
			ts.state.lru.MoveToFront(el)
			ts.state.hits++
			c.metrics.RecordCacheHit(string(ts.tier))
			return entry.Path, ts.tier, true
		}
	}
	c.misses++
	c.metrics.RecordCacheMiss()
	return "", "", false
}

// Contains is a non-mutating probe.
func (c *Cache) Contains(key Key) (bool, Tier) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, found := c.tier1.entries[key]; found {
		return true, Tier1
	}
	if _, found := c.tier2.entries[key]; found {
		return true, Tier2
	}
	return false, ""
}

// Put inserts an entry. With TierAuto the entry is routed by the playback
// state. The same key never lives in both tiers. Eviction happens before
// an insert would violate a ceiling; an entry larger than its tier's
// ceiling is rejected with a cache error and its file removed.
func (c *Cache) Put(entry *Entry, hint Tier) error {
	if entry == nil || entry.Path == "" {
		return errors.Newf("nil or pathless cache entry").
			Component(component).
			Category(errors.CategoryValidation).
			Build()
	}

	c.mu.Lock()
	tier := hint
	if tier == TierAuto {
		tier = c.routeAuto(entry.Key)
	}

	state := c.stateFor(tier)
	var doomed []string

	if entry.SizeBytes > state.ceiling {
		c.mu.Unlock()
		_ = os.Remove(entry.Path)
		return errors.Newf("entry of %d bytes exceeds %s ceiling of %d bytes",
			entry.SizeBytes, tier, state.ceiling).
			Component(component).
			Category(errors.CategoryCache).
			Context("key", entry.Key.String()).
			Build()
	}

	// A key lives in at most one tier.
	doomed = append(doomed, c.removeLocked(c.tier1, entry.Key, false)...)
	doomed = append(doomed, c.removeLocked(c.tier2, entry.Key, false)...)

	doomed = append(doomed, c.evictLocked(state, tier, entry.SizeBytes)...)

	entry.Tier = tier
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.LastAccessAt = entry.CreatedAt
	el := state.lru.PushFront(entry)
	state.entries[entry.Key] = el
	state.size += entry.SizeBytes

	if tier == Tier1 {
		doomed = append(doomed, c.enforceTier1CountLocked()...)
	}

	c.publishSizesLocked()
	c.mu.Unlock()

	c.deletePayloads(doomed)
	return nil
}

// EvictToFit evicts LRU entries from a tier until neededBytes fit under its
// ceiling. Pinned entries are skipped; failure to make room is a cache
// error.
func (c *Cache) EvictToFit(tier Tier, neededBytes int64) error {
	c.mu.Lock()
	state := c.stateFor(tier)
	if neededBytes > state.ceiling {
		c.mu.Unlock()
		return errors.Newf("%d bytes can never fit under %s ceiling of %d",
			neededBytes, tier, state.ceiling).
			Component(component).
			Category(errors.CategoryCache).
			Build()
	}
	doomed := c.evictLocked(state, tier, neededBytes)
	stillOver := state.size+neededBytes > state.ceiling
	// When still over, every unpinned entry was evicted, so what remains is
	// pinned.
	pinnedBytes := state.size
	c.publishSizesLocked()
	c.mu.Unlock()

	c.deletePayloads(doomed)

	if stillOver {
		return errors.Newf("cannot evict below %s ceiling, pinned entries hold %d bytes",
			tier, pinnedBytes).
			Component(component).
			Category(errors.CategoryCache).
			Build()
	}
	return nil
}

// UpdatePlaybackPosition informs the cache of the playback state. A track
// change purges Tier 1 entirely; a preset or intensity change leaves stale
// Tier-1 entries to age out by LRU; a position change only moves the
// current/next window for future routing.
func (c *Cache) UpdatePlaybackPosition(trackID int64, signature string, currentChunk int, preset string, intensity float64) {
	if preset == "" {
		preset = PresetNone
	}
	intensity = QuantizeIntensity(intensity)

	c.mu.Lock()
	var doomed []string
	if c.playback.active && c.playback.trackID != trackID {
		doomed = c.clearTierLocked(c.tier1, Tier1)
		c.log.Debug("track change purged tier 1",
			"old_track", c.playback.trackID,
			"new_track", trackID)
	}
	c.playback = playbackState{
		trackID:      trackID,
		signature:    signature,
		preset:       preset,
		intensity:    intensity,
		currentChunk: currentChunk,
		active:       true,
	}
	c.publishSizesLocked()
	c.mu.Unlock()

	c.deletePayloads(doomed)
}

// PinTrack protects a track's Tier-2 originals from cross-track LRU while
// a session streams it. Pass active=false when the session ends.
func (c *Cache) PinTrack(trackID int64, active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pinnedTrack = trackID
	c.pinnedActive = active
}

// SetCeilings resizes both tiers, evicting immediately when the current
// size exceeds a new ceiling. A zero tier2 ceiling clears the tier.
func (c *Cache) SetCeilings(tier1Bytes, tier2Bytes int64) {
	c.mu.Lock()
	c.tier1.ceiling = tier1Bytes
	c.tier2.ceiling = tier2Bytes

	var doomed []string
	doomed = append(doomed, c.evictLocked(c.tier1, Tier1, 0)...)
	if tier2Bytes == 0 {
		doomed = append(doomed, c.clearTierLocked(c.tier2, Tier2)...)
	} else {
		doomed = append(doomed, c.evictLocked(c.tier2, Tier2, 0)...)
	}
	c.publishSizesLocked()
	c.mu.Unlock()

	c.deletePayloads(doomed)
}

// ClearPredicted evicts the speculative Tier-1 entries (probability below
// 1), the degradation policy's extra-tier clearing.
func (c *Cache) ClearPredicted() {
	c.mu.Lock()
	var doomed []string
	el := c.tier1.lru.Front()
	for el != nil {
		next := el.Next()
		entry := el.Value.(*Entry)
		if entry.Probability < 1.0 {
			c.tier1.lru.Remove(el)
			delete(c.tier1.entries, entry.Key)
			c.tier1.size -= entry.SizeBytes
			doomed = append(doomed, entry.Path)
			c.metrics.RecordCacheEviction(string(Tier1))
		}
		el = next
	}
	c.publishSizesLocked()
	c.mu.Unlock()

	c.deletePayloads(doomed)
}

// ClearAll empties both tiers and deletes their payloads.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	doomed := c.clearTierLocked(c.tier1, Tier1)
	doomed = append(doomed, c.clearTierLocked(c.tier2, Tier2)...)
	c.publishSizesLocked()
	c.mu.Unlock()

	c.deletePayloads(doomed)
}

// Stats returns occupancy counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Tier1Entries: len(c.tier1.entries),
		Tier2Entries: len(c.tier2.entries),
		Tier1Bytes:   c.tier1.size,
		Tier2Bytes:   c.tier2.size,
		Tier1Ceiling: c.tier1.ceiling,
		Tier2Ceiling: c.tier2.ceiling,
		Tier1Hits:    c.tier1.hits,
		Tier2Hits:    c.tier2.hits,
		Misses:       c.misses,
	}
}

// --- internal, caller holds the lock ---

func (c *Cache) stateFor(tier Tier) *tierState {
	if tier == Tier1 {
		return c.tier1
	}
	return c.tier2
}

// routeAuto sends current/next chunks of the playing track's working set to
// Tier 1.
func (c *Cache) routeAuto(key Key) Tier {
	p := c.playback
	if !p.active || key.TrackID != p.trackID || key.Signature != p.signature {
		return Tier2
	}
	if key.ChunkIndex != p.currentChunk && key.ChunkIndex != p.currentChunk+1 {
		return Tier2
	}
	if key.IsOriginal() {
		return Tier1
	}
	if key.Preset == p.preset && key.Intensity == p.intensity {
		return Tier1
	}
	return Tier2
}

// isPinned reports whether an entry must survive cross-track LRU.
func (c *Cache) isPinned(entry *Entry) bool {
	return c.pinnedActive &&
		entry.Tier == Tier2 &&
		entry.Key.TrackID == c.pinnedTrack &&
		entry.Key.IsOriginal()
}

// evictLocked drops LRU entries until size+needed fits the ceiling,
// skipping pinned entries. Returns payload paths to delete after unlock.
func (c *Cache) evictLocked(state *tierState, tier Tier, neededBytes int64) []string {
	var doomed []string
	el := state.lru.Back()
	for el != nil && state.size+neededBytes > state.ceiling {
		prev := el.Prev()
		entry := el.Value.(*Entry)
		if !c.isPinned(entry) {
			state.lru.Remove(el)
			delete(state.entries, entry.Key)
			state.size -= entry.SizeBytes
			doomed = append(doomed, entry.Path)
			c.metrics.RecordCacheEviction(string(tier))
		}
		el = prev
	}
	return doomed
}

// enforceTier1CountLocked keeps the hot tier at its entry bound. Predicted
// entries (probability < 1) go before demanded ones, LRU within each group.
func (c *Cache) enforceTier1CountLocked() []string {
	var doomed []string
	for len(c.tier1.entries) > tier1MaxEntries {
		el := c.tier1.lru.Back()
		for cand := el; cand != nil; cand = cand.Prev() {
			if cand.Value.(*Entry).Probability < 1.0 {
				el = cand
				break
			}
		}
		if el == nil {
			break
		}
		entry := el.Value.(*Entry)
		c.tier1.lru.Remove(el)
		delete(c.tier1.entries, entry.Key)
		c.tier1.size -= entry.SizeBytes
		doomed = append(doomed, entry.Path)
		c.metrics.RecordCacheEviction(string(Tier1))
	}
	return doomed
}

// removeLocked drops a single key from a tier if present.
func (c *Cache) removeLocked(state *tierState, key Key, deleteFile bool) []string {
	el, found := state.entries[key]
	if !found {
		return nil
	}
	entry := el.Value.(*Entry)
	state.lru.Remove(el)
	delete(state.entries, key)
	state.size -= entry.SizeBytes
	if deleteFile {
		return []string{entry.Path}
	}
	return nil
}

// clearTierLocked empties a tier and returns every payload path.
func (c *Cache) clearTierLocked(state *tierState, tier Tier) []string {
	doomed := make([]string, 0, len(state.entries))
	for el := state.lru.Front(); el != nil; el = el.Next() {
		doomed = append(doomed, el.Value.(*Entry).Path)
		c.metrics.RecordCacheEviction(string(tier))
	}
	state.entries = make(map[Key]*list.Element)
	state.lru.Init()
	state.size = 0
	return doomed
}

func (c *Cache) publishSizesLocked() {
	c.metrics.SetCacheSize(string(Tier1), c.tier1.size)
	c.metrics.SetCacheSize(string(Tier2), c.tier2.size)
}

// deletePayloads removes files outside the critical section. The cache is
// the sole owner of payload files.
func (c *Cache) deletePayloads(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			c.log.Warn("failed to delete evicted payload", "path", p, "error", err)
		}
	}
}
