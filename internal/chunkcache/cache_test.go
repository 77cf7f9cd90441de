package chunkcache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matiaszanolli/auralis-go/internal/errors"
)

func newTestCache(t *testing.T, tier1, tier2 int64) *Cache {
	t.Helper()
	c, err := New(t.TempDir(), tier1, tier2, nil, nil)
	require.NoError(t, err)
	return c
}

// writePayload creates a payload file of size bytes and returns an entry
// for it.
func writePayload(t *testing.T, c *Cache, key Key, size int64) *Entry {
	t.Helper()
	path := key.Path(c.Dir())
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return &Entry{
		Key:         key,
		Path:        path,
		SampleRate:  44100,
		Channels:    2,
		SampleCount: int(size / 4),
		SizeBytes:   size,
		Probability: 1.0,
	}
}

func TestKeyQuantization(t *testing.T) {
	t.Parallel()

	a := NewKey(1, "sig", "adaptive", 0.8012, 0)
	b := NewKey(1, "sig", "adaptive", 0.7999, 0)
	assert.Equal(t, a, b, "near-identical intensities collide deterministically")

	c := NewKey(1, "sig", "adaptive", 0.75, 0)
	assert.NotEqual(t, a, c)
}

func TestKeyOriginalAndProcessedDistinct(t *testing.T) {
	t.Parallel()

	original := NewKey(1, "sig", "", 1.0, 0)
	processed := NewKey(1, "sig", "adaptive", 1.0, 0)
	assert.True(t, original.IsOriginal())
	assert.NotEqual(t, original, processed)
	assert.NotEqual(t, original.Filename(), processed.Filename())
}

func TestKeyFilenameLayout(t *testing.T) {
	t.Parallel()

	k := NewKey(42, "abc123", "punchy", 0.8, 3)
	assert.Equal(t, "track_42_abc123_punchy_0.80_chunk_3.wav", k.Filename())

	orig := NewKey(42, "abc123", "", 1.0, 0)
	assert.Equal(t, "track_42_abc123_none_1.00_chunk_0.wav", orig.Filename())
}

func TestPutGetRoundTrip(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 1<<20, 1<<20)
	key := NewKey(1, "sig", "adaptive", 1.0, 0)
	entry := writePayload(t, c, key, 1000)

	require.NoError(t, c.Put(entry, Tier2))

	path, tier, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, Tier2, tier)
	assert.Equal(t, entry.Path, path)

	found, tier := c.Contains(key)
	assert.True(t, found)
	assert.Equal(t, Tier2, tier)
}

func TestGetMiss(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 1<<20, 1<<20)
	_, _, ok := c.Get(NewKey(9, "x", "adaptive", 1.0, 0))
	assert.False(t, ok)
}

func TestGetUpdatesAccessMetadata(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 1<<20, 1<<20)
	key := NewKey(1, "sig", "adaptive", 1.0, 0)
	entry := writePayload(t, c, key, 100)
	require.NoError(t, c.Put(entry, Tier2))

	c.Get(key)
	c.Get(key)
	assert.Equal(t, int64(2), entry.AccessCount)
	assert.False(t, entry.LastAccessAt.IsZero())
}

func TestKeyInAtMostOneTier(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 1<<20, 1<<20)
	key := NewKey(1, "sig", "adaptive", 1.0, 0)

	require.NoError(t, c.Put(writePayload(t, c, key, 100), Tier2))
	require.NoError(t, c.Put(writePayload(t, c, key, 100), Tier1))

	stats := c.Stats()
	assert.Equal(t, 1, stats.Tier1Entries)
	assert.Zero(t, stats.Tier2Entries)
}

func TestCeilingEnforcedBeforeInsert(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 1<<20, 2500)
	for i := 0; i < 5; i++ {
		key := NewKey(1, "sig", "", 1.0, i)
		require.NoError(t, c.Put(writePayload(t, c, key, 1000), Tier2))
		stats := c.Stats()
		assert.LessOrEqual(t, stats.Tier2Bytes, stats.Tier2Ceiling,
			"ceiling may never be exceeded")
	}
	// 2500-byte ceiling holds two 1000-byte entries.
	assert.Equal(t, 2, c.Stats().Tier2Entries)
}

func TestEvictionDeletesPayloadFiles(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 1<<20, 2000)
	k0 := NewKey(1, "sig", "", 1.0, 0)
	k1 := NewKey(1, "sig", "", 1.0, 1)
	e0 := writePayload(t, c, k0, 1500)
	require.NoError(t, c.Put(e0, Tier2))
	require.NoError(t, c.Put(writePayload(t, c, k1, 1500), Tier2))

	// k0 was evicted to make room, so its file is gone.
	_, err := os.Stat(e0.Path)
	assert.True(t, os.IsNotExist(err))

	found, _ := c.Contains(k0)
	assert.False(t, found)
}

func TestLRUOrderRespected(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 1<<20, 3000)
	k0 := NewKey(1, "sig", "", 1.0, 0)
	k1 := NewKey(1, "sig", "", 1.0, 1)
	require.NoError(t, c.Put(writePayload(t, c, k0, 1000), Tier2))
	require.NoError(t, c.Put(writePayload(t, c, k1, 1000), Tier2))

	// Touch k0 so k1 becomes least recently used.
	c.Get(k0)

	k2 := NewKey(1, "sig", "", 1.0, 2)
	require.NoError(t, c.Put(writePayload(t, c, k2, 2000), Tier2))

	found, _ := c.Contains(k0)
	assert.True(t, found, "recently used entry survives")
	found, _ = c.Contains(k1)
	assert.False(t, found, "least recently used entry evicted")
}

func TestOversizedEntryRejected(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 1<<20, 1000)
	key := NewKey(1, "sig", "", 1.0, 0)
	entry := writePayload(t, c, key, 5000)

	err := c.Put(entry, Tier2)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryCache))

	// The rejected payload is removed, not leaked.
	_, statErr := os.Stat(entry.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestAutoRoutingTier1Window(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 1<<20, 1<<20)
	c.UpdatePlaybackPosition(1, "sig", 3, "adaptive", 1.0)

	tests := []struct {
		name string
		key  Key
		want Tier
	}{
		{"current original", NewKey(1, "sig", "", 1.0, 3), Tier1},
		{"current processed", NewKey(1, "sig", "adaptive", 1.0, 3), Tier1},
		{"next processed", NewKey(1, "sig", "adaptive", 1.0, 4), Tier1},
		{"far future chunk", NewKey(1, "sig", "adaptive", 1.0, 7), Tier2},
		{"past chunk", NewKey(1, "sig", "adaptive", 1.0, 2), Tier2},
		{"other preset", NewKey(1, "sig", "punchy", 1.0, 3), Tier2},
		{"other track", NewKey(2, "osig", "adaptive", 1.0, 3), Tier2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, c.Put(writePayload(t, c, tt.key, 100), TierAuto))
			_, tier, ok := c.Get(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.want, tier)
		})
	}
}

func TestTrackChangePurgesTier1(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 1<<20, 1<<20)
	c.UpdatePlaybackPosition(1, "sig", 0, "adaptive", 1.0)

	k := NewKey(1, "sig", "adaptive", 1.0, 0)
	e := writePayload(t, c, k, 100)
	require.NoError(t, c.Put(e, TierAuto))
	require.Equal(t, 1, c.Stats().Tier1Entries)

	k2 := NewKey(1, "sig", "", 1.0, 5)
	require.NoError(t, c.Put(writePayload(t, c, k2, 100), TierAuto)) // tier2

	c.UpdatePlaybackPosition(2, "sig2", 0, "adaptive", 1.0)

	stats := c.Stats()
	assert.Zero(t, stats.Tier1Entries, "tier 1 cleared on track change")
	assert.Equal(t, 1, stats.Tier2Entries, "tier 2 untouched by track change")

	_, err := os.Stat(e.Path)
	assert.True(t, os.IsNotExist(err), "purged payload deleted")
}

func TestPresetChangeKeepsStaleTier1Entries(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 1<<20, 1<<20)
	c.UpdatePlaybackPosition(1, "sig", 0, "adaptive", 1.0)

	k := NewKey(1, "sig", "adaptive", 1.0, 0)
	require.NoError(t, c.Put(writePayload(t, c, k, 100), TierAuto))

	// Same track, different preset: stale entries stay, eligible for LRU.
	c.UpdatePlaybackPosition(1, "sig", 0, "punchy", 1.0)
	found, tier := c.Contains(k)
	assert.True(t, found)
	assert.Equal(t, Tier1, tier)
}

func TestTier1CountBound(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 1<<20, 1<<20)
	c.UpdatePlaybackPosition(1, "sig", 0, "adaptive", 1.0)

	for i := 0; i < 10; i++ {
		k := NewKey(1, "sig", "adaptive", 1.0, 0)
		k.Intensity = QuantizeIntensity(float64(i) * 0.1)
		require.NoError(t, c.Put(writePayload(t, c, k, 100), Tier1))
	}
	assert.LessOrEqual(t, c.Stats().Tier1Entries, tier1MaxEntries)
}

func TestPinnedEntriesSurviveEviction(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 1<<20, 2500)
	c.PinTrack(1, true)

	pinned := NewKey(1, "sig", "", 1.0, 0)
	require.NoError(t, c.Put(writePayload(t, c, pinned, 1000), Tier2))

	// Background warming of another track wants the space.
	for i := 0; i < 4; i++ {
		k := NewKey(2, "other", "", 1.0, i)
		require.NoError(t, c.Put(writePayload(t, c, k, 1000), Tier2))
	}

	found, _ := c.Contains(pinned)
	assert.True(t, found, "session's own originals survive cross-track warming")

	// Unpinning makes it evictable again.
	c.PinTrack(1, false)
	k := NewKey(2, "other", "", 1.0, 9)
	require.NoError(t, c.Put(writePayload(t, c, k, 2000), Tier2))
	assert.LessOrEqual(t, c.Stats().Tier2Bytes, int64(2500))
}

func TestSetCeilingsEvictsImmediately(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 1<<20, 1<<20)
	for i := 0; i < 5; i++ {
		k := NewKey(1, "sig", "", 1.0, i)
		require.NoError(t, c.Put(writePayload(t, c, k, 1000), Tier2))
	}
	require.Equal(t, 5, c.Stats().Tier2Entries)

	c.SetCeilings(1<<20, 2000)
	stats := c.Stats()
	assert.LessOrEqual(t, stats.Tier2Bytes, int64(2000))

	// A zero ceiling clears the tier entirely.
	c.SetCeilings(1<<20, 0)
	assert.Zero(t, c.Stats().Tier2Entries)
}

func TestClearAll(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 1<<20, 1<<20)
	c.UpdatePlaybackPosition(1, "sig", 0, "adaptive", 1.0)
	require.NoError(t, c.Put(writePayload(t, c, NewKey(1, "sig", "adaptive", 1.0, 0), 100), TierAuto))
	require.NoError(t, c.Put(writePayload(t, c, NewKey(1, "sig", "", 1.0, 7), 100), TierAuto))

	c.ClearAll()
	stats := c.Stats()
	assert.Zero(t, stats.Tier1Entries)
	assert.Zero(t, stats.Tier2Entries)
	assert.Zero(t, stats.Tier1Bytes)
	assert.Zero(t, stats.Tier2Bytes)
}

func TestStartupTruncatesStalePayloads(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stale := filepath.Join(dir, "track_1_old_none_1.00_chunk_0.wav")
	require.NoError(t, os.WriteFile(stale, []byte("stale"), 0o644))
	foreign := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(foreign, []byte("keep me"), 0o644))

	_, err := New(dir, 1<<20, 1<<20, nil, nil)
	require.NoError(t, err)

	_, statErr := os.Stat(stale)
	assert.True(t, os.IsNotExist(statErr), "stale payloads truncated at startup")
	_, statErr = os.Stat(foreign)
	assert.NoError(t, statErr, "foreign files untouched")
}

func TestStatsTrackLookupOutcomes(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 1<<20, 1<<20)
	key := NewKey(1, "sig", "adaptive", 1.0, 0)

	c.Get(key) // miss
	require.NoError(t, c.Put(writePayload(t, c, key, 100), Tier1))
	c.Get(key) // tier1 hit
	c.Get(key) // tier1 hit

	warm := NewKey(1, "sig", "", 1.0, 5)
	require.NoError(t, c.Put(writePayload(t, c, warm, 100), Tier2))
	c.Get(warm) // tier2 hit

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Tier1Hits)
	assert.Equal(t, int64(1), stats.Tier2Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.75, stats.HitRate(), 1e-9)
}

func TestHitRateEmptyCache(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 1<<20, 1<<20)
	assert.Zero(t, c.Stats().HitRate())
}

// Filesystem consistency: whatever Contains reports must exist on disk.
func TestContainsImpliesPayloadExists(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 1<<20, 4000)
	keys := make([]Key, 8)
	for i := range keys {
		keys[i] = NewKey(1, "sig", "", 1.0, i)
		require.NoError(t, c.Put(writePayload(t, c, keys[i], 900), Tier2))
	}
	for _, k := range keys {
		if found, _ := c.Contains(k); found {
			_, err := os.Stat(k.Path(c.Dir()))
			assert.NoError(t, err, "key %s", k)
		}
	}
}
