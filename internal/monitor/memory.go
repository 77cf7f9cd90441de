// Package monitor samples host memory and applies the degradation policy:
// under pressure the cache ceilings shrink and the warming worker slows or
// pauses. Degradation never interrupts an in-progress chunk emission; it
// only acts through the cache's ceiling operation and the worker's
// pause/resume controls.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/matiaszanolli/auralis-go/internal/logging"
	"github.com/matiaszanolli/auralis-go/internal/observability"
)

// DefaultCheckInterval between memory samples.
const DefaultCheckInterval = 5 * time.Second

// Used-fraction thresholds for the degradation levels.
const (
	warningThreshold  = 0.75
	criticalThreshold = 0.85
)

// latencyElevatedFactor marks a sample loop as struggling when the gap
// since the previous tick exceeds this multiple of the interval, the
// signal that separates critical from emergency.
const latencyElevatedFactor = 3.0

const mb = 1024 * 1024

// Level is the degradation state, 0 = normal through 3 = emergency.
type Level int

const (
	LevelNormal Level = iota
	LevelWarning
	LevelCritical
	LevelEmergency
)

func (l Level) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	case LevelEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// ceilings are the per-level cache budgets.
type ceilings struct {
	tier1 int64
	tier2 int64
}

var levelCeilings = map[Level]ceilings{
	LevelNormal:    {tier1: 18 * mb, tier2: (36 + 45) * mb},
	LevelWarning:   {tier1: 12 * mb, tier2: 18 * mb},
	LevelCritical:  {tier1: 9 * mb, tier2: 0},
	LevelEmergency: {tier1: 6 * mb, tier2: 0},
}

// CacheControl is the cache surface the monitor drives.
type CacheControl interface {
	SetCeilings(tier1Bytes, tier2Bytes int64)
	ClearPredicted()
}

// WorkerControl is the worker surface the monitor drives.
type WorkerControl interface {
	Pause()
	Resume()
	SetThrottled(throttled bool)
}

// MemorySampler reports the host's used memory fraction. The gopsutil
// implementation is the default; tests substitute their own.
type MemorySampler func() (usedFraction float64, err error)

// GopsutilSampler reads virtual memory via gopsutil.
func GopsutilSampler() (float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent / 100.0, nil
}

// Monitor is the process-wide memory watchdog.
type Monitor struct {
	sampler  MemorySampler
	cache    CacheControl
	worker   WorkerControl
	interval time.Duration
	metrics  *observability.Metrics
	log      *slog.Logger

	mu           sync.Mutex
	level        Level
	lastTick     time.Time
	latencyHigh  bool
	sampleErrors int

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Monitor. A nil sampler uses gopsutil.
func New(sampler MemorySampler, cache CacheControl, workerCtl WorkerControl, interval time.Duration, metrics *observability.Metrics) *Monitor {
	log := logging.ForService("monitor")
	if log == nil {
		log = slog.Default()
	}
	if sampler == nil {
		sampler = GopsutilSampler
	}
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	return &Monitor{
		sampler:  sampler,
		cache:    cache,
		worker:   workerCtl,
		interval: interval,
		metrics:  metrics,
		log:      log.With("component", "memory_monitor"),
	}
}

// Start launches the sampling loop.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(ctx)
	m.log.Info("memory monitor started", "interval", m.interval)
}

// Stop halts the loop.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done

	m.mu.Lock()
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()
}

// Level returns the current degradation level.
func (m *Monitor) Level() Level {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)

	m.Check()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check()
		}
	}
}

// Check runs one sample and applies any level transition. Exported so
// tests and diagnostics can trigger it directly.
func (m *Monitor) Check() {
	now := time.Now()

	m.mu.Lock()
	if !m.lastTick.IsZero() {
		lateBy := now.Sub(m.lastTick)
		m.latencyHigh = lateBy > time.Duration(latencyElevatedFactor*float64(m.interval))
	}
	m.lastTick = now
	latencyHigh := m.latencyHigh
	m.mu.Unlock()

	used, err := m.sampler()
	if err != nil {
		m.mu.Lock()
		m.sampleErrors++
		m.mu.Unlock()
		m.log.Warn("memory sample failed", "error", err)
		return
	}

	target := m.levelFor(used, latencyHigh)
	m.applyLevel(target, used)
}

// levelFor maps a used fraction to a degradation level.
func (m *Monitor) levelFor(used float64, latencyHigh bool) Level {
	switch {
	case used >= criticalThreshold && latencyHigh:
		return LevelEmergency
	case used >= criticalThreshold:
		return LevelCritical
	case used >= warningThreshold:
		return LevelWarning
	default:
		return LevelNormal
	}
}

// applyLevel transitions to target if it differs from the current level.
func (m *Monitor) applyLevel(target Level, used float64) {
	m.mu.Lock()
	if target == m.level {
		m.mu.Unlock()
		return
	}
	previous := m.level
	m.level = target
	m.mu.Unlock()

	c := levelCeilings[target]
	m.cache.SetCeilings(c.tier1, c.tier2)
	if target >= LevelWarning {
		m.cache.ClearPredicted()
	}

	switch target {
	case LevelEmergency:
		m.worker.Pause()
	case LevelCritical:
		m.worker.Resume()
		m.worker.SetThrottled(true)
	default:
		m.worker.Resume()
		m.worker.SetThrottled(false)
	}

	m.metrics.SetDegradationLevel(int(target))
	m.log.Warn("memory degradation level changed",
		"from", previous.String(),
		"to", target.String(),
		"used_fraction", used,
		"tier1_ceiling_mb", c.tier1/mb,
		"tier2_ceiling_mb", c.tier2/mb)
}
