package bridge

import (
	"sync"
	"time"

	"github.com/go-drift/hostbridge/pkg/executor"
)

const (
	tickTraceSamplesDefault   = 240
	defaultTickTraceThreshold = 16667 * time.Microsecond
)

// TickSample is a single tick trace sample.
type TickSample struct {
	Timestamp int64               `json:"ts"`
	Tick      uint64              `json:"tick"`
	TickMs    float64             `json:"tickMs"`
	Fired     int                 `json:"fired"`
	Flush     executor.FlushStats `json:"flush"`
	Roots     int                 `json:"roots"`
	Nodes     int                 `json:"nodes"`
	Error     string              `json:"error,omitempty"`
}

// TickTimeline is the debug server response shape.
type TickTimeline struct {
	Samples     []TickSample `json:"samples"`
	SlowTicks   int          `json:"slowTicks"`
	FailedTicks int          `json:"failedTicks"`
	ThresholdMs float64      `json:"thresholdMs"`
}

// TickTraceBuffer stores recent tick samples in a ring buffer.
type TickTraceBuffer struct {
	mu        sync.RWMutex
	samples   []TickSample
	index     int
	count     int
	slow      int
	failed    int
	threshold time.Duration
}

// NewTickTraceBuffer creates a tick trace buffer. Non-positive arguments
// select the defaults.
func NewTickTraceBuffer(capacity int, threshold time.Duration) *TickTraceBuffer {
	if capacity <= 0 {
		capacity = tickTraceSamplesDefault
	}
	if threshold <= 0 {
		threshold = defaultTickTraceThreshold
	}
	return &TickTraceBuffer{
		samples:   make([]TickSample, capacity),
		threshold: threshold,
	}
}

// Capacity returns the buffer capacity.
func (b *TickTraceBuffer) Capacity() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.samples)
}

// Threshold returns the slow tick threshold.
func (b *TickTraceBuffer) Threshold() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.threshold
}

// Add records a sample. Ticks longer than the threshold count as slow, and
// samples carrying an error count as failed.
func (b *TickTraceBuffer) Add(sample TickSample, tickDuration time.Duration) {
	b.mu.Lock()
	b.samples[b.index] = sample
	b.index = (b.index + 1) % len(b.samples)
	if b.count < len(b.samples) {
		b.count++
	}
	if tickDuration > b.threshold {
		b.slow++
	}
	if sample.Error != "" {
		b.failed++
	}
	b.mu.Unlock()
}

// Snapshot returns a chronological copy of samples and counters.
func (b *TickTraceBuffer) Snapshot() TickTimeline {
	b.mu.RLock()
	defer b.mu.RUnlock()

	timeline := TickTimeline{
		SlowTicks:   b.slow,
		FailedTicks: b.failed,
		ThresholdMs: durationToMillis(b.threshold),
	}
	if b.count == 0 {
		return timeline
	}

	result := make([]TickSample, b.count)
	if b.count < len(b.samples) {
		copy(result, b.samples[:b.count])
	} else {
		copy(result, b.samples[b.index:])
		copy(result[len(b.samples)-b.index:], b.samples[:b.index])
	}
	timeline.Samples = result
	return timeline
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
