package engine

import (
	"sync"
	"time"

	"github.com/go-loom/loom/pkg/scheduler"
)

// DefaultTimingWindow is two seconds of history at 60Hz.
const DefaultTimingWindow = 120

// FrameTimingBuffer is a fixed-size ring of recent frame timings, safe for
// concurrent use. The engine pushes one entry per produced frame; tooling
// reads aggregates off it.
type FrameTimingBuffer struct {
	mu      sync.Mutex
	entries []scheduler.FrameTiming
	next    int
	count   int
}

// NewFrameTimingBuffer creates a ring holding the last capacity timings.
// A capacity of zero or less selects DefaultTimingWindow.
func NewFrameTimingBuffer(capacity int) *FrameTimingBuffer {
	if capacity <= 0 {
		capacity = DefaultTimingWindow
	}
	return &FrameTimingBuffer{entries: make([]scheduler.FrameTiming, capacity)}
}

// Push records a frame timing, evicting the oldest when full.
func (b *FrameTimingBuffer) Push(t scheduler.FrameTiming) {
	b.mu.Lock()
	b.entries[b.next] = t
	b.next = (b.next + 1) % len(b.entries)
	if b.count < len(b.entries) {
		b.count++
	}
	b.mu.Unlock()
}

// Len returns the number of recorded timings.
func (b *FrameTimingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Last returns the most recent timing.
func (b *FrameTimingBuffer) Last() (scheduler.FrameTiming, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return scheduler.FrameTiming{}, false
	}
	idx := (b.next - 1 + len(b.entries)) % len(b.entries)
	return b.entries[idx], true
}

// AverageDuration returns the mean frame duration over the window.
func (b *FrameTimingBuffer) AverageDuration() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return 0
	}
	var total time.Duration
	for _, t := range b.snapshotLocked() {
		total += t.Duration
	}
	return total / time.Duration(b.count)
}

// OverrunRate returns the fraction of recorded frames that blew the budget.
func (b *FrameTimingBuffer) OverrunRate() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return 0
	}
	overruns := 0
	for _, t := range b.snapshotLocked() {
		if t.Overran {
			overruns++
		}
	}
	return float64(overruns) / float64(b.count)
}

// Snapshot returns the recorded timings, oldest first.
func (b *FrameTimingBuffer) Snapshot() []scheduler.FrameTiming {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *FrameTimingBuffer) snapshotLocked() []scheduler.FrameTiming {
	out := make([]scheduler.FrameTiming, 0, b.count)
	start := (b.next - b.count + len(b.entries)) % len(b.entries)
	for i := 0; i < b.count; i++ {
		out = append(out, b.entries[(start+i)%len(b.entries)])
	}
	return out
}
