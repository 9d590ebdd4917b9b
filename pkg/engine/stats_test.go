package engine

import (
	"testing"
	"time"

	"github.com/go-loom/loom/pkg/scheduler"
)

func TestTimingBufferWrapsAtCapacity(t *testing.T) {
	b := NewFrameTimingBuffer(4)
	for i := 1; i <= 6; i++ {
		b.Push(scheduler.FrameTiming{Number: uint64(i)})
	}

	if b.Len() != 4 {
		t.Fatalf("len = %d, want 4", b.Len())
	}
	snap := b.Snapshot()
	if snap[0].Number != 3 || snap[3].Number != 6 {
		t.Fatalf("snapshot order wrong: first=%d last=%d", snap[0].Number, snap[3].Number)
	}
	last, ok := b.Last()
	if !ok || last.Number != 6 {
		t.Fatalf("last = %+v", last)
	}
}

func TestTimingBufferAggregates(t *testing.T) {
	b := NewFrameTimingBuffer(8)
	b.Push(scheduler.FrameTiming{Duration: 10 * time.Millisecond})
	b.Push(scheduler.FrameTiming{Duration: 20 * time.Millisecond, Overran: true})

	if avg := b.AverageDuration(); avg != 15*time.Millisecond {
		t.Errorf("average = %v", avg)
	}
	if rate := b.OverrunRate(); rate != 0.5 {
		t.Errorf("overrun rate = %v", rate)
	}
}

func TestEmptyTimingBuffer(t *testing.T) {
	b := NewFrameTimingBuffer(0)
	if _, ok := b.Last(); ok {
		t.Error("empty buffer has no last entry")
	}
	if b.AverageDuration() != 0 || b.OverrunRate() != 0 {
		t.Error("empty buffer aggregates must be zero")
	}
}
