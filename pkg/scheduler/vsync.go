package scheduler

import (
	"sync"
	"time"
)

const vsyncWindow = 16

// VsyncEstimator observes display refresh timestamps and predicts the next
// one. It never blocks; hosts without a real vsync source just feed it their
// frame times and get a steady cadence back.
type VsyncEstimator struct {
	mu        sync.Mutex
	last      time.Time
	intervals [vsyncWindow]time.Duration
	count     int
	next      int
}

// Observe records a refresh timestamp. Out-of-order or duplicate timestamps
// are ignored.
func (v *VsyncEstimator) Observe(now time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.last.IsZero() {
		delta := now.Sub(v.last)
		if delta <= 0 {
			return
		}
		v.intervals[v.next] = delta
		v.next = (v.next + 1) % vsyncWindow
		if v.count < vsyncWindow {
			v.count++
		}
	}
	v.last = now
}

// Interval returns the estimated refresh interval, falling back to 60Hz
// before enough samples arrive.
func (v *VsyncEstimator) Interval() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.intervalLocked()
}

func (v *VsyncEstimator) intervalLocked() time.Duration {
	if v.count == 0 {
		return DefaultFrameBudget
	}
	var total time.Duration
	for i := 0; i < v.count; i++ {
		total += v.intervals[i]
	}
	return total / time.Duration(v.count)
}

// NextVsync predicts the first refresh at or after now.
func (v *VsyncEstimator) NextVsync(now time.Time) time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	interval := v.intervalLocked()
	if v.last.IsZero() || !now.After(v.last) {
		return now.Add(interval)
	}
	elapsed := now.Sub(v.last)
	periods := elapsed/interval + 1
	return v.last.Add(periods * interval)
}
