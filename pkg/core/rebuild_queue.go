package core

import (
	"sort"
	"sync"
)

// queueEntry pairs an element with the depth it had when marked. Depth is
// captured at push time; the drain sorts by it so parents rebuild before
// children even if the tree moved underneath.
type queueEntry struct {
	element ElementID
	depth   int
}

// RebuildQueue collects dirty elements between frames. Pushes are safe from
// any goroutine; duplicates collapse to one entry. Draining happens on the
// frame goroutine only.
type RebuildQueue struct {
	mu      sync.Mutex
	queued  map[ElementID]struct{}
	entries []queueEntry

	// onFirst fires when a push makes the queue non-empty, letting the
	// scheduler request a frame without polling.
	onFirst func()
}

// NewRebuildQueue creates an empty queue. onFirst may be nil.
func NewRebuildQueue(onFirst func()) *RebuildQueue {
	return &RebuildQueue{
		queued:  make(map[ElementID]struct{}),
		onFirst: onFirst,
	}
}

// Push enqueues an element for rebuild. A second push for the same element
// before the next drain is a no-op.
func (q *RebuildQueue) Push(id ElementID, depth int) {
	if id == NoElement {
		return
	}
	q.mu.Lock()
	if _, dup := q.queued[id]; dup {
		q.mu.Unlock()
		return
	}
	q.queued[id] = struct{}{}
	q.entries = append(q.entries, queueEntry{element: id, depth: depth})
	wake := len(q.entries) == 1 && q.onFirst != nil
	q.mu.Unlock()

	if wake {
		q.onFirst()
	}
}

// Drain atomically takes every queued entry, ordered by ascending depth.
// Entries pushed while the drained batch is processed land in the next
// drain.
func (q *RebuildQueue) Drain() []queueEntry {
	q.mu.Lock()
	entries := q.entries
	q.entries = nil
	q.queued = make(map[ElementID]struct{})
	q.mu.Unlock()

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].depth < entries[j].depth
	})
	return entries
}

// Len returns the number of queued elements.
func (q *RebuildQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
