package scheduler

import (
	"sync"
	"time"

	"github.com/go-loom/loom/pkg/errors"
)

// FramePhase is where the scheduler currently is in frame production.
type FramePhase int

const (
	// PhaseIdle means no frame is in flight; deferred tasks may run.
	PhaseIdle FramePhase = iota
	// PhaseTransient runs one-shot animation callbacks at frame start.
	PhaseTransient
	// PhasePersistent runs the pipeline callbacks that build, lay out, and
	// paint the tree.
	PhasePersistent
	// PhasePostFrame runs cleanup callbacks after the frame is produced.
	PhasePostFrame
)

func (p FramePhase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseTransient:
		return "transient"
	case PhasePersistent:
		return "persistent"
	case PhasePostFrame:
		return "post-frame"
	default:
		return "invalid"
	}
}

// FrameCallback receives the time elapsed since the scheduler's first frame,
// a monotonically increasing animation timestamp.
type FrameCallback func(elapsed time.Duration)

// FrameTiming summarizes one produced frame.
type FrameTiming struct {
	Number   uint64
	Start    time.Time
	End      time.Time
	Duration time.Duration
	// Overran is true when the frame exceeded the configured budget.
	Overran bool
}

// DefaultFrameBudget is a 60Hz frame interval.
const DefaultFrameBudget = 16667 * time.Microsecond

// Scheduler owns the frame timeline. One frame is: HandleBeginFrame fires
// the transient callbacks, HandleDrawFrame fires the persistent callbacks
// and then the post-frame callbacks. RequestFrame is idempotent between
// frames; the host's wake hook fires once per requested frame.
type Scheduler struct {
	mu sync.Mutex

	clock  Clock
	budget time.Duration
	// onWake tells the host loop a frame is wanted. Called without the lock.
	onWake func()

	phase          FramePhase
	frameRequested bool
	frameNumber    uint64
	epoch          time.Time
	frameStart     time.Time

	nextCallbackID     int
	transient          map[int]FrameCallback
	cancelledTransient map[int]struct{}
	persistent         []FrameCallback
	postFrame          []func()

	tasks taskQueue
}

// NewScheduler creates a scheduler. clock may be nil for the system clock;
// onWake may be nil when the host polls instead.
func NewScheduler(clock Clock, onWake func()) *Scheduler {
	if clock == nil {
		clock = SystemClock()
	}
	return &Scheduler{
		clock:              clock,
		budget:             DefaultFrameBudget,
		onWake:             onWake,
		transient:          make(map[int]FrameCallback),
		cancelledTransient: make(map[int]struct{}),
	}
}

// SetFrameBudget overrides the per-frame time budget.
func (s *Scheduler) SetFrameBudget(budget time.Duration) {
	s.mu.Lock()
	if budget > 0 {
		s.budget = budget
	}
	s.mu.Unlock()
}

// Phase returns the current frame phase.
func (s *Scheduler) Phase() FramePhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// FrameRequested reports whether a frame is pending.
func (s *Scheduler) FrameRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameRequested
}

// RequestFrame asks the host for a frame. Further calls before the frame
// begins are no-ops, so dirtying a thousand elements wakes the host once.
func (s *Scheduler) RequestFrame() {
	s.mu.Lock()
	if s.frameRequested {
		s.mu.Unlock()
		return
	}
	s.frameRequested = true
	wake := s.onWake
	s.mu.Unlock()

	if wake != nil {
		wake()
	}
}

// ScheduleFrameCallback registers a one-shot callback for the start of the
// next frame and returns an id usable with CancelFrameCallback.
func (s *Scheduler) ScheduleFrameCallback(cb FrameCallback) int {
	s.mu.Lock()
	s.nextCallbackID++
	id := s.nextCallbackID
	s.transient[id] = cb
	s.mu.Unlock()

	s.RequestFrame()
	return id
}

// CancelFrameCallback withdraws a transient callback. Cancelling during the
// transient phase still prevents the callback from firing this frame.
func (s *Scheduler) CancelFrameCallback(id int) {
	s.mu.Lock()
	delete(s.transient, id)
	s.cancelledTransient[id] = struct{}{}
	s.mu.Unlock()
}

// AddPersistentFrameCallback registers a callback that runs during every
// frame's draw phase, in registration order. Persistent callbacks cannot be
// removed; the pipeline hooks in here.
func (s *Scheduler) AddPersistentFrameCallback(cb FrameCallback) {
	s.mu.Lock()
	s.persistent = append(s.persistent, cb)
	s.mu.Unlock()
}

// AddPostFrameCallback registers a one-shot callback that runs after the
// next frame's draw phase.
func (s *Scheduler) AddPostFrameCallback(fn func()) {
	s.mu.Lock()
	s.postFrame = append(s.postFrame, fn)
	s.mu.Unlock()
}

// ScheduleTask queues deferred work at the given priority. Tasks run between
// frames via FlushTasks.
func (s *Scheduler) ScheduleTask(p Priority, task Task) {
	s.tasks.push(p, task)
	s.RequestFrame()
}

// PendingTasks returns the number of queued tasks.
func (s *Scheduler) PendingTasks() int { return s.tasks.len() }

// HandleBeginFrame starts a frame at the given timestamp: the pending
// request is consumed and the transient callbacks registered so far fire
// once each, cancelled ones excluded.
func (s *Scheduler) HandleBeginFrame(now time.Time) {
	s.mu.Lock()
	if s.epoch.IsZero() {
		s.epoch = now
	}
	s.frameRequested = false
	s.frameNumber++
	s.frameStart = now
	s.phase = PhaseTransient
	elapsed := now.Sub(s.epoch)

	callbacks := make([]FrameCallback, 0, len(s.transient))
	for id, cb := range s.transient {
		if _, cancelled := s.cancelledTransient[id]; cancelled {
			continue
		}
		callbacks = append(callbacks, cb)
	}
	s.transient = make(map[int]FrameCallback)
	s.cancelledTransient = make(map[int]struct{})
	s.mu.Unlock()

	for _, cb := range callbacks {
		s.invokeFrameCallback("scheduler.beginFrame", cb, elapsed)
	}
}

// HandleDrawFrame finishes the frame: persistent callbacks run the pipeline,
// then the post-frame callbacks fire and the scheduler returns to idle. The
// returned timing covers begin through draw.
func (s *Scheduler) HandleDrawFrame() FrameTiming {
	s.mu.Lock()
	s.phase = PhasePersistent
	elapsed := s.frameStart.Sub(s.epoch)
	persistent := make([]FrameCallback, len(s.persistent))
	copy(persistent, s.persistent)
	s.mu.Unlock()

	for _, cb := range persistent {
		s.invokeFrameCallback("scheduler.drawFrame", cb, elapsed)
	}

	s.mu.Lock()
	s.phase = PhasePostFrame
	post := s.postFrame
	s.postFrame = nil
	s.mu.Unlock()

	for _, fn := range post {
		s.invokePostFrame(fn)
	}

	s.mu.Lock()
	s.phase = PhaseIdle
	end := s.clock.Now()
	timing := FrameTiming{
		Number:   s.frameNumber,
		Start:    s.frameStart,
		End:      end,
		Duration: end.Sub(s.frameStart),
	}
	timing.Overran = timing.Duration > s.budget
	s.mu.Unlock()
	return timing
}

// RunFrame drives a whole frame at the current clock time.
func (s *Scheduler) RunFrame() FrameTiming {
	s.HandleBeginFrame(s.clock.Now())
	return s.HandleDrawFrame()
}

// FlushTasks drains deferred tasks until the deadline. Once the deadline
// passes, only tasks above idle priority keep running; idle work stays
// queued for the next gap.
func (s *Scheduler) FlushTasks(deadline time.Time) {
	min := PriorityIdle
	for {
		if s.clock.Now().After(deadline) {
			min = PriorityBuild
		}
		task, _, ok := s.tasks.pop(min)
		if !ok {
			return
		}
		s.invokeTask(task)
	}
}

func (s *Scheduler) invokeFrameCallback(op string, cb FrameCallback, elapsed time.Duration) {
	defer errors.Recover(op)
	cb(elapsed)
}

func (s *Scheduler) invokePostFrame(fn func()) {
	defer errors.Recover("scheduler.postFrame")
	fn()
}

func (s *Scheduler) invokeTask(task Task) {
	defer errors.Recover("scheduler.task")
	task()
}
