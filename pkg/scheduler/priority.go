package scheduler

// Priority orders deferred tasks. Higher values run first; within one
// priority, tasks run in submission order.
type Priority int

const (
	// PriorityIdle tasks run only when frame time is left over and are the
	// first to be deferred when a frame overruns its budget.
	PriorityIdle Priority = iota
	// PriorityBuild covers tree rebuilds that are not tied to an animation.
	PriorityBuild
	// PriorityAnimation covers work that must land before the next vsync to
	// keep motion smooth.
	PriorityAnimation
	// PriorityUserInput is the highest tier; input must never starve.
	PriorityUserInput

	numPriorities = 4
)

func (p Priority) String() string {
	switch p {
	case PriorityIdle:
		return "idle"
	case PriorityBuild:
		return "build"
	case PriorityAnimation:
		return "animation"
	case PriorityUserInput:
		return "user-input"
	default:
		return "invalid"
	}
}
