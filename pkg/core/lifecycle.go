package core

// Lifecycle is the state an element moves through between creation and
// destruction. The legal transitions form a small machine:
//
//	Initial -> Active            (mount)
//	Active -> Inactive           (deactivate)
//	Inactive -> Active           (reactivate under a new parent)
//	Active | Inactive -> Defunct (unmount)
//
// Defunct is terminal. Everything else is a programming error and fails
// loudly per DebugMode.
type Lifecycle uint8

const (
	// LifecycleInitial is the state of a freshly allocated element that has
	// never been attached to the tree.
	LifecycleInitial Lifecycle = iota
	// LifecycleActive elements are attached and participate in build,
	// layout, and paint.
	LifecycleActive
	// LifecycleInactive elements are detached but retained, typically while
	// being moved to a new parent within the same frame. Payload is kept.
	LifecycleInactive
	// LifecycleDefunct elements are permanently dead; their slot is about to
	// be returned to the arena.
	LifecycleDefunct
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleInitial:
		return "initial"
	case LifecycleActive:
		return "active"
	case LifecycleInactive:
		return "inactive"
	case LifecycleDefunct:
		return "defunct"
	default:
		return "invalid"
	}
}

// CanTransitionTo reports whether the transition is part of the machine.
func (l Lifecycle) CanTransitionTo(next Lifecycle) bool {
	switch l {
	case LifecycleInitial:
		return next == LifecycleActive
	case LifecycleActive:
		return next == LifecycleInactive || next == LifecycleDefunct
	case LifecycleInactive:
		return next == LifecycleActive || next == LifecycleDefunct
	default:
		return false
	}
}
