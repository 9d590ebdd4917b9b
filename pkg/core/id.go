// Package core implements the element arena, the lifecycle state machine,
// reconciliation, and the frame pipeline that drives build, layout, and
// paint over the element tree.
package core

import "strconv"

// ElementID identifies a node in the element tree. The low 24 bits index the
// arena slot and the high 8 bits carry a generation tag, bumped each time a
// slot is recycled, so an id held across a removal cannot resolve to the
// slot's next occupant. The zero value means "no element".
type ElementID uint32

// NoElement is the absent-element sentinel.
const NoElement ElementID = 0

const (
	indexBits = 24
	indexMask = 1<<indexBits - 1
)

func makeID(index uint32, generation uint8) ElementID {
	return ElementID(uint32(generation)<<indexBits | index&indexMask)
}

// slot converts the id to its arena slot index, -1 for NoElement.
func (id ElementID) slot() int {
	return int(uint32(id)&indexMask) - 1
}

func (id ElementID) generation() uint8 {
	return uint8(uint32(id) >> indexBits)
}

// IsValid reports whether the id refers to an allocated slot.
func (id ElementID) IsValid() bool {
	return id.slot() >= 0
}

func (id ElementID) String() string {
	if id.slot() < 0 {
		return "element(none)"
	}
	s := "element(" + strconv.Itoa(id.slot()+1)
	if gen := id.generation(); gen > 0 {
		s += "#" + strconv.Itoa(int(gen))
	}
	return s + ")"
}
