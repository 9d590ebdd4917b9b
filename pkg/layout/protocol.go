package layout

import "github.com/go-loom/loom/pkg/graphics"

// Protocol abstracts a constraint/geometry pairing so the tree walk and the
// cache serve both the bounded-box and the sliver protocol without
// duplicating traversal logic. C is the constraint input, G the geometry
// output; both must be comparable so they can key and populate the cache.
type Protocol[C, G comparable] interface {
	// Validate rejects unusable constraints before any layout runs.
	Validate(constraints C) error
	// Smallest is the well-defined geometry for a node with no children
	// and no intrinsic content.
	Smallest(constraints C) G
	// Constrain clamps computed geometry into the constraint range.
	Constrain(constraints C, geometry G) G
}

// BoxProtocol implements Protocol for the bounded-box pairing.
type BoxProtocol struct{}

func (BoxProtocol) Validate(c BoxConstraints) error {
	return c.Validate()
}

func (BoxProtocol) Smallest(c BoxConstraints) graphics.Size {
	return c.Smallest()
}

func (BoxProtocol) Constrain(c BoxConstraints, size graphics.Size) graphics.Size {
	return c.Constrain(size)
}

// SliverProtocol implements Protocol for the scroll pairing.
type SliverProtocol struct{}

func (SliverProtocol) Validate(c SliverConstraints) error {
	return c.Validate()
}

func (SliverProtocol) Smallest(c SliverConstraints) SliverGeometry {
	return c.Collapsed()
}

func (SliverProtocol) Constrain(c SliverConstraints, g SliverGeometry) SliverGeometry {
	return g.ClampTo(c)
}
