package layout

import "github.com/go-loom/loom/pkg/graphics"

// Arity describes how many children a render object supports. The tree's
// generic traversal validates child-access patterns against it.
type Arity int

const (
	// ArityLeaf admits no children.
	ArityLeaf Arity = iota
	// AritySingle admits exactly one child.
	AritySingle
	// ArityMulti admits any number of children.
	ArityMulti
)

func (a Arity) String() string {
	switch a {
	case ArityLeaf:
		return "leaf"
	case AritySingle:
		return "single"
	case ArityMulti:
		return "multi"
	default:
		return "invalid"
	}
}

// Allows reports whether a child count is legal for the arity.
func (a Arity) Allows(childCount int) bool {
	switch a {
	case ArityLeaf:
		return childCount == 0
	case AritySingle:
		return childCount <= 1
	default:
		return true
	}
}

// BoxLayoutContext is handed to a render box during layout. It exposes the
// element's children through the cached layout path and records where each
// child should be painted.
type BoxLayoutContext interface {
	// ChildCount returns the number of children available to lay out.
	ChildCount() int
	// LayoutChild measures the i-th child under the given constraints,
	// going through the layout cache.
	LayoutChild(i int, constraints BoxConstraints) (graphics.Size, error)
	// PositionChild fixes the i-th child's paint offset relative to this
	// element. Must be called after the child has been measured.
	PositionChild(i int, offset graphics.Offset)
}

// BoxChildLayouter is implemented by sliver layout contexts whose element
// has box children, the adapter pattern that embeds boxes in a scrollable.
type BoxChildLayouter interface {
	LayoutBoxChild(i int, constraints BoxConstraints) (graphics.Size, error)
}

// SliverChildLayouter is implemented by box layout contexts whose element has
// sliver children. Viewport-style render boxes assert for it to drive the
// scroll protocol from inside a box layout.
type SliverChildLayouter interface {
	LayoutSliverChild(i int, constraints SliverConstraints) (SliverGeometry, error)
}

// SliverLayoutContext is the scroll-protocol counterpart of BoxLayoutContext.
type SliverLayoutContext interface {
	ChildCount() int
	LayoutChild(i int, constraints SliverConstraints) (SliverGeometry, error)
	PositionChild(i int, offset graphics.Offset)
}

// PaintContext is handed to a render object during paint.
type PaintContext interface {
	// Canvas receives the element's own drawing commands.
	Canvas() graphics.Canvas
	// ChildCount returns the number of paintable children.
	ChildCount() int
	// PaintChild paints the i-th child at its positioned offset. A child
	// that is a repaint boundary composites from its cached layer instead
	// of re-walking its subtree.
	PaintChild(i int) error
}

// RenderBox is a bounded-box render object implementation. Concrete
// implementations (padding, flex, text, ...) live outside the core; the tree
// only needs measurement, painting, and arity metadata.
type RenderBox interface {
	// Arity declares the legal child count.
	Arity() Arity
	// Layout computes the box's size under the constraints, measuring
	// children through ctx as needed. The returned size is clamped by the
	// driver; implementations should still aim to satisfy the constraints.
	Layout(ctx BoxLayoutContext, constraints BoxConstraints) (graphics.Size, error)
	// Paint records drawing commands for a box of the given size.
	Paint(ctx PaintContext, size graphics.Size) error
}

// RenderSliver is a scroll-protocol render object implementation.
type RenderSliver interface {
	Arity() Arity
	Layout(ctx SliverLayoutContext, constraints SliverConstraints) (SliverGeometry, error)
	Paint(ctx PaintContext, geometry SliverGeometry) error
}

// RepaintBoundary is implemented by render objects whose painted subtree
// should be cached as an independent layer, so a parent-only change does not
// re-record an unchanged subtree.
type RepaintBoundary interface {
	IsRepaintBoundary() bool
}

// IsRepaintBoundary reports whether a render object opts into layer caching.
func IsRepaintBoundary(object any) bool {
	boundary, ok := object.(RepaintBoundary)
	return ok && boundary.IsRepaintBoundary()
}
