package layout

import (
	"math"

	"github.com/go-loom/loom/pkg/errors"
)

// SliverConstraints is the scroll protocol input: an extent budget along the
// scroll axis plus the fixed cross-axis extent.
type SliverConstraints struct {
	// ScrollOffset is how far the leading edge of this sliver has scrolled
	// past the viewport's leading edge. Never negative.
	ScrollOffset float64
	// RemainingExtent is the viewport space still available for painting.
	RemainingExtent float64
	// CrossAxisExtent is the fixed extent perpendicular to the scroll axis.
	CrossAxisExtent float64
}

// Validate checks the constraints are usable before layout runs.
func (c SliverConstraints) Validate() error {
	if math.IsNaN(c.ScrollOffset) || math.IsNaN(c.RemainingExtent) || math.IsNaN(c.CrossAxisExtent) {
		return errors.New("layout.SliverConstraints.Validate", errors.KindLayout,
			"constraints contain NaN: %+v", c)
	}
	if c.ScrollOffset < 0 || c.RemainingExtent < 0 || c.CrossAxisExtent < 0 {
		return errors.New("layout.SliverConstraints.Validate", errors.KindLayout,
			"negative extent: %+v", c)
	}
	return nil
}

// SliverGeometry is the scroll protocol output: how much extent the sliver
// occupies and how much of it paints within the remaining budget.
type SliverGeometry struct {
	// ScrollExtent is the total extent the sliver consumes in the scrollable.
	ScrollExtent float64
	// PaintExtent is the extent visibly painted this layout, at most the
	// constraint's RemainingExtent.
	PaintExtent float64
	// CrossAxisExtent mirrors the constraint's cross-axis extent.
	CrossAxisExtent float64
}

// Collapsed returns the geometry of a sliver with nothing to lay out.
func (c SliverConstraints) Collapsed() SliverGeometry {
	return SliverGeometry{CrossAxisExtent: c.CrossAxisExtent}
}

// ClampTo limits the paint extent to the constraint's remaining budget.
func (g SliverGeometry) ClampTo(c SliverConstraints) SliverGeometry {
	if g.PaintExtent > c.RemainingExtent {
		g.PaintExtent = c.RemainingExtent
	}
	if g.PaintExtent < 0 {
		g.PaintExtent = 0
	}
	if g.ScrollExtent < 0 {
		g.ScrollExtent = 0
	}
	return g
}
