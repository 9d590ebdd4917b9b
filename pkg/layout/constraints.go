// Package layout defines the constraint protocols, the memoizing layout
// cache, and the render-object contracts consumed by the element tree's
// layout and paint passes.
package layout

import (
	"math"

	"github.com/go-loom/loom/pkg/errors"
	"github.com/go-loom/loom/pkg/graphics"
)

// BoxConstraints is the bounded-box layout protocol input: an inclusive
// min/max range on each axis. A render box must return a size within range.
type BoxConstraints struct {
	MinWidth, MaxWidth   float64
	MinHeight, MaxHeight float64
}

// Tight returns constraints that admit exactly one size.
func Tight(size graphics.Size) BoxConstraints {
	return BoxConstraints{
		MinWidth:  size.Width,
		MaxWidth:  size.Width,
		MinHeight: size.Height,
		MaxHeight: size.Height,
	}
}

// Loose returns constraints from zero up to the given size.
func Loose(size graphics.Size) BoxConstraints {
	return BoxConstraints{
		MaxWidth:  size.Width,
		MaxHeight: size.Height,
	}
}

// Unbounded returns constraints with no upper limit on either axis.
func Unbounded() BoxConstraints {
	return BoxConstraints{
		MaxWidth:  math.Inf(1),
		MaxHeight: math.Inf(1),
	}
}

// IsTight reports whether the constraints admit exactly one size.
func (c BoxConstraints) IsTight() bool {
	return c.MinWidth == c.MaxWidth && c.MinHeight == c.MaxHeight
}

// Constrain clamps a size into the constraint range.
func (c BoxConstraints) Constrain(size graphics.Size) graphics.Size {
	return graphics.Size{
		Width:  clamp(size.Width, c.MinWidth, c.MaxWidth),
		Height: clamp(size.Height, c.MinHeight, c.MaxHeight),
	}
}

// Smallest returns the minimal size the constraints admit.
func (c BoxConstraints) Smallest() graphics.Size {
	return graphics.Size{Width: c.MinWidth, Height: c.MinHeight}
}

// Deflate shrinks the constraints by a horizontal and vertical inset,
// never below zero.
func (c BoxConstraints) Deflate(horizontal, vertical float64) BoxConstraints {
	return BoxConstraints{
		MinWidth:  math.Max(0, c.MinWidth-horizontal),
		MaxWidth:  math.Max(0, c.MaxWidth-horizontal),
		MinHeight: math.Max(0, c.MinHeight-vertical),
		MaxHeight: math.Max(0, c.MaxHeight-vertical),
	}
}

// Validate checks that the constraints are usable: min <= max on each axis,
// no negative or NaN bounds, finite minimums. Out-of-range constraints are a
// fatal layout error for the subtree; they must never propagate as NaN sizes.
func (c BoxConstraints) Validate() error {
	if math.IsNaN(c.MinWidth) || math.IsNaN(c.MaxWidth) ||
		math.IsNaN(c.MinHeight) || math.IsNaN(c.MaxHeight) {
		return errors.New("layout.BoxConstraints.Validate", errors.KindLayout,
			"constraints contain NaN: %+v", c)
	}
	if c.MinWidth < 0 || c.MinHeight < 0 {
		return errors.New("layout.BoxConstraints.Validate", errors.KindLayout,
			"negative minimum: %+v", c)
	}
	if math.IsInf(c.MinWidth, 1) || math.IsInf(c.MinHeight, 1) {
		return errors.New("layout.BoxConstraints.Validate", errors.KindLayout,
			"infinite minimum: %+v", c)
	}
	if c.MinWidth > c.MaxWidth || c.MinHeight > c.MaxHeight {
		return errors.New("layout.BoxConstraints.Validate", errors.KindLayout,
			"min exceeds max: %+v", c)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
