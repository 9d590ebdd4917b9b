package core

import (
	"github.com/go-loom/loom/pkg/errors"
	"github.com/go-loom/loom/pkg/graphics"
	"github.com/go-loom/loom/pkg/layout"
)

// renderDescendant resolves the nearest render or sliver element at or below
// id, skipping through component and provider wrappers.
func (p *PipelineOwner) renderDescendant(op string, id ElementID) (ElementID, error) {
	cursor := id
	for {
		n, err := p.tree.lookup(op, cursor)
		if err != nil {
			return NoElement, err
		}
		if n.render != nil || n.sliver != nil {
			return cursor, nil
		}
		if len(n.children) == 0 {
			return NoElement, errors.NewFor(op, errors.KindNotFound, uint32(id),
				"%v has no render descendant", id)
		}
		cursor = n.children[0]
	}
}

// layoutBox measures one render element under the given constraints.
//
// The sequence per element: re-entrancy check, constraint validation, the
// clean fast path, then the memoizing cache around the actual measurement.
// Child-count changes are folded into the cache key for multi-child
// elements so a structural change can never serve a stale size.
func (p *PipelineOwner) layoutBox(id ElementID, constraints layout.BoxConstraints, depth int) (graphics.Size, error) {
	const op = "pipeline.layoutBox"

	n, err := p.tree.lookup(op, id)
	if err != nil {
		return graphics.Size{}, err
	}
	if n.render == nil {
		return graphics.Size{}, errors.NewFor(op, errors.KindNotSupported, uint32(id),
			"%v is a %v element; box layout needs a render element", id, n.kind)
	}
	r := n.render

	if depth > MaxLayoutDepth {
		err := errors.NewFor(op, errors.KindMaxDepthExceeded, uint32(id),
			"layout descended past %d levels", MaxLayoutDepth)
		errors.Report(err)
		return constraints.Smallest(), nil
	}
	if r.layoutActive {
		return graphics.Size{}, errors.NewFor(op, errors.KindLayout, uint32(id),
			"re-entrant layout of %v", id)
	}
	if err := constraints.Validate(); err != nil {
		return graphics.Size{}, errors.NewFor(op, errors.KindLayout, uint32(id),
			"invalid constraints for %v: %w", id, err)
	}

	// Fast path: clean element, identical constraints.
	if !r.needsLayout && r.hasConstraints && r.constraints == constraints {
		return r.size, nil
	}

	key := layout.NewCacheKey(uint32(id), constraints)
	if r.box.Arity() == layout.ArityMulti {
		key = key.WithChildCount(len(n.children))
	}

	size, err := p.tree.boxCache.Compute(key, func() (graphics.Size, error) {
		return p.performBoxLayout(n, constraints, depth)
	})
	if err != nil {
		return graphics.Size{}, err
	}

	changed := !r.hasSize || r.size != size
	r.size = size
	r.constraints = constraints
	r.hasSize = true
	r.hasConstraints = true
	r.needsLayout = false
	delete(p.dirtyLayout, id)
	if changed {
		p.MarkNeedsPaint(id)
	}
	return size, nil
}

// performBoxLayout is the cache-miss path: it runs the render object's own
// measurement and clamps the result into range.
func (p *PipelineOwner) performBoxLayout(n *node, constraints layout.BoxConstraints, depth int) (graphics.Size, error) {
	const op = "pipeline.layoutBox"
	r := n.render

	if !r.box.Arity().Allows(len(n.children)) {
		errors.Report(errors.NewFor(op, errors.KindNotSupported, uint32(n.id),
			"%v render object (%v arity) has %d children", n.id, r.box.Arity(), len(n.children)))
	}

	r.layoutActive = true
	defer func() { r.layoutActive = false }()

	ctx := &boxLayoutContext{pipeline: p, n: n, depth: depth}
	size, err := r.box.Layout(ctx, constraints)
	if err != nil {
		return graphics.Size{}, errors.NewFor(op, errors.KindLayout, uint32(n.id),
			"layout of %v failed: %w", n.id, err)
	}
	if !size.IsFinite() {
		errors.Report(errors.NewFor(op, errors.KindLayout, uint32(n.id),
			"%v produced a non-finite size %+v", n.id, size))
		return constraints.Smallest(), nil
	}
	var proto layout.BoxProtocol
	return proto.Constrain(constraints, size), nil
}

// layoutSliver is the scroll-protocol twin of layoutBox, memoized through
// the sliver cache.
func (p *PipelineOwner) layoutSliver(id ElementID, constraints layout.SliverConstraints, depth int) (layout.SliverGeometry, error) {
	const op = "pipeline.layoutSliver"

	n, err := p.tree.lookup(op, id)
	if err != nil {
		return layout.SliverGeometry{}, err
	}
	if n.sliver == nil {
		return layout.SliverGeometry{}, errors.NewFor(op, errors.KindNotSupported, uint32(id),
			"%v is a %v element; sliver layout needs a sliver element", id, n.kind)
	}
	s := n.sliver

	if depth > MaxLayoutDepth {
		err := errors.NewFor(op, errors.KindMaxDepthExceeded, uint32(id),
			"layout descended past %d levels", MaxLayoutDepth)
		errors.Report(err)
		return constraints.Collapsed(), nil
	}
	if s.layoutActive {
		return layout.SliverGeometry{}, errors.NewFor(op, errors.KindLayout, uint32(id),
			"re-entrant layout of %v", id)
	}
	if err := constraints.Validate(); err != nil {
		return layout.SliverGeometry{}, errors.NewFor(op, errors.KindLayout, uint32(id),
			"invalid constraints for %v: %w", id, err)
	}

	if !s.needsLayout && s.hasConstraints && s.constraints == constraints {
		return s.geometry, nil
	}

	key := layout.NewCacheKey(uint32(id), constraints)
	if s.sliver.Arity() == layout.ArityMulti {
		key = key.WithChildCount(len(n.children))
	}

	geometry, err := p.tree.sliverCache.Compute(key, func() (layout.SliverGeometry, error) {
		return p.performSliverLayout(n, constraints, depth)
	})
	if err != nil {
		return layout.SliverGeometry{}, err
	}

	changed := !s.hasGeometry || s.geometry != geometry
	s.geometry = geometry
	s.constraints = constraints
	s.hasGeometry = true
	s.hasConstraints = true
	s.needsLayout = false
	delete(p.dirtyLayout, id)
	if changed {
		p.MarkNeedsPaint(id)
	}
	return geometry, nil
}

func (p *PipelineOwner) performSliverLayout(n *node, constraints layout.SliverConstraints, depth int) (layout.SliverGeometry, error) {
	const op = "pipeline.layoutSliver"
	s := n.sliver

	if !s.sliver.Arity().Allows(len(n.children)) {
		errors.Report(errors.NewFor(op, errors.KindNotSupported, uint32(n.id),
			"%v render object (%v arity) has %d children", n.id, s.sliver.Arity(), len(n.children)))
	}

	s.layoutActive = true
	defer func() { s.layoutActive = false }()

	ctx := &sliverLayoutContext{pipeline: p, n: n, depth: depth}
	geometry, err := s.sliver.Layout(ctx, constraints)
	if err != nil {
		return layout.SliverGeometry{}, errors.NewFor(op, errors.KindLayout, uint32(n.id),
			"layout of %v failed: %w", n.id, err)
	}
	var proto layout.SliverProtocol
	return proto.Constrain(constraints, geometry), nil
}

// boxLayoutContext exposes one render element's children to its render
// object during layout. It also serves viewports laying out sliver children.
type boxLayoutContext struct {
	pipeline *PipelineOwner
	n        *node
	depth    int
}

var (
	_ layout.BoxLayoutContext    = (*boxLayoutContext)(nil)
	_ layout.SliverChildLayouter = (*boxLayoutContext)(nil)
	_ layout.SliverLayoutContext = (*sliverLayoutContext)(nil)
	_ layout.BoxChildLayouter    = (*sliverLayoutContext)(nil)
)

func (c *boxLayoutContext) ChildCount() int { return len(c.n.children) }

func (c *boxLayoutContext) LayoutChild(i int, constraints layout.BoxConstraints) (graphics.Size, error) {
	child, err := c.resolveChild("pipeline.layoutChild", i)
	if err != nil {
		return graphics.Size{}, err
	}
	return c.pipeline.layoutBox(child, constraints, c.depth+1)
}

func (c *boxLayoutContext) LayoutSliverChild(i int, constraints layout.SliverConstraints) (layout.SliverGeometry, error) {
	child, err := c.resolveChild("pipeline.layoutSliverChild", i)
	if err != nil {
		return layout.SliverGeometry{}, err
	}
	return c.pipeline.layoutSliver(child, constraints, c.depth+1)
}

func (c *boxLayoutContext) PositionChild(i int, offset graphics.Offset) {
	child, err := c.resolveChild("pipeline.positionChild", i)
	if err != nil {
		errors.Report(errors.NewFor("pipeline.positionChild", errors.KindNotFound, uint32(c.n.id),
			"positioning missing child %d of %v", i, c.n.id))
		return
	}
	c.pipeline.setPaintOffset(c.n.id, child, offset)
}

func (c *boxLayoutContext) resolveChild(op string, i int) (ElementID, error) {
	if i < 0 || i >= len(c.n.children) {
		return NoElement, errors.NewFor(op, errors.KindNotFound, uint32(c.n.id),
			"%v has no child at index %d", c.n.id, i)
	}
	return c.pipeline.renderDescendant(op, c.n.children[i])
}

// sliverLayoutContext is the sliver-side layout context. Box children are
// reachable through LayoutBoxChild for adapter slivers.
type sliverLayoutContext struct {
	pipeline *PipelineOwner
	n        *node
	depth    int
}

func (c *sliverLayoutContext) ChildCount() int { return len(c.n.children) }

func (c *sliverLayoutContext) LayoutChild(i int, constraints layout.SliverConstraints) (layout.SliverGeometry, error) {
	child, err := c.resolveChild("pipeline.layoutChild", i)
	if err != nil {
		return layout.SliverGeometry{}, err
	}
	return c.pipeline.layoutSliver(child, constraints, c.depth+1)
}

func (c *sliverLayoutContext) LayoutBoxChild(i int, constraints layout.BoxConstraints) (graphics.Size, error) {
	child, err := c.resolveChild("pipeline.layoutBoxChild", i)
	if err != nil {
		return graphics.Size{}, err
	}
	return c.pipeline.layoutBox(child, constraints, c.depth+1)
}

func (c *sliverLayoutContext) PositionChild(i int, offset graphics.Offset) {
	child, err := c.resolveChild("pipeline.positionChild", i)
	if err != nil {
		errors.Report(errors.NewFor("pipeline.positionChild", errors.KindNotFound, uint32(c.n.id),
			"positioning missing child %d of %v", i, c.n.id))
		return
	}
	c.pipeline.setPaintOffset(c.n.id, child, offset)
}

func (c *sliverLayoutContext) resolveChild(op string, i int) (ElementID, error) {
	if i < 0 || i >= len(c.n.children) {
		return NoElement, errors.NewFor(op, errors.KindNotFound, uint32(c.n.id),
			"%v has no child at index %d", c.n.id, i)
	}
	return c.pipeline.renderDescendant(op, c.n.children[i])
}

// setPaintOffset stores where a parent positioned a child. A moved child
// re-records the parent's layer.
func (p *PipelineOwner) setPaintOffset(parent, child ElementID, offset graphics.Offset) {
	n, err := p.tree.lookup("pipeline.positionChild", child)
	if err != nil {
		return
	}
	switch {
	case n.render != nil:
		if n.render.paintOffset != offset {
			n.render.paintOffset = offset
			p.MarkNeedsPaint(parent)
		}
	case n.sliver != nil:
		if n.sliver.paintOffset != offset {
			n.sliver.paintOffset = offset
			p.MarkNeedsPaint(parent)
		}
	}
}
