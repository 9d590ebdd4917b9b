package core

import (
	"sort"

	"github.com/go-loom/loom/pkg/errors"
	"github.com/go-loom/loom/pkg/graphics"
	"github.com/go-loom/loom/pkg/layout"
)

// FlushPaint re-records every dirty repaint boundary's layer, deepest
// boundaries first so parents composite fresh children, and returns the root
// layer. Layout must have completed: painting an element that has no size is
// a paint error.
func (p *PipelineOwner) FlushPaint() (*graphics.Layer, error) {
	const op = "pipeline.flushPaint"

	if p.rootRender == NoElement {
		return nil, errors.New(op, errors.KindEmptyTree, "paint before any layout")
	}
	rootNode, err := p.tree.lookup(op, p.rootRender)
	if err != nil {
		return nil, err
	}
	if rootNode.render == nil || !rootNode.render.hasSize {
		return nil, errors.NewFor(op, errors.KindPaint, uint32(p.rootRender),
			"paint of %v before layout completed", p.rootRender)
	}
	if rootNode.render.layer == nil || rootNode.render.layer.Content == nil {
		p.dirtyPaint[p.rootRender] = struct{}{}
	}

	boundaries := make([]ElementID, 0, len(p.dirtyPaint))
	for id := range p.dirtyPaint {
		boundaries = append(boundaries, id)
	}
	// Children first: a parent's recording composites its child layers, so
	// those must be fresh when the parent records.
	sort.Slice(boundaries, func(i, j int) bool {
		di, _ := p.tree.DepthOf(boundaries[i])
		dj, _ := p.tree.DepthOf(boundaries[j])
		return di > dj
	})

	for _, id := range boundaries {
		n, err := p.tree.lookup(op, id)
		if err != nil {
			continue
		}
		if err := p.recordLayer(n); err != nil {
			if !errors.KindOf(err).Recoverable() {
				return nil, err
			}
			errors.ReportError(op, err)
		}
	}
	p.dirtyPaint = make(map[ElementID]struct{})

	return rootNode.render.layer, nil
}

// recordLayer re-records one boundary's subtree into its layer. The layer
// object is created once and kept for the element's lifetime so parent
// recordings that reference it stay valid.
func (p *PipelineOwner) recordLayer(n *node) error {
	const op = "pipeline.recordLayer"

	var size graphics.Size
	switch {
	case n.render != nil:
		if !n.render.hasSize {
			return errors.NewFor(op, errors.KindPaint, uint32(n.id),
				"recording %v before layout", n.id)
		}
		size = n.render.size
		if n.render.layer == nil {
			n.render.layer = &graphics.Layer{Dirty: true, Size: size}
		}
	case n.sliver != nil:
		if !n.sliver.hasGeometry {
			return errors.NewFor(op, errors.KindPaint, uint32(n.id),
				"recording %v before layout", n.id)
		}
		size = graphics.Size{
			Width:  n.sliver.geometry.CrossAxisExtent,
			Height: n.sliver.geometry.PaintExtent,
		}
		if n.sliver.layer == nil {
			n.sliver.layer = &graphics.Layer{Dirty: true, Size: size}
		}
	default:
		return errors.NewFor(op, errors.KindPaint, uint32(n.id),
			"%v is a %v element; only render elements record layers", n.id, n.kind)
	}

	var recorder graphics.PictureRecorder
	canvas := recorder.BeginRecording(size)
	err := p.paintElement(n, canvas)

	layer := layerOf(n)
	layer.Size = size
	layer.SetContent(recorder.EndRecording())
	return err
}

// paintElement runs one render object's Paint onto the canvas, with panic
// containment so a broken painter loses its own output, not the frame.
func (p *PipelineOwner) paintElement(n *node, canvas graphics.Canvas) (err error) {
	const op = "pipeline.paintElement"

	defer func() {
		if recovered := recover(); recovered != nil {
			err = errors.NewFor(op, errors.KindPaint, uint32(n.id),
				"panic painting %v: %v", n.id, recovered)
		}
	}()

	ctx := &paintContext{pipeline: p, n: n, canvas: canvas}
	switch {
	case n.render != nil:
		err = n.render.box.Paint(ctx, n.render.size)
		n.render.needsPaint = false
	case n.sliver != nil:
		err = n.sliver.sliver.Paint(ctx, n.sliver.geometry)
		n.sliver.needsPaint = false
	}
	if err != nil {
		return errors.NewFor(op, errors.KindPaint, uint32(n.id), "paint of %v failed: %w", n.id, err)
	}
	return nil
}

// paintContext exposes an element's children to its render object during
// paint.
type paintContext struct {
	pipeline *PipelineOwner
	n        *node
	canvas   graphics.Canvas
}

var _ layout.PaintContext = (*paintContext)(nil)

func (c *paintContext) Canvas() graphics.Canvas { return c.canvas }

func (c *paintContext) ChildCount() int { return len(c.n.children) }

// PaintChild paints the i-th child at its positioned offset. A clean
// boundary child composites from its cached layer in O(1); a dirty boundary
// child is re-recorded first, then composited.
func (c *paintContext) PaintChild(i int) error {
	const op = "pipeline.paintChild"

	if i < 0 || i >= len(c.n.children) {
		return errors.NewFor(op, errors.KindNotFound, uint32(c.n.id),
			"%v has no child at index %d", c.n.id, i)
	}
	childID, err := c.pipeline.renderDescendant(op, c.n.children[i])
	if err != nil {
		return err
	}
	child, err := c.pipeline.tree.lookup(op, childID)
	if err != nil {
		return err
	}

	flags := renderFlagsOf(child)
	var offset graphics.Offset
	switch {
	case child.render != nil:
		if !child.render.hasSize {
			return errors.NewFor(op, errors.KindPaint, uint32(childID),
				"painting %v before layout", childID)
		}
		offset = child.render.paintOffset
	case child.sliver != nil:
		if !child.sliver.hasGeometry {
			return errors.NewFor(op, errors.KindPaint, uint32(childID),
				"painting %v before layout", childID)
		}
		offset = child.sliver.paintOffset
	}

	c.canvas.Save()
	c.canvas.Translate(offset.X, offset.Y)
	defer c.canvas.Restore()

	if flags.boundary {
		if flags.needsPaint || layerOf(child) == nil || layerOf(child).Content == nil {
			if err := c.pipeline.recordLayer(child); err != nil {
				return err
			}
		}
		delete(c.pipeline.dirtyPaint, childID)
		c.canvas.DrawChildLayer(layerOf(child))
		return nil
	}
	return c.pipeline.paintElement(child, c.canvas)
}
