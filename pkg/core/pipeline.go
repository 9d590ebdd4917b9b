package core

import (
	"sort"

	"github.com/go-loom/loom/pkg/errors"
	"github.com/go-loom/loom/pkg/graphics"
	"github.com/go-loom/loom/pkg/layout"
)

// MaxLayoutDepth bounds layout recursion. A tree deeper than this is almost
// certainly a construction loop; the walk stops there with a recoverable
// error instead of blowing the goroutine stack.
const MaxLayoutDepth = 1000

// PipelineOwner drives the per-frame passes over one element tree:
// drain the rebuild queue, flush builds parents-first, flush layout from the
// dirty boundaries, then re-record the dirty layers.
//
// Dirty marking (MarkNeedsBuild) is safe from any goroutine; everything else
// runs on the frame goroutine under the tree's frame lock.
type PipelineOwner struct {
	tree  *ElementTree
	queue *RebuildQueue

	dirtyLayout  map[ElementID]struct{}
	dirtyPaint   map[ElementID]struct{}
	layoutStack  []ElementID
	buildEpoch   uint64
	rootRender   ElementID
	onNeedsFrame func()
}

// NewPipelineOwner wires a pipeline to a tree. onNeedsFrame is invoked
// whenever new dirty work appears and may be nil.
func NewPipelineOwner(tree *ElementTree, onNeedsFrame func()) *PipelineOwner {
	p := &PipelineOwner{
		tree:         tree,
		dirtyLayout:  make(map[ElementID]struct{}),
		dirtyPaint:   make(map[ElementID]struct{}),
		onNeedsFrame: onNeedsFrame,
	}
	p.queue = NewRebuildQueue(p.requestFrame)
	return p
}

// Tree returns the pipeline's element tree.
func (p *PipelineOwner) Tree() *ElementTree { return p.tree }

// Queue returns the rebuild queue, for schedulers that feed it directly.
func (p *PipelineOwner) Queue() *RebuildQueue { return p.queue }

func (p *PipelineOwner) requestFrame() {
	if p.onNeedsFrame != nil {
		p.onNeedsFrame()
	}
}

// MarkNeedsBuild schedules an element for rebuild in the next frame. Safe
// from any goroutine; marks for missing or defunct elements are dropped at
// drain time.
func (p *PipelineOwner) MarkNeedsBuild(id ElementID) {
	depth, ok := p.tree.depthForMark(id)
	if !ok {
		return
	}
	p.queue.Push(id, depth)
}

// depthForMark reads an element's depth for queueing without blocking the
// caller. The frame goroutine reads directly under its own write lock; other
// goroutines try the read lock, and when a frame is in flight the mark is
// queued with depth zero instead of waiting the frame out. An imprecise
// depth only perturbs drain order, and the drain re-validates every entry
// against the live tree before rebuilding.
func (t *ElementTree) depthForMark(id ElementID) (int, bool) {
	read := func() (int, bool) {
		slot := id.slot()
		if slot < 0 || slot >= len(t.slots) {
			return 0, false
		}
		n := t.slots[slot]
		if n == nil || n.id != id || n.lifecycle == LifecycleDefunct {
			return 0, false
		}
		return n.depth, true
	}
	if t.ownsFrame() {
		return read()
	}
	if !t.mu.TryRLock() {
		return 0, id != NoElement
	}
	defer t.mu.RUnlock()
	return read()
}

// FlushBuild drains the rebuild queue and rebuilds each element in
// ascending depth order. Elements already rebuilt this flush as part of an
// ancestor's subtree are skipped; stale entries for removed or deactivated
// elements are dropped.
func (p *PipelineOwner) FlushBuild() {
	p.buildEpoch++
	// Rebuilds can enqueue more work (a component building a dirty child);
	// keep draining until quiescent.
	for p.queue.Len() > 0 {
		for _, entry := range p.queue.Drain() {
			n, err := p.tree.lookup("pipeline.flushBuild", entry.element)
			if err != nil {
				continue
			}
			if n.lifecycle != LifecycleActive {
				continue
			}
			if n.builtFrame == p.buildEpoch {
				continue
			}
			p.rebuildElement(n)
		}
	}
}

// MarkNeedsLayout dirties the element's layout and schedules the nearest
// enclosing relayout boundary. Frame-goroutine only.
func (p *PipelineOwner) MarkNeedsLayout(id ElementID) {
	cursor := id
	for cursor != NoElement {
		n, err := p.tree.lookup("pipeline.markNeedsLayout", cursor)
		if err != nil {
			return
		}
		if flags := renderFlagsOf(n); flags != nil {
			flags.needsLayout = true
			p.tree.boxCache.Invalidate(uint32(cursor))
			p.tree.sliverCache.Invalidate(uint32(cursor))
			if p.isRelayoutBoundary(n) {
				p.dirtyLayout[cursor] = struct{}{}
				p.requestFrame()
				return
			}
		}
		cursor = n.parent
	}
	// No boundary above: the whole tree relayouts from the root.
	if p.tree.root != NoElement {
		p.dirtyLayout[p.tree.root] = struct{}{}
		p.requestFrame()
	}
}

// isRelayoutBoundary reports whether the element can re-run layout locally:
// its last constraints were tight, so no change below it can alter the size
// its parent observed.
func (p *PipelineOwner) isRelayoutBoundary(n *node) bool {
	if n.render != nil {
		return n.render.hasConstraints && n.render.constraints.IsTight()
	}
	return false
}

// MarkNeedsPaint dirties the element's paint and schedules the nearest
// enclosing repaint boundary's layer for re-recording. Frame-goroutine only.
func (p *PipelineOwner) MarkNeedsPaint(id ElementID) {
	if n, err := p.tree.lookup("pipeline.markNeedsPaint", id); err == nil {
		if flags := renderFlagsOf(n); flags != nil {
			flags.needsPaint = true
		}
	}
	boundary := p.enclosingRepaintBoundary(id)
	if boundary == NoElement {
		return
	}
	n, err := p.tree.lookup("pipeline.markNeedsPaint", boundary)
	if err != nil {
		return
	}
	if flags := renderFlagsOf(n); flags != nil {
		flags.needsPaint = true
	}
	if layer := layerOf(n); layer != nil {
		layer.MarkDirty()
	}
	p.dirtyPaint[boundary] = struct{}{}
	p.requestFrame()
}

// enclosingRepaintBoundary finds the nearest ancestor-or-self boundary,
// falling back to the root render element, which is always composited
// through a layer.
func (p *PipelineOwner) enclosingRepaintBoundary(id ElementID) ElementID {
	for cursor := id; cursor != NoElement; {
		n, err := p.tree.lookup("pipeline.repaintBoundary", cursor)
		if err != nil {
			return NoElement
		}
		if flags := renderFlagsOf(n); flags != nil && flags.boundary {
			return cursor
		}
		cursor = n.parent
	}
	return p.rootRender
}

// FlushLayout runs the layout pass. The root is laid out under the given
// constraints when dirty; independent relayout boundaries then re-run under
// their stored constraints, parents first.
func (p *PipelineOwner) FlushLayout(rootConstraints layout.BoxConstraints) error {
	root := p.tree.root
	if root == NoElement {
		return errors.New("pipeline.flushLayout", errors.KindEmptyTree, "layout of an empty tree")
	}

	rootRender, err := p.renderDescendant("pipeline.flushLayout", root)
	if err != nil {
		return err
	}
	p.rootRender = rootRender

	rootNode, err := p.tree.lookup("pipeline.flushLayout", rootRender)
	if err != nil {
		return err
	}
	if rootNode.render == nil {
		return errors.NewFor("pipeline.flushLayout", errors.KindNotSupported, uint32(rootRender),
			"root render element %v uses the sliver protocol; the root must be a box", rootRender)
	}
	// The root always composites through its own layer.
	rootNode.render.boundary = true

	if rootNode.render.needsLayout || !rootNode.render.hasConstraints ||
		rootNode.render.constraints != rootConstraints {
		if _, err := p.layoutBox(rootRender, rootConstraints, 0); err != nil {
			return err
		}
	}

	// Boundaries still dirty were not reached from the root walk.
	boundaries := make([]ElementID, 0, len(p.dirtyLayout))
	for id := range p.dirtyLayout {
		boundaries = append(boundaries, id)
	}
	sort.Slice(boundaries, func(i, j int) bool {
		di, _ := p.tree.DepthOf(boundaries[i])
		dj, _ := p.tree.DepthOf(boundaries[j])
		return di < dj
	})
	for _, id := range boundaries {
		n, err := p.tree.lookup("pipeline.flushLayout", id)
		if err != nil {
			continue
		}
		if n.render == nil || !n.render.needsLayout || !n.render.hasConstraints {
			continue
		}
		if _, err := p.layoutBox(id, n.render.constraints, n.depth); err != nil {
			errors.ReportError("pipeline.flushLayout", err)
		}
	}
	p.dirtyLayout = make(map[ElementID]struct{})
	return nil
}

// RenderFrame runs build, layout, and paint back to back and returns the
// root layer. The caller must hold the frame lock (tree.BeginFrame).
func (p *PipelineOwner) RenderFrame(rootConstraints layout.BoxConstraints) (*graphics.Layer, error) {
	p.FlushBuild()
	if err := p.FlushLayout(rootConstraints); err != nil {
		return nil, err
	}
	return p.FlushPaint()
}

func renderFlagsOf(n *node) *renderFlags {
	switch {
	case n.render != nil:
		return &n.render.renderFlags
	case n.sliver != nil:
		return &n.sliver.renderFlags
	default:
		return nil
	}
}

func layerOf(n *node) *graphics.Layer {
	switch {
	case n.render != nil:
		return n.render.layer
	case n.sliver != nil:
		return n.sliver.layer
	default:
		return nil
	}
}
