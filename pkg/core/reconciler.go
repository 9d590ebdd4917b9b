package core

import (
	"reflect"

	"github.com/go-loom/loom/pkg/errors"
	"github.com/go-loom/loom/pkg/graphics"
	"github.com/go-loom/loom/pkg/layout"
)

// MountRoot installs or replaces the root view. When the incoming view can
// update the existing root it is reconciled in place; otherwise the old tree
// is unmounted first.
func (p *PipelineOwner) MountRoot(view View) (ElementID, error) {
	const op = "pipeline.mountRoot"
	if err := p.tree.guard(op); err != nil {
		return NoElement, err
	}
	if view == nil {
		return NoElement, errors.New(op, errors.KindEmptyTree, "cannot mount a nil root view")
	}

	if root := p.tree.root; root != NoElement {
		n, err := p.tree.lookup(op, root)
		if err == nil {
			if canUpdate(n.view, view) {
				p.updateElement(n, view)
				p.requestFrame()
				return root, nil
			}
			p.unmountSubtree(root)
		}
	}

	id, err := p.inflate(view, nil, -1)
	if err != nil {
		return NoElement, err
	}
	p.tree.root = id
	p.requestFrame()
	return id, nil
}

// inflate creates an element for the view, attaches it under parent (nil for
// the root), activates it, and runs its first build. Returns the new id; a
// view of no known kind fails with NotSupported.
func (p *PipelineOwner) inflate(view View, parent *node, index int) (ElementID, error) {
	id, err := p.tree.Insert(view)
	if err != nil {
		return NoElement, err
	}
	n, err := p.tree.lookup("pipeline.inflate", id)
	if err != nil {
		return NoElement, err
	}
	if parent != nil {
		p.tree.link(parent, n, index)
	}
	if err := p.tree.transition(n, LifecycleActive, "pipeline.inflate"); err != nil {
		return NoElement, err
	}
	p.rebuildElement(n)
	return id, nil
}

// rebuildElement runs one element's build step and reconciles its children.
// Render elements also get their render object updated and their geometry
// dirtied.
func (p *PipelineOwner) rebuildElement(n *node) {
	n.builtFrame = p.buildEpoch

	switch n.kind {
	case KindComponent:
		built := p.safeBuild(n)
		n.component.built = built
		if built == nil {
			p.reconcileChildren(n, nil)
		} else {
			p.reconcileChildren(n, []View{built})
		}

	case KindProvider:
		pv := n.view.(ProviderView)
		next := pv.ProvidedValue()
		if !reflect.DeepEqual(n.provider.value, next) {
			n.provider.value = next
			p.notifyDependents(n)
		}
		if child := pv.Child(); child != nil {
			p.reconcileChildren(n, []View{child})
		} else {
			p.reconcileChildren(n, nil)
		}

	case KindRender:
		rv := n.view.(RenderView)
		rv.UpdateRenderBox(n.render.box)
		n.render.boundary = layout.IsRepaintBoundary(n.render.box) || n.id == p.rootRender
		p.reconcileChildren(n, rv.ChildViews())
		p.MarkNeedsLayout(n.id)
		p.MarkNeedsPaint(n.id)

	case KindSliver:
		sv := n.view.(SliverView)
		sv.UpdateRenderSliver(n.sliver.sliver)
		n.sliver.boundary = layout.IsRepaintBoundary(n.sliver.sliver)
		p.reconcileChildren(n, sv.ChildViews())
		p.MarkNeedsLayout(n.id)
		p.MarkNeedsPaint(n.id)
	}
}

// safeBuild runs a component's Build, converting a panic into a reported
// build error and an obvious placeholder view so one bad subtree cannot take
// down the frame.
func (p *PipelineOwner) safeBuild(n *node) (built View) {
	defer func() {
		if recovered := recover(); recovered != nil {
			errors.ReportBuildError(&errors.BuildError{
				View:       viewTypeName(n.view),
				Element:    uint32(n.id),
				Recovered:  recovered,
				StackTrace: errors.CaptureStack(),
			})
			built = &errorPlaceholderView{origin: viewTypeName(n.view)}
		}
	}()
	ctx := &buildContext{pipeline: p, element: n.id, depth: n.depth}
	return n.view.(ComponentView).Build(ctx)
}

// updateElement applies a new view to an existing element of the same type
// and key. An unchanged view short-circuits: the subtree is left alone
// unless something else dirtied it.
func (p *PipelineOwner) updateElement(n *node, next View) {
	if reflect.DeepEqual(n.view, next) {
		// Unchanged configuration. The subtree stays as it is; a child the
		// queue dirtied independently still rebuilds in its own turn.
		n.view = next
		return
	}
	n.view = next
	p.rebuildElement(n)
}

// reconcileChildren diffs an element's children against the new child views.
// Keyed views match by key anywhere in the old list; unkeyed views match
// positionally. Unmatched old children are unmounted, unmatched new views
// inflated. Child order follows the new list.
func (p *PipelineOwner) reconcileChildren(parent *node, views []View) {
	old := make([]ElementID, len(parent.children))
	copy(old, parent.children)

	oldByKey := make(map[any]ElementID)
	for _, childID := range old {
		if child, err := p.tree.lookup("pipeline.reconcile", childID); err == nil {
			if key := child.view.Key(); key != nil {
				oldByKey[key] = childID
			}
		}
	}

	used := make(map[ElementID]struct{}, len(old))
	next := make([]ElementID, 0, len(views))
	for i, view := range views {
		if view == nil {
			continue
		}

		candidate := NoElement
		if key := view.Key(); key != nil {
			candidate = oldByKey[key]
		} else if i < len(old) {
			if _, taken := used[old[i]]; !taken {
				candidate = old[i]
			}
		}

		if candidate != NoElement {
			if _, taken := used[candidate]; !taken {
				if child, err := p.tree.lookup("pipeline.reconcile", candidate); err == nil && canUpdate(child.view, view) {
					used[candidate] = struct{}{}
					p.updateElement(child, view)
					next = append(next, candidate)
					continue
				}
			}
		}

		id, err := p.inflate(view, parent, -1)
		if err != nil {
			errors.ReportError("pipeline.reconcile", err)
			continue
		}
		next = append(next, id)
	}

	changed := len(next) != len(old)
	for _, oldID := range old {
		if _, taken := used[oldID]; !taken {
			p.unmountSubtree(oldID)
			changed = true
		}
	}
	if !changed {
		for i := range next {
			if next[i] != old[i] {
				changed = true
				break
			}
		}
	}

	parent.children = next
	if changed {
		p.tree.invalidateAncestorCaches(parent.id)
		if renderFlagsOf(parent) != nil {
			p.MarkNeedsLayout(parent.id)
		}
	}
}

// notifyDependents schedules every reader of a provider's value for rebuild.
// Dependents that have since been unmounted are forgotten.
func (p *PipelineOwner) notifyDependents(n *node) {
	for dep := range n.provider.dependents {
		if _, err := p.tree.lookup("pipeline.notifyDependents", dep); err != nil {
			delete(n.provider.dependents, dep)
			continue
		}
		p.MarkNeedsBuild(dep)
	}
}

// unmountSubtree tears down an element and everything below it: lifecycle to
// Defunct, layers disposed, caches dropped, slots freed.
func (p *PipelineOwner) unmountSubtree(id ElementID) {
	n, err := p.tree.lookup("pipeline.unmount", id)
	if err != nil {
		return
	}
	p.tree.unlink(n)

	stack := []*node{n}
	for len(stack) > 0 {
		m := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, childID := range m.children {
			if child, err := p.tree.lookup("pipeline.unmount", childID); err == nil {
				stack = append(stack, child)
			}
		}

		if m.lifecycle == LifecycleActive || m.lifecycle == LifecycleInactive {
			p.tree.transition(m, LifecycleDefunct, "pipeline.unmount")
		}
		if layer := layerOf(m); layer != nil {
			layer.Dispose()
		}
		delete(p.dirtyLayout, m.id)
		delete(p.dirtyPaint, m.id)

		m.parent = NoElement
		m.children = nil
		p.tree.Remove(m.id)
	}
}

// Deactivate detaches an element, keeping its entire payload, so it can be
// reattached elsewhere before the frame ends. Frame-goroutine only.
func (p *PipelineOwner) Deactivate(id ElementID) error {
	const op = "pipeline.deactivate"
	if err := p.tree.guard(op); err != nil {
		return err
	}
	n, err := p.tree.lookup(op, id)
	if err != nil {
		return err
	}
	oldParent := n.parent
	if err := p.tree.transition(n, LifecycleInactive, op); err != nil {
		return err
	}
	p.tree.unlink(n)
	if oldParent != NoElement {
		p.tree.invalidateAncestorCaches(oldParent)
		p.MarkNeedsLayout(oldParent)
	}
	return nil
}

// Reactivate attaches a deactivated element under a new parent. The payload
// survives the detach untouched.
func (p *PipelineOwner) Reactivate(id, parent ElementID, index int) error {
	const op = "pipeline.reactivate"
	if err := p.tree.guard(op); err != nil {
		return err
	}
	n, err := p.tree.lookup(op, id)
	if err != nil {
		return err
	}
	parentNode, err := p.tree.lookup(op, parent)
	if err != nil {
		return err
	}
	if parentNode.lifecycle != LifecycleActive {
		return errors.NewFor(op, errors.KindInvalidParent, uint32(parent),
			"cannot reactivate under %v in state %v", parent, parentNode.lifecycle)
	}
	if err := p.tree.transition(n, LifecycleActive, op); err != nil {
		return err
	}
	p.tree.link(parentNode, n, index)
	p.tree.invalidateAncestorCaches(id)
	p.MarkNeedsLayout(parent)
	if renderFlagsOf(n) != nil {
		p.MarkNeedsLayout(id)
		p.MarkNeedsPaint(id)
	}
	return nil
}

// buildContext implements BuildContext for one element during its build.
type buildContext struct {
	pipeline *PipelineOwner
	element  ElementID
	depth    int
}

func (c *buildContext) Element() ElementID { return c.element }
func (c *buildContext) Depth() int         { return c.depth }

func (c *buildContext) DependOn(viewType reflect.Type) (any, bool) {
	tree := c.pipeline.tree
	cursor := c.element
	for cursor != NoElement {
		n, err := tree.lookup("context.dependOn", cursor)
		if err != nil {
			return nil, false
		}
		if n.kind == KindProvider && reflect.TypeOf(n.view) == viewType {
			n.provider.dependents[c.element] = struct{}{}
			return n.provider.value, true
		}
		cursor = n.parent
	}
	return nil, false
}

// errorPlaceholderView replaces the output of a component whose Build
// panicked. It renders an unmissable magenta box.
type errorPlaceholderView struct {
	origin string
}

func (*errorPlaceholderView) Key() any { return nil }

func (*errorPlaceholderView) CreateRenderBox() layout.RenderBox { return &placeholderBox{} }

func (*errorPlaceholderView) UpdateRenderBox(layout.RenderBox) {}

func (*errorPlaceholderView) ChildViews() []View { return nil }

type placeholderBox struct{}

func (*placeholderBox) Arity() layout.Arity { return layout.ArityLeaf }

func (*placeholderBox) Layout(_ layout.BoxLayoutContext, constraints layout.BoxConstraints) (graphics.Size, error) {
	return constraints.Constrain(graphics.Size{Width: 64, Height: 64}), nil
}

func (*placeholderBox) Paint(ctx layout.PaintContext, size graphics.Size) error {
	ctx.Canvas().DrawRect(graphics.Rect{Right: size.Width, Bottom: size.Height}, graphics.RGB(0xFF, 0x00, 0xFF))
	return nil
}
