package core

import (
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"

	"github.com/go-loom/loom/pkg/errors"
	"github.com/go-loom/loom/pkg/graphics"
	"github.com/go-loom/loom/pkg/layout"
)

// node is one arena slot. Parent/child links are ids, never pointers, so a
// slot can be recycled without chasing references through the graph.
type node struct {
	id        ElementID
	view      View
	kind      Kind
	lifecycle Lifecycle

	parent   ElementID
	children []ElementID
	depth    int

	// builtFrame is the build epoch of the last rebuild, used to skip
	// queue entries for elements an ancestor already rebuilt.
	builtFrame uint64

	component *componentPayload
	render    *renderPayload
	sliver    *sliverPayload
	provider  *providerPayload
}

// ElementTree is the arena of elements plus the layout caches keyed off it.
//
// Concurrency model: a coarse frame lock. The frame goroutine takes the
// write lock for the whole frame via BeginFrame/EndFrame; mutations during a
// frame are rejected unless they come from that goroutine. Outside a frame
// the caller is responsible for serialization, which is how setup and tests
// use the tree directly.
type ElementTree struct {
	mu    sync.RWMutex
	owner atomic.Int64

	slots []*node
	free  []ElementID
	count int
	root  ElementID
	frame uint64

	boxCache    *layout.Cache[layout.BoxConstraints, graphics.Size]
	sliverCache *layout.Cache[layout.SliverConstraints, layout.SliverGeometry]
}

// NewElementTree creates an empty tree with default cache capacities.
func NewElementTree() *ElementTree {
	return &ElementTree{
		boxCache:    layout.NewCache[layout.BoxConstraints, graphics.Size](0),
		sliverCache: layout.NewCache[layout.SliverConstraints, layout.SliverGeometry](0),
	}
}

// BeginFrame takes the frame lock and records the owning goroutine. Every
// tree mutation until EndFrame must come from that goroutine.
func (t *ElementTree) BeginFrame() {
	t.mu.Lock()
	t.owner.Store(goid.Get())
	t.frame++
}

// EndFrame releases the frame lock.
func (t *ElementTree) EndFrame() {
	t.owner.Store(0)
	t.mu.Unlock()
}

// FrameNumber returns the current frame counter. It only advances in
// BeginFrame.
func (t *ElementTree) FrameNumber() uint64 {
	return t.frame
}

// Inspect runs fn under the read lock for consistent traversal from outside
// the frame goroutine.
func (t *ElementTree) Inspect(fn func()) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn()
}

// ownsFrame reports whether the calling goroutine holds the frame lock.
func (t *ElementTree) ownsFrame() bool {
	return t.owner.Load() == goid.Get()
}

// guard rejects mutations from off the frame goroutine while a frame is in
// progress. In DebugMode the violation panics.
func (t *ElementTree) guard(op string) error {
	owner := t.owner.Load()
	if owner == 0 || owner == goid.Get() {
		return nil
	}
	err := errors.New(op, errors.KindConcurrentModification,
		"tree mutated from goroutine %d while goroutine %d holds the frame", goid.Get(), owner)
	if DebugMode {
		panic(err)
	}
	errors.Report(err)
	return err
}

func (t *ElementTree) lookup(op string, id ElementID) (*node, error) {
	slot := id.slot()
	if slot < 0 || slot >= len(t.slots) {
		return nil, errors.NewFor(op, errors.KindNotFound, uint32(id), "%v does not exist", id)
	}
	n := t.slots[slot]
	if n == nil || n.id != id {
		return nil, errors.NewFor(op, errors.KindNotFound, uint32(id), "%v was removed", id)
	}
	return n, nil
}

// alloc takes a slot from the free list or grows the arena. A recycled slot
// comes back under a bumped generation so ids issued for its previous
// occupant stay dead.
func (t *ElementTree) alloc() *node {
	var n *node
	if last := len(t.free) - 1; last >= 0 {
		prev := t.free[last]
		t.free = t.free[:last]
		n = &node{id: makeID(uint32(prev.slot()+1), prev.generation()+1)}
		t.slots[prev.slot()] = n
	} else {
		n = &node{id: makeID(uint32(len(t.slots)+1), 0)}
		t.slots = append(t.slots, n)
	}
	t.count++
	return n
}

// Insert allocates an element for the view in the Initial state, unattached.
// The payload variant is fixed here from the view's kind and never changes
// for the life of the element.
func (t *ElementTree) Insert(view View) (ElementID, error) {
	const op = "tree.insert"
	if err := t.guard(op); err != nil {
		return NoElement, err
	}
	if view == nil {
		return NoElement, errors.New(op, errors.KindNotSupported, "cannot insert a nil view")
	}
	kind, ok := viewKind(view)
	if !ok {
		return NoElement, errors.New(op, errors.KindNotSupported,
			"view %s implements none of the element kinds", viewTypeName(view))
	}

	n := t.alloc()
	n.view = view
	n.kind = kind
	n.lifecycle = LifecycleInitial
	n.parent = NoElement
	n.children = nil
	n.depth = 0

	switch kind {
	case KindComponent:
		n.component = &componentPayload{}
	case KindRender:
		n.render = &renderPayload{
			renderFlags: renderFlags{needsLayout: true, needsPaint: true},
			box:         view.(RenderView).CreateRenderBox(),
		}
		n.render.boundary = layout.IsRepaintBoundary(n.render.box)
	case KindSliver:
		n.sliver = &sliverPayload{
			renderFlags: renderFlags{needsLayout: true, needsPaint: true},
			sliver:      view.(SliverView).CreateRenderSliver(),
		}
		n.sliver.boundary = layout.IsRepaintBoundary(n.sliver.sliver)
	case KindProvider:
		n.provider = &providerPayload{
			value:      view.(ProviderView).ProvidedValue(),
			dependents: make(map[ElementID]struct{}),
		}
	}
	return n.id, nil
}

// Remove returns a slot to the arena. The element must already be Defunct
// and unlinked; anything else is a programming error.
func (t *ElementTree) Remove(id ElementID) error {
	const op = "tree.remove"
	if err := t.guard(op); err != nil {
		return err
	}
	n, err := t.lookup(op, id)
	if err != nil {
		return err
	}
	if n.lifecycle != LifecycleDefunct || n.parent != NoElement || len(n.children) != 0 {
		err := errors.NewFor(op, errors.KindInternal, uint32(id),
			"removing %v in state %v with parent %v and %d children", id, n.lifecycle, n.parent, len(n.children))
		if DebugMode {
			panic(err)
		}
		errors.Report(err)
		return err
	}
	t.boxCache.Remove(uint32(id))
	t.sliverCache.Remove(uint32(id))
	if t.root == id {
		t.root = NoElement
	}
	t.slots[id.slot()] = nil
	t.free = append(t.free, id)
	t.count--
	return nil
}

// transition moves an element through the lifecycle machine, failing loudly
// on an illegal edge.
func (t *ElementTree) transition(n *node, next Lifecycle, op string) error {
	if !n.lifecycle.CanTransitionTo(next) {
		err := errors.NewFor(op, errors.KindInternal, uint32(n.id),
			"illegal lifecycle transition %v -> %v for %v", n.lifecycle, next, n.id)
		if DebugMode {
			panic(err)
		}
		errors.Report(err)
		return err
	}
	n.lifecycle = next
	return nil
}

// link attaches child under parent at the given child index (or appends when
// index is out of range) and recomputes depths below it.
func (t *ElementTree) link(parent, child *node, index int) {
	child.parent = parent.id
	if index < 0 || index >= len(parent.children) {
		parent.children = append(parent.children, child.id)
	} else {
		parent.children = append(parent.children, NoElement)
		copy(parent.children[index+1:], parent.children[index:])
		parent.children[index] = child.id
	}
	t.recomputeDepth(child, parent.depth+1)
}

// unlink detaches child from its parent, keeping the subtree intact.
func (t *ElementTree) unlink(child *node) {
	if child.parent == NoElement {
		return
	}
	parent := t.slots[child.parent.slot()]
	if parent != nil {
		for i, id := range parent.children {
			if id == child.id {
				parent.children = append(parent.children[:i], parent.children[i+1:]...)
				break
			}
		}
	}
	child.parent = NoElement
}

// recomputeDepth walks the subtree iteratively and reassigns depths.
func (t *ElementTree) recomputeDepth(n *node, depth int) {
	type pending struct {
		n     *node
		depth int
	}
	stack := []pending{{n, depth}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		top.n.depth = top.depth
		for _, childID := range top.n.children {
			if child := t.slots[childID.slot()]; child != nil {
				stack = append(stack, pending{child, top.depth + 1})
			}
		}
	}
}

// isDescendant reports whether maybeDescendant sits in id's subtree,
// including id itself.
func (t *ElementTree) isDescendant(id, maybeDescendant ElementID) bool {
	for cursor := maybeDescendant; cursor != NoElement; {
		if cursor == id {
			return true
		}
		n := t.slots[cursor.slot()]
		if n == nil {
			return false
		}
		cursor = n.parent
	}
	return false
}

// Reparent moves an element (and its subtree) under a new parent. The move
// is rejected when it would create a cycle. Layout caches for the moved
// element and both ancestor chains are invalidated.
func (t *ElementTree) Reparent(id, newParent ElementID, index int) error {
	const op = "tree.reparent"
	if err := t.guard(op); err != nil {
		return err
	}
	n, err := t.lookup(op, id)
	if err != nil {
		return err
	}
	parent, err := t.lookup(op, newParent)
	if err != nil {
		return err
	}
	if parent.lifecycle == LifecycleDefunct {
		return errors.NewFor(op, errors.KindInvalidParent, uint32(newParent),
			"new parent %v is defunct", newParent)
	}
	if t.isDescendant(id, newParent) {
		return errors.NewFor(op, errors.KindCycleDetected, uint32(id),
			"%v is an ancestor of %v; reparenting would create a cycle", id, newParent)
	}

	oldParent := n.parent
	t.unlink(n)
	t.link(parent, n, index)

	t.invalidateAncestorCaches(id)
	if oldParent != NoElement {
		t.invalidateAncestorCaches(oldParent)
	}
	return nil
}

// invalidateAncestorCaches marks layout cache entries for the element and
// every ancestor as invalid. Structural mutations call this conservatively:
// an ancestor's cached geometry may have depended on the moved subtree.
func (t *ElementTree) invalidateAncestorCaches(id ElementID) {
	for cursor := id; cursor != NoElement; {
		t.boxCache.Invalidate(uint32(cursor))
		t.sliverCache.Invalidate(uint32(cursor))
		n := t.slots[cursor.slot()]
		if n == nil {
			break
		}
		cursor = n.parent
	}
}

// Root returns the root element id, NoElement when the tree is empty.
func (t *ElementTree) Root() ElementID { return t.root }

// Len returns the number of live elements.
func (t *ElementTree) Len() int { return t.count }

// ViewOf returns the element's current view.
func (t *ElementTree) ViewOf(id ElementID) (View, error) {
	n, err := t.lookup("tree.view", id)
	if err != nil {
		return nil, err
	}
	return n.view, nil
}

// KindOf returns the element's payload variant.
func (t *ElementTree) KindOf(id ElementID) (Kind, error) {
	n, err := t.lookup("tree.kind", id)
	if err != nil {
		return 0, err
	}
	return n.kind, nil
}

// LifecycleOf returns the element's lifecycle state.
func (t *ElementTree) LifecycleOf(id ElementID) (Lifecycle, error) {
	n, err := t.lookup("tree.lifecycle", id)
	if err != nil {
		return 0, err
	}
	return n.lifecycle, nil
}

// ParentOf returns the element's parent, NoElement for the root.
func (t *ElementTree) ParentOf(id ElementID) (ElementID, error) {
	n, err := t.lookup("tree.parent", id)
	if err != nil {
		return NoElement, err
	}
	return n.parent, nil
}

// ChildrenOf returns a copy of the element's child list in order.
func (t *ElementTree) ChildrenOf(id ElementID) ([]ElementID, error) {
	n, err := t.lookup("tree.children", id)
	if err != nil {
		return nil, err
	}
	children := make([]ElementID, len(n.children))
	copy(children, n.children)
	return children, nil
}

// DepthOf returns the element's depth, root being zero.
func (t *ElementTree) DepthOf(id ElementID) (int, error) {
	n, err := t.lookup("tree.depth", id)
	if err != nil {
		return 0, err
	}
	return n.depth, nil
}

// SizeOf returns the box geometry from the element's last completed layout.
func (t *ElementTree) SizeOf(id ElementID) (graphics.Size, error) {
	n, err := t.lookup("tree.size", id)
	if err != nil {
		return graphics.Size{}, err
	}
	if n.render == nil || !n.render.hasSize {
		return graphics.Size{}, errors.NewFor("tree.size", errors.KindLayout, uint32(id),
			"%v has no laid-out size", id)
	}
	return n.render.size, nil
}

// Walk visits the attached tree in depth-first preorder. Returning false
// from visit skips the element's subtree.
func (t *ElementTree) Walk(visit func(id ElementID, depth int) bool) {
	if t.root == NoElement {
		return
	}
	stack := []ElementID{t.root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := t.slots[id.slot()]
		if n == nil {
			continue
		}
		if !visit(id, n.depth) {
			continue
		}
		for i := len(n.children) - 1; i >= 0; i-- {
			stack = append(stack, n.children[i])
		}
	}
}

// CacheStats reports the box layout cache counters.
func (t *ElementTree) CacheStats() layout.CacheStats {
	return t.boxCache.Stats()
}
