package core

import (
	"math"
	"testing"
	"time"

	"github.com/go-loom/loom/pkg/errors"
	"github.com/go-loom/loom/pkg/graphics"
	"github.com/go-loom/loom/pkg/layout"
)

func TestCleanSiblingSkipsLayout(t *testing.T) {
	p := newTestPipeline()
	rootCounts := &callCounts{}
	aCounts := &callCounts{}
	bCounts := &callCounts{}
	mustMount(p, &boxSpec{width: 100, height: 100, counts: rootCounts, children: []View{
		&boxSpec{key: "a", width: 40, height: 40, counts: aCounts},
		&boxSpec{key: "b", width: 40, height: 40, counts: bCounts},
	}})

	constraints := layout.Tight(graphics.Size{Width: 100, Height: 100})
	if err := p.FlushLayout(constraints); err != nil {
		t.Fatal(err)
	}
	if rootCounts.layouts != 1 || aCounts.layouts != 1 || bCounts.layouts != 1 {
		t.Fatalf("initial layouts: root=%d a=%d b=%d", rootCounts.layouts, aCounts.layouts, bCounts.layouts)
	}

	tree := p.Tree()
	children, _ := tree.ChildrenOf(tree.Root())
	p.MarkNeedsLayout(children[1])

	if err := p.FlushLayout(constraints); err != nil {
		t.Fatal(err)
	}
	if aCounts.layouts != 1 {
		t.Errorf("clean sibling was re-laid out: %d", aCounts.layouts)
	}
	if bCounts.layouts != 2 {
		t.Errorf("dirty element layouts = %d, want 2", bCounts.layouts)
	}
}

func TestRebuiltDescendantKeepsAncestorLayout(t *testing.T) {
	p := newTestPipeline()
	rootCounts := &callCounts{}
	aCounts := &callCounts{}
	bCounts := &callCounts{}
	mustMount(p, &boxSpec{width: 100, height: 100, counts: rootCounts, children: []View{
		&boxSpec{key: "a", width: 40, height: 40, tight: true, counts: aCounts, children: []View{
			&boxSpec{key: "b", width: 40, height: 40, counts: bCounts},
		}},
	}})

	constraints := layout.Tight(graphics.Size{Width: 100, Height: 100})
	if _, err := p.RenderFrame(constraints); err != nil {
		t.Fatal(err)
	}
	if rootCounts.layouts != 1 || aCounts.layouts != 1 || bCounts.layouts != 1 {
		t.Fatalf("initial layouts: root=%d a=%d b=%d", rootCounts.layouts, aCounts.layouts, bCounts.layouts)
	}

	// Dirty only the leaf. Its constraints are tight, so the relayout stops
	// there and the ancestors keep their measured geometry untouched.
	tree := p.Tree()
	rootChildren, _ := tree.ChildrenOf(tree.Root())
	aChildren, _ := tree.ChildrenOf(rootChildren[0])
	p.MarkNeedsBuild(aChildren[0])

	if _, err := p.RenderFrame(constraints); err != nil {
		t.Fatal(err)
	}
	if bCounts.layouts != 2 {
		t.Errorf("rebuilt leaf layouts = %d, want 2", bCounts.layouts)
	}
	if aCounts.layouts != 1 {
		t.Errorf("ancestor re-laid out after leaf rebuild: %d", aCounts.layouts)
	}
	if rootCounts.layouts != 1 {
		t.Errorf("root re-laid out after leaf rebuild: %d", rootCounts.layouts)
	}
}

func TestLayoutCacheServesToggledConstraints(t *testing.T) {
	p := newTestPipeline()
	counts := &callCounts{}
	mustMount(p, &boxSpec{width: 100, height: 100, children: []View{
		&boxSpec{width: 30, height: 30, counts: counts},
	}})
	tree := p.Tree()
	children, _ := tree.ChildrenOf(tree.Root())
	child := children[0]

	c1 := layout.Loose(graphics.Size{Width: 100, Height: 100})
	c2 := layout.Loose(graphics.Size{Width: 80, Height: 80})

	for _, c := range []layout.BoxConstraints{c1, c2, c1} {
		if _, err := p.layoutBox(child, c, 0); err != nil {
			t.Fatal(err)
		}
	}
	if counts.layouts != 2 {
		t.Fatalf("expected the toggled constraints to hit the cache, layouts = %d", counts.layouts)
	}
	if stats := tree.CacheStats(); stats.Hits == 0 {
		t.Errorf("no cache hits recorded: %+v", stats)
	}
}

func TestPaintBeforeLayoutFails(t *testing.T) {
	p := newTestPipeline()
	mustMount(p, &boxSpec{width: 10, height: 10})

	if _, err := p.FlushPaint(); errors.KindOf(err) != errors.KindEmptyTree {
		t.Fatalf("paint without layout must fail, got %v", err)
	}

	if err := p.FlushLayout(layout.Tight(graphics.Size{Width: 10, Height: 10})); err != nil {
		t.Fatal(err)
	}
	layer, err := p.FlushPaint()
	if err != nil {
		t.Fatal(err)
	}
	if layer == nil || layer.Content == nil {
		t.Fatal("paint after layout must produce a recorded root layer")
	}
}

func TestRepaintBoundaryReusesChildLayer(t *testing.T) {
	p := newTestPipeline()
	childCounts := &callCounts{}
	rootCounts := &callCounts{}
	mustMount(p, &boxSpec{width: 100, height: 100, counts: rootCounts, children: []View{
		&boxSpec{key: "cached", width: 50, height: 50, boundary: true, counts: childCounts},
	}})

	constraints := layout.Tight(graphics.Size{Width: 100, Height: 100})
	if _, err := p.RenderFrame(constraints); err != nil {
		t.Fatal(err)
	}
	if childCounts.paints != 1 {
		t.Fatalf("first frame child paints = %d", childCounts.paints)
	}

	tree := p.Tree()
	children, _ := tree.ChildrenOf(tree.Root())
	childNode, _ := tree.lookup("test", children[0])
	layerBefore := childNode.render.layer
	if layerBefore == nil {
		t.Fatal("boundary child has no layer after first frame")
	}

	// Dirty only the parent: the child's layer must composite unchanged.
	p.MarkNeedsPaint(p.rootRender)
	if _, err := p.RenderFrame(constraints); err != nil {
		t.Fatal(err)
	}
	if childCounts.paints != 1 {
		t.Errorf("clean boundary child re-painted: %d", childCounts.paints)
	}
	if rootCounts.paints != 2 {
		t.Errorf("dirty parent paints = %d, want 2", rootCounts.paints)
	}
	if childNode.render.layer != layerBefore {
		t.Error("boundary layer identity must be stable across frames")
	}
}

func TestRenderFrameComposites(t *testing.T) {
	p := newTestPipeline()
	mustMount(p, &boxSpec{width: 100, height: 100, color: graphics.RGB(10, 20, 30), children: []View{
		&boxSpec{width: 40, height: 40, color: graphics.RGB(40, 50, 60)},
		&boxSpec{width: 40, height: 40, color: graphics.RGB(70, 80, 90)},
	}})

	layer, err := p.RenderFrame(layout.Tight(graphics.Size{Width: 100, Height: 100}))
	if err != nil {
		t.Fatal(err)
	}

	counting := graphics.NewCountingCanvas(graphics.Size{Width: 100, Height: 100})
	layer.Composite(counting)
	if counting.Rects != 3 {
		t.Errorf("composited %d rects, want 3", counting.Rects)
	}
	if counting.Saves != counting.Restores {
		t.Errorf("unbalanced save/restore: %d vs %d", counting.Saves, counting.Restores)
	}
}

func TestInvalidRootConstraintsFailLayout(t *testing.T) {
	p := newTestPipeline()
	mustMount(p, &boxSpec{width: 10, height: 10})

	bad := layout.BoxConstraints{MinWidth: math.NaN(), MaxWidth: 10, MaxHeight: 10}
	err := p.FlushLayout(bad)
	if errors.KindOf(err) != errors.KindLayout {
		t.Fatalf("expected a layout error, got %v", err)
	}
}

func TestLayoutDepthGuard(t *testing.T) {
	captured := &kindCountingHandler{}
	errors.SetHandler(captured)
	defer errors.SetHandler(nil)

	p := newTestPipeline()
	view := View(&boxSpec{width: 1, height: 1})
	for i := 0; i < MaxLayoutDepth+50; i++ {
		view = &boxSpec{width: 1, height: 1, children: []View{view}}
	}
	mustMount(p, view)

	if err := p.FlushLayout(layout.Tight(graphics.Size{Width: 1, Height: 1})); err != nil {
		t.Fatal(err)
	}
	if captured.kinds[errors.KindMaxDepthExceeded] == 0 {
		t.Error("over-deep layout must report a depth guard error")
	}
}

func TestMarkNeedsBuildDoesNotBlockDuringFrame(t *testing.T) {
	p := newTestPipeline()
	root := mustMount(p, &boxSpec{width: 10, height: 10})

	tree := p.Tree()
	tree.BeginFrame()
	done := make(chan struct{})
	go func() {
		p.MarkNeedsBuild(root)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		tree.EndFrame()
		t.Fatal("mark from another goroutine blocked on an in-flight frame")
	}
	tree.EndFrame()

	if got := p.Queue().Len(); got != 1 {
		t.Fatalf("queued %d entries, want 1", got)
	}
}

func TestStaleQueueEntrySkipsRecycledSlot(t *testing.T) {
	p := newTestPipeline()
	var oldBuilds, nextBuilds, extraBuilds int
	empty := func(BuildContext) View { return nil }

	mustMount(p, &boxSpec{width: 10, height: 10, children: []View{
		&componentSpec{key: "old", builds: &oldBuilds, child: empty},
	}})
	tree := p.Tree()
	children, _ := tree.ChildrenOf(tree.Root())
	stale := children[0]

	// Replacing the keyed child frees its slot; the following mount's extra
	// child recycles it.
	mustMount(p, &boxSpec{width: 10, height: 10, children: []View{
		&componentSpec{key: "next", builds: &nextBuilds, child: empty},
	}})
	mustMount(p, &boxSpec{width: 10, height: 10, children: []View{
		&componentSpec{key: "next", builds: &nextBuilds, child: empty},
		&componentSpec{key: "extra", builds: &extraBuilds, child: empty},
	}})

	children, _ = tree.ChildrenOf(tree.Root())
	recycled := children[1]
	if recycled == stale {
		t.Fatalf("recycled slot reissued id %v", stale)
	}
	if _, err := tree.ViewOf(stale); errors.KindOf(err) != errors.KindNotFound {
		t.Fatalf("stale id must not resolve, got %v", err)
	}
	if extraBuilds != 1 {
		t.Fatalf("recycled occupant built %d times on mount", extraBuilds)
	}

	p.Queue().Push(stale, 1)
	p.FlushBuild()
	if extraBuilds != 1 {
		t.Errorf("stale entry rebuilt the recycled slot's occupant: builds = %d", extraBuilds)
	}
}

// kindCountingHandler tallies reported tree errors per kind.
type kindCountingHandler struct {
	kinds map[errors.ErrorKind]int
}

func (h *kindCountingHandler) HandleError(err *errors.TreeError) {
	if h.kinds == nil {
		h.kinds = make(map[errors.ErrorKind]int)
	}
	h.kinds[err.Kind]++
}

func (h *kindCountingHandler) HandlePanic(*errors.PanicError)      {}
func (h *kindCountingHandler) HandleBuildError(*errors.BuildError) {}
