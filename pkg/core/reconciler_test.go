package core

import (
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/go-loom/loom/pkg/errors"
	"github.com/go-loom/loom/pkg/graphics"
	"github.com/go-loom/loom/pkg/layout"
)

func TestMountRootBuildsSubtree(t *testing.T) {
	p := newTestPipeline()
	builds := 0
	root := mustMount(p, &componentSpec{builds: &builds, child: func(BuildContext) View {
		return &boxSpec{width: 10, height: 10}
	}})

	if builds != 1 {
		t.Fatalf("expected one build, got %d", builds)
	}
	state, err := p.Tree().LifecycleOf(root)
	if err != nil {
		t.Fatal(err)
	}
	if state != LifecycleActive {
		t.Fatalf("mounted root in state %v", state)
	}
}

func TestUpdateInPlaceKeepsElement(t *testing.T) {
	p := newTestPipeline()
	mustMount(p, &boxSpec{width: 10, height: 10})
	oldRoot := p.Tree().Root()

	mustMount(p, &boxSpec{width: 20, height: 20})
	if p.Tree().Root() != oldRoot {
		t.Fatal("same view type and key must update in place")
	}
	view, _ := p.Tree().ViewOf(oldRoot)
	if view.(*boxSpec).width != 20 {
		t.Fatal("updated view not applied")
	}
}

func TestTypeChangeReplacesSubtree(t *testing.T) {
	p := newTestPipeline()
	mustMount(p, &boxSpec{width: 10, height: 10})
	oldRoot := p.Tree().Root()

	newRoot := mustMount(p, &componentSpec{child: func(BuildContext) View {
		return &boxSpec{width: 10, height: 10}
	}})
	if newRoot == oldRoot {
		t.Fatal("a different view type must replace the element")
	}
	if _, err := p.Tree().ViewOf(oldRoot); errors.KindOf(err) != errors.KindNotFound {
		t.Fatal("replaced subtree must be removed from the arena")
	}
}

func TestKeyedChildrenSurviveReorder(t *testing.T) {
	p := newTestPipeline()
	childA := &boxSpec{key: "a", width: 1, height: 1}
	childB := &boxSpec{key: "b", width: 2, height: 2}
	mustMount(p, &boxSpec{width: 10, height: 10, children: []View{childA, childB}})

	tree := p.Tree()
	before, _ := tree.ChildrenOf(tree.Root())

	mustMount(p, &boxSpec{width: 10, height: 10, children: []View{
		&boxSpec{key: "b", width: 2, height: 2},
		&boxSpec{key: "a", width: 1, height: 1},
	}})
	after, _ := tree.ChildrenOf(tree.Root())

	if len(before) != 2 || len(after) != 2 {
		t.Fatalf("child counts: before %d, after %d", len(before), len(after))
	}
	if after[0] != before[1] || after[1] != before[0] {
		t.Fatalf("keyed reorder must reuse elements: before %v, after %v", before, after)
	}
}

func TestRemovedChildIsUnmounted(t *testing.T) {
	p := newTestPipeline()
	mustMount(p, &boxSpec{width: 10, height: 10, children: []View{
		&boxSpec{key: "keep", width: 1, height: 1},
		&boxSpec{key: "drop", width: 2, height: 2},
	}})
	tree := p.Tree()
	before, _ := tree.ChildrenOf(tree.Root())
	dropped := before[1]

	mustMount(p, &boxSpec{width: 10, height: 10, children: []View{
		&boxSpec{key: "keep", width: 1, height: 1},
	}})

	if _, err := tree.ViewOf(dropped); errors.KindOf(err) != errors.KindNotFound {
		t.Fatal("dropped child must leave the arena")
	}
	if tree.Len() != 2 {
		t.Fatalf("expected 2 live elements, got %d", tree.Len())
	}
}

func TestBuildPanicYieldsPlaceholder(t *testing.T) {
	captured := &capturingBuildHandler{}
	errors.SetHandler(captured)
	defer errors.SetHandler(nil)

	p := newTestPipeline()
	root := mustMount(p, &componentSpec{child: func(BuildContext) View {
		panic("boom")
	}})

	if captured.builds != 1 {
		t.Fatalf("expected one reported build error, got %d", captured.builds)
	}
	children, err := p.Tree().ChildrenOf(root)
	if err != nil || len(children) != 1 {
		t.Fatalf("placeholder child missing: %v %v", children, err)
	}
	view, _ := p.Tree().ViewOf(children[0])
	if _, ok := view.(*errorPlaceholderView); !ok {
		t.Fatalf("expected placeholder, got %T", view)
	}

	// The placeholder must survive layout and paint.
	if err := p.FlushLayout(layout.Tight(graphics.Size{Width: 100, Height: 100})); err != nil {
		t.Fatal(err)
	}
	if _, err := p.FlushPaint(); err != nil {
		t.Fatal(err)
	}
}

func TestProviderRebuildsDependents(t *testing.T) {
	p := newTestPipeline()
	builds := 0
	var observed any

	child := &componentSpec{builds: &builds, child: func(ctx BuildContext) View {
		observed, _ = ctx.DependOn(reflect.TypeOf(&providerSpec{}))
		return &boxSpec{width: 5, height: 5}
	}}
	mustMount(p, &providerSpec{value: "first", child: child})

	if builds != 1 || observed != "first" {
		t.Fatalf("initial build: builds=%d observed=%v", builds, observed)
	}

	mustMount(p, &providerSpec{value: "second", child: child})
	p.FlushBuild()

	if observed != "second" {
		t.Fatalf("dependent did not observe the new value: %v", observed)
	}
	if builds < 2 {
		t.Fatalf("dependent was not rebuilt: builds=%d", builds)
	}
}

func TestDeactivateReactivatePreservesPayload(t *testing.T) {
	p := newTestPipeline()
	mustMount(p, &boxSpec{width: 100, height: 100, children: []View{
		&boxSpec{key: "host-a", width: 60, height: 60, children: []View{
			&boxSpec{key: "moved", width: 30, height: 30},
		}},
		&boxSpec{key: "host-b", width: 60, height: 60},
	}})
	if err := p.FlushLayout(layout.Tight(graphics.Size{Width: 100, Height: 100})); err != nil {
		t.Fatal(err)
	}

	tree := p.Tree()
	roots, _ := tree.ChildrenOf(tree.Root())
	hostA, hostB := roots[0], roots[1]
	hostAChildren, _ := tree.ChildrenOf(hostA)
	moved := hostAChildren[0]

	viewBefore, _ := tree.ViewOf(moved)
	sizeBefore, err := tree.SizeOf(moved)
	if err != nil {
		t.Fatal(err)
	}

	if err := p.Deactivate(moved); err != nil {
		t.Fatal(err)
	}
	if state, _ := tree.LifecycleOf(moved); state != LifecycleInactive {
		t.Fatalf("deactivated element in state %v", state)
	}
	if err := p.Reactivate(moved, hostB, -1); err != nil {
		t.Fatal(err)
	}
	if state, _ := tree.LifecycleOf(moved); state != LifecycleActive {
		t.Fatalf("reactivated element in state %v", state)
	}

	viewAfter, _ := tree.ViewOf(moved)
	sizeAfter, _ := tree.SizeOf(moved)

	opts := cmp.AllowUnexported(boxSpec{}, callCounts{})
	if diff := cmp.Diff(viewBefore, viewAfter, opts); diff != "" {
		t.Errorf("view payload changed across deactivate/reactivate:\n%s", diff)
	}
	if diff := cmp.Diff(sizeBefore, sizeAfter); diff != "" {
		t.Errorf("geometry changed across deactivate/reactivate:\n%s", diff)
	}
	if parent, _ := tree.ParentOf(moved); parent != hostB {
		t.Fatalf("reactivated under %v, want %v", parent, hostB)
	}
}

// capturingBuildHandler records build errors and drops the rest.
type capturingBuildHandler struct {
	builds int
}

func (h *capturingBuildHandler) HandleError(*errors.TreeError)       {}
func (h *capturingBuildHandler) HandlePanic(*errors.PanicError)      {}
func (h *capturingBuildHandler) HandleBuildError(*errors.BuildError) { h.builds++ }
