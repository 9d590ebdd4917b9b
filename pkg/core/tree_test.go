package core

import (
	"sync"
	"testing"

	"github.com/go-loom/loom/pkg/errors"
)

func TestLifecycleTransitions(t *testing.T) {
	cases := []struct {
		from, to Lifecycle
		legal    bool
	}{
		{LifecycleInitial, LifecycleActive, true},
		{LifecycleInitial, LifecycleInactive, false},
		{LifecycleInitial, LifecycleDefunct, false},
		{LifecycleActive, LifecycleInactive, true},
		{LifecycleActive, LifecycleDefunct, true},
		{LifecycleActive, LifecycleActive, false},
		{LifecycleInactive, LifecycleActive, true},
		{LifecycleInactive, LifecycleDefunct, true},
		{LifecycleDefunct, LifecycleActive, false},
		{LifecycleDefunct, LifecycleInactive, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.legal {
			t.Errorf("%v -> %v: got %v, want %v", tc.from, tc.to, got, tc.legal)
		}
	}
}

func TestDepthInvariantAfterMount(t *testing.T) {
	p := newTestPipeline()
	root := &boxSpec{width: 100, height: 100, children: []View{
		&boxSpec{width: 50, height: 50, children: []View{
			&boxSpec{width: 10, height: 10},
		}},
		&componentSpec{child: func(BuildContext) View {
			return &boxSpec{width: 20, height: 20}
		}},
	}}
	mustMount(p, root)

	tree := p.Tree()
	tree.Walk(func(id ElementID, depth int) bool {
		parent, err := tree.ParentOf(id)
		if err != nil {
			t.Fatalf("walk reached missing element %v", id)
		}
		if parent == NoElement {
			if depth != 0 {
				t.Errorf("root %v has depth %d", id, depth)
			}
			return true
		}
		parentDepth, err := tree.DepthOf(parent)
		if err != nil {
			t.Fatal(err)
		}
		if depth != parentDepth+1 {
			t.Errorf("%v has depth %d under parent of depth %d", id, depth, parentDepth)
		}
		return true
	})
	if tree.Len() != 5 {
		t.Errorf("expected 5 elements, got %d", tree.Len())
	}
}

func TestReparentRejectsCycle(t *testing.T) {
	errors.SetHandler(&discardHandler{})
	defer errors.SetHandler(nil)

	p := newTestPipeline()
	mustMount(p, &boxSpec{width: 100, height: 100, children: []View{
		&boxSpec{key: "outer", width: 50, height: 50, children: []View{
			&boxSpec{key: "inner", width: 10, height: 10},
		}},
	}})

	tree := p.Tree()
	rootChildren, _ := tree.ChildrenOf(tree.Root())
	outer := rootChildren[0]
	outerChildren, _ := tree.ChildrenOf(outer)
	inner := outerChildren[0]

	err := tree.Reparent(outer, inner, -1)
	if errors.KindOf(err) != errors.KindCycleDetected {
		t.Fatalf("expected cycle detection, got %v", err)
	}

	// A legal move under the root must recompute subtree depths.
	if err := tree.Reparent(inner, tree.Root(), -1); err != nil {
		t.Fatal(err)
	}
	depth, _ := tree.DepthOf(inner)
	if depth != 1 {
		t.Errorf("moved element depth = %d, want 1", depth)
	}
}

func TestRemoveRequiresDefunctAndUnlinked(t *testing.T) {
	errors.SetHandler(&discardHandler{})
	defer errors.SetHandler(nil)

	p := newTestPipeline()
	root := mustMount(p, &boxSpec{width: 10, height: 10})

	if err := p.Tree().Remove(root); errors.KindOf(err) != errors.KindInternal {
		t.Fatalf("removing a live root must fail, got %v", err)
	}
}

func TestMutationOffFrameGoroutineRejected(t *testing.T) {
	errors.SetHandler(&discardHandler{})
	defer errors.SetHandler(nil)

	tree := NewElementTree()
	tree.BeginFrame()

	var wg sync.WaitGroup
	var got errors.ErrorKind
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := tree.Insert(&boxSpec{width: 1, height: 1})
		got = errors.KindOf(err)
	}()
	wg.Wait()
	tree.EndFrame()

	if got != errors.KindConcurrentModification {
		t.Fatalf("expected concurrent modification, got %v", got)
	}
}

func TestSizeOfBeforeLayoutFails(t *testing.T) {
	p := newTestPipeline()
	root := mustMount(p, &boxSpec{width: 10, height: 10})

	if _, err := p.Tree().SizeOf(root); errors.KindOf(err) != errors.KindLayout {
		t.Fatalf("expected layout error for unmeasured element, got %v", err)
	}
}

// discardHandler silences expected error reports in failure-path tests.
type discardHandler struct{}

func (*discardHandler) HandleError(*errors.TreeError)       {}
func (*discardHandler) HandlePanic(*errors.PanicError)      {}
func (*discardHandler) HandleBuildError(*errors.BuildError) {}
