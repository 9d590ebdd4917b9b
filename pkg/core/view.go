package core

import (
	"reflect"

	"github.com/go-loom/loom/pkg/layout"
)

// View is an immutable description of one element. Reconciliation matches an
// incoming view against an existing element by concrete type plus key; a
// match updates the element in place, a mismatch replaces the subtree.
//
// Views come in exactly four kinds, one per payload variant: ComponentView,
// RenderView, SliverView, and ProviderView. A view implementing none of them
// is rejected during inflation.
type View interface {
	// Key disambiguates siblings of the same concrete type. A nil key means
	// positional matching. Keys must be comparable.
	Key() any
}

// ComponentView composes other views. Its element owns no geometry; it is
// rebuilt whenever it is marked dirty and its built child is reconciled
// against the previous one.
type ComponentView interface {
	View
	// Build produces the child view. It runs on the frame goroutine; panics
	// are recovered and replaced with an error placeholder.
	Build(ctx BuildContext) View
}

// RenderView describes an element backed by a box-protocol render object.
type RenderView interface {
	View
	// CreateRenderBox instantiates the render object when the element is
	// first inflated.
	CreateRenderBox() layout.RenderBox
	// UpdateRenderBox pushes this view's configuration into an existing
	// render object after an in-place update.
	UpdateRenderBox(box layout.RenderBox)
	// ChildViews lists the child views, reconciled keyed-then-positional.
	ChildViews() []View
}

// SliverView describes an element backed by a scroll-protocol render object.
type SliverView interface {
	View
	CreateRenderSliver() layout.RenderSliver
	UpdateRenderSliver(sliver layout.RenderSliver)
	ChildViews() []View
}

// ProviderView exposes a value to its descendants. Elements that read the
// value through BuildContext.DependOn are rebuilt when the value changes.
type ProviderView interface {
	View
	// ProvidedValue returns the value visible to descendants. Values are
	// compared with reflect.DeepEqual to decide whether dependents rebuild.
	ProvidedValue() any
	// Child returns the single wrapped view.
	Child() View
}

// BuildContext is what a ComponentView sees while building. It identifies
// the element being built and resolves provider lookups against its
// ancestor chain.
type BuildContext interface {
	// Element returns the id of the element being built.
	Element() ElementID
	// Depth returns the element's depth, root being zero.
	Depth() int
	// DependOn finds the nearest ancestor provider whose view has the given
	// concrete type, registers this element as a dependent, and returns the
	// provided value. ok is false when no such provider exists.
	DependOn(viewType reflect.Type) (value any, ok bool)
}

// canUpdate reports whether next can be applied to an element currently
// configured by prev: same concrete type and equal keys.
func canUpdate(prev, next View) bool {
	if prev == nil || next == nil {
		return false
	}
	if reflect.TypeOf(prev) != reflect.TypeOf(next) {
		return false
	}
	return prev.Key() == next.Key()
}

// viewKind classifies a view into its payload variant.
func viewKind(v View) (Kind, bool) {
	switch v.(type) {
	case ComponentView:
		return KindComponent, true
	case RenderView:
		return KindRender, true
	case SliverView:
		return KindSliver, true
	case ProviderView:
		return KindProvider, true
	default:
		return KindComponent, false
	}
}

func viewTypeName(v View) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}
