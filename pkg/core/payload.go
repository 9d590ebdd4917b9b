package core

import (
	"github.com/go-loom/loom/pkg/graphics"
	"github.com/go-loom/loom/pkg/layout"
)

// Kind tags the payload variant of an element. The set is closed; the tree
// switches over it exhaustively and rejects anything else at inflation.
type Kind uint8

const (
	// KindComponent elements compose other views and own no geometry.
	KindComponent Kind = iota
	// KindRender elements carry a box-protocol render object.
	KindRender
	// KindSliver elements carry a scroll-protocol render object.
	KindSliver
	// KindProvider elements expose a value to their descendants.
	KindProvider
)

func (k Kind) String() string {
	switch k {
	case KindComponent:
		return "component"
	case KindRender:
		return "render"
	case KindSliver:
		return "sliver"
	case KindProvider:
		return "provider"
	default:
		return "invalid"
	}
}

// componentPayload holds the build output of a component element.
type componentPayload struct {
	// built is the view returned by the last Build, kept for reconciliation.
	built View
}

// renderFlags is the dirty-tracking state shared by both render payloads.
type renderFlags struct {
	needsLayout bool
	needsPaint  bool
	// boundary marks the element's layer as independently cacheable.
	boundary bool
	// layoutActive guards against re-entrant layout of the same element.
	layoutActive bool
}

// renderPayload holds the box-protocol state of a render element.
type renderPayload struct {
	renderFlags
	box layout.RenderBox

	// Geometry from the last completed layout. hasSize distinguishes a real
	// zero size from "never laid out".
	size           graphics.Size
	constraints    layout.BoxConstraints
	hasSize        bool
	hasConstraints bool

	// paintOffset is where the parent positioned this element.
	paintOffset graphics.Offset
	// layer caches the painted subtree when boundary is set.
	layer *graphics.Layer
}

// sliverPayload holds the scroll-protocol state of a sliver element.
type sliverPayload struct {
	renderFlags
	sliver layout.RenderSliver

	geometry       layout.SliverGeometry
	constraints    layout.SliverConstraints
	hasGeometry    bool
	hasConstraints bool

	paintOffset graphics.Offset
	layer       *graphics.Layer
}

// providerPayload holds the exposure state of a provider element.
type providerPayload struct {
	// value is the last published value, compared to decide whether
	// dependents need a rebuild.
	value any
	// dependents are elements that read the value during their build.
	dependents map[ElementID]struct{}
}
