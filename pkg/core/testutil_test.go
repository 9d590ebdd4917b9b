package core

import (
	"github.com/go-loom/loom/pkg/graphics"
	"github.com/go-loom/loom/pkg/layout"
)

// callCounts tallies render-object activity across a test scenario.
type callCounts struct {
	layouts int
	paints  int
}

// boxSpec is a render view that stacks its children vertically and fills
// itself with a color. Counters are shared across updates so a test can see
// how often the element actually laid out or painted.
type boxSpec struct {
	key      any
	width    float64
	height   float64
	color    graphics.Color
	boundary bool
	// tight sizes children to the box itself, making each child an
	// independent relayout boundary.
	tight    bool
	children []View
	counts   *callCounts
}

func (b *boxSpec) Key() any { return b.key }

func (b *boxSpec) CreateRenderBox() layout.RenderBox { return &specBox{view: b} }

func (b *boxSpec) UpdateRenderBox(box layout.RenderBox) { box.(*specBox).view = b }

func (b *boxSpec) ChildViews() []View { return b.children }

type specBox struct {
	view *boxSpec
}

func (s *specBox) Arity() layout.Arity { return layout.ArityMulti }

func (s *specBox) IsRepaintBoundary() bool { return s.view.boundary }

func (s *specBox) Layout(ctx layout.BoxLayoutContext, constraints layout.BoxConstraints) (graphics.Size, error) {
	if s.view.counts != nil {
		s.view.counts.layouts++
	}
	size := constraints.Constrain(graphics.Size{Width: s.view.width, Height: s.view.height})
	childConstraints := layout.Loose(size)
	if s.view.tight {
		childConstraints = layout.Tight(size)
	}
	y := 0.0
	for i := 0; i < ctx.ChildCount(); i++ {
		childSize, err := ctx.LayoutChild(i, childConstraints)
		if err != nil {
			return graphics.Size{}, err
		}
		ctx.PositionChild(i, graphics.Offset{Y: y})
		y += childSize.Height
	}
	return size, nil
}

func (s *specBox) Paint(ctx layout.PaintContext, size graphics.Size) error {
	if s.view.counts != nil {
		s.view.counts.paints++
	}
	ctx.Canvas().DrawRect(graphics.Rect{Right: size.Width, Bottom: size.Height}, s.view.color)
	for i := 0; i < ctx.ChildCount(); i++ {
		if err := ctx.PaintChild(i); err != nil {
			return err
		}
	}
	return nil
}

// componentSpec is a component view whose Build delegates to a closure.
type componentSpec struct {
	key    any
	builds *int
	child  func(ctx BuildContext) View
}

func (c *componentSpec) Key() any { return c.key }

func (c *componentSpec) Build(ctx BuildContext) View {
	if c.builds != nil {
		*c.builds++
	}
	return c.child(ctx)
}

// providerSpec exposes a fixed value to its subtree.
type providerSpec struct {
	value any
	child View
}

func (p *providerSpec) Key() any { return nil }

func (p *providerSpec) ProvidedValue() any { return p.value }

func (p *providerSpec) Child() View { return p.child }

func newTestPipeline() *PipelineOwner {
	return NewPipelineOwner(NewElementTree(), nil)
}

func mustMount(p *PipelineOwner, view View) ElementID {
	id, err := p.MountRoot(view)
	if err != nil {
		panic(err)
	}
	return id
}
