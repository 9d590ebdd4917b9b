package graphics

import "golang.org/x/image/math/f64"

// CountingCanvas is a Canvas that tallies operations instead of rasterizing.
// The engine's tests and debugging utilities use it to assert on what a
// composite pass produced without a GPU backend.
type CountingCanvas struct {
	size Size

	Saves      int
	Restores   int
	Translates int
	Rects      int
	Clears     int
	Layers     int
	Transforms int
	Clips      int
	Scales     int
}

// NewCountingCanvas creates a counting canvas with the given logical size.
func NewCountingCanvas(size Size) *CountingCanvas {
	return &CountingCanvas{size: size}
}

func (c *CountingCanvas) Save()                  { c.Saves++ }
func (c *CountingCanvas) Restore()               { c.Restores++ }
func (c *CountingCanvas) Translate(_, _ float64) { c.Translates++ }
func (c *CountingCanvas) Scale(_, _ float64)     { c.Scales++ }
func (c *CountingCanvas) Transform(_ f64.Aff3)   { c.Transforms++ }
func (c *CountingCanvas) ClipRect(_ Rect)        { c.Clips++ }
func (c *CountingCanvas) Clear(_ Color)          { c.Clears++ }
func (c *CountingCanvas) DrawRect(_ Rect, _ Color) {
	c.Rects++
}

// DrawChildLayer composites the referenced layer, counting the reference.
func (c *CountingCanvas) DrawChildLayer(layer *Layer) {
	c.Layers++
	if layer != nil {
		layer.Composite(c)
	}
}

func (c *CountingCanvas) Size() Size { return c.size }
