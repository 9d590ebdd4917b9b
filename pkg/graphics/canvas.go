package graphics

import "golang.org/x/image/math/f64"

// Canvas receives drawing commands. The core records commands into display
// lists during the paint phase; the embedder supplies a concrete rasterizing
// implementation when it composites the resulting layer tree.
type Canvas interface {
	Save()
	Restore()
	Translate(dx, dy float64)
	Scale(sx, sy float64)
	Transform(m f64.Aff3)
	ClipRect(rect Rect)
	Clear(color Color)
	DrawRect(rect Rect, color Color)
	DrawChildLayer(layer *Layer)
	Size() Size
}

// Identity returns the identity affine transform.
func Identity() f64.Aff3 {
	return f64.Aff3{
		1, 0, 0,
		0, 1, 0,
	}
}
