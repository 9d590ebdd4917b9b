package graphics

// Layer is the cached painted output of a repaint boundary.
//
// A layer has stable identity: parent recordings reference it through
// DrawChildLayer ops, so it must never be replaced, only have its content
// swapped via SetContent. The Dirty flag tracks whether the wrapped content
// has changed since the last recording; compositing a clean layer costs O(1)
// regardless of the size of the subtree it caches.
type Layer struct {
	// Dirty is true when the layer's content is stale and must be
	// re-recorded before the next composite.
	Dirty bool
	// Size is the logical size of the recorded content.
	Size Size
	// Content is the recorded display list, nil until the first recording.
	Content *DisplayList
}

// MarkDirty flags the layer content as stale.
func (l *Layer) MarkDirty() {
	l.Dirty = true
}

// SetContent replaces the recorded content and clears the dirty flag.
func (l *Layer) SetContent(content *DisplayList) {
	l.Content = content
	l.Dirty = false
}

// Composite replays the layer content onto the canvas.
// A layer with no recorded content composites as nothing.
func (l *Layer) Composite(canvas Canvas) {
	if l.Content == nil {
		return
	}
	l.Content.Paint(canvas)
}

// Dispose releases the layer's recorded content.
func (l *Layer) Dispose() {
	l.Content = nil
	l.Dirty = true
}
