// Package loomtest drives the frame pipeline in isolation for tests: mount
// a view, pump frames against a fake clock, and assert on the tree or the
// composited output without a real display.
package loomtest

import (
	"reflect"
	"testing"
	"time"

	"github.com/go-loom/loom/pkg/core"
	"github.com/go-loom/loom/pkg/engine"
	"github.com/go-loom/loom/pkg/graphics"
	"github.com/go-loom/loom/pkg/scheduler"
)

const (
	// DefaultSurfaceWidth is the logical width of the test surface.
	DefaultSurfaceWidth = 800
	// DefaultSurfaceHeight is the logical height of the test surface.
	DefaultSurfaceHeight = 600
)

// Tester wraps an engine with a manual clock and a fixed surface.
type Tester struct {
	t      *testing.T
	engine *engine.Engine
	clock  *scheduler.ManualClock
	size   graphics.Size
	layer  *graphics.Layer
}

// NewTester creates a tester bound to t for fatal reporting.
func NewTester(t *testing.T) *Tester {
	clock := scheduler.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return &Tester{
		t:      t,
		engine: engine.New(engine.Options{Clock: clock}),
		clock:  clock,
		size:   graphics.Size{Width: DefaultSurfaceWidth, Height: DefaultSurfaceHeight},
	}
}

// SetSize changes the surface size for subsequent pumps.
func (tt *Tester) SetSize(size graphics.Size) { tt.size = size }

// Clock returns the manual clock driving the frames.
func (tt *Tester) Clock() *scheduler.ManualClock { return tt.clock }

// Engine returns the underlying engine.
func (tt *Tester) Engine() *engine.Engine { return tt.engine }

// Pump mounts (or updates) the root view and produces one frame.
func (tt *Tester) Pump(view core.View) *graphics.Layer {
	tt.t.Helper()
	if _, err := tt.engine.SetRoot(view); err != nil {
		tt.t.Fatalf("mounting root: %v", err)
	}
	return tt.PumpFrame()
}

// PumpFrame produces one frame without changing the root.
func (tt *Tester) PumpFrame() *graphics.Layer {
	tt.t.Helper()
	layer, err := tt.engine.StepFrame(tt.size)
	if err != nil {
		tt.t.Fatalf("stepping frame: %v", err)
	}
	tt.layer = layer
	return layer
}

// PumpFrames produces n frames, advancing the clock by interval between
// them. Use it to let scheduled callbacks and deferred rebuilds settle.
func (tt *Tester) PumpFrames(n int, interval time.Duration) *graphics.Layer {
	tt.t.Helper()
	for i := 0; i < n; i++ {
		tt.PumpFrame()
		tt.clock.Advance(interval)
	}
	return tt.layer
}

// Composite replays the last frame's layer tree onto a counting canvas and
// returns the tallies.
func (tt *Tester) Composite() *graphics.CountingCanvas {
	tt.t.Helper()
	if tt.layer == nil {
		tt.t.Fatal("no frame pumped yet")
	}
	canvas := graphics.NewCountingCanvas(tt.size)
	tt.layer.Composite(canvas)
	return canvas
}

// FindAll returns the elements whose view has the same concrete type as
// example, in depth-first pre-order.
func (tt *Tester) FindAll(example core.View) []core.ElementID {
	want := reflect.TypeOf(example)
	tree := tt.engine.Tree()

	var found []core.ElementID
	tree.Inspect(func() {
		tree.Walk(func(id core.ElementID, _ int) bool {
			if view, err := tree.ViewOf(id); err == nil && reflect.TypeOf(view) == want {
				found = append(found, id)
			}
			return true
		})
	})
	return found
}

// Find returns the single element whose view type matches example, failing
// the test on zero or multiple matches.
func (tt *Tester) Find(example core.View) core.ElementID {
	tt.t.Helper()
	found := tt.FindAll(example)
	if len(found) != 1 {
		tt.t.Fatalf("found %d elements of type %T, want exactly 1", len(found), example)
	}
	return found[0]
}

// ElementCount returns the number of live elements in the tree.
func (tt *Tester) ElementCount() int {
	tree := tt.engine.Tree()
	count := 0
	tree.Inspect(func() { count = tree.Len() })
	return count
}
