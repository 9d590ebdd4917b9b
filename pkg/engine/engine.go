// Package engine binds the element tree, the frame pipeline, and the
// scheduler into a drivable unit: the host feeds it a root view and a
// surface size, and steps it once per vsync to get a layer tree back.
package engine

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/go-loom/loom/pkg/core"
	"github.com/go-loom/loom/pkg/errors"
	"github.com/go-loom/loom/pkg/graphics"
	"github.com/go-loom/loom/pkg/layout"
	"github.com/go-loom/loom/pkg/scheduler"
)

// Options configures a new Engine. The zero value works: system clock,
// default config, no-op tracing.
type Options struct {
	// Clock drives frame timestamps; nil selects the system clock.
	Clock scheduler.Clock
	// OnWake is called when the engine wants a frame. Hosts hook their
	// event loop here; nil means the host polls FrameRequested.
	OnWake func()
	// Config carries tunables, typically from LoadConfig.
	Config Config
	// TracerProvider receives per-phase frame spans; nil disables tracing.
	TracerProvider trace.TracerProvider
}

// Engine owns one element tree and produces frames from it.
type Engine struct {
	tree     *core.ElementTree
	pipeline *core.PipelineOwner
	sched    *scheduler.Scheduler
	clock    scheduler.Clock
	tracer   trace.Tracer

	vsync   scheduler.VsyncEstimator
	timings *FrameTimingBuffer

	mu          sync.Mutex
	surfaceSize graphics.Size
	lastLayer   *graphics.Layer
	frameErr    error
}

// New creates an engine ready to mount a root view.
func New(opts Options) *Engine {
	e := &Engine{
		tree:    core.NewElementTree(),
		clock:   opts.Clock,
		timings: NewFrameTimingBuffer(timingWindow(opts.Config)),
		tracer:  tracerFrom(opts.TracerProvider),
	}
	if e.clock == nil {
		e.clock = scheduler.SystemClock()
	}
	if opts.Config.Debug {
		core.DebugMode = true
	}
	e.sched = scheduler.NewScheduler(e.clock, opts.OnWake)
	if budget := opts.Config.FrameBudget(); budget > 0 {
		e.sched.SetFrameBudget(budget)
	}
	e.pipeline = core.NewPipelineOwner(e.tree, e.sched.RequestFrame)
	e.sched.AddPersistentFrameCallback(e.drawPipeline)
	return e
}

// Tree exposes the element tree for inspection.
func (e *Engine) Tree() *core.ElementTree { return e.tree }

// Pipeline exposes the pipeline owner, mainly for embedders that mark
// elements dirty directly.
func (e *Engine) Pipeline() *core.PipelineOwner { return e.pipeline }

// Scheduler exposes the frame scheduler for callback registration.
func (e *Engine) Scheduler() *scheduler.Scheduler { return e.sched }

// Timings exposes the recent frame timing history.
func (e *Engine) Timings() *FrameTimingBuffer { return e.timings }

// FrameRequested reports whether dirty work is waiting for a frame.
func (e *Engine) FrameRequested() bool { return e.sched.FrameRequested() }

// SetRoot mounts or replaces the root view and requests a frame.
func (e *Engine) SetRoot(view core.View) (core.ElementID, error) {
	e.tree.BeginFrame()
	defer e.tree.EndFrame()

	id, err := e.pipeline.MountRoot(view)
	if err != nil {
		return core.NoElement, err
	}
	e.sched.RequestFrame()
	return id, nil
}

// SetSurfaceSize updates the size the root is laid out against. A changed
// size dirties the whole tree.
func (e *Engine) SetSurfaceSize(size graphics.Size) {
	e.mu.Lock()
	changed := e.surfaceSize != size
	e.surfaceSize = size
	e.mu.Unlock()
	if changed {
		e.sched.RequestFrame()
	}
}

// StepFrame produces one frame for the given surface size and returns the
// root layer. Recoverable errors are contained to their subtree and
// reported; an unrecoverable error aborts the frame, leaving the previous
// layer tree intact.
func (e *Engine) StepFrame(size graphics.Size) (*graphics.Layer, error) {
	e.SetSurfaceSize(size)

	now := e.clock.Now()
	e.vsync.Observe(now)
	e.sched.HandleBeginFrame(now)
	timing := e.sched.HandleDrawFrame()
	e.timings.Push(timing)

	e.sched.FlushTasks(e.vsync.NextVsync(e.clock.Now()))

	e.mu.Lock()
	layer, err := e.lastLayer, e.frameErr
	e.mu.Unlock()
	return layer, err
}

// drawPipeline is the engine's persistent frame callback: it runs build,
// layout, and paint under the frame lock, one traced span per phase.
func (e *Engine) drawPipeline(time.Duration) {
	e.runPipeline(context.Background())
}

func (e *Engine) runPipeline(ctx context.Context) {
	e.mu.Lock()
	size := e.surfaceSize
	e.mu.Unlock()

	if e.tree.Root() == core.NoElement || size.IsEmpty() {
		return
	}

	e.tree.BeginFrame()
	defer e.tree.EndFrame()

	constraints := layout.Tight(size)

	buildCtx, buildSpan := e.tracer.Start(ctx, "frame.build")
	e.pipeline.FlushBuild()
	buildSpan.End()

	_, layoutSpan := e.tracer.Start(buildCtx, "frame.layout")
	err := e.pipeline.FlushLayout(constraints)
	layoutSpan.End()
	if err != nil {
		e.handleFrameError(err)
		return
	}

	_, paintSpan := e.tracer.Start(buildCtx, "frame.paint")
	layer, err := e.pipeline.FlushPaint()
	paintSpan.End()
	if err != nil {
		e.handleFrameError(err)
		return
	}

	e.mu.Lock()
	e.lastLayer = layer
	e.frameErr = nil
	e.mu.Unlock()
}

// handleFrameError separates contained failures from frame aborts. A
// recoverable error keeps the last good layer on screen; an unrecoverable
// one surfaces from StepFrame.
func (e *Engine) handleFrameError(err error) {
	if errors.KindOf(err).Recoverable() {
		errors.ReportError("engine.runPipeline", err)
		return
	}
	e.mu.Lock()
	e.frameErr = err
	e.mu.Unlock()
}
