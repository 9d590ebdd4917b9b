package engine

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/go-loom/loom/pkg/engine"

// tracerFrom resolves the tracer for frame-phase spans. With no provider
// configured this falls through to the global provider, which is a no-op
// unless the host installed one.
func tracerFrom(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(tracerName)
}
