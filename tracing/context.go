package tracing

import (
	"context"

	"github.com/tracelab/dstrace/metrics"
)

type traceContextKey struct{}

// ContextWithTrace returns a copy of ctx that carries t. The trace follows
// the logical execution context across suspension points, not the goroutine
// it happens to run on.
func ContextWithTrace(ctx context.Context, t *Trace) context.Context {
	return context.WithValue(ctx, traceContextKey{}, t)
}

// TraceFromContext returns the trace carried by ctx, or nil when ctx
// carries none.
func TraceFromContext(ctx context.Context) *Trace {
	t, _ := ctx.Value(traceContextKey{}).(*Trace)
	return t
}

// TraceScopedContext runs work against the trace carried by ctx. When ctx
// carries no trace, work runs unmeasured, so instrumented code does not
// need to care whether tracing is set up.
func TraceScopedContext(
	ctx context.Context,
	names []metrics.MetricName,
	work func() error,
) error {
	t := TraceFromContext(ctx)
	if t == nil {
		return work()
	}

	return t.TraceScoped(names, work)
}
