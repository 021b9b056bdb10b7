package tracing

import (
	"github.com/sirupsen/logrus"

	"github.com/tracelab/dstrace/hooking"
	"github.com/tracelab/dstrace/metrics"
	"github.com/tracelab/dstrace/timing"
)

// A ScopeObserver is notified after each traced call completes, with the
// error the work returned, the metric names the call reported to, and the
// elapsed time. Observers run inside the tracer's isolation: a panicking
// observer is logged and never changes the outcome of the traced work.
type ScopeObserver func(
	err error,
	names []metrics.MetricName,
	elapsed timing.TimeInSec,
)

// observerHook adapts a ScopeObserver to the hooking interface.
type observerHook struct {
	observe ScopeObserver
}

func (h *observerHook) Func(ctx hooking.Ctx) {
	if ctx.Pos != HookPosScopeEnd {
		return
	}

	end := ctx.Item.(ScopeEnd)
	h.observe(end.Err, end.Names, end.Elapsed)
}

// A SlowCallLogger is a hook that logs traced calls slower than Threshold.
// It serves callers that want slow-query logging without writing their own
// observer. A nil Logger falls back to the standard logger.
type SlowCallLogger struct {
	Threshold timing.TimeInSec
	Logger    *logrus.Logger
}

// Func logs the completed call if it was slow enough.
func (l *SlowCallLogger) Func(ctx hooking.Ctx) {
	if ctx.Pos != HookPosScopeEnd {
		return
	}

	end := ctx.Item.(ScopeEnd)
	if end.Elapsed < l.Threshold {
		return
	}

	logger := l.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	logger.WithFields(logrus.Fields{
		"trace":   end.TraceID,
		"metric":  string(end.Names[0]),
		"elapsed": float64(end.Elapsed),
		"failed":  end.Err != nil,
	}).Warn("slow datastore call")
}
