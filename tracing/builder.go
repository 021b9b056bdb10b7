package tracing

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tebeka/atexit"

	"github.com/tracelab/dstrace/hooking"
	"github.com/tracelab/dstrace/metrics"
	"github.com/tracelab/dstrace/timing"
)

// A TracerBuilder can build tracers.
type TracerBuilder struct {
	clock         timing.TimeTeller
	logger        *logrus.Logger
	sinks         []metrics.Sink
	hooks         []hooking.Hook
	harvestPeriod time.Duration
}

// MakeTracerBuilder creates a TracerBuilder with default values: a wall
// clock, the standard logger, no sinks, and no periodic harvest.
func MakeTracerBuilder() TracerBuilder {
	return TracerBuilder{
		logger: logrus.StandardLogger(),
	}
}

// WithTimeTeller sets the clock used to measure traced work.
func (b TracerBuilder) WithTimeTeller(clock timing.TimeTeller) TracerBuilder {
	b.clock = clock
	return b
}

// WithLogger sets the logger that reports hook failures and operational
// notices.
func (b TracerBuilder) WithLogger(logger *logrus.Logger) TracerBuilder {
	b.logger = logger
	return b
}

// WithSink adds a sink that Harvest writes metric entries to.
func (b TracerBuilder) WithSink(sink metrics.Sink) TracerBuilder {
	b.sinks = append(cloneSinks(b.sinks), sink)
	return b
}

// WithScopeHook adds a hook that every trace created by the tracer carries.
func (b TracerBuilder) WithScopeHook(hook hooking.Hook) TracerBuilder {
	b.hooks = append(cloneHooks(b.hooks), hook)
	return b
}

// WithScopeObserver adds an observer that is invoked after every traced
// call completes.
func (b TracerBuilder) WithScopeObserver(obs ScopeObserver) TracerBuilder {
	return b.WithScopeHook(&observerHook{observe: obs})
}

// WithHarvestPeriod makes the tracer harvest to its sinks on a fixed
// period. The period must be positive.
func (b TracerBuilder) WithHarvestPeriod(period time.Duration) TracerBuilder {
	if period <= 0 {
		panic("harvest period must be positive")
	}

	b.harvestPeriod = period
	return b
}

// Build creates the tracer. When sinks are configured, a final harvest is
// registered at process exit. When a harvest period is configured, the
// periodic harvest loop starts immediately.
func (b TracerBuilder) Build() *Tracer {
	tr := &Tracer{
		clock:        b.clock,
		logger:       b.logger,
		sinks:        b.sinks,
		store:        metrics.NewStore(),
		hooks:        b.hooks,
		activeTraces: make(map[string]*Trace),
		stop:         make(chan struct{}),
	}

	if tr.clock == nil {
		tr.clock = timing.NewWallClock()
	}

	if tr.logger == nil {
		tr.logger = logrus.StandardLogger()
	}

	if len(tr.sinks) > 0 {
		atexit.Register(tr.Stop)
	}

	if b.harvestPeriod > 0 {
		go tr.harvestLoop(b.harvestPeriod)
	}

	return tr
}

func cloneSinks(sinks []metrics.Sink) []metrics.Sink {
	out := make([]metrics.Sink, len(sinks))
	copy(out, sinks)
	return out
}

func cloneHooks(hooks []hooking.Hook) []hooking.Hook {
	out := make([]hooking.Hook, len(hooks))
	copy(out, hooks)
	return out
}
