// Package tracing measures datastore operations against a call-stack-aware
// scope, attributing elapsed time to metric names as both inclusive and
// exclusive (self) time.
package tracing

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/tracelab/dstrace/hooking"
	"github.com/tracelab/dstrace/metrics"
	"github.com/tracelab/dstrace/naming"
	"github.com/tracelab/dstrace/timing"
)

// Hook positions on a Trace.
var (
	HookPosScopeBegin = &hooking.Pos{Name: "HookPosScopeBegin"}
	HookPosScopeEnd   = &hooking.Pos{Name: "HookPosScopeEnd"}
)

// ScopeBegin is the hook payload delivered when a traced call starts.
type ScopeBegin struct {
	TraceID string
	Names   []metrics.MetricName
	Depth   int
}

// ScopeEnd is the hook payload delivered after a traced call completed and
// its time is recorded. Err is the error the work function returned, nil on
// success. A panicking work function unwinds through the tracer and is not
// captured here.
type ScopeEnd struct {
	TraceID string
	Names   []metrics.MetricName
	Elapsed timing.TimeInSec
	Err     error
}

// A scope is one entry on the call stack of a Trace. childTime accumulates
// the elapsed time of directly nested scopes, so that the exclusive time of
// this scope can be computed when it completes.
type scope struct {
	names     []metrics.MetricName
	startTime timing.TimeInSec
	childTime timing.TimeInSec
}

// A Trace is one execution context, such as one incoming request or one unit
// of background work. It owns a call stack of active scopes and a ledger of
// completed measurements.
//
// A Trace must not be used from more than one goroutine at a time. Separate
// execution contexts get separate Traces and never share state.
type Trace struct {
	hooking.Base

	id        string
	name      string
	tracer    *Tracer
	clock     timing.TimeTeller
	ledger    *metrics.Ledger
	stack     []*scope
	startTime timing.TimeInSec
	depth     atomic.Int32
	ended     bool
}

// ID returns the unique ID of the trace.
func (t *Trace) ID() string {
	return t.id
}

// Name returns the name the trace was begun with.
func (t *Trace) Name() string {
	return t.name
}

// StartTime returns the time the trace was begun.
func (t *Trace) StartTime() timing.TimeInSec {
	return t.startTime
}

// Depth returns the number of scopes currently on the stack. Unlike the
// rest of a Trace, Depth is safe to call from other goroutines, so that
// monitors can look at in-flight traces.
func (t *Trace) Depth() int {
	return int(t.depth.Load())
}

// Record returns a copy of the accumulated record for one metric name and
// whether any call has been recorded under it.
func (t *Trace) Record(name metrics.MetricName) (metrics.Record, bool) {
	return t.ledger.Record(name)
}

// TraceScoped runs work and records its elapsed time under every metric
// name in names. Nested TraceScoped calls attribute their elapsed time to
// their own names in full and reduce the exclusive time of the enclosing
// call.
//
// An empty names list runs work directly with no bookkeeping. The error of
// work is returned unchanged; a panic of work unwinds unchanged. In both
// cases the time is recorded first.
func (t *Trace) TraceScoped(
	names []metrics.MetricName,
	work func() error,
) error {
	if len(names) == 0 {
		return work()
	}

	t.mustNotBeEnded()
	t.pushScope(names)

	var err error
	defer func() {
		t.finishScope(err)
	}()

	err = work()

	return err
}

// TraceDatastore measures one datastore call described by call. It is a
// convenience wrapper that derives the metric names and calls TraceScoped.
func (t *Trace) TraceDatastore(
	call naming.DatastoreCall,
	work func() error,
) error {
	return t.TraceScoped(call.MetricNames(), work)
}

// TraceScopedValue runs work that produces a value, recording its elapsed
// time the same way TraceScoped does.
func TraceScopedValue[T any](
	t *Trace,
	names []metrics.MetricName,
	work func() (T, error),
) (T, error) {
	var out T

	err := t.TraceScoped(names, func() error {
		var workErr error
		out, workErr = work()
		return workErr
	})

	return out, err
}

// End closes the execution context and hands its ledger to the tracer for
// aggregation. Ending a trace with scopes still active, or ending it twice,
// panics.
func (t *Trace) End() {
	t.mustNotBeEnded()

	if len(t.stack) != 0 {
		panic("trace ended with scopes still active")
	}

	t.ended = true
	t.tracer.collect(t)
}

func (t *Trace) pushScope(names []metrics.MetricName) {
	s := &scope{
		names:     names,
		startTime: t.clock.Now(),
	}

	t.stack = append(t.stack, s)
	t.depth.Store(int32(len(t.stack)))

	t.notifyHooks(HookPosScopeBegin, ScopeBegin{
		TraceID: t.id,
		Names:   names,
		Depth:   len(t.stack),
	})
}

// finishScope completes the scope on top of the stack: it records elapsed
// and exclusive time under every name of the scope and moves the elapsed
// time into the parent's childTime deduction.
func (t *Trace) finishScope(err error) {
	now := t.clock.Now()
	s := t.popScope()
	elapsed := now - s.startTime
	exclusive := elapsed - s.childTime

	for _, name := range s.names {
		t.ledger.AddCall(name, elapsed, exclusive)
	}

	if parent := t.topScope(); parent != nil {
		parent.childTime += elapsed
	}

	t.notifyHooks(HookPosScopeEnd, ScopeEnd{
		TraceID: t.id,
		Names:   s.names,
		Elapsed: elapsed,
		Err:     err,
	})
}

func (t *Trace) popScope() *scope {
	if len(t.stack) == 0 {
		panic("scope stack is empty")
	}

	s := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	t.depth.Store(int32(len(t.stack)))

	return s
}

func (t *Trace) topScope() *scope {
	if len(t.stack) == 0 {
		return nil
	}

	return t.stack[len(t.stack)-1]
}

// notifyHooks invokes the registered hooks one by one, recovering from each
// so that a failing observer can never change the outcome of the traced
// work.
func (t *Trace) notifyHooks(pos *hooking.Pos, item interface{}) {
	if t.NumHooks() == 0 {
		return
	}

	ctx := hooking.Ctx{
		Domain: t,
		Pos:    pos,
		Item:   item,
	}

	for _, hook := range t.Hooks() {
		t.invokeOneHook(hook, ctx)
	}
}

func (t *Trace) invokeOneHook(hook hooking.Hook, ctx hooking.Ctx) {
	defer func() {
		if r := recover(); r != nil {
			t.tracer.logger.WithFields(logrus.Fields{
				"trace": t.id,
				"pos":   ctx.Pos.Name,
				"panic": r,
			}).Error("scope hook failed")
		}
	}()

	hook.Func(ctx)
}

func (t *Trace) mustNotBeEnded() {
	if t.ended {
		panic("trace is already ended")
	}
}
