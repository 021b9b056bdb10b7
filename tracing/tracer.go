package tracing

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/tracelab/dstrace/hooking"
	"github.com/tracelab/dstrace/metrics"
	"github.com/tracelab/dstrace/timing"
)

// A Tracer creates execution contexts and aggregates their measurements.
// When a Trace ends, its ledger is merged into the tracer's store. Harvest
// drains the store and writes one entry per metric name to every configured
// sink.
//
// A Tracer is safe for concurrent use; each Trace it creates belongs to one
// execution context.
type Tracer struct {
	clock  timing.TimeTeller
	logger *logrus.Logger
	sinks  []metrics.Sink
	store  *metrics.Store
	hooks  []hooking.Hook

	lock         sync.Mutex
	activeTraces map[string]*Trace

	harvestLock sync.Mutex
	windowStart timing.TimeInSec

	stop     chan struct{}
	stopOnce sync.Once
}

// Now returns the current time of the tracer's clock.
func (tr *Tracer) Now() timing.TimeInSec {
	return tr.clock.Now()
}

// Store returns the aggregated metrics of all finished traces.
func (tr *Tracer) Store() *metrics.Store {
	return tr.store
}

// BeginTrace opens a new execution context. The returned Trace carries all
// hooks the tracer was built with and must be closed with End.
func (tr *Tracer) BeginTrace(name string) *Trace {
	t := &Trace{
		id:        xid.New().String(),
		name:      name,
		tracer:    tr,
		clock:     tr.clock,
		ledger:    metrics.NewLedger(),
		startTime: tr.clock.Now(),
	}

	for _, h := range tr.hooks {
		t.AcceptHook(h)
	}

	tr.lock.Lock()
	tr.activeTraces[t.id] = t
	tr.lock.Unlock()

	return t
}

// ActiveTraces returns the traces that have begun but not yet ended, oldest
// first. Only the ID, name, start time, and depth of the returned traces
// may be inspected from outside their owning contexts.
func (tr *Tracer) ActiveTraces() []*Trace {
	tr.lock.Lock()
	traces := make([]*Trace, 0, len(tr.activeTraces))
	for _, t := range tr.activeTraces {
		traces = append(traces, t)
	}
	tr.lock.Unlock()

	sort.Slice(traces, func(i, j int) bool {
		if traces[i].startTime != traces[j].startTime {
			return traces[i].startTime < traces[j].startTime
		}
		return traces[i].id < traces[j].id
	})

	return traces
}

func (tr *Tracer) collect(t *Trace) {
	tr.store.MergeLedger(t.ledger)

	tr.lock.Lock()
	delete(tr.activeTraces, t.id)
	tr.lock.Unlock()
}

// Harvest drains the aggregated metrics and writes one entry per metric
// name, sorted by name, to every sink. Harvesting an empty store does
// nothing.
func (tr *Tracer) Harvest() {
	tr.harvestLock.Lock()
	defer tr.harvestLock.Unlock()

	end := tr.clock.Now()
	start := tr.windowStart
	tr.windowStart = end

	snapshot := tr.store.Drain()
	if len(snapshot) == 0 {
		return
	}

	names := make([]metrics.MetricName, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return names[i] < names[j]
	})

	for _, name := range names {
		rec := snapshot[name]
		entry := metrics.Entry{
			Start:     start,
			End:       end,
			Name:      name,
			Count:     rec.Count,
			Total:     rec.Total,
			Exclusive: rec.Exclusive,
			Min:       rec.Min,
			Max:       rec.Max,
		}

		for _, sink := range tr.sinks {
			sink.Record(entry)
		}
	}

	for _, sink := range tr.sinks {
		sink.Flush()
	}
}

// Stop ends the periodic harvest loop, if one is running, and harvests one
// final time. Stop is idempotent.
func (tr *Tracer) Stop() {
	tr.stopOnce.Do(func() {
		close(tr.stop)
		tr.Harvest()
	})
}

func (tr *Tracer) harvestLoop(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tr.Harvest()
		case <-tr.stop:
			return
		}
	}
}
