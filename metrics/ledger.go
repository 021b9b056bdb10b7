package metrics

import (
	"sort"

	"github.com/tracelab/dstrace/timing"
)

// A Ledger accumulates per-name records within one execution context.
// Records are created lazily on first contribution. A Ledger is owned by
// exactly one execution context and is not safe for concurrent use.
type Ledger struct {
	records map[MetricName]*Record
}

// NewLedger creates an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{
		records: make(map[MetricName]*Record),
	}
}

// AddCall folds one completed call into the record for name.
func (l *Ledger) AddCall(name MetricName, elapsed, exclusive timing.TimeInSec) {
	rec, found := l.records[name]
	if !found {
		rec = &Record{}
		l.records[name] = rec
	}

	rec.AddCall(elapsed, exclusive)
}

// Record returns a copy of the record for name and whether it exists.
func (l *Ledger) Record(name MetricName) (Record, bool) {
	rec, found := l.records[name]
	if !found {
		return Record{}, false
	}

	return *rec, true
}

// Len returns the number of metric names with at least one recorded call.
func (l *Ledger) Len() int {
	return len(l.records)
}

// Names returns all metric names in the ledger, sorted.
func (l *Ledger) Names() []MetricName {
	names := make([]MetricName, 0, len(l.records))
	for name := range l.records {
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool {
		return names[i] < names[j]
	})

	return names
}
