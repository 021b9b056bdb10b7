package metrics

import "github.com/tracelab/dstrace/timing"

// A Record accumulates the statistics reported under one metric name. Total
// carries inclusive time, Exclusive carries the time spent in the measured
// calls themselves with nested calls subtracted.
type Record struct {
	Count     uint64
	Total     timing.TimeInSec
	Exclusive timing.TimeInSec
	Min       timing.TimeInSec
	Max       timing.TimeInSec
}

// AddCall folds one completed call into the record.
func (r *Record) AddCall(elapsed, exclusive timing.TimeInSec) {
	if r.Count == 0 || elapsed < r.Min {
		r.Min = elapsed
	}

	if elapsed > r.Max {
		r.Max = elapsed
	}

	r.Count++
	r.Total += elapsed
	r.Exclusive += exclusive
}

// Merge folds another record for the same metric name into this one.
func (r *Record) Merge(other Record) {
	if other.Count == 0 {
		return
	}

	if r.Count == 0 || other.Min < r.Min {
		r.Min = other.Min
	}

	if other.Max > r.Max {
		r.Max = other.Max
	}

	r.Count += other.Count
	r.Total += other.Total
	r.Exclusive += other.Exclusive
}
