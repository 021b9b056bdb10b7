// Package naming derives the metric names that a datastore operation
// reports to.
package naming

import "github.com/tracelab/dstrace/metrics"

// A DatastoreCall identifies one datastore operation. Product names the
// datastore kind, such as "MySQL" or "Redis". Operation names the action,
// such as "select" or "get". Collection optionally names the table or
// document collection the operation touches.
//
// An empty Operation marks the call as not worth tracing. Product and
// Collection are used verbatim.
type DatastoreCall struct {
	Product    string
	Operation  string
	Collection string
}

// MetricNames returns the ordered, duplicate-free list of metric names one
// call reports to: the product-scoped name, the statement-level name when a
// collection is given, and the cross-collection operation rollup. An empty
// Operation returns nil, which makes the tracer run the call unmeasured.
//
// MetricNames is pure. Calling it twice with the same fields yields the same
// list, and it is safe to call from any number of goroutines.
func (c DatastoreCall) MetricNames() []metrics.MetricName {
	if c.Operation == "" {
		return nil
	}

	names := make([]metrics.MetricName, 0, 3)
	names = append(names,
		metrics.MetricName("Datastore/"+c.Product+"/"+c.Operation))

	if c.Collection != "" {
		names = append(names, metrics.MetricName(
			"Datastore/"+c.Product+"/"+c.Collection+"/"+c.Operation))
	}

	names = append(names,
		metrics.MetricName("Datastore/operation/"+c.Product+"/"+c.Operation))

	return dedupe(names)
}

func dedupe(names []metrics.MetricName) []metrics.MetricName {
	seen := make(map[metrics.MetricName]bool, len(names))
	out := names[:0]

	for _, name := range names {
		if seen[name] {
			continue
		}

		seen[name] = true
		out = append(out, name)
	}

	return out
}
