// Package metrics defines the data model for datastore operation metrics:
// names, per-call records, the per-context ledger, and the sink that
// harvested records are handed to.
package metrics

// A MetricName identifies a measurable category. Names are hierarchical by
// convention, with segments separated by slashes, such as
// "Datastore/MySQL/select" or "Datastore/operation/MySQL/select".
type MetricName string
