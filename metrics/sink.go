package metrics

import "github.com/tracelab/dstrace/timing"

// An Entry is one harvested metric record, labeled with the harvest window
// it was collected in.
type Entry struct {
	Start     timing.TimeInSec `json:"start"`
	End       timing.TimeInSec `json:"end"`
	Name      MetricName       `json:"name"`
	Count     uint64           `json:"count"`
	Total     timing.TimeInSec `json:"total"`
	Exclusive timing.TimeInSec `json:"exclusive"`
	Min       timing.TimeInSec `json:"min"`
	Max       timing.TimeInSec `json:"max"`
}

// A Sink consumes harvested metric entries. Implementations decide the wire
// or storage format. Record may buffer; Flush forces buffered entries out.
type Sink interface {
	Record(e Entry)
	Flush()
}
