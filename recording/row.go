package recording

import (
	"github.com/tracelab/dstrace/metrics"
)

// MetricsTable is the name of the table that holds harvested metric entries.
const MetricsTable = "metrics"

// MetricRow is the flat form of a metrics.Entry that database backends
// store. Field names double as column names.
type MetricRow struct {
	WindowStart   float64 `json:"window_start"`
	WindowEnd     float64 `json:"window_end"`
	Name          string  `json:"name"`
	CallCount     uint64  `json:"call_count"`
	TotalTime     float64 `json:"total_time"`
	ExclusiveTime float64 `json:"exclusive_time"`
	MinTime       float64 `json:"min_time"`
	MaxTime       float64 `json:"max_time"`
}

func newMetricRow(e metrics.Entry) MetricRow {
	return MetricRow{
		WindowStart:   float64(e.Start),
		WindowEnd:     float64(e.End),
		Name:          string(e.Name),
		CallCount:     e.Count,
		TotalTime:     float64(e.Total),
		ExclusiveTime: float64(e.Exclusive),
		MinTime:       float64(e.Min),
		MaxTime:       float64(e.Max),
	}
}

// RecorderSink adapts a Recorder into a metrics.Sink. The metrics table is
// created when the sink is built.
type RecorderSink struct {
	recorder Recorder
}

// NewRecorderSink creates a sink that stores harvested entries through r.
func NewRecorderSink(r Recorder) *RecorderSink {
	r.CreateTable(MetricsTable, MetricRow{})

	return &RecorderSink{recorder: r}
}

// Record buffers one harvested entry as a metric row.
func (s *RecorderSink) Record(e metrics.Entry) {
	s.recorder.InsertData(MetricsTable, newMetricRow(e))
}

// Flush writes the buffered rows to the backing database.
func (s *RecorderSink) Flush() {
	s.recorder.Flush()
}
