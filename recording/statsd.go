package recording

import (
	"os"
	"strings"

	"github.com/DataDog/datadog-go/v5/statsd"

	"github.com/tracelab/dstrace/metrics"
)

// StatsdSink forwards harvested entries to a statsd agent under the
// "dstrace." namespace. Delivery is best effort.
type StatsdSink struct {
	client *statsd.Client
}

// NewStatsdSink connects to the statsd agent at addr. If addr is empty, the
// DSTRACE_STATSD_ADDR environment variable is used, falling back to
// 127.0.0.1:8125.
func NewStatsdSink(addr string) *StatsdSink {
	if addr == "" {
		addr = os.Getenv("DSTRACE_STATSD_ADDR")
	}
	if addr == "" {
		addr = "127.0.0.1:8125"
	}

	client, err := statsd.New(addr, statsd.WithNamespace("dstrace."))
	if err != nil {
		panic(err)
	}

	return &StatsdSink{client: client}
}

// Record emits one harvested entry as a set of statsd metrics.
func (s *StatsdSink) Record(e metrics.Entry) {
	name := strings.ReplaceAll(string(e.Name), "/", ".")

	s.client.Count(name+".calls", int64(e.Count), nil, 1)
	s.client.Gauge(name+".total_seconds", float64(e.Total), nil, 1)
	s.client.Gauge(name+".exclusive_seconds", float64(e.Exclusive), nil, 1)
	s.client.Gauge(name+".min_seconds", float64(e.Min), nil, 1)
	s.client.Gauge(name+".max_seconds", float64(e.Max), nil, 1)
}

// Flush pushes buffered metrics to the agent.
func (s *StatsdSink) Flush() {
	s.client.Flush()
}

// Close flushes and shuts down the statsd client.
func (s *StatsdSink) Close() error {
	return s.client.Close()
}
