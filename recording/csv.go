package recording

import (
	"fmt"
	"os"

	"github.com/tebeka/atexit"

	"github.com/tracelab/dstrace/metrics"
)

// CSVSink is a metrics sink that stores harvested entries in a CSV file.
type CSVSink struct {
	path string
	file *os.File

	entries    []metrics.Entry
	bufferSize int
}

// NewCSVSink creates a CSVSink writing to the file at path. If the file
// already exists, it will be overwritten.
func NewCSVSink(path string) *CSVSink {
	s := &CSVSink{
		path:       path,
		bufferSize: 1000,
	}

	s.init()

	return s
}

func (s *CSVSink) init() {
	file, err := os.Create(s.path)
	if err != nil {
		panic(err)
	}
	s.file = file

	fmt.Fprintf(file,
		"WindowStart, WindowEnd, Name, CallCount, "+
			"TotalTime, ExclusiveTime, MinTime, MaxTime\n")

	atexit.Register(func() {
		s.Flush()
		err := s.file.Close()
		if err != nil {
			panic(err)
		}
	})
}

// Record buffers one harvested entry.
func (s *CSVSink) Record(e metrics.Entry) {
	s.entries = append(s.entries, e)
	if len(s.entries) >= s.bufferSize {
		s.Flush()
	}
}

// Flush writes the buffered entries to the CSV file.
func (s *CSVSink) Flush() {
	for _, e := range s.entries {
		fmt.Fprintf(s.file, "%.10f, %.10f, %s, %d, %.10f, %.10f, %.10f, %.10f\n",
			e.Start,
			e.End,
			e.Name,
			e.Count,
			e.Total,
			e.Exclusive,
			e.Min,
			e.Max,
		)
	}

	s.entries = nil
}
