package metrics_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tracelab/dstrace/metrics"
	"github.com/tracelab/dstrace/timing"
)

var _ = Describe("Record", func() {
	It("should accumulate calls", func() {
		r := metrics.Record{}

		r.AddCall(0.5, 0.5)
		r.AddCall(0.25, 0.125)

		Expect(r.Count).To(Equal(uint64(2)))
		Expect(r.Total).To(Equal(timing.TimeInSec(0.75)))
		Expect(r.Exclusive).To(Equal(timing.TimeInSec(0.625)))
		Expect(r.Min).To(Equal(timing.TimeInSec(0.25)))
		Expect(r.Max).To(Equal(timing.TimeInSec(0.5)))
	})

	It("should take the first call as both min and max", func() {
		r := metrics.Record{}

		r.AddCall(0.25, 0.25)

		Expect(r.Min).To(Equal(timing.TimeInSec(0.25)))
		Expect(r.Max).To(Equal(timing.TimeInSec(0.25)))
	})

	It("should merge two records", func() {
		a := metrics.Record{}
		a.AddCall(0.5, 0.25)
		b := metrics.Record{}
		b.AddCall(0.125, 0.125)
		b.AddCall(0.75, 0.25)

		a.Merge(b)

		Expect(a.Count).To(Equal(uint64(3)))
		Expect(a.Total).To(Equal(timing.TimeInSec(1.375)))
		Expect(a.Exclusive).To(Equal(timing.TimeInSec(0.625)))
		Expect(a.Min).To(Equal(timing.TimeInSec(0.125)))
		Expect(a.Max).To(Equal(timing.TimeInSec(0.75)))
	})

	It("should ignore merging an empty record", func() {
		a := metrics.Record{}
		a.AddCall(0.5, 0.5)

		a.Merge(metrics.Record{})

		Expect(a.Count).To(Equal(uint64(1)))
		Expect(a.Min).To(Equal(timing.TimeInSec(0.5)))
	})

	It("should adopt the other record when merging into an empty one", func() {
		a := metrics.Record{}
		b := metrics.Record{}
		b.AddCall(0.25, 0.25)

		a.Merge(b)

		Expect(a.Count).To(Equal(uint64(1)))
		Expect(a.Min).To(Equal(timing.TimeInSec(0.25)))
		Expect(a.Max).To(Equal(timing.TimeInSec(0.25)))
	})
})
