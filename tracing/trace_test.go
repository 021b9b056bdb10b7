package tracing

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/tracelab/dstrace/metrics"
	"github.com/tracelab/dstrace/naming"
	"github.com/tracelab/dstrace/timing"
)

var _ = Describe("Trace", func() {
	var (
		mockCtrl   *gomock.Controller
		timeTeller *MockTimeTeller
		tracer     *Tracer
		trace      *Trace
	)

	expectNow := func(times ...timing.TimeInSec) {
		for _, time := range times {
			timeTeller.EXPECT().Now().Return(time)
		}
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		timeTeller = NewMockTimeTeller(mockCtrl)
		tracer = MakeTracerBuilder().
			WithTimeTeller(timeTeller).
			Build()

		expectNow(0)
		trace = tracer.BeginTrace("request")
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should run the work and record one call per name", func() {
		names := naming.DatastoreCall{
			Product:    "MySQL",
			Operation:  "select",
			Collection: "users",
		}.MetricNames()
		expectNow(1.0, 1.5)

		executed := false
		err := trace.TraceScoped(names, func() error {
			executed = true
			return nil
		})

		Expect(err).To(BeNil())
		Expect(executed).To(BeTrue())
		for _, name := range names {
			rec, found := trace.Record(name)
			Expect(found).To(BeTrue(), string(name))
			Expect(rec.Count).To(Equal(uint64(1)))
			Expect(rec.Total).To(Equal(timing.TimeInSec(0.5)))
			Expect(rec.Exclusive).To(Equal(timing.TimeInSec(0.5)))
			Expect(rec.Min).To(Equal(timing.TimeInSec(0.5)))
			Expect(rec.Max).To(Equal(timing.TimeInSec(0.5)))
		}
	})

	It("should run the work untraced when no names are given", func() {
		executed := false

		err := trace.TraceScoped(nil, func() error {
			executed = true
			return nil
		})

		Expect(err).To(BeNil())
		Expect(executed).To(BeTrue())
		Expect(trace.Depth()).To(Equal(0))
	})

	It("should run the work untraced when the operation is empty", func() {
		call := naming.DatastoreCall{Product: "MySQL", Collection: "users"}
		executed := false

		err := trace.TraceDatastore(call, func() error {
			executed = true
			return nil
		})

		Expect(err).To(BeNil())
		Expect(executed).To(BeTrue())
		_, found := trace.Record("Datastore/MySQL/users/")
		Expect(found).To(BeFalse())
	})

	It("should subtract a nested call from the outer exclusive time", func() {
		outer := []metrics.MetricName{"Datastore/MySQL/select"}
		inner := []metrics.MetricName{"Datastore/Redis/get"}
		expectNow(1.0, 1.25, 1.625, 2.0)

		err := trace.TraceScoped(outer, func() error {
			return trace.TraceScoped(inner, func() error {
				return nil
			})
		})

		Expect(err).To(BeNil())

		innerRec, _ := trace.Record("Datastore/Redis/get")
		Expect(innerRec.Total).To(Equal(timing.TimeInSec(0.375)))
		Expect(innerRec.Exclusive).To(Equal(timing.TimeInSec(0.375)))

		outerRec, _ := trace.Record("Datastore/MySQL/select")
		Expect(outerRec.Total).To(Equal(timing.TimeInSec(1.0)))
		Expect(outerRec.Exclusive).To(Equal(timing.TimeInSec(0.625)))
	})

	It("should subtract sequential nested calls from the outer exclusive time",
		func() {
			outer := []metrics.MetricName{"Datastore/MySQL/select"}
			first := []metrics.MetricName{"Datastore/Redis/get"}
			second := []metrics.MetricName{"Datastore/Redis/set"}
			expectNow(1.0, 1.25, 1.5, 1.5, 1.75, 2.0)

			err := trace.TraceScoped(outer, func() error {
				innerErr := trace.TraceScoped(first, func() error {
					return nil
				})
				Expect(innerErr).To(BeNil())

				return trace.TraceScoped(second, func() error {
					return nil
				})
			})

			Expect(err).To(BeNil())

			outerRec, _ := trace.Record("Datastore/MySQL/select")
			Expect(outerRec.Total).To(Equal(timing.TimeInSec(1.0)))
			Expect(outerRec.Exclusive).To(Equal(timing.TimeInSec(0.5)))
		})

	It("should deduct only directly nested calls", func() {
		top := []metrics.MetricName{"top"}
		middle := []metrics.MetricName{"middle"}
		bottom := []metrics.MetricName{"bottom"}
		expectNow(0, 1.0, 1.5, 2.0, 3.0, 4.0)

		err := trace.TraceScoped(top, func() error {
			return trace.TraceScoped(middle, func() error {
				return trace.TraceScoped(bottom, func() error {
					return nil
				})
			})
		})

		Expect(err).To(BeNil())

		bottomRec, _ := trace.Record("bottom")
		Expect(bottomRec.Total).To(Equal(timing.TimeInSec(0.5)))
		Expect(bottomRec.Exclusive).To(Equal(timing.TimeInSec(0.5)))

		middleRec, _ := trace.Record("middle")
		Expect(middleRec.Total).To(Equal(timing.TimeInSec(2.0)))
		Expect(middleRec.Exclusive).To(Equal(timing.TimeInSec(1.5)))

		topRec, _ := trace.Record("top")
		Expect(topRec.Total).To(Equal(timing.TimeInSec(4.0)))
		Expect(topRec.Exclusive).To(Equal(timing.TimeInSec(2.0)))
	})

	It("should accumulate when nested calls share a metric name", func() {
		rollup := metrics.MetricName("Datastore/operation/MySQL/select")
		outer := []metrics.MetricName{"Datastore/MySQL/select", rollup}
		inner := []metrics.MetricName{"Datastore/MySQL/accounts/select", rollup}
		expectNow(1.0, 1.25, 1.75, 2.0)

		err := trace.TraceScoped(outer, func() error {
			return trace.TraceScoped(inner, func() error {
				return nil
			})
		})

		Expect(err).To(BeNil())

		rec, _ := trace.Record(rollup)
		Expect(rec.Count).To(Equal(uint64(2)))
		Expect(rec.Total).To(Equal(timing.TimeInSec(1.5)))
		Expect(rec.Exclusive).To(Equal(timing.TimeInSec(1.0)))
	})

	It("should re-surface the error of the work unchanged", func() {
		names := []metrics.MetricName{"Datastore/MySQL/select"}
		boom := errors.New("connection reset")
		expectNow(1.0, 1.5)

		err := trace.TraceScoped(names, func() error {
			return boom
		})

		Expect(err).To(BeIdenticalTo(boom))

		rec, found := trace.Record("Datastore/MySQL/select")
		Expect(found).To(BeTrue())
		Expect(rec.Count).To(Equal(uint64(1)))
		Expect(rec.Total).To(Equal(timing.TimeInSec(0.5)))
	})

	It("should record the time of a panicking work before unwinding", func() {
		names := []metrics.MetricName{"Datastore/MySQL/select"}
		expectNow(1.0, 1.5)

		Expect(func() {
			_ = trace.TraceScoped(names, func() error {
				panic("kaboom")
			})
		}).To(PanicWith("kaboom"))

		rec, found := trace.Record("Datastore/MySQL/select")
		Expect(found).To(BeTrue())
		Expect(rec.Count).To(Equal(uint64(1)))
		Expect(rec.Total).To(Equal(timing.TimeInSec(0.5)))
		Expect(trace.Depth()).To(Equal(0))
	})

	It("should return the value of the work", func() {
		names := []metrics.MetricName{"Datastore/MySQL/select"}
		expectNow(1.0, 1.5)

		rows, err := TraceScopedValue(trace, names, func() (int, error) {
			return 42, nil
		})

		Expect(err).To(BeNil())
		Expect(rows).To(Equal(42))

		rec, _ := trace.Record("Datastore/MySQL/select")
		Expect(rec.Count).To(Equal(uint64(1)))
	})

	It("should panic when ended with scopes still active", func() {
		names := []metrics.MetricName{"Datastore/MySQL/select"}
		expectNow(1.0, 1.5)

		Expect(func() {
			_ = trace.TraceScoped(names, func() error {
				trace.End()
				return nil
			})
		}).To(PanicWith("trace ended with scopes still active"))

		rec, found := trace.Record("Datastore/MySQL/select")
		Expect(found).To(BeTrue())
		Expect(rec.Count).To(Equal(uint64(1)))
	})

	It("should panic when ended twice", func() {
		trace.End()

		Expect(func() {
			trace.End()
		}).To(PanicWith("trace is already ended"))
	})

	It("should panic when tracing on an ended trace", func() {
		names := []metrics.MetricName{"Datastore/MySQL/select"}
		trace.End()

		Expect(func() {
			_ = trace.TraceScoped(names, func() error {
				return nil
			})
		}).To(PanicWith("trace is already ended"))
	})
})
