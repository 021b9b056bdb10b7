package tracing

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	gomock "go.uber.org/mock/gomock"

	"github.com/tracelab/dstrace/hooking"
	"github.com/tracelab/dstrace/metrics"
	"github.com/tracelab/dstrace/timing"
)

type recordingHook struct {
	ctxs []hooking.Ctx
}

func (h *recordingHook) Func(ctx hooking.Ctx) {
	h.ctxs = append(h.ctxs, ctx)
}

var _ = Describe("ScopeObserver", func() {
	var (
		mockCtrl   *gomock.Controller
		timeTeller *MockTimeTeller
	)

	expectNow := func(times ...timing.TimeInSec) {
		for _, time := range times {
			timeTeller.EXPECT().Now().Return(time)
		}
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		timeTeller = NewMockTimeTeller(mockCtrl)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should observe a completed call", func() {
		var (
			observedErr     error
			observedNames   []metrics.MetricName
			observedElapsed timing.TimeInSec
			observations    int
		)

		tracer := MakeTracerBuilder().
			WithTimeTeller(timeTeller).
			WithScopeObserver(func(
				err error,
				names []metrics.MetricName,
				elapsed timing.TimeInSec,
			) {
				observedErr = err
				observedNames = names
				observedElapsed = elapsed
				observations++
			}).
			Build()
		expectNow(0, 1.0, 1.5)

		trace := tracer.BeginTrace("request")
		err := trace.TraceScoped(
			[]metrics.MetricName{"Datastore/MySQL/select"},
			func() error { return nil },
		)

		Expect(err).To(BeNil())
		Expect(observations).To(Equal(1))
		Expect(observedErr).To(BeNil())
		Expect(observedNames).To(Equal(
			[]metrics.MetricName{"Datastore/MySQL/select"}))
		Expect(observedElapsed).To(Equal(timing.TimeInSec(0.5)))
	})

	It("should hand the error of a failed call to the observer", func() {
		boom := errors.New("duplicate key")
		var observedErr error

		tracer := MakeTracerBuilder().
			WithTimeTeller(timeTeller).
			WithScopeObserver(func(
				err error,
				names []metrics.MetricName,
				elapsed timing.TimeInSec,
			) {
				observedErr = err
			}).
			Build()
		expectNow(0, 1.0, 1.5)

		trace := tracer.BeginTrace("request")
		err := trace.TraceScoped(
			[]metrics.MetricName{"Datastore/MySQL/insert"},
			func() error { return boom },
		)

		Expect(err).To(BeIdenticalTo(boom))
		Expect(observedErr).To(BeIdenticalTo(boom))
	})

	It("should not observe an untraced call", func() {
		observations := 0

		tracer := MakeTracerBuilder().
			WithTimeTeller(timeTeller).
			WithScopeObserver(func(
				err error,
				names []metrics.MetricName,
				elapsed timing.TimeInSec,
			) {
				observations++
			}).
			Build()
		expectNow(0)

		trace := tracer.BeginTrace("request")
		err := trace.TraceScoped(nil, func() error { return nil })

		Expect(err).To(BeNil())
		Expect(observations).To(Equal(0))
	})

	It("should isolate a panicking observer", func() {
		logger, loggerHook := logrustest.NewNullLogger()
		laterObservations := 0

		tracer := MakeTracerBuilder().
			WithTimeTeller(timeTeller).
			WithLogger(logger).
			WithScopeObserver(func(
				err error,
				names []metrics.MetricName,
				elapsed timing.TimeInSec,
			) {
				panic("observer exploded")
			}).
			WithScopeObserver(func(
				err error,
				names []metrics.MetricName,
				elapsed timing.TimeInSec,
			) {
				laterObservations++
			}).
			Build()
		expectNow(0, 1.0, 1.5)

		trace := tracer.BeginTrace("request")
		err := trace.TraceScoped(
			[]metrics.MetricName{"Datastore/MySQL/select"},
			func() error { return nil },
		)

		Expect(err).To(BeNil())
		Expect(laterObservations).To(Equal(1))

		rec, found := trace.Record("Datastore/MySQL/select")
		Expect(found).To(BeTrue())
		Expect(rec.Count).To(Equal(uint64(1)))

		Expect(loggerHook.LastEntry()).NotTo(BeNil())
		Expect(loggerHook.LastEntry().Message).To(Equal("scope hook failed"))
		Expect(loggerHook.LastEntry().Level).To(Equal(logrus.ErrorLevel))
	})

	It("should deliver begin and end payloads to a scope hook", func() {
		hook := &recordingHook{}
		tracer := MakeTracerBuilder().
			WithTimeTeller(timeTeller).
			WithScopeHook(hook).
			Build()
		expectNow(0, 1.0, 1.5)

		trace := tracer.BeginTrace("request")
		err := trace.TraceScoped(
			[]metrics.MetricName{"Datastore/MySQL/select"},
			func() error { return nil },
		)
		Expect(err).To(BeNil())

		Expect(hook.ctxs).To(HaveLen(2))

		Expect(hook.ctxs[0].Pos).To(BeIdenticalTo(HookPosScopeBegin))
		begin := hook.ctxs[0].Item.(ScopeBegin)
		Expect(begin.TraceID).To(Equal(trace.ID()))
		Expect(begin.Depth).To(Equal(1))

		Expect(hook.ctxs[1].Pos).To(BeIdenticalTo(HookPosScopeEnd))
		end := hook.ctxs[1].Item.(ScopeEnd)
		Expect(end.Elapsed).To(Equal(timing.TimeInSec(0.5)))
		Expect(end.Err).To(BeNil())
	})
})

var _ = Describe("SlowCallLogger", func() {
	var (
		mockCtrl   *gomock.Controller
		timeTeller *MockTimeTeller
		logger     *logrus.Logger
		loggerHook *logrustest.Hook
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
		logger, loggerHook = logrustest.NewNullLogger()
		tracer = MakeTracerBuilder().
			WithTimeTeller(timeTeller).
			WithScopeHook(&SlowCallLogger{Threshold: 0.25, Logger: logger}).
			Build()

		expectNow(0)
		trace = tracer.BeginTrace("request")
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should stay quiet for fast calls", func() {
		expectNow(1.0, 1.125)

		err := trace.TraceScoped(
			[]metrics.MetricName{"Datastore/Redis/get"},
			func() error { return nil },
		)

		Expect(err).To(BeNil())
		Expect(loggerHook.Entries).To(BeEmpty())
	})

	It("should log slow calls", func() {
		expectNow(1.0, 1.5)

		err := trace.TraceScoped(
			[]metrics.MetricName{"Datastore/MySQL/select"},
			func() error { return nil },
		)

		Expect(err).To(BeNil())
		Expect(loggerHook.Entries).To(HaveLen(1))
		Expect(loggerHook.LastEntry().Message).To(Equal("slow datastore call"))
		Expect(loggerHook.LastEntry().Level).To(Equal(logrus.WarnLevel))
		Expect(loggerHook.LastEntry().Data["metric"]).
			To(Equal("Datastore/MySQL/select"))
		Expect(loggerHook.LastEntry().Data["elapsed"]).To(Equal(0.5))
	})
})
