// Package monitoring exposes a running Tracer over HTTP so that in-flight
// traces and aggregated metrics can be inspected from outside the process.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/tracelab/dstrace/tracing"
)

// Monitor turns a traced application into a server and allows external
// inspection of its in-flight traces and harvested metrics.
type Monitor struct {
	tracer     *tracing.Tracer
	portNumber int
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterTracer registers the tracer to be monitored.
func (m *Monitor) RegisterTracer(t *tracing.Tracer) {
	m.tracer = t
}

// StartServer starts the monitor as a web server with a custom port if
// wanted.
func (m *Monitor) StartServer() {
	r := mux.NewRouter()

	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/metrics", m.listMetrics)
	r.HandleFunc("/api/traces", m.listTraces)
	r.HandleFunc("/api/trace/{id}", m.traceDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/harvest", m.harvest)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	http.Handle("/", r)

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	fmt.Fprintf(
		os.Stderr,
		"Monitoring datastore metrics with http://localhost:%d\n",
		listener.Addr().(*net.TCPAddr).Port)

	go func() {
		err = http.Serve(listener, nil)
		dieOnErr(err)
	}()
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	now := m.tracer.Now()
	fmt.Fprintf(w, "{\"now\":%.10f}", now)
}

func (m *Monitor) harvest(w http.ResponseWriter, _ *http.Request) {
	m.tracer.Harvest()
	_, err := w.Write(nil)
	dieOnErr(err)
}

type metricRsp struct {
	Name      string  `json:"name"`
	CallCount uint64  `json:"call_count"`
	Total     float64 `json:"total"`
	Exclusive float64 `json:"exclusive"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
}

func (m *Monitor) listMetrics(w http.ResponseWriter, r *http.Request) {
	sortMethod, limit, offset, err := m.metricsParseParams(r)
	if err != nil {
		w.WriteHeader(400)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	entries := m.sortAndSelectMetrics(sortMethod, limit, offset)

	rsp, err := json.Marshal(entries)
	dieOnErr(err)

	_, err = w.Write(rsp)
	dieOnErr(err)
}

func (*Monitor) metricsParseParams(
	r *http.Request,
) (sort string, limit, offset int, err error) {
	sortMethod := r.URL.Query().Get("sort")
	if sortMethod == "" {
		sortMethod = "exclusive"
	}
	if sortMethod != "name" && sortMethod != "count" &&
		sortMethod != "total" && sortMethod != "exclusive" {
		errStr := fmt.Sprintf(
			"Invalid sort method: %s. Allowed values are "+
				"`name`, `count`, `total`, and `exclusive`",
			sortMethod)
		return "", 0, 0, errors.New(errStr)
	}

	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		limitStr = "0"
	}
	limitNumber, err := strconv.Atoi(limitStr)
	if err != nil {
		return sortMethod, 0, 0, err
	}

	offsetStr := r.URL.Query().Get("offset")
	if offsetStr == "" {
		offsetStr = "0"
	}
	offsetNumber, err := strconv.Atoi(offsetStr)
	if err != nil {
		return sortMethod, limitNumber, 0, err
	}

	return sortMethod, limitNumber, offsetNumber, nil
}

func (m *Monitor) sortAndSelectMetrics(
	sortMethod string,
	limit, offset int,
) []metricRsp {
	snapshot := m.tracer.Store().Snapshot()

	entries := make([]metricRsp, 0, len(snapshot))
	for name, rec := range snapshot {
		entries = append(entries, metricRsp{
			Name:      string(name),
			CallCount: rec.Count,
			Total:     float64(rec.Total),
			Exclusive: float64(rec.Exclusive),
			Min:       float64(rec.Min),
			Max:       float64(rec.Max),
		})
	}

	switch sortMethod {
	case "name":
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Name < entries[j].Name
		})
	case "count":
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].CallCount != entries[j].CallCount {
				return entries[i].CallCount > entries[j].CallCount
			}
			return entries[i].Name < entries[j].Name
		})
	case "total":
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].Total != entries[j].Total {
				return entries[i].Total > entries[j].Total
			}
			return entries[i].Name < entries[j].Name
		})
	case "exclusive":
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].Exclusive != entries[j].Exclusive {
				return entries[i].Exclusive > entries[j].Exclusive
			}
			return entries[i].Name < entries[j].Name
		})
	default:
		panic("Invalid sort method " + sortMethod)
	}

	if offset > len(entries) {
		offset = len(entries)
	}
	entries = entries[offset:]

	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}

	return entries
}

// traceRsp carries the fields of an in-flight trace that are safe to read
// from outside the owning goroutine. The scope stack and the ledger stay
// private to the owning context until the trace ends.
type traceRsp struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	StartTime float64 `json:"start_time"`
	Depth     int     `json:"depth"`
}

func newTraceRsp(t *tracing.Trace) traceRsp {
	return traceRsp{
		ID:        t.ID(),
		Name:      t.Name(),
		StartTime: float64(t.StartTime()),
		Depth:     t.Depth(),
	}
}

func (m *Monitor) listTraces(w http.ResponseWriter, _ *http.Request) {
	traces := m.tracer.ActiveTraces()

	entries := make([]traceRsp, 0, len(traces))
	for _, t := range traces {
		entries = append(entries, newTraceRsp(t))
	}

	rsp, err := json.Marshal(entries)
	dieOnErr(err)

	_, err = w.Write(rsp)
	dieOnErr(err)
}

func (m *Monitor) traceDetails(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	trace := m.findTraceOr404(w, id)
	if trace == nil {
		return
	}

	view := newTraceRsp(trace)

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&view)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type fieldReq struct {
	TraceID   string `json:"trace_id,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	jsonString := mux.Vars(r)["json"]
	req := fieldReq{}

	err := json.Unmarshal([]byte(jsonString), &req)
	if err != nil {
		dieOnErr(err)
	}

	fields := strings.Split(req.FieldName, ".")

	trace := m.findTraceOr404(w, req.TraceID)
	if trace == nil {
		return
	}

	view := newTraceRsp(trace)

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&view)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(fields)
	dieOnErr(err)

	err = serializer.Serialize(w)
	dieOnErr(err)
}

func (m *Monitor) findTraceOr404(
	w http.ResponseWriter,
	id string,
) *tracing.Trace {
	for _, t := range m.tracer.ActiveTraces() {
		if t.ID() == id {
			return t
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Trace not found"))
	dieOnErr(err)

	return nil
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	rsp, err := json.Marshal(prof)
	dieOnErr(err)

	_, err = w.Write(rsp)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
