package obs

import (
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	yerrors "github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"sorstream/internal/model"
	"sorstream/internal/model/enum"
	"sorstream/pkg/exception"
)

const (
	maxSource = int(enum.SourceTrade)
	maxCode   = int(exception.CodeDataDuplicate)
)

// Metrics collects lightweight counters and latency stats, and mirrors them
// into Prometheus collectors. A nil *Metrics is a no-op.
type Metrics struct {
	eventCounts [maxSource + 1]uint64
	errorCounts [maxCode + 1]uint64
	allocations uint64

	decodeLatency LatencyStats

	events      *prometheus.CounterVec
	errors      *prometheus.CounterVec
	cycles      *prometheus.CounterVec
	decodeHist  prometheus.Histogram
	allocSize   *prometheus.GaugeVec
	expectedCst *prometheus.GaugeVec
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	EventCounts   map[enum.Source]uint64
	ErrorCounts   map[exception.Code]uint64
	Allocations   uint64
	DecodeLatency LatencySnapshot
}

// NewMetrics allocates a metrics container and registers its collectors on
// reg. A nil reg keeps the collectors unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "sor_events_total", Help: "Normalized events decoded"},
			[]string{"venue", "source"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "sor_errors_total", Help: "Receive and decode failures"},
			[]string{"venue", "target", "code"},
		),
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "sor_recompute_cycles_total", Help: "Allocator runs"},
			[]string{"venue"},
		),
		decodeHist: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sor_decode_seconds",
			Help:    "Time spent decoding one payload",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
		allocSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "sor_allocation_size", Help: "Latest recommended size per venue"},
			[]string{"venue"},
		),
		expectedCst: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "sor_expected_cost", Help: "Latest expected cost per venue"},
			[]string{"venue"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.events, m.errors, m.cycles, m.decodeHist, m.allocSize, m.expectedCst)
	}
	return m
}

// ObserveEvents counts decoded events by source.
func (m *Metrics) ObserveEvents(venue string, events []model.Event) {
	if m == nil {
		return
	}
	for _, e := range events {
		idx := int(e.Source)
		if idx >= 0 && idx < len(m.eventCounts) {
			atomic.AddUint64(&m.eventCounts[idx], 1)
		}
		m.events.WithLabelValues(venue, e.Source.String()).Inc()
	}
}

// IncError records a receive or decode failure of one target.
func (m *Metrics) IncError(venue, target string, code exception.Code) {
	if m == nil {
		return
	}
	idx := int(code)
	if idx >= 0 && idx < len(m.errorCounts) {
		atomic.AddUint64(&m.errorCounts[idx], 1)
	}
	m.errors.WithLabelValues(venue, target, code.String()).Inc()
}

// ObserveDecode measures the decoding of one payload.
func (m *Metrics) ObserveDecode(d time.Duration) {
	if m == nil {
		return
	}
	m.decodeLatency.Observe(d)
	m.decodeHist.Observe(d.Seconds())
}

// ObserveAllocations records one allocator run.
func (m *Metrics) ObserveAllocations(venue string, allocs []model.Allocation) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.allocations, 1)
	m.cycles.WithLabelValues(venue).Inc()
	for _, a := range allocs {
		m.allocSize.WithLabelValues(a.Venue).Set(a.Size)
		m.expectedCst.WithLabelValues(a.Venue).Set(a.ExpectedCost)
	}
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	eventCounts := make(map[enum.Source]uint64)
	for i := range m.eventCounts {
		if v := atomic.LoadUint64(&m.eventCounts[i]); v > 0 {
			eventCounts[enum.Source(i)] = v
		}
	}
	errorCounts := make(map[exception.Code]uint64)
	for i := range m.errorCounts {
		if v := atomic.LoadUint64(&m.errorCounts[i]); v > 0 {
			errorCounts[exception.Code(i)] = v
		}
	}
	return Snapshot{
		EventCounts:   eventCounts,
		ErrorCounts:   errorCounts,
		Allocations:   atomic.LoadUint64(&m.allocations),
		DecodeLatency: m.decodeLatency.Snapshot(),
	}
}

// Serve exposes gatherer on addr under /metrics. The listener is bound before
// Serve returns; the returned server's Addr is the bound address.
func Serve(addr string, gatherer prometheus.Gatherer) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, yerrors.Wrapf(err, "listen metrics, addr: %s", addr)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: ln.Addr().String(), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.Errorf("metrics server stopped, addr=%s, err=%+v", srv.Addr, err)
		}
	}()
	return srv, nil
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
