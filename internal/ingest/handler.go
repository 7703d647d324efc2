package ingest

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"sorstream/internal/model"
	"sorstream/internal/model/enum"
	"sorstream/internal/obs"
	"sorstream/internal/quant"
	"sorstream/pkg/exception"
)

const (
	DefaultStopThreshold     = 30
	DefaultRecomputeInterval = 200 * time.Millisecond
)

// Decoder turns one raw payload into normalized events.
type Decoder interface {
	Decode(payload []byte, onEvents func([]model.Event), onFail func(exception.Code))
}

// DecoderFactory builds a fresh decoder for a message kind.
type DecoderFactory func(source enum.Source) (Decoder, error)

// Config is the static configuration of a Handler.
type Config struct {
	Venue  string
	Params model.ExchangeParams
	// StopThreshold is the error count at which a target's session stops.
	StopThreshold int
	// RecomputeInterval is the minimum wall clock time between allocator runs.
	RecomputeInterval time.Duration
}

// Option customizes a Handler.
type Option func(*Handler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// WithMetrics reports events, errors and allocations to m.
func WithMetrics(m *obs.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithFailurePolicy sets what a connection establishment failure does.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(h *Handler) {
		if p != nil {
			h.failure = p
		}
	}
}

// WithAllocationSink receives every allocator result.
func WithAllocationSink(fn func([]model.Allocation)) Option {
	return func(h *Handler) { h.sink = fn }
}

// WithDrained is called once every target has stopped or failed.
func WithDrained(fn func()) Option {
	return func(h *Handler) { h.drained = fn }
}

// Handler owns the subscriptions of one venue. It feeds decoded events into
// the VWAP accumulator and the impact tracker, keeps the per cycle snapshot
// list and runs the allocator on a fixed cadence.
//
// All methods except AddTarget and Init must run on the session executor.
type Handler struct {
	cfg        Config
	connector  *Connector
	newDecoder DecoderFactory

	vwap      *quant.VWAP
	impact    *quant.ImpactTracker
	allocator *quant.Allocator

	targets       []*target
	snapshots     []model.VenueSnapshot
	lastRecompute time.Time
	initialized   bool

	now     func() time.Time
	metrics *obs.Metrics
	failure FailurePolicy
	sink    func([]model.Allocation)
	drained func()
	cycles  obs.CycleCounter
}

func NewHandler(cfg Config, connector *Connector, newDecoder DecoderFactory, opts ...Option) *Handler {
	if cfg.StopThreshold <= 0 {
		cfg.StopThreshold = DefaultStopThreshold
	}
	if cfg.RecomputeInterval <= 0 {
		cfg.RecomputeInterval = DefaultRecomputeInterval
	}

	h := &Handler{
		cfg:        cfg,
		connector:  connector,
		newDecoder: newDecoder,
		vwap:       quant.NewVWAP(),
		impact:     quant.NewImpactTracker(),
		allocator:  quant.NewAllocator(cfg.Params),
		now:        time.Now,
		failure:    IsolateFailure,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.lastRecompute = h.now()
	return h
}

// AddTarget registers a subscription target carrying messages of kind source.
func (h *Handler) AddTarget(source enum.Source, path string) error {
	if h == nil || h.newDecoder == nil {
		return exception.ErrNilInstance
	}
	if h.initialized {
		return errors.Wrapf(exception.ErrInvalidArgument, "add target after init: %s", path)
	}
	if path == "" {
		return errors.Wrap(exception.ErrInvalidArgument, "empty target")
	}
	decoder, err := h.newDecoder(source)
	if err != nil {
		return errors.Wrapf(err, "new decoder, target: %s", path)
	}

	t := &target{
		h:       h,
		index:   len(h.targets),
		path:    path,
		source:  source,
		decoder: decoder,
	}
	t.onEvents = func(events []model.Event) { h.handleEvents(t, events) }
	t.onFail = t.decodeFailed
	h.targets = append(h.targets, t)
	return nil
}

// Init opens one session per registered target.
func (h *Handler) Init(ctx context.Context) error {
	if h == nil || h.connector == nil {
		return exception.ErrNilInstance
	}
	if h.initialized {
		return nil
	}
	if len(h.targets) == 0 {
		return errors.Wrapf(exception.ErrInvalidArgument, "no target, venue: %s", h.cfg.Venue)
	}
	h.initialized = true

	for _, t := range h.targets {
		logs.Infof("[%d] created parser for target, venue=%s, target=%s, source=%s", t.index, h.cfg.Venue, t.path, t.source)
		if err := h.connector.Subscribe(ctx, t.path, t); err != nil {
			return errors.Wrapf(err, "subscribe, venue: %s", h.cfg.Venue)
		}
	}
	return nil
}

// Close closes every session of the handler.
func (h *Handler) Close() {
	if h == nil {
		return
	}
	h.connector.Close()
}

// Stats returns the current view of every target.
func (h *Handler) Stats() []TargetStats {
	stats := make([]TargetStats, 0, len(h.targets))
	for _, t := range h.targets {
		stats = append(stats, t.stats())
	}
	return stats
}

// Snapshots returns the snapshots of the running cycle.
func (h *Handler) Snapshots() []model.VenueSnapshot {
	return h.snapshots
}

func (h *Handler) checkDrained() {
	for _, t := range h.targets {
		if t.state != TargetStopped && t.state != TargetFailed {
			return
		}
	}
	logs.Infof("all targets finished, venue=%s", h.cfg.Venue)
	if h.drained != nil {
		h.drained()
	}
}

func (h *Handler) handleEvents(t *target, events []model.Event) {
	for _, e := range events {
		logs.Debugf("[%d] got new normalized event, %s", t.index, e)
		h.vwap.Add(e)
		h.impact.Add(e)
	}
	h.metrics.ObserveEvents(h.cfg.Venue, events)

	snap := model.VenueSnapshot{Name: h.cfg.Venue}
	bands := h.vwap.Compute(h.cfg.Params.TakerFee)
	if len(bands) == 0 {
		if len(h.snapshots) == 0 {
			return
		}
		last := h.snapshots[len(h.snapshots)-1]
		snap.VwapBid, snap.VwapAsk = last.VwapBid, last.VwapAsk
	} else {
		widest := bands[len(bands)-1]
		snap.VwapBid, snap.VwapAsk = widest.Bid, widest.Ask
	}

	coef := h.impact.Regression()
	snap.TempImpact, snap.PermImpact = coef.Temporary, coef.Permanent
	h.snapshots = append(h.snapshots, snap)

	if h.now().Sub(h.lastRecompute) >= h.cfg.RecomputeInterval {
		h.recompute(t)
	}
}

func (h *Handler) recompute(t *target) {
	cycle := h.cycles.Next()
	logs.Infof("[%d] compute SOR value, venue=%s, cycle=%d, snapshots=%d", t.index, h.cfg.Venue, cycle, len(h.snapshots))

	allocs := h.allocator.Compute(h.snapshots)
	h.metrics.ObserveAllocations(h.cfg.Venue, allocs)
	if h.sink != nil {
		h.sink(allocs)
	}

	h.impact.Clear()
	h.vwap.Clear()
	h.snapshots = h.snapshots[:1]
	h.lastRecompute = h.now()
}
