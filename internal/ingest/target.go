package ingest

import (
	"github.com/yanun0323/logs"

	"sorstream/internal/model"
	"sorstream/internal/model/enum"
	"sorstream/pkg/exception"
)

// TargetState is the lifecycle of one subscription target as seen by its Handler.
type TargetState uint8

const (
	TargetPending TargetState = iota
	TargetConnected
	TargetFailed
	TargetStopped
	_target_state_end
)

func (s TargetState) IsAvailable() bool {
	return s < _target_state_end
}

func (s TargetState) String() string {
	switch s {
	case TargetPending:
		return "pending"
	case TargetConnected:
		return "connected"
	case TargetFailed:
		return "failed"
	case TargetStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// TargetStats is a read-only view of one target.
type TargetStats struct {
	Index  int
	Target string
	Source enum.Source
	Errors int
	State  TargetState
}

// target is one subscription of a Handler. It implements websocket.Notifier
// for the session that carries it.
type target struct {
	h       *Handler
	index   int
	path    string
	source  enum.Source
	decoder Decoder
	errors  int
	state   TargetState

	onEvents func([]model.Event)
	onFail   func(exception.Code)
}

func (t *target) OnConnected() {
	t.state = TargetConnected
	logs.Infof("[%d] successfully connected, venue=%s, target=%s", t.index, t.h.cfg.Venue, t.path)
}

func (t *target) OnConnectionFailed(code exception.Code) {
	if !code.Fatal() {
		logs.Warnf("[%d] non fatal connection report, target=%s, code=%s, update statistic", t.index, t.path, code)
		t.recordError(code)
		return
	}
	t.state = TargetFailed
	logs.Errorf("[%d] failed to connect, venue=%s, target=%s, code=%s", t.index, t.h.cfg.Venue, t.path, code)
	t.h.failure(t.path, code)
	t.h.checkDrained()
}

func (t *target) OnReceive(payload []byte) {
	start := t.h.now()
	t.decoder.Decode(payload, t.onEvents, t.onFail)
	t.h.metrics.ObserveDecode(t.h.now().Sub(start))
}

func (t *target) OnReceiveFailed(code exception.Code) {
	logs.Warnf("[%d] failed to receive data, target=%s, code=%s, update statistic", t.index, t.path, code)
	t.recordError(code)
}

func (t *target) StopRequested() bool {
	logs.Debugf("[%d] check for stop, target=%s, errors=%d", t.index, t.path, t.errors)
	return t.errors >= t.h.cfg.StopThreshold
}

func (t *target) OnStop() {
	t.state = TargetStopped
	logs.Infof("[%d] finished, target=%s, errors=%d", t.index, t.path, t.errors)
	t.h.checkDrained()
}

func (t *target) decodeFailed(code exception.Code) {
	logs.Warnf("[%d] failed to decode data, target=%s, code=%s, update statistic", t.index, t.path, code)
	t.recordError(code)
}

func (t *target) recordError(code exception.Code) {
	t.errors++
	t.h.metrics.IncError(t.h.cfg.Venue, t.path, code)
}

func (t *target) stats() TargetStats {
	return TargetStats{
		Index:  t.index,
		Target: t.path,
		Source: t.source,
		Errors: t.errors,
		State:  t.state,
	}
}
