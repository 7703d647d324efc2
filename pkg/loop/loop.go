package loop

import (
	"context"
	"sync"
	"sync/atomic"

	"sorstream/pkg/exception"
)

const DefaultQueueSize = 1024

// Loop executes posted completions one at a time on the goroutine that calls Run.
//
// Blocking work happens elsewhere; only its completion is posted here, so
// every completion observes the effects of the ones before it.
type Loop struct {
	queue    chan func()
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
}

// New creates a loop whose pending queue holds up to size completions.
func New(size int) *Loop {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Loop{
		queue: make(chan func(), size),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Post enqueues fn. It blocks while the queue is full and reports false once
// the loop is stopped.
func (l *Loop) Post(fn func()) bool {
	if l == nil || fn == nil {
		return false
	}
	select {
	case <-l.stop:
		return false
	default:
	}
	select {
	case l.queue <- fn:
		return true
	case <-l.stop:
		return false
	}
}

// Await posts fn and waits until it has run. It reports false when the loop
// stopped before fn could run. Await must not be called from the loop goroutine.
func (l *Loop) Await(fn func()) bool {
	if fn == nil {
		return false
	}
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-l.done:
		select {
		case <-finished:
			return true
		default:
			return false
		}
	}
}

// Run drains the queue until Stop is called or ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	if l == nil {
		return exception.ErrNilInstance
	}
	if !l.running.CompareAndSwap(false, true) {
		return exception.ErrLoopStopped
	}
	defer close(l.done)

	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return ctx.Err()
		case <-l.stop:
			return nil
		case fn := <-l.queue:
			fn()
		}
	}
}

// Stop makes Run return after the completion currently executing.
func (l *Loop) Stop() {
	if l == nil {
		return
	}
	l.stopOnce.Do(func() {
		close(l.stop)
	})
}

// Done is closed when Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
