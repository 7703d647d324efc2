package websocket

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"sorstream/pkg/exception"
)

// Session owns one encrypted streaming connection and drives it through
// resolve, connect, TLS, websocket upgrade and the read loop. Blocking steps
// run on the session goroutine; their completions run on the Executor.
type Session struct {
	id       string
	opt      Option
	exec     Executor
	notifier Notifier

	state   atomic.Int32
	running atomic.Bool
	closed  atomic.Bool

	mu   sync.Mutex
	raw  net.Conn
	conn *websocket.Conn

	host   string
	target string
	done   chan struct{}
}

// NewSession creates an idle session.
func NewSession(exec Executor, notifier Notifier, opt Option) *Session {
	return &Session{
		id:       uuid.NewString(),
		opt:      opt.withDefaults(),
		exec:     exec,
		notifier: notifier,
		done:     make(chan struct{}),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Done is closed when the session goroutine has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Run starts the session against wss://host:port/target and returns at once.
// Establishment failures are reported through Notifier.OnConnectionFailed.
func (s *Session) Run(ctx context.Context, host, target, port string) error {
	if s == nil || s.exec == nil || s.notifier == nil {
		return exception.ErrNilInstance
	}
	if host == "" || target == "" || port == "" {
		return errors.Wrapf(exception.ErrWebSocketInvalidArgument, "host: %q, target: %q, port: %q", host, target, port)
	}
	if s.closed.Load() {
		return exception.ErrWebSocketSessionClosed
	}
	if !s.running.CompareAndSwap(false, true) {
		return exception.ErrWebSocketSessionRunning
	}
	s.host, s.target = host, target

	stop := context.AfterFunc(ctx, s.Close)
	go func() {
		defer close(s.done)
		defer stop()
		s.run(ctx, host, target, port)
	}()
	return nil
}

func (s *Session) run(ctx context.Context, host, target, port string) {
	s.transition(StateResolving)
	addrs, err := resolve(ctx, s.opt.Resolver, host)
	if err != nil {
		s.fail(ctx, exception.CodeResolveFailed, err)
		return
	}

	s.transition(StateConnecting)
	raw, err := connect(ctx, s.opt.Dialer, addrs, port)
	if err != nil {
		s.fail(ctx, exception.CodeConnectionFailed, err)
		return
	}
	if !s.attach(raw, nil) {
		return
	}

	tlsConn, err := tlsClient(raw, s.opt.TLSConfig, host)
	if err != nil {
		s.fail(ctx, exception.CodeConnectionFailed, err)
		return
	}
	if !s.attach(tlsConn, nil) {
		return
	}

	s.transition(StateEncryptionHandshake)
	if err := encrypt(ctx, tlsConn); err != nil {
		s.fail(ctx, exception.CodeSslHandshakeFailed, err)
		return
	}
	if !s.exec.Await(s.notifier.OnConnected) {
		s.Close()
		return
	}

	s.transition(StateApplicationHandshake)
	conn, err := upgrade(ctx, tlsConn, s.opt, host, port, target)
	if err != nil {
		s.fail(ctx, exception.CodeHandshakeFailed, err)
		return
	}
	if !s.attach(tlsConn, conn) {
		return
	}

	s.transition(StateStreaming)
	s.readLoop(conn)
}

func (s *Session) readLoop(conn *websocket.Conn) {
	buf := s.opt.BufferPool.Get(s.opt.MaxMessageSize)
	defer s.opt.BufferPool.Put(buf)

	failures := 0
	for {
		n, tooBig, err := readMessage(conn, buf)
		if err != nil && s.closed.Load() {
			return
		}

		stopped := false
		ok := s.exec.Await(func() {
			if s.notifier.StopRequested() {
				stopped = true
				s.notifier.OnStop()
				return
			}
			switch {
			case err != nil:
				logs.Warnf("websocket read failed, id=%s, target=%s, err=%+v", s.id, s.target, err)
				s.notifier.OnReceiveFailed(exception.CodeReadFailed)
			case tooBig:
				logs.Warnf("websocket message too big, id=%s, target=%s, max=%d", s.id, s.target, len(buf))
				s.notifier.OnReceiveFailed(exception.CodeMsgTooBig)
			default:
				s.notifier.OnReceive(buf[:n])
			}
		})
		if !ok || stopped {
			if stopped {
				logs.Infof("websocket session stopped, id=%s, target=%s", s.id, s.target)
			}
			s.Close()
			return
		}

		if err == nil {
			failures = 0
			continue
		}
		failures++
		if failures >= s.opt.MaxReadFailures {
			logs.Errorf("websocket connection unusable, id=%s, target=%s, failures=%d", s.id, s.target, failures)
			s.exec.Await(s.notifier.OnStop)
			s.Close()
			return
		}
	}
}

// Close gracefully closes the transport. It is safe to call more than once
// and from any goroutine; errors from the close itself are ignored.
func (s *Session) Close() {
	if s == nil {
		return
	}
	s.closed.Store(true)

	s.mu.Lock()
	raw, conn := s.raw, s.conn
	s.mu.Unlock()

	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.opt.CloseWait))
		_ = conn.Close()
	} else if raw != nil {
		_ = raw.Close()
	}
	s.transition(StateClosed)
}

// attach records the live transport. It reports false when the session was
// closed meanwhile, in which case the transport is released here.
func (s *Session) attach(raw net.Conn, conn *websocket.Conn) bool {
	s.mu.Lock()
	s.raw, s.conn = raw, conn
	s.mu.Unlock()

	if s.closed.Load() {
		s.Close()
		return false
	}
	return true
}

func (s *Session) fail(ctx context.Context, code exception.Code, err error) {
	if s.closed.Load() || ctx.Err() != nil {
		// closed by the owner, not an establishment failure
		s.Close()
		return
	}
	logs.Errorf("websocket connection failed, id=%s, host=%s, target=%s, state=%s, code=%s, err=%+v",
		s.id, s.host, s.target, s.State(), code, err)
	s.Close()
	s.exec.Await(func() {
		s.notifier.OnConnectionFailed(code)
	})
}

// transition moves to the next state. Closed is final.
func (s *Session) transition(to State) {
	for {
		from := State(s.state.Load())
		if from == to || from == StateClosed {
			return
		}
		if s.state.CompareAndSwap(int32(from), int32(to)) {
			logs.Infof("websocket session state, id=%s, host=%s, target=%s, from=%s, to=%s", s.id, s.host, s.target, from, to)
			return
		}
	}
}
