package websocket

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sorstream/pkg/exception"
	"sorstream/pkg/loop"
)

type recorder struct {
	mu         sync.Mutex
	connected  int
	received   []string
	recvFailed []exception.Code
	stopAfter  int
	stops      int

	failed  chan exception.Code
	stopped chan struct{}
}

func newRecorder(stopAfter int) *recorder {
	return &recorder{
		stopAfter: stopAfter,
		failed:    make(chan exception.Code, 1),
		stopped:   make(chan struct{}),
	}
}

func (r *recorder) OnConnected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected++
}

func (r *recorder) OnConnectionFailed(code exception.Code) {
	r.failed <- code
}

func (r *recorder) OnReceive(payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, string(payload))
}

func (r *recorder) OnReceiveFailed(code exception.Code) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recvFailed = append(r.recvFailed, code)
}

func (r *recorder) StopRequested() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopAfter > 0 && len(r.received) >= r.stopAfter
}

func (r *recorder) OnStop() {
	r.mu.Lock()
	r.stops++
	r.mu.Unlock()
	close(r.stopped)
}

func (r *recorder) snapshot() (int, []string, []exception.Code, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected, append([]string(nil), r.received...), append([]exception.Code(nil), r.recvFailed...), r.stops
}

type server struct {
	host string
	port string
	tls  *tls.Config
}

func newServer(t *testing.T, h http.Handler) server {
	t.Helper()
	srv := httptest.NewTLSServer(h)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	return server{
		host: host,
		port: port,
		tls:  srv.Client().Transport.(*http.Transport).TLSClientConfig.Clone(),
	}
}

func newWebSocketServer(t *testing.T, fn func(c *websocket.Conn)) server {
	upgrader := websocket.Upgrader{}
	return newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		fn(c)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func runLoop(t *testing.T) *loop.Loop {
	t.Helper()
	l := loop.New(64)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = l.Run(ctx) }()
	t.Cleanup(cancel)
	return l
}

func waitClosed(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
	}
	assert.Equal(t, StateClosed, s.State())
}

func TestSessionStreamsUntilStopRequested(t *testing.T) {
	srv := newWebSocketServer(t, func(c *websocket.Conn) {
		for _, msg := range []string{"a", "b", "c", "d", "e"} {
			_ = c.WriteMessage(websocket.TextMessage, []byte(msg))
		}
	})
	rec := newRecorder(3)
	s := NewSession(runLoop(t), rec, Option{TLSConfig: srv.tls})

	require.NoError(t, s.Run(context.Background(), srv.host, "/ws/test", srv.port))
	select {
	case <-rec.stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("stop not raised")
	}
	waitClosed(t, s)

	connected, received, failed, stops := rec.snapshot()
	assert.Equal(t, 1, connected)
	assert.Equal(t, []string{"a", "b", "c"}, received)
	assert.Empty(t, failed)
	assert.Equal(t, 1, stops)
}

func TestSessionRejectsOversizedMessage(t *testing.T) {
	srv := newWebSocketServer(t, func(c *websocket.Conn) {
		_ = c.WriteMessage(websocket.TextMessage, []byte("0123456789abcdef"))
		_ = c.WriteMessage(websocket.TextMessage, []byte("01234567"))
		_ = c.WriteMessage(websocket.BinaryMessage, []byte("ok"))
		_ = c.WriteMessage(websocket.TextMessage, []byte("end"))
	})
	rec := newRecorder(2)
	s := NewSession(runLoop(t), rec, Option{TLSConfig: srv.tls, MaxMessageSize: 8})

	require.NoError(t, s.Run(context.Background(), srv.host, "/", srv.port))
	<-rec.stopped
	waitClosed(t, s)

	_, received, failed, _ := rec.snapshot()
	assert.Equal(t, []exception.Code{exception.CodeMsgTooBig}, failed)
	assert.Equal(t, []string{"01234567", "ok"}, received)
}

func TestSessionAnswersPing(t *testing.T) {
	pong := make(chan string, 1)
	srv := newWebSocketServer(t, func(c *websocket.Conn) {
		c.SetPongHandler(func(data string) error {
			pong <- data
			return nil
		})
		_ = c.WriteControl(websocket.PingMessage, []byte("hb"), time.Now().Add(time.Second))
	})
	rec := newRecorder(0)
	s := NewSession(runLoop(t), rec, Option{TLSConfig: srv.tls})

	require.NoError(t, s.Run(context.Background(), srv.host, "/", srv.port))
	select {
	case data := <-pong:
		assert.Equal(t, "hb", data)
	case <-time.After(5 * time.Second):
		t.Fatal("pong not received")
	}
	assert.Equal(t, StateStreaming, s.State())

	s.Close()
	s.Close()
	waitClosed(t, s)
	_, received, _, stops := rec.snapshot()
	assert.Empty(t, received)
	assert.Zero(t, stops)
}

type failingResolver struct{}

func (failingResolver) LookupHost(context.Context, string) ([]string, error) {
	return nil, errors.New("no such host")
}

type failingDialer struct{}

func (failingDialer) DialContext(context.Context, string, string) (net.Conn, error) {
	return nil, errors.New("connection refused")
}

func TestSessionEstablishmentFailures(t *testing.T) {
	plain := newServer(t, http.NotFoundHandler())

	testCases := []struct {
		desc      string
		host      string
		port      string
		opt       Option
		code      exception.Code
		connected int
	}{
		{
			desc: "resolve",
			host: "venue.invalid",
			port: "443",
			opt:  Option{Resolver: failingResolver{}},
			code: exception.CodeResolveFailed,
		},
		{
			desc: "connect",
			host: "127.0.0.1",
			port: "443",
			opt:  Option{Dialer: failingDialer{}},
			code: exception.CodeConnectionFailed,
		},
		{
			desc: "tls",
			host: plain.host,
			port: plain.port,
			opt:  Option{},
			code: exception.CodeSslHandshakeFailed,
		},
		{
			desc:      "upgrade",
			host:      plain.host,
			port:      plain.port,
			opt:       Option{TLSConfig: plain.tls},
			code:      exception.CodeHandshakeFailed,
			connected: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			rec := newRecorder(0)
			s := NewSession(runLoop(t), rec, tc.opt)
			require.NoError(t, s.Run(context.Background(), tc.host, "/ws", tc.port))

			select {
			case code := <-rec.failed:
				assert.Equal(t, tc.code, code)
			case <-time.After(5 * time.Second):
				t.Fatal("failure not reported")
			}
			waitClosed(t, s)

			connected, received, _, _ := rec.snapshot()
			assert.Equal(t, tc.connected, connected)
			assert.Empty(t, received)
		})
	}
}

func TestSessionRunGuards(t *testing.T) {
	srv := newWebSocketServer(t, func(*websocket.Conn) {})
	rec := newRecorder(0)
	s := NewSession(runLoop(t), rec, Option{TLSConfig: srv.tls})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Run(ctx, srv.host, "/", srv.port))
	assert.ErrorIs(t, s.Run(ctx, srv.host, "/", srv.port), exception.ErrWebSocketSessionRunning)

	cancel()
	waitClosed(t, s)
	assert.ErrorIs(t, s.Run(context.Background(), srv.host, "/", srv.port), exception.ErrWebSocketSessionClosed)

	select {
	case code := <-rec.failed:
		t.Fatalf("unexpected failure %s after cancel", code)
	default:
	}

	assert.ErrorIs(t, NewSession(nil, rec, Option{}).Run(context.Background(), "h", "/", "1"), exception.ErrNilInstance)

	idle := NewSession(runLoop(t), rec, Option{})
	for _, args := range [][3]string{{"", "/", "1"}, {"h", "", "1"}, {"h", "/", ""}} {
		err := idle.Run(context.Background(), args[0], args[1], args[2])
		assert.ErrorIs(t, err, exception.ErrWebSocketInvalidArgument, "%q", args)
	}
	assert.Equal(t, StateIdle, idle.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "encryption_handshake", StateEncryptionHandshake.String())
	assert.True(t, StateClosed.IsAvailable())
	assert.False(t, State(42).IsAvailable())
	assert.Equal(t, "unknown", State(42).String())
}

func TestSessionStopsAfterReadFailureLimit(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = c.WriteMessage(websocket.TextMessage, []byte("a"))
		_ = c.Close()
	}))

	rec := newRecorder(0)
	s := NewSession(runLoop(t), rec, Option{TLSConfig: srv.tls, MaxReadFailures: 3})
	require.NoError(t, s.Run(context.Background(), srv.host, "/ws", srv.port))

	select {
	case <-rec.stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop")
	}
	waitClosed(t, s)

	connected, received, failed, stops := rec.snapshot()
	assert.Equal(t, 1, connected)
	assert.Equal(t, []string{"a"}, received)
	assert.Equal(t, []exception.Code{exception.CodeReadFailed, exception.CodeReadFailed, exception.CodeReadFailed}, failed)
	assert.Equal(t, 1, stops)
}
