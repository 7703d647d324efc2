package websocket

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"sorstream/pkg/exception"
)

// State is the lifecycle stage of a Session.
type State int32

const (
	StateIdle State = iota
	StateResolving
	StateConnecting
	StateEncryptionHandshake
	StateApplicationHandshake
	StateStreaming
	StateClosed
	_state_end
)

func (s State) IsAvailable() bool {
	return s >= StateIdle && s < _state_end
}

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateConnecting:
		return "connecting"
	case StateEncryptionHandshake:
		return "encryption_handshake"
	case StateApplicationHandshake:
		return "application_handshake"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Notifier receives the lifecycle and payload events of a Session.
// Every method is invoked on the Executor, never concurrently.
type Notifier interface {
	// OnConnected is raised once the encryption handshake succeeds.
	OnConnected()
	// OnConnectionFailed is raised when establishment fails. The session makes no further progress.
	OnConnectionFailed(code exception.Code)
	// OnReceive delivers one message. payload is only valid during the call.
	OnReceive(payload []byte)
	// OnReceiveFailed reports ReadFailed or MsgTooBig. Reading continues.
	OnReceiveFailed(code exception.Code)
	// StopRequested is checked after every completed read.
	StopRequested() bool
	// OnStop is raised when StopRequested answered true, or when the read
	// failure limit was reached, right before the session closes.
	OnStop()
}

// Executor runs completions serially. *loop.Loop implements it.
type Executor interface {
	Await(fn func()) bool
}

// Resolver resolves a host to its addresses. *net.Resolver implements it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// NetDialer opens a transport connection. *net.Dialer implements it.
type NetDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

const (
	DefaultMaxMessageSize  = 64 << 10
	DefaultReadBufferSize  = 32 << 10
	DefaultWriteBufferSize = 4 << 10
	DefaultCloseWait       = time.Second
	DefaultMaxReadFailures = 512
)

// Option configures a Session.
type Option struct {
	// MaxMessageSize bounds a delivered payload. Larger messages raise MsgTooBig.
	MaxMessageSize int
	// ReadBufferSize and WriteBufferSize size the protocol I/O buffers.
	ReadBufferSize  int
	WriteBufferSize int
	// CloseWait bounds the graceful close frame write.
	CloseWait time.Duration
	// MaxReadFailures stops the session after this many consecutive read
	// failures. A failed connection keeps returning the same error.
	MaxReadFailures int
	// TLSConfig is cloned per session, ServerName is always set to the host.
	TLSConfig *tls.Config
	Resolver  Resolver
	Dialer    NetDialer
	// BufferPool supplies the reusable payload buffer.
	BufferPool *BufferPool
}

// DefaultOption returns the production settings.
func DefaultOption() Option {
	return Option{
		MaxMessageSize:  DefaultMaxMessageSize,
		ReadBufferSize:  DefaultReadBufferSize,
		WriteBufferSize: DefaultWriteBufferSize,
		CloseWait:       DefaultCloseWait,
		MaxReadFailures: DefaultMaxReadFailures,
	}
}

func (o Option) withDefaults() Option {
	def := DefaultOption()
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = def.MaxMessageSize
	}
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = def.ReadBufferSize
	}
	if o.WriteBufferSize <= 0 {
		o.WriteBufferSize = def.WriteBufferSize
	}
	if o.CloseWait <= 0 {
		o.CloseWait = def.CloseWait
	}
	if o.MaxReadFailures <= 0 {
		o.MaxReadFailures = def.MaxReadFailures
	}
	if o.Resolver == nil {
		o.Resolver = net.DefaultResolver
	}
	if o.Dialer == nil {
		o.Dialer = &net.Dialer{KeepAlive: DefaultDialerKeepAlive}
	}
	if o.BufferPool == nil {
		o.BufferPool = NewBufferPool(o.MaxMessageSize)
	}
	return o
}
