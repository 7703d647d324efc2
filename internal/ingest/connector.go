package ingest

import (
	"context"
	"sync"

	"github.com/yanun0323/errors"

	"sorstream/pkg/exception"
	"sorstream/pkg/websocket"
)

// Session is one streaming connection driven by a Notifier.
type Session interface {
	Run(ctx context.Context, host, target, port string) error
	Close()
}

// SessionFactory creates an idle session reporting to notifier.
type SessionFactory func(notifier websocket.Notifier) Session

// NewSessionFactory binds websocket sessions to exec.
func NewSessionFactory(exec websocket.Executor, opt websocket.Option) SessionFactory {
	return func(notifier websocket.Notifier) Session {
		return websocket.NewSession(exec, notifier, opt)
	}
}

// Connector opens one session per subscription target of a venue.
type Connector struct {
	host    string
	port    string
	factory SessionFactory

	mu       sync.Mutex
	sessions []Session
}

func NewConnector(host, port string, factory SessionFactory) *Connector {
	return &Connector{
		host:    host,
		port:    port,
		factory: factory,
	}
}

// Subscribe starts a session for target and keeps track of it.
func (c *Connector) Subscribe(ctx context.Context, target string, notifier websocket.Notifier) error {
	if c == nil || c.factory == nil {
		return exception.ErrNilInstance
	}
	if target == "" || notifier == nil {
		return errors.Wrapf(exception.ErrInvalidArgument, "subscribe target: %q", target)
	}

	session := c.factory(notifier)
	if err := session.Run(ctx, c.host, target, c.port); err != nil {
		return errors.Wrapf(err, "run session, target: %s", target)
	}

	c.mu.Lock()
	c.sessions = append(c.sessions, session)
	c.mu.Unlock()
	return nil
}

// Len returns the number of tracked sessions.
func (c *Connector) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// Close closes every tracked session.
func (c *Connector) Close() {
	if c == nil {
		return
	}
	c.mu.Lock()
	sessions := c.sessions
	c.sessions = nil
	c.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
