package websocket

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"

	"sorstream/pkg/exception"
)

const (
	DefaultDialerKeepAlive = 30 * time.Second
)

// resolve maps host to its addresses.
func resolve(ctx context.Context, r Resolver, host string) ([]string, error) {
	addrs, err := r.LookupHost(ctx, host)
	if err != nil {
		return nil, errors.Wrapf(exception.ErrResolveFailed, "lookup %s: %v", host, err)
	}
	if len(addrs) == 0 {
		return nil, errors.Wrapf(exception.ErrResolveFailed, "lookup %s: no address", host)
	}
	return addrs, nil
}

// connect tries each resolved address in order and returns the first connection.
func connect(ctx context.Context, d NetDialer, addrs []string, port string) (net.Conn, error) {
	var lastErr error = errors.New("no address")
	for _, addr := range addrs {
		conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(addr, port))
		if err != nil {
			lastErr = err
			continue
		}
		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetNoDelay(true)
		}
		return conn, nil
	}
	return nil, errors.Wrapf(exception.ErrConnectionFailed, "dial port %s: %v", port, lastErr)
}

// tlsClient prepares the encryption layer with the host as server name.
func tlsClient(raw net.Conn, base *tls.Config, host string) (*tls.Conn, error) {
	if host == "" {
		return nil, errors.Wrap(exception.ErrConnectionFailed, "empty server name")
	}
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if base != nil {
		cfg = base.Clone()
	}
	cfg.ServerName = host
	return tls.Client(raw, cfg), nil
}

func encrypt(ctx context.Context, conn *tls.Conn) error {
	if err := conn.HandshakeContext(ctx); err != nil {
		return errors.Wrapf(exception.ErrSslHandshakeFailed, "%v", err)
	}
	// streaming sessions stay open while idle
	_ = conn.SetDeadline(time.Time{})
	return nil
}

// upgrade performs the websocket handshake over the already encrypted connection.
func upgrade(ctx context.Context, conn net.Conn, opt Option, host, port, target string) (*websocket.Conn, error) {
	d := websocket.Dialer{
		NetDialTLSContext: func(context.Context, string, string) (net.Conn, error) {
			return conn, nil
		},
		ReadBufferSize:  opt.ReadBufferSize,
		WriteBufferSize: opt.WriteBufferSize,
	}
	ws, resp, err := d.DialContext(ctx, "wss://"+net.JoinHostPort(host, port)+target, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, errors.Wrapf(exception.ErrHandshakeFailed, "upgrade %s: %v", target, err)
	}

	ws.SetPingHandler(func(data string) error {
		_ = ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(opt.CloseWait))
		return nil
	})
	return ws, nil
}

// readMessage reads the next message into buf. Messages longer than buf are
// drained and reported with tooBig.
func readMessage(conn *websocket.Conn, buf []byte) (n int, tooBig bool, err error) {
	_, r, err := conn.NextReader()
	if err != nil {
		return 0, false, err
	}
	n, err = io.ReadFull(r, buf)
	switch {
	case err == io.EOF || err == io.ErrUnexpectedEOF:
		return n, false, nil
	case err != nil:
		return 0, false, err
	}
	extra, err := io.Copy(io.Discard, r)
	if err != nil {
		return 0, false, err
	}
	if extra > 0 {
		return 0, true, nil
	}
	return n, false, nil
}
