package exception

import "github.com/yanun0323/errors"

// Connection errors
var (
	ErrResolveFailed      = errors.New("connection: resolve failed")
	ErrConnectionFailed   = errors.New("connection: transport connect failed")
	ErrSslHandshakeFailed = errors.New("connection: tls handshake failed")
	ErrHandshakeFailed    = errors.New("connection: websocket handshake failed")
)
