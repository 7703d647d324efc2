package exception

import "github.com/yanun0323/errors"

// WS errors
var (
	ErrReadFailed               = errors.New("websocket: read failed")
	ErrMsgTooBig                = errors.New("websocket: message exceeds max size")
	ErrWebSocketSessionRunning  = errors.New("websocket: session already running")
	ErrWebSocketSessionClosed   = errors.New("websocket: session closed")
	ErrWebSocketInvalidArgument = errors.New("websocket: invalid argument")
)
