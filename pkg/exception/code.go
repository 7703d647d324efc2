package exception

import "strconv"

// Code classifies a failure raised by a session, a decoder or a handler.
type Code int32

const (
	CodeUnexpected Code = iota

	// connection layer
	CodeResolveFailed
	CodeConnectionFailed
	CodeSslHandshakeFailed
	CodeHandshakeFailed

	// stream layer
	CodeReadFailed
	CodeMsgTooBig

	// decode layer
	CodeInvalidJson
	CodeDataGap
	CodeDataDuplicate

	_code_end
)

// Layer groups codes by the component that raises them.
type Layer uint8

const (
	LayerUnknown Layer = iota
	LayerConnection
	LayerStream
	LayerDecode
)

func (l Layer) String() string {
	switch l {
	case LayerConnection:
		return "connection"
	case LayerStream:
		return "stream"
	case LayerDecode:
		return "decode"
	default:
		return "unknown"
	}
}

func (c Code) IsAvailable() bool {
	return c >= CodeUnexpected && c < _code_end
}

func (c Code) String() string {
	switch c {
	case CodeUnexpected:
		return "Unexpected"
	case CodeResolveFailed:
		return "ResolveFailed"
	case CodeConnectionFailed:
		return "ConnectionFailed"
	case CodeSslHandshakeFailed:
		return "SslHandshakeFailed"
	case CodeHandshakeFailed:
		return "HandshakeFailed"
	case CodeReadFailed:
		return "ReadFailed"
	case CodeMsgTooBig:
		return "MsgTooBig"
	case CodeInvalidJson:
		return "InvalidJson"
	case CodeDataGap:
		return "DataGap"
	case CodeDataDuplicate:
		return "DataDuplicate"
	default:
		return "Code(" + strconv.Itoa(int(c)) + ")"
	}
}

// Layer reports which layer of the stack raises the code.
func (c Code) Layer() Layer {
	switch c {
	case CodeResolveFailed, CodeConnectionFailed, CodeSslHandshakeFailed, CodeHandshakeFailed:
		return LayerConnection
	case CodeReadFailed, CodeMsgTooBig:
		return LayerStream
	case CodeInvalidJson, CodeDataGap, CodeDataDuplicate:
		return LayerDecode
	default:
		return LayerUnknown
	}
}

// Fatal reports whether the code ends a session without further progress.
func (c Code) Fatal() bool {
	return c.Layer() == LayerConnection
}

// Err returns the sentinel error for the code.
func (c Code) Err() error {
	switch c {
	case CodeResolveFailed:
		return ErrResolveFailed
	case CodeConnectionFailed:
		return ErrConnectionFailed
	case CodeSslHandshakeFailed:
		return ErrSslHandshakeFailed
	case CodeHandshakeFailed:
		return ErrHandshakeFailed
	case CodeReadFailed:
		return ErrReadFailed
	case CodeMsgTooBig:
		return ErrMsgTooBig
	case CodeInvalidJson:
		return ErrInvalidJson
	case CodeDataGap:
		return ErrDataGap
	case CodeDataDuplicate:
		return ErrDataDuplicate
	default:
		return ErrUnexpected
	}
}
