package exception

import "errors"

// Decode errors
var (
	ErrInvalidJson   = errors.New("market data: invalid json")
	ErrDataGap       = errors.New("market data: sequence gap")
	ErrDataDuplicate = errors.New("market data: duplicate sequence")
	ErrUnknownKind   = errors.New("market data: unknown message kind")
)
