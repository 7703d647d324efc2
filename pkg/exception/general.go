package exception

import "errors"

// General errors
var (
	ErrUnexpected      = errors.New("unexpected error")
	ErrNilInstance     = errors.New("nil instance")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidConfig   = errors.New("invalid config")
	ErrLoopStopped     = errors.New("loop stopped")
)
