package ingest

import (
	"context"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"sorstream/pkg/exception"
)

// FailurePolicy decides what a failed connection establishment does beyond
// the failing target.
type FailurePolicy func(target string, code exception.Code)

// AbortOnFailure cancels the whole process through cancel.
func AbortOnFailure(cancel context.CancelCauseFunc) FailurePolicy {
	return func(target string, code exception.Code) {
		logs.Errorf("failed to establish connection to required resource, target=%s, code=%s", target, code)
		cancel(errors.Wrapf(code.Err(), "connect target: %s", target))
	}
}

// IsolateFailure leaves the other targets running.
func IsolateFailure(target string, code exception.Code) {
	logs.Warnf("target isolated after connection failure, target=%s, code=%s", target, code)
}
