package tracelink

import (
	"fmt"

	"go.uber.org/zap"
)

// guard runs a best-effort call against the performance SDK. Errors and panics
// are converted to an error that is logged only in debug mode and never
// returned to the operation's caller.
func (l *Link) guard(msg string, fn func() error, fields ...zap.Field) bool {
	err := recoverCall(fn)
	if err == nil {
		return true
	}
	if l.debug {
		l.logger.Error(msg, append(fields, zap.Error(err))...)
	}
	return false
}

func recoverCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("panic: %w", e)
				return
			}
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
