package safego

import (
	"go.uber.org/zap"
)

// Go runs fn in a goroutine and logs instead of crashing when it panics.
func Go(logger *zap.Logger, name string, fn func()) {
	go Run(logger, name, fn)
}

// Run calls fn on the current goroutine with the same recovery as Go.
// It reports whether fn returned without panicking.
func Run(logger *zap.Logger, name string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Goroutine panicked",
				zap.String("goroutine", name),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			ok = false
		}
	}()
	fn()
	return true
}
