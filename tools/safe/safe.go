package safe

import (
	"mchat/logger"
)

// Go starts a named goroutine that recovers from panic, so a failure in one
// connection's pipeline never crashes the process.
func Go(name string, f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe] %s panic recovered: %v", name, r)
			}
		}()
		f()
	}()
}
