// Package monitoring forwards errors to an external tracker. The default
// reporter discards everything.
package monitoring

import (
	"sync"
	"time"
)

// Reporter records errors for later inspection.
type Reporter interface {
	CaptureError(err error, tags map[string]string)
	Flush(timeout time.Duration)
}

type NopReporter struct{}

func (NopReporter) CaptureError(error, map[string]string) {}
func (NopReporter) Flush(time.Duration)                   {}

var (
	mu      sync.RWMutex
	current Reporter = NopReporter{}
)

// SetReporter replaces the process-wide reporter. Nil restores the default.
func SetReporter(r Reporter) {
	if r == nil {
		r = NopReporter{}
	}
	mu.Lock()
	current = r
	mu.Unlock()
}

func reporter() Reporter {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// CaptureError records err with optional tags. Nil errors are ignored.
func CaptureError(err error, tags map[string]string) {
	if err == nil {
		return
	}
	reporter().CaptureError(err, tags)
}

// Flush waits up to timeout for buffered reports to be sent.
func Flush(timeout time.Duration) { reporter().Flush(timeout) }
