// Package monitoring reports unexpected failures to an error tracker. The
// process-wide monitor defaults to NopMonitor until Init is called.
package monitoring

import (
	"fmt"
	"sync"
	"time"
)

// Monitor receives errors and panics.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	CapturePanic(v any)
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) CapturePanic(any)                          {}
func (NopMonitor) Flush(time.Duration)                       {}

var (
	mu      sync.RWMutex
	current Monitor = NopMonitor{}
)

// Init sets the global monitor. A nil m is ignored.
func Init(m Monitor) {
	if m == nil {
		return
	}
	mu.Lock()
	current = m
	mu.Unlock()
}

func get() Monitor {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// CaptureException records err with optional tags. A nil err is ignored.
func CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	get().CaptureException(err, tags)
}

// Recover must be deferred directly. It reports a panic, flushes and
// panics again.
func Recover() {
	if r := recover(); r != nil {
		m := get()
		m.CapturePanic(r)
		m.Flush(2 * time.Second)
		panic(r)
	}
}

// RecoverError is deferred directly in goroutines that must not crash the
// process. It reports the panic and stores it in *errp.
func RecoverError(errp *error) {
	if r := recover(); r != nil {
		get().CapturePanic(r)
		if errp != nil {
			*errp = fmt.Errorf("panic: %v", r)
		}
	}
}

// Flush waits for buffered events.
func Flush(d time.Duration) {
	get().Flush(d)
}
