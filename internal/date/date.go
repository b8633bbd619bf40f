// Package date caches the RFC1123 date header value so response
// serialization does not format a timestamp on every request.
package date

import (
	"sync/atomic"
	"time"
)

var current atomic.Pointer[[]byte]

// StartTicker refreshes the cached value twice a second and returns a
// stop function. The reactor starts it alongside the event loop.
func StartTicker() func() {
	update()

	ticker := time.NewTicker(500 * time.Millisecond)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				update()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		close(done)
	}
}

func update() {
	b := []byte(time.Now().UTC().Format(time.RFC1123))
	current.Store(&b)
}

// Current returns the cached date header bytes. When the ticker has not
// been started it falls back to formatting on the spot.
func Current() []byte {
	if p := current.Load(); p != nil {
		return *p
	}
	return []byte(time.Now().UTC().Format(time.RFC1123))
}
