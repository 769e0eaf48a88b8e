// Package timetrack tracks the duration of operations.
package timetrack

import (
	"time"

	"github.com/firstissue/firstissue/internal/clock"
)

// Timer measures the time elapsed during an operation.
type Timer struct {
	startTime time.Time
}

// StartTimer starts the timer.
func StartTimer() Timer {
	return Timer{clock.Now()}
}

// Elapsed returns the time elapsed since the timer was started.
func (t Timer) Elapsed() time.Duration {
	return clock.Since(t.startTime)
}
