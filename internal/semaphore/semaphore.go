// Package semaphore implements a counting semaphore that hands permits to
// waiters in strict FIFO order.
package semaphore

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// Semaphore admits at most a fixed number of concurrent permit holders.
//
// Unlike a buffered-channel semaphore, a release hands the permit directly
// to the longest-waiting caller instead of returning it to a shared pool,
// so permits are granted strictly in arrival order and a newly-arriving
// Acquire can never overtake a queued waiter.
type Semaphore struct {
	label string
	max   int

	mu        sync.Mutex
	available int
	waiters   *list.List // of chan *Lock, each buffered for one hand-off
}

// Lock represents a single acquired permit. Release must be called exactly
// once; releasing twice is a caller bug (the handle is invalidated after
// the first release so a double release panics instead of corrupting
// semaphore counters).
type Lock struct {
	s *Semaphore
}

// New returns a semaphore admitting at most max concurrent holders. The
// label identifies the guarded resource in errors and diagnostics.
func New(max int, label string) (*Semaphore, error) {
	if max < 1 {
		return nil, errors.Errorf("invalid concurrency limit %v for %q: must be at least 1", max, label)
	}

	return &Semaphore{
		label:     label,
		max:       max,
		available: max,
		waiters:   list.New(),
	}, nil
}

// Acquire obtains a permit, blocking while all permits are held. Waiters
// are granted permits in arrival order. A nil error is always accompanied
// by a valid Lock. Acquire returns early when the context is canceled,
// in which case the pending request is abandoned without losing a permit.
func (s *Semaphore) Acquire(ctx context.Context) (*Lock, error) {
	s.mu.Lock()

	if s.available > 0 {
		s.available--
		s.mu.Unlock()

		return &Lock{s}, nil
	}

	ready := make(chan *Lock, 1)
	elem := s.waiters.PushBack(ready)
	s.mu.Unlock()

	select {
	case l := <-ready:
		return l, nil

	case <-ctx.Done():
		s.mu.Lock()

		select {
		case l := <-ready:
			// A release handed us the permit while we were being canceled.
			// Pass it along so it is not lost.
			s.mu.Unlock()
			l.Release()

		default:
			s.waiters.Remove(elem)
			s.mu.Unlock()
		}

		return nil, errors.Wrapf(ctx.Err(), "acquiring %q permit", s.label)
	}
}

// TryAcquire obtains a permit without blocking. It fails whenever no permit
// is free, including when waiters are queued, so it can never overtake a
// blocked Acquire.
func (s *Semaphore) TryAcquire() (*Lock, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.available > 0 {
		s.available--
		return &Lock{s}, true
	}

	return nil, false
}

// Release returns the permit. If any callers are waiting, the permit is
// handed directly to the longest-waiting one; the available count never
// becomes positive while waiters exist.
func (l *Lock) Release() {
	s := l.s
	l.s = nil

	s.mu.Lock()

	if e := s.waiters.Front(); e != nil {
		s.waiters.Remove(e)

		// The channel is buffered, so handing off under the mutex cannot
		// block. Sending while locked is what makes hand-off atomic with
		// respect to a canceled waiter checking whether it was granted.
		e.Value.(chan *Lock) <- &Lock{s}
		s.mu.Unlock()

		return
	}

	s.available++
	s.mu.Unlock()
}

// Max returns the maximum number of concurrent permit holders.
func (s *Semaphore) Max() int {
	return s.max
}

// Available returns the number of free permits.
func (s *Semaphore) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.available
}

// Waiting returns the number of callers blocked in Acquire.
func (s *Semaphore) Waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.waiters.Len()
}

// String returns a human-readable representation of the semaphore state.
func (s *Semaphore) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return fmt.Sprintf("Semaphore(%v: %v/%v free, %v waiting)", s.label, s.available, s.max, s.waiters.Len())
}
