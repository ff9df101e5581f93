// Package scheduler implements the event-loop adapter the protocol engine
// requires: a single dispatch goroutine fed by (a) datagram-readable
// notifications from a transport and (b) one-shot timers, exactly the two
// source kinds named in the specification's external-interfaces section.
//
// The teacher drove its session bookkeeping from a bare `go s.updateLoop()`
// ticker goroutine with no serialization story at all (source/server/
// server.go); this package generalises that into the single-goroutine,
// no-internal-locking model the engine's concurrency section requires,
// using golang.org/x/sync/errgroup to supervise the loop and any reader
// goroutines feeding it (see SPEC_FULL.md §0, §5).
package scheduler

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Task is a unit of work dispatched onto the loop goroutine.
type Task func()

// TimerHandle is a cancellable one-shot timer registration.
type TimerHandle interface {
	// Stop prevents the timer from firing, if it has not already. It is
	// safe to call Stop from any goroutine.
	Stop() bool
}

// Loop is the single-threaded dispatch goroutine the engine runs on. Every
// Task posted to it — whether from a timer firing or a reader goroutine —
// is guaranteed to run serialized with every other Task, which is what lets
// Peer/Client/Server avoid any internal locking.
type Loop struct {
	tasks  chan Task
	done   chan struct{}
	closed bool
}

// NewLoop returns a Loop with a reasonably sized task buffer so that
// reader goroutines rarely block posting a freshly received datagram.
func NewLoop() *Loop {
	return &Loop{
		tasks: make(chan Task, 256),
		done:  make(chan struct{}),
	}
}

// Post enqueues fn to run on the loop goroutine. It is safe to call from any
// goroutine, including from within a Task itself (re-entrant posts run on
// the next iteration, never recursively).
func (l *Loop) Post(fn Task) {
	select {
	case l.tasks <- fn:
	case <-l.done:
	}
}

// Run drains tasks until ctx is cancelled. It is meant to be the sole body
// of the loop goroutine, typically started via an errgroup.Group so it can
// be supervised alongside reader goroutines feeding it with Post.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// After arms a one-shot timer that Posts fn onto the loop after d elapses.
// This is the Go rendition of "register a one-shot timer source" from the
// specification's scheduler adapter.
func (l *Loop) After(d time.Duration, fn Task) TimerHandle {
	if d < time.Millisecond {
		d = time.Millisecond
	}
	t := time.AfterFunc(d, func() { l.Post(fn) })
	return stdTimer{t}
}

type stdTimer struct{ t *time.Timer }

func (s stdTimer) Stop() bool { return s.t.Stop() }

// Group returns a new errgroup bound to ctx, for supervising the loop
// goroutine alongside reader goroutines (see transport.ServeDatagrams).
func Group(ctx context.Context) (*errgroup.Group, context.Context) {
	return errgroup.WithContext(ctx)
}
