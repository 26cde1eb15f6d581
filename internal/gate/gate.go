// Package gate provides the process-wide mutual-exclusion gate that
// serializes read-modify-write cycles on the persisted recency list.
//
// The gate is a one-slot channel semaphore. Acquire blocks until the slot is
// free or the caller's context ends; Release frees the slot unconditionally.
// Waiter fairness is unspecified: whichever blocked goroutine the runtime
// wakes first wins.
package gate

import (
	"context"
	"fmt"
	"time"
)

// Default is the gate shared by every component of the process. It starts
// unlocked and lives until process exit.
var Default = New()

// Gate is a binary semaphore with context-aware acquisition.
type Gate struct {
	slot    chan struct{}
	observe func(wait time.Duration)
}

// Option configures a Gate.
type Option func(*Gate)

// WithWaitObserver registers a callback receiving the time each successful
// Acquire spent waiting.
func WithWaitObserver(fn func(wait time.Duration)) Option {
	return func(g *Gate) { g.observe = fn }
}

// New returns an unlocked gate.
func New(opts ...Option) *Gate {
	g := &Gate{slot: make(chan struct{}, 1)}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Acquire blocks until the gate is free and takes it. If ctx ends first the
// gate is not held and ctx.Err() is returned.
func (g *Gate) Acquire(ctx context.Context) error {
	start := time.Now()
	select {
	case g.slot <- struct{}{}:
	default:
		select {
		case g.slot <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if g.observe != nil {
		g.observe(time.Since(start))
	}
	return nil
}

// Release frees the gate. Releasing a free gate is a no-op.
func (g *Gate) Release() {
	select {
	case <-g.slot:
	default:
	}
}

// Held reports whether some caller currently holds the gate.
func (g *Gate) Held() bool {
	return len(g.slot) == 1
}

// Do runs fn while holding the gate. The gate is released on every exit
// path, including a panic inside fn, which is converted into an error.
func (g *Gate) Do(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if err := g.Acquire(ctx); err != nil {
		return err
	}
	defer g.Release()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("gate: critical section panicked: %v", r)
		}
	}()
	return fn(ctx)
}
