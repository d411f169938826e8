package view

import (
	"context"
	"sync"

	"github.com/kestrelgeo/landview/errors"
)

// Gate is the map readiness gate: a one-shot signal that the map engine
// finished initializing. Operations that touch the map (layer attach,
// extent navigation) wait on it; late waiters resolve immediately.
//
// The gate resolves exactly once, either ready or failed. A failed gate
// releases waiters with ErrMapUnavailable so map-dependent features
// degrade instead of hanging; upload/run paths never consult the gate.
type Gate struct {
	mu   sync.Mutex
	ch   chan struct{}
	err  error
	done bool
}

// NewGate returns a gate in the uninitialized state.
func NewGate() *Gate {
	return &Gate{ch: make(chan struct{})}
}

// MarkReady resolves the gate as ready. Idempotent; a no-op if the gate
// already resolved (ready or failed — first resolution wins).
func (g *Gate) MarkReady() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return
	}
	g.done = true
	close(g.ch)
}

// Fail resolves the gate as degraded: the map engine could not
// initialize. Waiters are released with the cause wrapped in
// ErrMapUnavailable. A no-op after MarkReady.
func (g *Gate) Fail(cause error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return
	}
	g.done = true
	if cause != nil {
		g.err = errors.Wrap(errors.ErrMapUnavailable, cause.Error())
	} else {
		g.err = errors.ErrMapUnavailable
	}
	close(g.ch)
}

// WhenReady blocks until the gate resolves or the context is done.
// Returns nil when ready, the degraded error when failed, and an error
// marked ErrNotReady when the context expires with the gate unresolved.
func (g *Gate) WhenReady(ctx context.Context) error {
	select {
	case <-g.ch:
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.err
	case <-ctx.Done():
		return errors.Mark(errors.Wrap(ctx.Err(), "waiting for map readiness"), errors.ErrNotReady)
	}
}

// IsReady reports whether the gate resolved successfully.
func (g *Gate) IsReady() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.done && g.err == nil
}

// Err returns the degraded error, or nil if the gate is unresolved or
// resolved ready.
func (g *Gate) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// Reset returns the gate to the uninitialized state. Only valid during
// full teardown; in-flight waiters on the old channel still resolve
// against the pre-reset state.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ch = make(chan struct{})
	g.err = nil
	g.done = false
}
