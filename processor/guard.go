// Package processor hosts a transaction family handler behind the
// node-facing Processor interface. It routes transactions to the
// handler, confines each transaction to its declared address sets and
// maps handler errors onto processing statuses.
package processor

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// ErrNotRegistered is returned by Process before Info completed.
	ErrNotRegistered = errors.New("processor: Process called before Info")
	// ErrClosed is returned by every call after Close.
	ErrClosed = errors.New("processor: closed")
)

// guardState represents a state in the processor lifecycle.
type guardState uint32

const (
	// stateUnregistered: waiting for Info. Process is refused.
	stateUnregistered guardState = iota
	// stateReady: Info returned. Process may be called concurrently,
	// and repeated Info calls (node reconnects) are allowed.
	stateReady
	// stateClosed: Close was called. Everything is refused.
	stateClosed
)

func (s guardState) String() string {
	switch s {
	case stateUnregistered:
		return "Unregistered"
	case stateReady:
		return "Ready"
	case stateClosed:
		return "Closed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Guard enforces the processor lifecycle: Info before Process, nothing
// after Close, and Close waits for in-flight Process calls to drain.
type Guard struct {
	mu       sync.RWMutex
	state    atomic.Uint32
	inflight sync.WaitGroup
}

// NewGuard creates a guard in the Unregistered state.
func NewGuard() *Guard {
	g := &Guard{}
	g.state.Store(uint32(stateUnregistered))
	return g
}

// State returns the current lifecycle state.
func (g *Guard) State() string {
	return guardState(g.state.Load()).String()
}

// Register transitions Unregistered → Ready. It is a no-op when already
// Ready.
func (g *Guard) Register() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if guardState(g.state.Load()) == stateClosed {
		return ErrClosed
	}
	g.state.Store(uint32(stateReady))
	return nil
}

// Enter admits one Process call. Every successful Enter must be paired
// with Leave.
func (g *Guard) Enter() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	switch guardState(g.state.Load()) {
	case stateReady:
		g.inflight.Add(1)
		return nil
	case stateClosed:
		return ErrClosed
	default:
		return ErrNotRegistered
	}
}

// Leave marks one admitted Process call as finished.
func (g *Guard) Leave() {
	g.inflight.Done()
}

// Close transitions to Closed and blocks until admitted calls finish.
func (g *Guard) Close() {
	g.mu.Lock()
	g.state.Store(uint32(stateClosed))
	g.mu.Unlock()
	g.inflight.Wait()
}

// IsReady returns true if the guard admits Process calls.
func (g *Guard) IsReady() bool {
	return guardState(g.state.Load()) == stateReady
}
