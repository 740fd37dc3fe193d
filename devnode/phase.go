package devnode

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// phase is a state of the executor's batch cycle.
type phase uint32

const (
	// phaseInit: waiting for the processor handshake.
	phaseInit phase = iota
	// phaseIdle: ready to execute the next batch.
	phaseIdle
	// phaseExecuting: a batch is being run through the processor.
	phaseExecuting
	// phaseExecuted: a batch outcome is held. Commit is the only valid
	// next call.
	phaseExecuted
	// phaseCommitting: the held outcome is being written to the store.
	phaseCommitting
)

func (p phase) String() string {
	switch p {
	case phaseInit:
		return "Init"
	case phaseIdle:
		return "Idle"
	case phaseExecuting:
		return "Executing"
	case phaseExecuted:
		return "Executed"
	case phaseCommitting:
		return "Committing"
	default:
		return fmt.Sprintf("unknown(%d)", p)
	}
}

// phaseGuard enforces execute-then-commit ordering. Violations are
// programming errors in the node and panic.
type phaseGuard struct {
	state atomic.Uint32
	seqMu sync.Mutex
}

func newPhaseGuard() *phaseGuard {
	g := &phaseGuard{}
	g.state.Store(uint32(phaseInit))
	return g
}

func (g *phaseGuard) String() string {
	return phase(g.state.Load()).String()
}

// handshake transitions Init → Idle. Repeating it while idle is allowed
// so a reconnecting processor can register again.
func (g *phaseGuard) handshake() {
	g.seqMu.Lock()
	defer g.seqMu.Unlock()
	switch p := phase(g.state.Load()); p {
	case phaseInit, phaseIdle:
		g.state.Store(uint32(phaseIdle))
	default:
		panic(fmt.Sprintf("devnode: handshake in phase %s", p))
	}
}

// acquireExecute transitions Idle → Executing.
func (g *phaseGuard) acquireExecute() {
	g.seqMu.Lock()
	if p := phase(g.state.Load()); p != phaseIdle {
		g.seqMu.Unlock()
		panic(fmt.Sprintf("devnode: execute in phase %s (expected Idle)", p))
	}
	g.state.Store(uint32(phaseExecuting))
}

// completeExecute transitions Executing → Executed.
func (g *phaseGuard) completeExecute() {
	g.state.Store(uint32(phaseExecuted))
	g.seqMu.Unlock()
}

// failExecute transitions Executing → Idle so the batch can be retried.
func (g *phaseGuard) failExecute() {
	g.state.Store(uint32(phaseIdle))
	g.seqMu.Unlock()
}

// acquireCommit transitions Executed → Committing.
func (g *phaseGuard) acquireCommit() {
	g.seqMu.Lock()
	if p := phase(g.state.Load()); p != phaseExecuted {
		g.seqMu.Unlock()
		panic(fmt.Sprintf("devnode: commit in phase %s (expected Executed)", p))
	}
	g.state.Store(uint32(phaseCommitting))
}

// completeCommit transitions Committing → Idle.
func (g *phaseGuard) completeCommit() {
	g.state.Store(uint32(phaseIdle))
	g.seqMu.Unlock()
}

func (g *phaseGuard) isIdle() bool {
	return phase(g.state.Load()) == phaseIdle
}
