package devnode

import "testing"

func TestPhaseGuard_HappyPath(t *testing.T) {
	g := newPhaseGuard()
	if g.isIdle() {
		t.Fatal("new guard must wait for the handshake")
	}

	// Init → Idle
	g.handshake()
	if !g.isIdle() {
		t.Fatal("expected Idle after handshake")
	}

	// Idle → Executing → Executed → Committing → Idle
	g.acquireExecute()
	g.completeExecute()
	g.acquireCommit()
	g.completeCommit()

	if !g.isIdle() {
		t.Fatal("expected Idle after commit")
	}

	// A failed execution returns to Idle.
	g.acquireExecute()
	g.failExecute()
	if !g.isIdle() {
		t.Fatal("expected Idle after a failed execution")
	}

	// Re-registration while idle.
	g.handshake()
	if g.String() != "Idle" {
		t.Fatalf("expected Idle, got %s", g)
	}
}

func expectPanic(t *testing.T, what string, fn func()) {
	t.Helper()
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic for %s", what)
		}
	}()
	fn()
}

func TestPhaseGuard_ExecuteBeforeHandshake(t *testing.T) {
	g := newPhaseGuard()
	expectPanic(t, "execute before handshake", g.acquireExecute)
}

func TestPhaseGuard_CommitWithoutExecute(t *testing.T) {
	g := newPhaseGuard()
	g.handshake()
	expectPanic(t, "commit without execute", g.acquireCommit)
}

func TestPhaseGuard_DoubleExecute(t *testing.T) {
	g := newPhaseGuard()
	g.handshake()
	g.acquireExecute()
	g.completeExecute()
	expectPanic(t, "execute while an outcome is held", g.acquireExecute)
}

func TestPhaseGuard_HandshakeWhileExecuted(t *testing.T) {
	g := newPhaseGuard()
	g.handshake()
	g.acquireExecute()
	g.completeExecute()
	expectPanic(t, "handshake while an outcome is held", g.handshake)
}
