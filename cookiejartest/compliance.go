package cookiejartest

import (
	"bytes"
	"testing"

	"github.com/blockberries/cookiejar"
	"github.com/blockberries/cookiejar/address"
	"github.com/blockberries/cookiejar/types"
)

// RunComplianceSuite runs a standard compliance test suite against a
// cookiejar handler implementation.
//
// The factory function should return a fresh handler for each test.
func RunComplianceSuite(t *testing.T, factory func() cookiejar.Handler) {
	t.Helper()

	t.Run("registration", func(t *testing.T) {
		h := NewHarness(t, factory())
		info, err := h.Server().Info(t.Context(), types.InfoRequest{})
		if err != nil {
			t.Fatalf("Info failed: %v", err)
		}
		if info.FamilyName == "" {
			t.Error("family name must not be empty")
		}
		if len(info.FamilyVersions) == 0 {
			t.Error("at least one family version must be served")
		}
		if len(info.Namespaces) == 0 {
			t.Error("at least one namespace must be declared")
		}
	})

	t.Run("increment_from_absent", func(t *testing.T) {
		h := NewHarness(t, factory())
		b := NewBuilder(t)
		h.MustApply(b, "increment", 5)
		if v, ok := h.Count(b.PublicKey()); !ok || v != 5 {
			t.Errorf("expected jar=5, got %d (present=%v)", v, ok)
		}
	})

	t.Run("single_write_per_apply", func(t *testing.T) {
		h := NewHarness(t, factory())
		b := NewBuilder(t)
		for _, step := range []struct {
			action string
			amount uint64
		}{{"increment", 3}, {"decrement", 1}, {"reset", 0}} {
			resp := h.MustApply(b, step.action, step.amount)
			if len(resp.Writes) != 1 || resp.Writes[0].Address != b.Address() {
				t.Errorf("%s: expected one write to %s, got %+v", step.action, b.Address(), resp.Writes)
			}
		}
	})

	t.Run("rejection_writes_nothing", func(t *testing.T) {
		h := NewHarness(t, factory())
		b := NewBuilder(t)
		h.MustApply(b, "increment", 2)
		for _, step := range []struct {
			action string
			amount uint64
		}{{"decrement", 10}, {"frobnicate", 1}} {
			resp := h.MustReject(b, step.action, step.amount)
			if len(resp.Writes) != 0 {
				t.Errorf("%s: rejected transaction reported writes %+v", step.action, resp.Writes)
			}
		}
		if v, _ := h.Count(b.PublicKey()); v != 2 {
			t.Errorf("expected jar unchanged at 2, got %d", v)
		}
	})

	t.Run("writes_within_namespaces", func(t *testing.T) {
		handler := factory()
		h := NewHarness(t, handler)
		b := NewBuilder(t)
		resp := h.MustApply(b, "increment", 1)
		for _, w := range resp.Writes {
			if !address.InNamespace(w.Address, handler.Namespaces()...) {
				t.Errorf("write to %s outside declared namespaces %v", w.Address, handler.Namespaces())
			}
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		b := NewBuilder(t)
		var txns []types.Transaction
		for _, step := range []struct {
			action string
			amount uint64
		}{{"increment", 7}, {"decrement", 3}, {"decrement", 9}, {"reset", 0}, {"increment", 1}} {
			txn, err := b.Transaction(step.action, step.amount)
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			txns = append(txns, txn)
		}

		h1 := NewHarness(t, factory())
		h2 := NewHarness(t, factory())
		for i, txn := range txns {
			r1 := h1.Process(txn)
			r2 := h2.Process(txn)
			if r1.Status != r2.Status {
				t.Fatalf("txn %d: non-deterministic status %s != %s", i, r1.Status, r2.Status)
			}
			if len(r1.Writes) != len(r2.Writes) {
				t.Fatalf("txn %d: non-deterministic write count", i)
			}
			for j := range r1.Writes {
				if r1.Writes[j].Address != r2.Writes[j].Address || !bytes.Equal(r1.Writes[j].Data, r2.Writes[j].Data) {
					t.Fatalf("txn %d: non-deterministic write %d", i, j)
				}
			}
		}
	})
}
