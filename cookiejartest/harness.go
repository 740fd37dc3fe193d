package cookiejartest

import (
	"context"
	"testing"

	"github.com/blockberries/cookiejar"
	"github.com/blockberries/cookiejar/address"
	"github.com/blockberries/cookiejar/envelope"
	"github.com/blockberries/cookiejar/handler"
	"github.com/blockberries/cookiejar/processor"
	"github.com/blockberries/cookiejar/types"
)

// Harness drives a handler through a processor server the way a node
// would: it prefetches declared inputs from its own state and commits
// the writes of accepted transactions.
type Harness struct {
	t     testing.TB
	srv   *processor.Server
	state map[string][]byte
}

// NewHarness creates a registered harness around h.
func NewHarness(t testing.TB, h cookiejar.Handler) *Harness {
	t.Helper()
	srv := processor.New(h)
	if _, err := srv.Info(context.Background(), types.InfoRequest{}); err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	return &Harness{t: t, srv: srv, state: make(map[string][]byte)}
}

// Server returns the underlying processor server.
func (h *Harness) Server() *processor.Server {
	return h.srv
}

// Put seeds the value stored at addr.
func (h *Harness) Put(addr string, data []byte) {
	h.state[addr] = data
}

// Value returns the committed value at addr.
func (h *Harness) Value(addr string) ([]byte, bool) {
	data, ok := h.state[addr]
	return data, ok
}

// Count returns the committed jar value of the identity publicKeyHex.
func (h *Harness) Count(publicKeyHex string) (uint64, bool) {
	h.t.Helper()
	data, ok := h.state[address.Cookiejar(publicKeyHex)]
	if !ok || len(data) == 0 {
		return 0, false
	}
	v, err := handler.Decode(data)
	if err != nil {
		h.t.Fatalf("stored jar value %q does not parse: %v", data, err)
	}
	return v, true
}

// Process runs txn and commits its writes when it is accepted.
func (h *Harness) Process(txn types.Transaction) types.ProcessResponse {
	h.t.Helper()
	hdr, err := envelope.DecodeHeader(txn.Header)
	if err != nil {
		h.t.Fatalf("decode header: %v", err)
	}
	var inputs []types.StateEntry
	for _, addr := range hdr.Inputs {
		if data, ok := h.state[addr]; ok {
			inputs = append(inputs, types.StateEntry{Address: addr, Data: data})
		}
	}
	resp, err := h.srv.Process(context.Background(), types.ProcessRequest{
		Header:    txn.Header,
		Payload:   txn.Payload,
		Signature: txn.HeaderSignature,
		Inputs:    inputs,
	})
	if err != nil {
		h.t.Fatalf("Process failed: %v", err)
	}
	if resp.OK() {
		for _, w := range resp.Writes {
			h.state[w.Address] = w.Data
		}
	}
	return resp
}

// Apply builds a transaction for (action, amount) with b and processes
// it.
func (h *Harness) Apply(b *envelope.Builder, action string, amount uint64) types.ProcessResponse {
	h.t.Helper()
	txn, err := b.Transaction(action, amount)
	if err != nil {
		h.t.Fatalf("build %s(%d): %v", action, amount, err)
	}
	return h.Process(txn)
}

// MustApply asserts that (action, amount) is accepted.
func (h *Harness) MustApply(b *envelope.Builder, action string, amount uint64) types.ProcessResponse {
	h.t.Helper()
	resp := h.Apply(b, action, amount)
	if !resp.OK() {
		h.t.Fatalf("expected %s(%d) accepted, got %s: %s", action, amount, resp.Status, resp.Message)
	}
	return resp
}

// MustReject asserts that (action, amount) is rejected as invalid.
func (h *Harness) MustReject(b *envelope.Builder, action string, amount uint64) types.ProcessResponse {
	h.t.Helper()
	resp := h.Apply(b, action, amount)
	if resp.Status != types.ProcessInvalidTransaction {
		h.t.Fatalf("expected %s(%d) rejected, got %s", action, amount, resp.Status)
	}
	return resp
}
