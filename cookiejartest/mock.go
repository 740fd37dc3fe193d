// Package cookiejartest provides test utilities for cookiejar handler
// and node development: recording mocks, key helpers, a processor
// harness and a handler compliance suite.
package cookiejartest

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/blockberries/cookiejar"
	"github.com/blockberries/cookiejar/types"
)

// Compile-time checks.
var (
	_ cookiejar.Context = (*MockContext)(nil)
	_ cookiejar.Handler = (*MockHandler)(nil)
)

// MockContext is an in-memory state context that records every call.
// GetFn and SetFn, when set, replace the default map-backed behavior.
type MockContext struct {
	mu      sync.Mutex
	entries map[string][]byte

	GetFn func(addresses ...string) ([]types.StateEntry, error)
	SetFn func(entries ...types.StateEntry) ([]string, error)

	// Call counters (atomic for concurrent access).
	GetCalls atomic.Int64
	SetCalls atomic.Int64
}

// NewMockContext creates an empty MockContext.
func NewMockContext() *MockContext {
	return &MockContext{entries: make(map[string][]byte)}
}

// Put seeds the value stored at addr without counting as a call.
func (m *MockContext) Put(addr string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[addr] = data
}

// Value returns the value stored at addr.
func (m *MockContext) Value(addr string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.entries[addr]
	return data, ok
}

// Addresses returns every address holding a value, sorted.
func (m *MockContext) Addresses() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for addr := range m.entries {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

func (m *MockContext) GetState(addresses ...string) ([]types.StateEntry, error) {
	m.GetCalls.Add(1)
	if m.GetFn != nil {
		return m.GetFn(addresses...)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.StateEntry
	for _, addr := range addresses {
		if data, ok := m.entries[addr]; ok {
			out = append(out, types.StateEntry{Address: addr, Data: data})
		}
	}
	return out, nil
}

func (m *MockContext) SetState(entries ...types.StateEntry) ([]string, error) {
	m.SetCalls.Add(1)
	if m.SetFn != nil {
		return m.SetFn(entries...)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	written := make([]string, 0, len(entries))
	for _, e := range entries {
		m.entries[e.Address] = e.Data
		written = append(written, e.Address)
	}
	return written, nil
}

// MockHandler is a configurable handler for processor and node testing.
// Unconfigured fields fall back to the cookiejar family metadata and a
// handler that accepts everything without writing.
type MockHandler struct {
	Family     string
	Versions   []string
	Prefixes   []string
	ApplyFn    func(context.Context, *types.TransactionRequest, cookiejar.Context) error
	ApplyCalls atomic.Int64
}

func (m *MockHandler) FamilyName() string {
	if m.Family == "" {
		return cookiejar.FamilyName
	}
	return m.Family
}

func (m *MockHandler) FamilyVersions() []string {
	if len(m.Versions) == 0 {
		return []string{cookiejar.FamilyVersion}
	}
	return m.Versions
}

func (m *MockHandler) Namespaces() []string { return m.Prefixes }

func (m *MockHandler) Apply(ctx context.Context, req *types.TransactionRequest, state cookiejar.Context) error {
	m.ApplyCalls.Add(1)
	if m.ApplyFn != nil {
		return m.ApplyFn(ctx, req, state)
	}
	return nil
}
